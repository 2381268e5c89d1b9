package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/voicethreads/internal/store"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		in   string
		want Token
	}{
		{"react_12_heart", Token{Action: ActReact, ID: 12, Sub: "heart"}},
		{"fav_3", Token{Action: ActFavorite, ID: 3}},
		{"listen_7_2", Token{Action: ActListen, ID: 7, Sub: "2"}},
		{"replies_9_1", Token{Action: ActReplies, ID: 9, Sub: "1"}},
		{"mine_4", Token{Action: ActMine, ID: 4}},
		{"menu_9", Token{Action: ActMenu, ID: 9}},
		{"addvoice_0", Token{Action: ActAddVoice, ID: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseToken(tt.in)
			if err != nil {
				t.Fatalf("ParseToken(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseToken(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseTokenMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"react",
		"react_12",
		"react_12_love",
		"react_x_heart",
		"fav_-1",
		"fav_1_2",
		"listen_7",
		"listen_7_x",
		"listen_7_99999999999999999999",
		"unknown_1",
		"a_b_c_d",
	} {
		_, err := ParseToken(in)
		assert.ErrorIs(t, err, ErrMalformedToken, in)
	}
}

func TestTokenPage(t *testing.T) {
	tok, _ := ParseToken("listen_7_3")
	assert.Equal(t, 3, tok.Page())

	tok, err := ParseToken("listen_7_922337203685477582")
	require.NoError(t, err)
	assert.Equal(t, 922337203685477582, tok.Page())

	tok, _ = ParseToken("notif_2")
	assert.Equal(t, 2, tok.Page())

	tok, _ = ParseToken("react_1_dislike")
	assert.Equal(t, store.ReactionDislike, tok.Reaction())
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in    string
		cmd   command
		arg   string
		isCmd bool
	}{
		{"/start", cmdStart, "", true},
		{"/search 00000A", cmdSearch, "00000A", true},
		{"/SEARCH@VoiceBot  abc ", cmdSearch, "abc", true},
		{"🔍 Search", cmdSearch, "", true},
		{"search", cmdSearch, "", true},
		{"⭐ favorites", cmdFavorites, "", true},
		{"✖️ Cancel", cmdCancel, "", true},
		{"/unknown", cmdNone, "", false},
		{"hello there", cmdNone, "", false},
		{"https://youtu.be/x", cmdNone, "", false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.in)
		assert.Equal(t, tt.isCmd, ok, tt.in)
		assert.Equal(t, tt.cmd, got.cmd, tt.in)
		assert.Equal(t, tt.arg, got.arg, tt.in)
	}
}

func TestMenuRowsRoundTrip(t *testing.T) {
	rows := menuRows()
	assert.Len(t, rows, (len(menu)+1)/2)
	for _, row := range rows {
		assert.LessOrEqual(t, len(row), 2)
		for _, b := range row {
			tok, err := ParseToken(b.Token)
			if assert.NoError(t, err, b.Token) {
				cmd, ok := menuCommand(tok.ID)
				assert.True(t, ok, b.Token)
				got, isCmd := parseCommand(b.Label)
				assert.True(t, isCmd, b.Label)
				assert.Equal(t, cmd, got.cmd, b.Label)
			}
		}
	}
}

func TestExtractLink(t *testing.T) {
	tests := map[string]string{
		"look https://youtu.be/abc.":         "https://youtu.be/abc",
		"(https://www.tiktok.com/@a/video/1)": "https://www.tiktok.com/@a/video/1",
		"no link here":                        "",
		"http://example.com/x y":              "http://example.com/x",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractLink(in), in)
	}
}

func TestSupportedLink(t *testing.T) {
	e := &Engine{opts: DefaultOptions()}
	assert.True(t, e.supportedLink("https://youtu.be/abc"))
	assert.True(t, e.supportedLink("https://m.youtube.com/watch?v=1"))
	assert.True(t, e.supportedLink("https://vm.tiktok.com/x"))
	assert.False(t, e.supportedLink("https://notyoutube.com/x"))
	assert.False(t, e.supportedLink("https://example.com/x"))

	open := &Engine{}
	assert.True(t, open.supportedLink("https://example.com/x"))
}
