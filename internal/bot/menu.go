package bot

import (
	"strings"
	"unicode"

	"github.com/alphabot-ai/voicethreads/internal/transport"
)

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdHelp
	cmdCancel
	cmdAddComment
	cmdAddMyVideo
	cmdTrack
	cmdListen
	cmdMine
	cmdSearch
	cmdFavorites
	cmdNotifications
	cmdCheckpoint
)

type menuItem struct {
	cmd   command
	label string
}

// menu is the main menu in display order.
var menu = []menuItem{
	{cmdAddComment, "🎥 Add Comment"},
	{cmdAddMyVideo, "➕ Add My Video"},
	{cmdTrack, "🔖 Track Video"},
	{cmdListen, "🎧 Listen Comments"},
	{cmdMine, "💬 My Comments"},
	{cmdSearch, "🔍 Search"},
	{cmdFavorites, "⭐ Favorites"},
	{cmdNotifications, "🔔 Notifications"},
	{cmdCheckpoint, "📍 Checkpoint"},
	{cmdHelp, "❓ Help"},
	{cmdCancel, "✖️ Cancel"},
}

var labelCommands = func() map[string]command {
	m := make(map[string]command, len(menu))
	for _, item := range menu {
		m[normalizeLabel(item.label)] = item.cmd
	}
	return m
}()

var slashCommands = map[string]command{
	"/start":         cmdStart,
	"/help":          cmdHelp,
	"/cancel":        cmdCancel,
	"/search":        cmdSearch,
	"/favorites":     cmdFavorites,
	"/notifications": cmdNotifications,
	"/checkpoint":    cmdCheckpoint,
	"/tracked":       cmdTrack,
	"/listen":        cmdListen,
	"/mine":          cmdMine,
}

type parsedCommand struct {
	cmd command
	arg string
}

// parseCommand recognises slash commands (with an optional argument and
// @bot suffix) and menu labels with or without their emoji.
func parseCommand(text string) (parsedCommand, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		name := strings.ToLower(fields[0])
		if at := strings.IndexByte(name, '@'); at > 0 {
			name = name[:at]
		}
		cmd, ok := slashCommands[name]
		if !ok {
			return parsedCommand{}, false
		}
		return parsedCommand{cmd: cmd, arg: strings.Join(fields[1:], " ")}, true
	}

	cmd, ok := labelCommands[normalizeLabel(text)]
	if !ok {
		return parsedCommand{}, false
	}
	return parsedCommand{cmd: cmd}, true
}

func normalizeLabel(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(strings.TrimSpace(s))
}

// menuRows lays the main menu out two buttons per row.
func menuRows() [][]transport.Button {
	var rows [][]transport.Button
	for i := 0; i < len(menu); i += 2 {
		row := []transport.Button{{Label: menu[i].label, Token: token(ActMenu, int64(menu[i].cmd))}}
		if i+1 < len(menu) {
			row = append(row, transport.Button{Label: menu[i+1].label, Token: token(ActMenu, int64(menu[i+1].cmd))})
		}
		rows = append(rows, row)
	}
	return rows
}

func menuCommand(id int64) (command, bool) {
	for _, item := range menu {
		if int64(item.cmd) == id {
			return item.cmd, true
		}
	}
	return cmdNone, false
}
