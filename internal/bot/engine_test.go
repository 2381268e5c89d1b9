package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/voicethreads/internal/notify"
	"github.com/alphabot-ai/voicethreads/internal/pending"
	"github.com/alphabot-ai/voicethreads/internal/shortcode"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
	"github.com/alphabot-ai/voicethreads/internal/transport/transporttest"
)

var (
	alice = transport.Sender{ID: 1, Name: "Alice"}
	bob   = transport.Sender{ID: 2, Name: "Bob", Handle: "bob"}
)

// syncDispatcher delivers inline so tests can observe pushes immediately.
type syncDispatcher struct {
	h notify.DeliveryHandler
}

func (d syncDispatcher) Dispatch(ctx context.Context, del notify.Delivery) error {
	_ = d.h.Deliver(ctx, del)
	return nil
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *store.SQLStore
	out     *transporttest.Recorder
	pending *pending.Store
	engine  *Engine
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	out := transporttest.NewRecorder()
	fanout := notify.NewFanout(st, syncDispatcher{h: notify.NewDeliverer(out, st, logger)}, logger)
	svc := NewService(st, fanout, logger)

	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	ps := pending.NewStore(0)

	return &harness{
		t:       t,
		ctx:     context.Background(),
		store:   st,
		out:     out,
		pending: ps,
		engine:  NewEngine(svc, st, ps, out, opts, logger),
	}
}

func (h *harness) text(from transport.Sender, s string) {
	h.engine.Handle(h.ctx, transport.Event{From: from, Kind: transport.EventText, Text: s})
}

func (h *harness) voice(from transport.Sender, ref string) {
	h.engine.Handle(h.ctx, transport.Event{From: from, Kind: transport.EventVoice, Voice: &transport.Voice{AudioRef: ref, Duration: 4}})
}

func (h *harness) press(from transport.Sender, tok string) {
	h.engine.Handle(h.ctx, transport.Event{From: from, Kind: transport.EventButton, Token: tok})
}

func (h *harness) state(user transport.Sender) pending.Action {
	a, _ := h.pending.Get(user.ID)
	return a
}

func (h *harness) last(user transport.Sender) transporttest.Message {
	h.t.Helper()
	m, ok := h.out.Last(user.ID)
	require.True(h.t, ok, "no message sent to user %d", user.ID)
	return m
}

// thread creates a thread for link through the chat flow.
func (h *harness) thread(from transport.Sender, link string) *store.Thread {
	h.t.Helper()
	h.text(from, link)
	th, err := h.store.GetThreadByLink(h.ctx, link)
	require.NoError(h.t, err)
	require.NotNil(h.t, th)
	return th
}

// comment records a voice comment on thread through the chat flow.
func (h *harness) comment(from transport.Sender, thread *store.Thread, ref string) *store.Comment {
	h.t.Helper()
	h.press(from, token(ActAddVoice, thread.ID))
	h.voice(from, ref)
	comments, err := h.store.ListUserComments(h.ctx, from.ID, 0, 1)
	require.NoError(h.t, err)
	require.NotEmpty(h.t, comments)
	require.Equal(h.t, ref, comments[0].AudioRef)
	return comments[0]
}

func TestEndToEndCommentAndSearch(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "check this https://youtu.be/abc")
	prompt := h.last(alice)
	th, err := h.store.GetThreadByLink(h.ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, []string{token(ActAddVoice, th.ID), pagedToken(ActListen, th.ID, 1)}, prompt.Tokens())

	h.press(alice, prompt.Tokens()[0])
	assert.Equal(t, pending.AwaitingVoiceForThread, h.state(alice).Kind)
	assert.Equal(t, th.ID, h.state(alice).ThreadID)

	h.voice(alice, "voice-a")
	assert.Equal(t, pending.Idle, h.state(alice).Kind)

	comments, err := h.store.ListThreadComments(h.ctx, th.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	code, err := shortcode.Encode(comments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, code, h.last(alice).Text, "the bare code is sent on its own")

	h.text(bob, "🔍 Search")
	assert.Equal(t, pending.AwaitingSearchCode, h.state(bob).Kind)

	h.out.Reset()
	h.text(bob, strings.ToLower(code))

	msgs := h.out.Messages(bob.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, "voice", msgs[0].Kind)
	assert.Equal(t, "voice-a", msgs[0].AudioRef)
	assert.Contains(t, msgs[0].Text, "Code: "+code)
	assert.Contains(t, msgs[0].Text, "From: Alice")
	assert.Contains(t, msgs[0].Text, "Video: https://youtu.be/abc")
	assert.Contains(t, msgs[0].Text, "❤️ 0  😂 0  👎 0")
	assert.Contains(t, msgs[0].Text, "💬 Replies: 0")
	assert.Equal(t, code, msgs[1].Text)
	assert.Contains(t, msgs[2].Tokens(), reactToken(comments[0].ID, store.ReactionHeart))
	assert.Equal(t, pending.Idle, h.state(bob).Kind)
}

func TestInlineSearchCommand(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/inline")
	c := h.comment(alice, th, "voice-inline")

	h.out.Reset()
	h.text(bob, "/search "+codeOf(c.ID))
	msgs := h.out.Messages(bob.ID)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "voice-inline", msgs[0].AudioRef)

	h.text(bob, "/search ZZ$$")
	assert.Contains(t, h.last(bob).Text, "No voice comment found")
}

func TestThreadCreatedOnce(t *testing.T) {
	h := newHarness(t)

	first := h.thread(alice, "https://youtu.be/same")
	second := h.thread(bob, "https://youtu.be/same")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, h.last(alice).Tokens(), h.last(bob).Tokens())
}

func TestStatelessButtonsKeepPending(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/stateless")
	c := h.comment(alice, th, "voice-1")

	h.press(bob, token(ActReplyVoice, c.ID))
	want := h.state(bob)
	require.Equal(t, pending.AwaitingVoiceReply, want.Kind)

	for _, tok := range []string{
		reactToken(c.ID, store.ReactionHeart),
		reactToken(c.ID, store.ReactionDislike),
		token(ActFavorite, c.ID),
		token(ActCheckpoint, c.ID),
		token(ActPlay, c.ID),
		pagedToken(ActListen, th.ID, 1),
		token(ActDeleteComment, c.ID),
		token(ActNotifications, 1),
		"react_abc_heart",
		"garbage",
	} {
		h.press(bob, tok)
		got := h.state(bob)
		assert.Equal(t, want.Kind, got.Kind, tok)
		assert.Equal(t, want.CommentID, got.CommentID, tok)
	}
}

func TestNonVoiceKeepsAwaitingVoice(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/wait")

	h.press(alice, token(ActAddVoice, th.ID))
	for _, input := range []string{"hello", "🔍 Search", "https://youtu.be/other", "/favorites"} {
		h.text(alice, input)
		a := h.state(alice)
		assert.Equal(t, pending.AwaitingVoiceForThread, a.Kind, input)
		assert.Equal(t, th.ID, a.ThreadID, input)
		assert.Equal(t, prompt(pending.AwaitingVoiceForThread), h.last(alice).Text, input)
	}

	h.engine.Handle(h.ctx, transport.Event{From: alice, Kind: transport.EventVoice})
	assert.Equal(t, pending.AwaitingVoiceForThread, h.state(alice).Kind, "voice event without audio")

	h.text(alice, "/cancel")
	assert.Equal(t, pending.Idle, h.state(alice).Kind)
	assert.Equal(t, msgCancelled, h.last(alice).Text)
}

func TestVoiceWithoutPending(t *testing.T) {
	h := newHarness(t)
	h.voice(alice, "stray")
	assert.Equal(t, msgNothingPending, h.last(alice).Text)

	n, err := h.store.CountUserComments(h.ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNoSelfNotification(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/self")
	c := h.comment(alice, th, "voice-self")

	h.press(alice, reactToken(c.ID, store.ReactionHeart))
	n, err := h.store.CountNotifications(h.ctx, store.NotificationFilter{RecipientID: alice.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	h.out.Reset()
	h.press(bob, reactToken(c.ID, store.ReactionLaugh))
	assert.Equal(t, "Thanks for your reaction! ❤️ 1  😂 1  👎 0", h.last(bob).Text)

	msgs := h.out.Messages(alice.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "🔔 Bob reacted 😂 to your comment "+codeOf(c.ID), msgs[0].Text)
	assert.Equal(t, codeOf(c.ID), msgs[1].Text)

	undelivered, err := h.store.CountNotifications(h.ctx, store.NotificationFilter{RecipientID: alice.ID, UndeliveredOnly: true})
	require.NoError(t, err)
	assert.Zero(t, undelivered)
}

func TestOwnedThreadNotifiesOwner(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "➕ Add My Video")
	require.Equal(t, pending.AwaitingOwnedLink, h.state(alice).Kind)
	h.text(alice, "https://www.tiktok.com/@alice/video/1")
	assert.Contains(t, h.last(alice).Text, "You're tracking")

	th, err := h.store.GetThreadByLink(h.ctx, "https://www.tiktok.com/@alice/video/1")
	require.NoError(t, err)
	require.True(t, th.OwnedBy(alice.ID))

	h.out.Reset()
	h.comment(bob, th, "voice-bob")

	msgs := h.out.Messages(alice.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "voice", msgs[0].Kind)
	assert.Equal(t, "voice-bob", msgs[0].AudioRef)
	assert.Contains(t, msgs[0].Text, "New voice comment on your tracked video by Bob")

	h.text(bob, "➕ Add My Video")
	h.text(bob, "https://www.tiktok.com/@alice/video/1")
	assert.Contains(t, h.last(bob).Text, "already tracked by someone else")
}

func TestDeleteAuthorization(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "➕ Add My Video")
	h.text(alice, "https://youtu.be/owned")
	th, err := h.store.GetThreadByLink(h.ctx, "https://youtu.be/owned")
	require.NoError(t, err)
	c := h.comment(alice, th, "voice-own")

	h.press(bob, token(ActDeleteThread, th.ID))
	assert.Contains(t, h.last(bob).Text, "Only the owner")
	h.press(bob, token(ActDeleteComment, c.ID))
	assert.Contains(t, h.last(bob).Text, "only delete your own")

	got, err := h.store.GetComment(h.ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "denied delete must not mutate")

	outcome, err := h.engine.svc.DeleteThread(h.ctx, bob.ID, th.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, outcome)

	h.press(alice, token(ActDeleteThread, th.ID))
	assert.Equal(t, "🗑 Video thread deleted.", h.last(alice).Text)

	h.text(bob, "/search "+codeOf(c.ID))
	assert.Contains(t, h.last(bob).Text, "No voice comment found", "codes of deleted comments fail gracefully")
}

func TestPublicThreadCannotBeDeleted(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/public")

	outcome, err := h.engine.svc.DeleteThread(h.ctx, alice.ID, th.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, outcome)
}

func TestLinkWinsOverCommandInLinkFlow(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "➕ Add My Video")
	h.text(alice, "/search https://youtu.be/tie")

	th, err := h.store.GetThreadByLink(h.ctx, "https://youtu.be/tie")
	require.NoError(t, err)
	require.NotNil(t, th, "link flow consumed the text")
	assert.True(t, th.OwnedBy(alice.ID))
	assert.Equal(t, pending.Idle, h.state(alice).Kind)

	h.text(bob, "/search https://youtu.be/idle")
	idle, err := h.store.GetThreadByLink(h.ctx, "https://youtu.be/idle")
	require.NoError(t, err)
	assert.Nil(t, idle, "idle users get the command")
	assert.Contains(t, h.last(bob).Text, "No voice comment found")
}

func TestLinkFlowRepromptsWithoutLink(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "🎥 Add Comment")
	h.text(alice, "not a link")
	assert.Equal(t, pending.AwaitingPublicLink, h.state(alice).Kind)
	assert.Equal(t, prompt(pending.AwaitingPublicLink), h.last(alice).Text)

	h.text(alice, "https://example.com/any")
	th, err := h.store.GetThreadByLink(h.ctx, "https://example.com/any")
	require.NoError(t, err)
	assert.NotNil(t, th, "flows accept any link")
}

func TestIdleUnsupportedLink(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "https://example.com/page")
	assert.Equal(t, msgUnsupported, h.last(alice).Text)
	th, err := h.store.GetThreadByLink(h.ctx, "https://example.com/page")
	require.NoError(t, err)
	assert.Nil(t, th)
}

func TestStoreFailureClearsPending(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/fail")

	h.press(alice, token(ActAddVoice, th.ID))
	require.Equal(t, pending.AwaitingVoiceForThread, h.state(alice).Kind)

	require.NoError(t, h.store.Close())
	h.voice(alice, "voice-lost")

	assert.Equal(t, pending.Idle, h.state(alice).Kind)
	assert.Equal(t, msgFailure, h.last(alice).Text)
}

func TestFailedButtonKeepsPending(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/keep")
	c := h.comment(alice, th, "voice-k")

	h.press(bob, token(ActReplyVoice, c.ID))
	require.Equal(t, pending.AwaitingVoiceReply, h.state(bob).Kind)

	require.NoError(t, h.store.Close())
	h.press(bob, reactToken(c.ID, store.ReactionHeart))

	assert.Equal(t, msgFailure, h.last(bob).Text)
	got := h.state(bob)
	assert.Equal(t, pending.AwaitingVoiceReply, got.Kind)
	assert.Equal(t, c.ID, got.CommentID)
}

// countlessStore saves comments but cannot count reactions.
type countlessStore struct {
	store.Store
}

func (countlessStore) CountReactions(context.Context, int64) (store.ReactionCounts, error) {
	return store.ReactionCounts{}, errors.New("count reactions: db locked")
}

func TestNewCommentCodeDoesNotNeedCounts(t *testing.T) {
	h := newHarness(t)
	st := countlessStore{Store: h.store}
	logger := zerolog.Nop()
	h.engine = NewEngine(NewService(st, nil, logger), st, h.pending, h.out, DefaultOptions(), logger)

	th := h.thread(alice, "https://youtu.be/countless")
	h.press(alice, token(ActAddVoice, th.ID))
	h.voice(alice, "voice-c")

	comments, err := h.store.ListThreadComments(h.ctx, th.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	code, err := shortcode.Encode(comments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, code, h.last(alice).Text)
	assert.Equal(t, pending.Idle, h.state(alice).Kind)
}

func TestTextReplyFlow(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/reply")
	c := h.comment(alice, th, "voice-r")

	h.press(bob, token(ActReplyText, c.ID))
	assert.Equal(t, prompt(pending.AwaitingTextReply), h.last(bob).Text)

	h.voice(bob, "wrong-kind")
	assert.Equal(t, pending.AwaitingTextReply, h.state(bob).Kind)

	h.out.Reset()
	h.text(bob, "Love this take")
	assert.Equal(t, "✅ Reply sent.", h.last(bob).Text)
	assert.Equal(t, pending.Idle, h.state(bob).Kind)

	msgs := h.out.Messages(alice.ID)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "New text reply to your comment "+codeOf(c.ID)+" by Bob")
	assert.Contains(t, msgs[0].Text, "Love this take")
	assert.Contains(t, msgs[0].Text, "Video: https://youtu.be/reply")

	h.press(bob, token(ActReplyVoice, c.ID))
	h.voice(bob, "voice-reply")
	assert.Equal(t, "✅ Voice reply sent.", h.last(bob).Text)

	h.out.Reset()
	h.press(alice, pagedToken(ActReplies, c.ID, 1))
	msgs = h.out.Messages(alice.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "↩️ Bob: Love this take", msgs[0].Text)
	assert.Equal(t, "voice-reply", msgs[1].AudioRef)
}

func TestReplyToDeletedComment(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/gone")
	c := h.comment(alice, th, "voice-g")

	h.press(bob, token(ActReplyVoice, c.ID))
	h.press(alice, token(ActDeleteComment, c.ID))
	h.voice(bob, "late")

	assert.Equal(t, msgCommentGone, h.last(bob).Text)
	assert.Equal(t, pending.Idle, h.state(bob).Kind)
}

func seedComments(t *testing.T, h *harness, th *store.Thread, n int) []*store.Comment {
	t.Helper()
	out := make([]*store.Comment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.comment(alice, th, fmt.Sprintf("voice-%02d", i)))
	}
	return out
}

func voices(msgs []transporttest.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Kind == "voice" {
			out = append(out, m.AudioRef)
		}
	}
	return out
}

func TestListenPagination(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ListenPageSize = 5 })
	th := h.thread(alice, "https://youtu.be/pages")
	seedComments(t, h, th, 12)

	h.out.Reset()
	h.press(bob, pagedToken(ActListen, th.ID, 1))
	msgs := h.out.Messages(bob.ID)
	assert.Equal(t, []string{"voice-00", "voice-01", "voice-02", "voice-03", "voice-04"}, voices(msgs))
	assert.Equal(t, []string{pagedToken(ActListen, th.ID, 2)}, h.last(bob).Tokens())

	h.out.Reset()
	h.press(bob, pagedToken(ActListen, th.ID, 3))
	msgs = h.out.Messages(bob.ID)
	assert.Equal(t, []string{"voice-10", "voice-11"}, voices(msgs))
	assert.Equal(t, "That's all for now.", h.last(bob).Text)

	h.out.Reset()
	h.press(bob, pagedToken(ActListen, th.ID, 4))
	assert.Empty(t, voices(h.out.Messages(bob.ID)))
	assert.Equal(t, "No more comments.", h.last(bob).Text)
}

func TestListenHugePage(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/huge")
	seedComments(t, h, th, 3)

	h.out.Reset()
	h.press(bob, fmt.Sprintf("listen_%d_922337203685477582", th.ID))
	assert.Empty(t, voices(h.out.Messages(bob.ID)))
	assert.Equal(t, "No more comments.", h.last(bob).Text)
}

func TestListenTargetFlow(t *testing.T) {
	h := newHarness(t)

	h.text(bob, "🎧 Listen Comments")
	h.text(bob, "https://youtu.be/nothing")
	assert.Contains(t, h.last(bob).Text, "No voice comments yet")
	assert.Equal(t, pending.Idle, h.state(bob).Kind)

	th := h.thread(alice, "https://youtu.be/listen")
	h.comment(alice, th, "voice-l")

	h.out.Reset()
	h.text(bob, "/listen")
	h.text(bob, "https://youtu.be/listen")
	assert.Equal(t, []string{"voice-l"}, voices(h.out.Messages(bob.ID)))
}

func TestCheckpointResume(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ListenPageSize = 5 })
	th := h.thread(alice, "https://youtu.be/cp")
	comments := seedComments(t, h, th, 12)

	h.text(bob, "📍 Checkpoint")
	assert.Equal(t, msgNoCheckpoint, h.last(bob).Text)

	h.press(bob, token(ActCheckpoint, comments[7].ID))
	assert.Contains(t, h.last(bob).Text, "Checkpoint saved")

	h.out.Reset()
	h.text(bob, "/checkpoint")
	assert.Equal(t, []string{"voice-07"}, voices(h.out.Messages(bob.ID)))
	assert.Equal(t, []string{pagedToken(ActListen, th.ID, 2)}, h.last(bob).Tokens())
}

func TestFavoritesToggle(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/fav")
	c := h.comment(alice, th, "voice-f")

	h.press(bob, token(ActFavorite, c.ID))
	assert.Equal(t, "⭐ Added to favorites.", h.last(bob).Text)

	h.text(bob, "⭐ Favorites")
	assert.Equal(t, []string{token(ActPlay, c.ID), token(ActFavorite, c.ID)}, h.last(bob).Tokens())

	h.press(bob, token(ActFavorite, c.ID))
	assert.Equal(t, "☆ Removed from favorites.", h.last(bob).Text)

	h.text(bob, "/favorites")
	assert.Contains(t, h.last(bob).Text, "No favorites yet")
}

func TestMyCommentsAndTracked(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "➕ Add My Video")
	h.text(alice, "https://youtu.be/mine")
	th, err := h.store.GetThreadByLink(h.ctx, "https://youtu.be/mine")
	require.NoError(t, err)
	c := h.comment(alice, th, "voice-m")

	h.text(alice, "💬 My Comments")
	assert.Equal(t, []string{token(ActPlay, c.ID), token(ActDeleteComment, c.ID)}, h.last(alice).Tokens())

	h.text(alice, "🔖 Track Video")
	last := h.last(alice)
	assert.Contains(t, last.Text, "https://youtu.be/mine")
	assert.Contains(t, last.Text, "1 voice comment")
	assert.Contains(t, last.Tokens(), token(ActDeleteThread, th.ID))

	h.text(bob, "/tracked")
	assert.Contains(t, h.last(bob).Text, "not tracking any videos")
}

func TestNotificationsPull(t *testing.T) {
	h := newHarness(t)
	th := h.thread(alice, "https://youtu.be/pull")
	c := h.comment(alice, th, "voice-p")

	// Alice is unreachable while Bob reacts: the row persists undelivered.
	h.out.Fail[alice.ID] = errors.New("offline")
	h.press(bob, reactToken(c.ID, store.ReactionHeart))
	delete(h.out.Fail, alice.ID)

	h.text(alice, "/start")
	assert.Contains(t, h.last(alice).Text, "Welcome back, Alice")
	assert.Contains(t, h.last(alice).Text, "1 new notification")

	h.text(alice, "🔔 Notifications")
	last := h.last(alice)
	assert.Contains(t, last.Text, "Bob reacted ❤️ to your comment "+codeOf(c.ID))

	undelivered, err := h.store.CountNotifications(h.ctx, store.NotificationFilter{RecipientID: alice.ID, UndeliveredOnly: true})
	require.NoError(t, err)
	assert.Zero(t, undelivered, "listing marks notifications delivered")

	h.press(alice, token(ActNotifReplies, 1))
	assert.Contains(t, h.last(alice).Text, "Nothing here yet")
}

func TestStartAndMenuButtons(t *testing.T) {
	h := newHarness(t)

	h.text(alice, "/start")
	first := h.last(alice)
	assert.Equal(t, msgWelcome, first.Text)
	assert.Contains(t, first.Tokens(), token(ActMenu, int64(cmdSearch)))

	h.press(alice, token(ActMenu, int64(cmdSearch)))
	assert.Equal(t, pending.AwaitingSearchCode, h.state(alice).Kind)

	h.press(alice, token(ActMenu, 999))
	assert.Equal(t, msgUnknownAction, h.last(alice).Text)
}
