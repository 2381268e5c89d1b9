// Package bot turns chat events into domain operations: it resolves each
// user's pending intent, runs the operation and renders the result.
package bot

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/pending"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

type Options struct {
	ListenPageSize       int
	NotificationPageSize int
	ListPageSize         int
	// LinkHosts are the hosts (and their subdomains) accepted as bare links
	// outside any flow. Empty accepts every http(s) link.
	LinkHosts []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ListenPageSize:       10,
		NotificationPageSize: 15,
		ListPageSize:         10,
		LinkHosts:            []string{"tiktok.com", "youtube.com", "youtu.be"},
	}
}

type Engine struct {
	svc     *Service
	store   store.Store
	pending *pending.Store
	out     transport.Messenger
	opts    Options
	logger  zerolog.Logger
}

func NewEngine(svc *Service, st store.Store, ps *pending.Store, out transport.Messenger, opts Options, logger zerolog.Logger) *Engine {
	return &Engine{
		svc:     svc,
		store:   st,
		pending: ps,
		out:     out,
		opts:    opts,
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

var linkPattern = regexp.MustCompile(`https?://[^\s]+`)

// extractLink returns the first URL-shaped token in text.
func extractLink(text string) string {
	link := linkPattern.FindString(text)
	return strings.TrimRight(link, ".,;:!?)\"'")
}

func (e *Engine) supportedLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	if len(e.opts.LinkHosts) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range e.opts.LinkHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Handle processes one inbound event. It never returns an error: failures
// are logged and answered with a generic message.
func (e *Engine) Handle(ctx context.Context, ev transport.Event) {
	log := e.logger.With().Int64("user_id", ev.From.ID).Str("event", string(ev.Kind)).Logger()

	isNew, err := e.svc.EnsureUser(ctx, ev.From)
	if err != nil {
		log.Error().Err(err).Msg("upsert user")
		// Buttons are stateless; only text and voice advance a flow.
		if ev.Kind != transport.EventButton {
			sess := e.pending.Lock(ev.From.ID)
			sess.Clear()
			sess.Unlock()
		}
		e.send(ctx, ev.From.ID, msgFailure)
		return
	}

	switch ev.Kind {
	case transport.EventText:
		e.handleText(ctx, ev, isNew)
	case transport.EventVoice:
		e.handleVoice(ctx, ev)
	case transport.EventButton:
		e.handleButton(ctx, ev)
	default:
		log.Warn().Msg("unknown event kind")
	}
}

func (e *Engine) handleText(ctx context.Context, ev transport.Event, isNew bool) {
	sess := e.pending.Lock(ev.From.ID)
	defer sess.Unlock()

	text := strings.TrimSpace(ev.Text)
	cmd, isCmd := parseCommand(text)
	if isCmd && cmd.cmd == cmdCancel {
		sess.Clear()
		e.send(ctx, ev.From.ID, msgCancelled)
		return
	}

	action, has := sess.Action()
	link := extractLink(text)

	// A pending link flow takes the link even when the text also reads as a
	// menu command.
	if has && action.Kind.AwaitsLink() && link != "" {
		e.consumeLink(ctx, sess, ev.From, action.Kind, link)
		return
	}

	if has {
		switch action.Kind {
		case pending.AwaitingVoiceForThread, pending.AwaitingVoiceReply:
			e.send(ctx, ev.From.ID, prompt(action.Kind))
			return
		case pending.AwaitingTextReply:
			e.replyText(ctx, sess, ev.From, action.CommentID, text)
			return
		}
	}

	if isCmd {
		e.runCommand(ctx, sess, ev.From, cmd, isNew)
		return
	}

	if has {
		switch action.Kind {
		case pending.AwaitingSearchCode:
			e.search(ctx, sess, ev.From, text)
		default:
			e.send(ctx, ev.From.ID, prompt(action.Kind))
		}
		return
	}

	if link != "" && e.supportedLink(link) {
		e.consumeLink(ctx, sess, ev.From, pending.AwaitingPublicLink, link)
		return
	}

	e.send(ctx, ev.From.ID, msgUnsupported)
}

func (e *Engine) handleVoice(ctx context.Context, ev transport.Event) {
	sess := e.pending.Lock(ev.From.ID)
	defer sess.Unlock()

	action, has := sess.Action()
	if !has {
		e.send(ctx, ev.From.ID, msgNothingPending)
		return
	}
	if ev.Voice == nil || ev.Voice.AudioRef == "" {
		e.send(ctx, ev.From.ID, prompt(action.Kind))
		return
	}

	switch action.Kind {
	case pending.AwaitingVoiceForThread:
		e.addComment(ctx, sess, ev.From, action.ThreadID, *ev.Voice)
	case pending.AwaitingVoiceReply:
		e.replyVoice(ctx, sess, ev.From, action.CommentID, *ev.Voice)
	default:
		e.send(ctx, ev.From.ID, prompt(action.Kind))
	}
}

func (e *Engine) runCommand(ctx context.Context, sess *pending.Session, from transport.Sender, pc parsedCommand, isNew bool) {
	to := from.ID
	switch pc.cmd {
	case cmdStart:
		sess.Clear()
		e.welcome(ctx, from, isNew)
	case cmdHelp:
		e.buttons(ctx, to, msgHelp, menuRows())
	case cmdCancel:
		sess.Clear()
		e.send(ctx, to, msgCancelled)
	case cmdAddComment:
		e.await(ctx, sess, pending.PublicLink())
	case cmdAddMyVideo:
		e.await(ctx, sess, pending.OwnedLink())
	case cmdListen:
		e.await(ctx, sess, pending.ListenTarget())
	case cmdSearch:
		if pc.arg != "" {
			e.search(ctx, sess, from, pc.arg)
			return
		}
		e.await(ctx, sess, pending.SearchCode())
	case cmdTrack:
		sess.Clear()
		e.showTracked(ctx, to, 1)
	case cmdMine:
		sess.Clear()
		e.showMine(ctx, to, 1)
	case cmdFavorites:
		sess.Clear()
		e.showFavorites(ctx, to, 1)
	case cmdNotifications:
		sess.Clear()
		e.showNotifications(ctx, to, "", 1)
	case cmdCheckpoint:
		sess.Clear()
		e.showCheckpoint(ctx, to)
	}
}

func (e *Engine) await(ctx context.Context, sess *pending.Session, a pending.Action) {
	sess.Set(a)
	e.send(ctx, sess.UserID(), prompt(a.Kind))
}

func (e *Engine) welcome(ctx context.Context, from transport.Sender, isNew bool) {
	text := msgWelcome
	if !isNew {
		text = "👋 Welcome back, " + from.DisplayName() + "!"
		unread, err := e.store.CountNotifications(ctx, store.NotificationFilter{RecipientID: from.ID, UndeliveredOnly: true})
		if err != nil {
			e.logger.Warn().Err(err).Int64("user_id", from.ID).Msg("count undelivered notifications")
		} else if unread > 0 {
			text += "\n\n🔔 You have " + plural(unread, "new notification") + ". Open 🔔 Notifications to read them."
		}
	}
	e.buttons(ctx, from.ID, text, menuRows())
}

// consumeLink completes a link flow. The caller holds the session.
func (e *Engine) consumeLink(ctx context.Context, sess *pending.Session, from transport.Sender, kind pending.Kind, link string) {
	to := from.ID

	if kind == pending.AwaitingListenTarget {
		thread, err := e.store.GetThreadByLink(ctx, link)
		if err != nil {
			e.fail(ctx, sess, err, "find thread by link")
			return
		}
		sess.Clear()
		if thread == nil {
			e.send(ctx, to, "🔇 No voice comments yet for this video. Send the link on its own to start the thread.")
			return
		}
		e.showThread(ctx, to, thread, 1)
		return
	}

	var owner *int64
	if kind == pending.AwaitingOwnedLink {
		owner = &from.ID
	}
	thread, err := e.svc.CreateThread(ctx, link, owner)
	if err != nil {
		e.fail(ctx, sess, err, "create thread")
		return
	}
	sess.Clear()

	text := "✅ Video ready: " + thread.Link + "\nWhat would you like to do?"
	if owner != nil {
		if thread.OwnedBy(from.ID) {
			text = "🔖 You're tracking " + thread.Link + "\nYou'll be notified about every new voice comment."
		} else {
			text = "⚠️ " + thread.Link + " is already tracked by someone else. You can still comment on it."
		}
	}
	e.buttons(ctx, to, text, threadRows(thread))
}

func (e *Engine) addComment(ctx context.Context, sess *pending.Session, from transport.Sender, threadID int64, voice transport.Voice) {
	comment, outcome, err := e.svc.AttachComment(ctx, from, threadID, voice)
	if err != nil {
		e.fail(ctx, sess, err, "attach comment")
		return
	}
	sess.Clear()
	if outcome == OutcomeNotFound {
		e.send(ctx, from.ID, msgThreadGone)
		return
	}

	e.send(ctx, from.ID, "✅ Your voice comment has been saved! Share this code so others can find it:")
	e.send(ctx, from.ID, codeOf(comment.ID))
}

func (e *Engine) replyVoice(ctx context.Context, sess *pending.Session, from transport.Sender, commentID int64, voice transport.Voice) {
	_, outcome, err := e.svc.AttachReply(ctx, from, commentID, voice.AudioRef, "")
	if err != nil {
		e.fail(ctx, sess, err, "attach voice reply")
		return
	}
	sess.Clear()
	if outcome == OutcomeNotFound {
		e.send(ctx, from.ID, msgCommentGone)
		return
	}
	e.send(ctx, from.ID, "✅ Voice reply sent.")
}

func (e *Engine) replyText(ctx context.Context, sess *pending.Session, from transport.Sender, commentID int64, text string) {
	if text == "" {
		e.send(ctx, from.ID, prompt(pending.AwaitingTextReply))
		return
	}
	_, outcome, err := e.svc.AttachReply(ctx, from, commentID, "", text)
	if err != nil {
		e.fail(ctx, sess, err, "attach text reply")
		return
	}
	sess.Clear()
	if outcome == OutcomeNotFound {
		e.send(ctx, from.ID, msgCommentGone)
		return
	}
	e.send(ctx, from.ID, "✅ Reply sent.")
}

func (e *Engine) search(ctx context.Context, sess *pending.Session, from transport.Sender, code string) {
	card, outcome, err := e.svc.Lookup(ctx, code)
	if err != nil {
		e.fail(ctx, sess, err, "lookup code")
		return
	}
	sess.Clear()
	if outcome == OutcomeNotFound {
		e.send(ctx, from.ID, "❌ No voice comment found for code "+strings.ToUpper(strings.TrimSpace(code))+".")
		return
	}
	e.presentCard(ctx, from.ID, card)
}

// presentCard sends the comment audio with its card, the bare code, and the
// action buttons.
func (e *Engine) presentCard(ctx context.Context, to int64, card *Card) {
	if err := e.out.SendVoice(ctx, to, card.Comment.AudioRef, renderCard(card)); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", to).Msg("send voice")
		return
	}
	e.send(ctx, to, card.Code)
	e.buttons(ctx, to, "Choose an action:", cardRows(card))
}

// fail logs err, clears the pending action and tells the user.
func (e *Engine) fail(ctx context.Context, sess *pending.Session, err error, op string) {
	action, _ := sess.Action()
	e.logger.Error().Err(err).
		Int64("user_id", sess.UserID()).
		Str("state", action.Kind.String()).
		Str("op", op).
		Msg("operation failed")
	sess.Clear()
	e.send(ctx, sess.UserID(), msgFailure)
}

func (e *Engine) send(ctx context.Context, to int64, text string) {
	if err := e.out.SendText(ctx, to, text); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", to).Msg("send text")
	}
}

func (e *Engine) buttons(ctx context.Context, to int64, text string, rows [][]transport.Button) {
	if err := e.out.PresentButtons(ctx, to, text, rows); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", to).Msg("send buttons")
	}
}

var _ transport.Handler = (*Engine)(nil)
