package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alphabot-ai/voicethreads/internal/paging"
	"github.com/alphabot-ai/voicethreads/internal/pending"
	"github.com/alphabot-ai/voicethreads/internal/shortcode"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

func (e *Engine) handleButton(ctx context.Context, ev transport.Event) {
	to := ev.From.ID
	tok, err := ParseToken(ev.Token)
	if err != nil {
		e.logger.Debug().Int64("user_id", to).Str("token", ev.Token).Msg("malformed token")
		e.send(ctx, to, msgUnknownAction)
		return
	}

	switch tok.Action {
	case ActAddVoice, ActReplyVoice, ActReplyText, ActMenu:
		e.enterFlow(ctx, ev.From, tok)

	case ActReact:
		counts, outcome, err := e.svc.React(ctx, ev.From, tok.ID, tok.Reaction())
		switch {
		case err != nil:
			e.failAction(ctx, to, err, tok)
		case outcome == OutcomeNotFound:
			e.send(ctx, to, msgCommentGone)
		default:
			e.send(ctx, to, "Thanks for your reaction! "+formatReactions(counts))
		}

	case ActFavorite:
		added, outcome, err := e.svc.ToggleFavorite(ctx, to, tok.ID)
		switch {
		case err != nil:
			e.failAction(ctx, to, err, tok)
		case outcome == OutcomeNotFound:
			e.send(ctx, to, msgCommentGone)
		case added:
			e.send(ctx, to, "⭐ Added to favorites.")
		default:
			e.send(ctx, to, "☆ Removed from favorites.")
		}

	case ActCheckpoint:
		outcome, err := e.svc.SetCheckpoint(ctx, to, tok.ID)
		switch {
		case err != nil:
			e.failAction(ctx, to, err, tok)
		case outcome == OutcomeNotFound:
			e.send(ctx, to, msgCommentGone)
		default:
			e.send(ctx, to, "📍 Checkpoint saved. Use /checkpoint to jump back here.")
		}

	case ActPlay:
		comment, err := e.store.GetComment(ctx, tok.ID)
		if err != nil {
			e.failAction(ctx, to, err, tok)
			return
		}
		if comment == nil {
			e.send(ctx, to, msgCommentGone)
			return
		}
		card, err := e.svc.Card(ctx, comment)
		if err != nil {
			e.failAction(ctx, to, err, tok)
			return
		}
		e.presentCard(ctx, to, card)

	case ActDeleteThread:
		outcome, err := e.svc.DeleteThread(ctx, to, tok.ID)
		switch {
		case err != nil:
			e.failAction(ctx, to, err, tok)
		case outcome == OutcomeNotFound:
			e.send(ctx, to, msgThreadGone)
		case outcome == OutcomeDenied:
			e.send(ctx, to, "🚫 Only the owner can delete this video thread.")
		default:
			e.send(ctx, to, "🗑 Video thread deleted.")
		}

	case ActDeleteComment:
		outcome, err := e.svc.DeleteComment(ctx, to, tok.ID)
		switch {
		case err != nil:
			e.failAction(ctx, to, err, tok)
		case outcome == OutcomeNotFound:
			e.send(ctx, to, msgCommentGone)
		case outcome == OutcomeDenied:
			e.send(ctx, to, "🚫 You can only delete your own comments.")
		default:
			e.send(ctx, to, "🗑 Comment deleted.")
		}

	case ActListen:
		thread, err := e.store.GetThread(ctx, tok.ID)
		if err != nil {
			e.failAction(ctx, to, err, tok)
			return
		}
		if thread == nil {
			e.send(ctx, to, msgThreadGone)
			return
		}
		e.showThread(ctx, to, thread, tok.Page())

	case ActReplies:
		e.showReplies(ctx, to, tok.ID, tok.Page())
	case ActMine:
		e.showMine(ctx, to, tok.Page())
	case ActFavorites:
		e.showFavorites(ctx, to, tok.Page())
	case ActTracked:
		e.showTracked(ctx, to, tok.Page())
	case ActNotifications:
		e.showNotifications(ctx, to, "", tok.Page())
	case ActNotifReplies:
		e.showNotifications(ctx, to, store.NotificationReply, tok.Page())
	case ActNotifReactions:
		e.showNotifications(ctx, to, store.NotificationReaction, tok.Page())
	}
}

// enterFlow handles the buttons that start a flow; only these touch the
// pending action.
func (e *Engine) enterFlow(ctx context.Context, from transport.Sender, tok Token) {
	sess := e.pending.Lock(from.ID)
	defer sess.Unlock()

	switch tok.Action {
	case ActMenu:
		cmd, ok := menuCommand(tok.ID)
		if !ok {
			e.send(ctx, from.ID, msgUnknownAction)
			return
		}
		e.runCommand(ctx, sess, from, parsedCommand{cmd: cmd}, false)

	case ActAddVoice:
		thread, err := e.store.GetThread(ctx, tok.ID)
		if err != nil {
			e.fail(ctx, sess, err, "load thread")
			return
		}
		if thread == nil {
			e.send(ctx, from.ID, msgThreadGone)
			return
		}
		e.await(ctx, sess, pending.VoiceForThread(thread.ID))

	case ActReplyVoice, ActReplyText:
		comment, err := e.store.GetComment(ctx, tok.ID)
		if err != nil {
			e.fail(ctx, sess, err, "load comment")
			return
		}
		if comment == nil {
			e.send(ctx, from.ID, msgCommentGone)
			return
		}
		if tok.Action == ActReplyVoice {
			e.await(ctx, sess, pending.VoiceReply(comment.ID))
		} else {
			e.await(ctx, sess, pending.TextReply(comment.ID))
		}
	}
}

func (e *Engine) failAction(ctx context.Context, to int64, err error, tok Token) {
	e.logger.Error().Err(err).
		Int64("user_id", to).
		Str("token", tok.String()).
		Msg("button action failed")
	e.send(ctx, to, msgFailure)
}

func (e *Engine) failListing(ctx context.Context, to int64, err error, what string) {
	e.logger.Error().Err(err).Int64("user_id", to).Str("listing", what).Msg("listing failed")
	e.send(ctx, to, msgFailure)
}

// showThread plays one page of a thread's comments, oldest first.
func (e *Engine) showThread(ctx context.Context, to int64, thread *store.Thread, page int) {
	p, err := paging.Fetch[*store.Comment](ctx, paging.Funcs[*store.Comment]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Comment, error) {
			return e.store.ListThreadComments(ctx, thread.ID, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountThreadComments(ctx, thread.ID)
		},
	}, page, e.opts.ListenPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "thread")
		return
	}

	if len(p.Items) == 0 {
		if p.Total == 0 {
			e.buttons(ctx, to, "🔇 No voice comments yet. Be the first!", [][]transport.Button{{
				{Label: "🎙 Add voice comment", Token: token(ActAddVoice, thread.ID)},
			}})
		} else {
			e.send(ctx, to, "No more comments.")
		}
		return
	}

	for _, c := range p.Items {
		card, err := e.svc.Card(ctx, c)
		if err != nil {
			e.failListing(ctx, to, err, "thread")
			return
		}
		e.presentCard(ctx, to, card)
	}

	if p.HasMore {
		e.buttons(ctx, to, fmt.Sprintf("Page %d. More comments available.", p.Number),
			moreRow("▶️ See more", pagedToken(ActListen, thread.ID, p.Next())))
		return
	}
	e.buttons(ctx, to, "That's all for now.", [][]transport.Button{{
		{Label: "🎙 Add voice comment", Token: token(ActAddVoice, thread.ID)},
	}})
}

func (e *Engine) showReplies(ctx context.Context, to, commentID int64, page int) {
	p, err := paging.Fetch[*store.Reply](ctx, paging.Funcs[*store.Reply]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Reply, error) {
			return e.store.ListReplies(ctx, commentID, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountReplies(ctx, commentID)
		},
	}, page, e.opts.ListPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "replies")
		return
	}
	if len(p.Items) == 0 {
		e.send(ctx, to, "No replies.")
		return
	}

	for _, r := range p.Items {
		if r.IsVoice() {
			caption := "↩️ Voice reply by " + r.AuthorName + "\n🕒 " + formatTime(r.CreatedAt)
			if err := e.out.SendVoice(ctx, to, r.AudioRef, caption); err != nil {
				e.logger.Warn().Err(err).Int64("user_id", to).Msg("send voice")
			}
			continue
		}
		e.send(ctx, to, "↩️ "+r.AuthorName+": "+r.Text)
	}
	if p.HasMore {
		e.buttons(ctx, to, "More replies available.", moreRow("▶️ See more", pagedToken(ActReplies, commentID, p.Next())))
	}
}

func (e *Engine) showMine(ctx context.Context, to int64, page int) {
	p, err := paging.Fetch[*store.Comment](ctx, paging.Funcs[*store.Comment]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Comment, error) {
			return e.store.ListUserComments(ctx, to, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountUserComments(ctx, to)
		},
	}, page, e.opts.ListPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "mine")
		return
	}
	if len(p.Items) == 0 {
		e.send(ctx, to, "💬 You haven't left any voice comments yet.")
		return
	}

	for _, c := range p.Items {
		e.buttons(ctx, to, "🎙 "+codeOf(c.ID)+" · "+formatTime(c.CreatedAt), [][]transport.Button{{
			{Label: "▶️ Play", Token: token(ActPlay, c.ID)},
			{Label: "🗑 Delete", Token: token(ActDeleteComment, c.ID)},
		}})
	}
	if p.HasMore {
		e.buttons(ctx, to, "More comments available.", moreRow("▶️ See more", token(ActMine, int64(p.Next()))))
	}
}

func (e *Engine) showFavorites(ctx context.Context, to int64, page int) {
	p, err := paging.Fetch[*store.Comment](ctx, paging.Funcs[*store.Comment]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Comment, error) {
			return e.store.ListFavorites(ctx, to, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountFavorites(ctx, to)
		},
	}, page, e.opts.ListPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "favorites")
		return
	}
	if len(p.Items) == 0 {
		e.send(ctx, to, "⭐ No favorites yet. Tap ⭐ under a comment to save it.")
		return
	}

	for _, c := range p.Items {
		e.buttons(ctx, to, "⭐ "+codeOf(c.ID)+" by "+c.AuthorName, [][]transport.Button{{
			{Label: "▶️ Play", Token: token(ActPlay, c.ID)},
			{Label: "☆ Unfavorite", Token: token(ActFavorite, c.ID)},
		}})
	}
	if p.HasMore {
		e.buttons(ctx, to, "More favorites available.", moreRow("▶️ See more", token(ActFavorites, int64(p.Next()))))
	}
}

func (e *Engine) showTracked(ctx context.Context, to int64, page int) {
	p, err := paging.Fetch[*store.Thread](ctx, paging.Funcs[*store.Thread]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Thread, error) {
			return e.store.ListThreadsByOwner(ctx, to, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountThreadsByOwner(ctx, to)
		},
	}, page, e.opts.ListPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "tracked")
		return
	}
	if len(p.Items) == 0 {
		e.send(ctx, to, "🔖 You're not tracking any videos. Use ➕ Add My Video to start.")
		return
	}

	for _, t := range p.Items {
		n, err := e.store.CountThreadComments(ctx, t.ID)
		if err != nil {
			e.failListing(ctx, to, err, "tracked")
			return
		}
		e.buttons(ctx, to, "🔖 "+t.Link+"\n💬 "+plural(n, "voice comment"), [][]transport.Button{{
			{Label: "🎧 Listen", Token: pagedToken(ActListen, t.ID, 1)},
			{Label: "🎙 Add", Token: token(ActAddVoice, t.ID)},
			{Label: "🗑 Delete", Token: token(ActDeleteThread, t.ID)},
		}})
	}
	if p.HasMore {
		e.buttons(ctx, to, "More videos available.", moreRow("▶️ See more", token(ActTracked, int64(p.Next()))))
	}
}

// showNotifications lists notifications newest first and marks the shown
// ones delivered. An empty kind lists every kind.
func (e *Engine) showNotifications(ctx context.Context, to int64, kind store.NotificationKind, page int) {
	filter := store.NotificationFilter{RecipientID: to, Kind: kind}
	p, err := paging.Fetch[*store.Notification](ctx, paging.Funcs[*store.Notification]{
		ListFunc: func(ctx context.Context, offset, limit int) ([]*store.Notification, error) {
			return e.store.ListNotifications(ctx, filter, offset, limit)
		},
		CountFunc: func(ctx context.Context) (int, error) {
			return e.store.CountNotifications(ctx, filter)
		},
	}, page, e.opts.NotificationPageSize)
	if err != nil {
		e.failListing(ctx, to, err, "notifications")
		return
	}

	title := "🔔 Notifications"
	next := ActNotifications
	switch kind {
	case store.NotificationReply:
		title, next = "💬 Replies", ActNotifReplies
	case store.NotificationReaction:
		title, next = "❤️ Reactions", ActNotifReactions
	}

	if len(p.Items) == 0 {
		e.buttons(ctx, to, title+"\n\nNothing here yet.", notificationFilterRows())
		return
	}

	lines := make([]string, 0, len(p.Items)+1)
	lines = append(lines, fmt.Sprintf("%s (page %d)", title, p.Number))
	for _, n := range p.Items {
		lines = append(lines, renderNotification(n))
		if !n.Delivered {
			if err := e.store.MarkNotificationDelivered(ctx, n.ID); err != nil {
				e.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("mark notification delivered")
			}
		}
	}

	rows := notificationFilterRows()
	if p.HasMore {
		rows = append(rows, []transport.Button{{Label: "▶️ See more", Token: token(next, int64(p.Next()))}})
	}
	e.buttons(ctx, to, strings.Join(lines, "\n\n"), rows)
}

func notificationFilterRows() [][]transport.Button {
	return [][]transport.Button{{
		{Label: "🔔 All", Token: token(ActNotifications, 1)},
		{Label: "💬 Replies", Token: token(ActNotifReplies, 1)},
		{Label: "❤️ Reactions", Token: token(ActNotifReactions, 1)},
	}}
}

// showCheckpoint replays the bookmarked comment and offers to resume
// listening at its page of the thread.
func (e *Engine) showCheckpoint(ctx context.Context, to int64) {
	cp, err := e.store.GetCheckpoint(ctx, to)
	if err != nil {
		e.failListing(ctx, to, err, "checkpoint")
		return
	}
	if cp == nil {
		e.send(ctx, to, msgNoCheckpoint)
		return
	}
	comment, err := e.store.GetComment(ctx, cp.CommentID)
	if err != nil {
		e.failListing(ctx, to, err, "checkpoint")
		return
	}
	if comment == nil {
		e.send(ctx, to, msgNoCheckpoint)
		return
	}

	card, err := e.svc.Card(ctx, comment)
	if err != nil {
		e.failListing(ctx, to, err, "checkpoint")
		return
	}
	pos, err := e.store.CommentPosition(ctx, comment)
	if err != nil {
		e.failListing(ctx, to, err, "checkpoint")
		return
	}

	size := e.opts.ListenPageSize
	if size <= 0 {
		size = paging.DefaultSize
	}
	e.send(ctx, to, "📍 Your checkpoint:")
	e.presentCard(ctx, to, card)
	e.buttons(ctx, to, "Resume listening from here:",
		moreRow("▶️ Resume", pagedToken(ActListen, comment.ThreadID, pos/size+1)))
}

func codeOf(id int64) string {
	code, err := shortcode.Encode(id)
	if err != nil {
		return "#" + strconv.FormatInt(id, 10)
	}
	return code
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
