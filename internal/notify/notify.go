// Package notify persists notifications for domain events and hands them to
// a dispatcher for best-effort push delivery.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/shortcode"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

type Kind int

const (
	KindReply Kind = iota
	KindReaction
	KindTrackedComment
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindReaction:
		return "reaction"
	case KindTrackedComment:
		return "tracked_comment"
	}
	return "unknown"
}

// snippetLen bounds the text-reply excerpt quoted in a notification.
const snippetLen = 120

// eventNamespace scopes deterministic event keys.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/alphabot-ai/voicethreads/events"))

// Event describes something a recipient should hear about. Comment is always
// set; Thread is required for KindTrackedComment and optional for KindReply,
// Reply for KindReply and Reaction for KindReaction.
type Event struct {
	Kind        Kind
	RecipientID int64
	Actor       transport.Sender
	Thread      *store.Thread
	Comment     *store.Comment
	Reply       *store.Reply
	Reaction    *store.Reaction
}

// Key identifies the underlying domain event; notifying the same event twice
// yields the same key.
func (e Event) Key() (string, error) {
	var name string
	switch e.Kind {
	case KindReply:
		if e.Reply == nil {
			return "", fmt.Errorf("reply event without reply")
		}
		name = "reply:" + strconv.FormatInt(e.Reply.ID, 10)
	case KindReaction:
		if e.Reaction == nil {
			return "", fmt.Errorf("reaction event without reaction")
		}
		name = "reaction:" + strconv.FormatInt(e.Reaction.ID, 10)
	case KindTrackedComment:
		if e.Comment == nil {
			return "", fmt.Errorf("comment event without comment")
		}
		name = "comment:" + strconv.FormatInt(e.Comment.ID, 10)
	default:
		return "", fmt.Errorf("unknown event kind %d", e.Kind)
	}
	return uuid.NewSHA1(eventNamespace, []byte(name)).String(), nil
}

// Dispatcher hands a persisted notification to a delivery mechanism without
// waiting for the delivery itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Delivery) error
}

// NotificationStore is the slice of store.Store the fanout writes to.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *store.Notification) (bool, error)
	MarkNotificationDelivered(ctx context.Context, id int64) error
}

type Fanout struct {
	store      NotificationStore
	dispatcher Dispatcher
	logger     zerolog.Logger
}

func NewFanout(st NotificationStore, dispatcher Dispatcher, logger zerolog.Logger) *Fanout {
	return &Fanout{
		store:      st,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// Notify persists the notification for ev and dispatches its delivery. Only
// persistence errors are returned; once the row exists the event counts as
// notified and push failures are logged.
func (f *Fanout) Notify(ctx context.Context, ev Event) error {
	if ev.RecipientID == 0 || ev.RecipientID == ev.Actor.ID {
		return nil
	}
	if ev.Comment == nil {
		return fmt.Errorf("notify %s: event without comment", ev.Kind)
	}

	key, err := ev.Key()
	if err != nil {
		return fmt.Errorf("notify %s: %w", ev.Kind, err)
	}

	code, err := shortcode.Encode(ev.Comment.ID)
	if err != nil {
		return fmt.Errorf("notify %s: %w", ev.Kind, err)
	}

	n := &store.Notification{
		EventKey:    key,
		RecipientID: ev.RecipientID,
		Kind:        store.NotificationReply,
		Message:     render(ev, code),
		Meta: store.NotificationMeta{
			ThreadID:  ev.Comment.ThreadID,
			CommentID: ev.Comment.ID,
			ShortCode: code,
		},
	}
	if ev.Kind == KindReaction {
		n.Kind = store.NotificationReaction
		n.Meta.Reaction = ev.Reaction.Kind
	}

	created, err := f.store.CreateNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("notify %s: %w", ev.Kind, err)
	}
	if !created {
		f.logger.Debug().Str("event_key", key).Msg("notification already recorded")
		return nil
	}

	d := Delivery{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Text:           n.Message,
		AudioRef:       audioFor(ev),
		ShortCode:      code,
	}
	if err := f.dispatcher.Dispatch(ctx, d); err != nil {
		f.logger.Warn().Err(err).
			Int64("notification_id", n.ID).
			Int64("recipient_id", n.RecipientID).
			Msg("notification dispatch failed")
	}
	return nil
}

func render(ev Event, code string) string {
	actor := ev.Actor.DisplayName()
	switch ev.Kind {
	case KindTrackedComment:
		link := ""
		if ev.Thread != nil {
			link = ev.Thread.Link
		}
		return fmt.Sprintf("🔔 New voice comment on your tracked video by %s\nVideo: %s\nCode: %s", actor, link, code)
	case KindReaction:
		return fmt.Sprintf("🔔 %s reacted %s to your comment %s", actor, ev.Reaction.Kind.Emoji(), code)
	default:
		video := ""
		if ev.Thread != nil {
			video = "\nVideo: " + ev.Thread.Link
		}
		if ev.Reply != nil && !ev.Reply.IsVoice() {
			return fmt.Sprintf("🔔 New text reply to your comment %s by %s%s\n\n%q", code, actor, video, snippet(ev.Reply.Text))
		}
		return fmt.Sprintf("🔔 New voice reply to your comment %s by %s%s", code, actor, video)
	}
}

func audioFor(ev Event) string {
	switch ev.Kind {
	case KindTrackedComment:
		return ev.Comment.AudioRef
	case KindReply:
		if ev.Reply != nil {
			return ev.Reply.AudioRef
		}
	}
	return ""
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:snippetLen]) + "…"
}
