package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/notify"
	"github.com/alphabot-ai/voicethreads/internal/shortcode"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

// Outcome is the non-error result of a domain operation.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeDenied
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeDenied:
		return "denied"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}

// Notifier is satisfied by *notify.Fanout.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) error
}

// Card is everything shown for one comment.
type Card struct {
	Comment   *store.Comment
	Thread    *store.Thread
	Code      string
	Reactions store.ReactionCounts
	Replies   int
}

// Service runs domain operations against the store and triggers
// notifications. It holds no conversational state.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(st store.Store, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// EnsureUser upserts the sender and reports whether they were new.
func (s *Service) EnsureUser(ctx context.Context, from transport.Sender) (bool, error) {
	existing, err := s.store.GetUser(ctx, from.ID)
	if err != nil {
		return false, err
	}
	user := &store.User{ID: from.ID, DisplayName: from.DisplayName(), Handle: from.Handle}
	if existing != nil {
		user.CreatedAt = existing.CreatedAt
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return false, err
	}
	return existing == nil, nil
}

// CreateThread returns the thread for link, creating it if needed. A
// non-nil owner claims an unowned thread.
func (s *Service) CreateThread(ctx context.Context, link string, owner *int64) (*store.Thread, error) {
	return s.store.CreateThreadIfAbsent(ctx, link, owner)
}

func (s *Service) AttachComment(ctx context.Context, from transport.Sender, threadID int64, voice transport.Voice) (*store.Comment, Outcome, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}
	if thread == nil {
		return nil, OutcomeNotFound, nil
	}

	comment := &store.Comment{
		ThreadID:   thread.ID,
		AuthorID:   from.ID,
		AuthorName: from.DisplayName(),
		AudioRef:   voice.AudioRef,
		Duration:   voice.Duration,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, 0, err
	}

	if thread.OwnerID != nil {
		s.notify(ctx, notify.Event{
			Kind:        notify.KindTrackedComment,
			RecipientID: *thread.OwnerID,
			Actor:       from,
			Thread:      thread,
			Comment:     comment,
		})
	}
	return comment, OutcomeDone, nil
}

// AttachReply stores a voice reply when audioRef is set and a text reply
// otherwise.
func (s *Service) AttachReply(ctx context.Context, from transport.Sender, commentID int64, audioRef, text string) (*store.Reply, Outcome, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, 0, err
	}
	if comment == nil {
		return nil, OutcomeNotFound, nil
	}
	thread, err := s.store.GetThread(ctx, comment.ThreadID)
	if err != nil {
		return nil, 0, err
	}

	reply := &store.Reply{
		CommentID:  comment.ID,
		AuthorID:   from.ID,
		AuthorName: from.DisplayName(),
		AudioRef:   audioRef,
	}
	if audioRef == "" {
		reply.Text = text
	}
	if err := s.store.CreateReply(ctx, reply); err != nil {
		return nil, 0, err
	}

	s.notify(ctx, notify.Event{
		Kind:        notify.KindReply,
		RecipientID: comment.AuthorID,
		Actor:       from,
		Thread:      thread,
		Comment:     comment,
		Reply:       reply,
	})
	return reply, OutcomeDone, nil
}

// React appends a reaction and returns the comment's fresh counts.
func (s *Service) React(ctx context.Context, from transport.Sender, commentID int64, kind store.ReactionKind) (store.ReactionCounts, Outcome, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, 0, err
	}
	if comment == nil {
		return nil, OutcomeNotFound, nil
	}

	reaction := &store.Reaction{CommentID: comment.ID, UserID: from.ID, Kind: kind}
	if err := s.store.AddReaction(ctx, reaction); err != nil {
		return nil, 0, err
	}

	s.notify(ctx, notify.Event{
		Kind:        notify.KindReaction,
		RecipientID: comment.AuthorID,
		Actor:       from,
		Comment:     comment,
		Reaction:    reaction,
	})

	counts, err := s.store.CountReactions(ctx, comment.ID)
	if err != nil {
		return nil, 0, err
	}
	return counts, OutcomeDone, nil
}

func (s *Service) ToggleFavorite(ctx context.Context, userID, commentID int64) (bool, Outcome, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return false, 0, err
	}
	if comment == nil {
		return false, OutcomeNotFound, nil
	}
	added, err := s.store.ToggleFavorite(ctx, userID, comment.ID)
	if err != nil {
		return false, 0, err
	}
	return added, OutcomeDone, nil
}

func (s *Service) SetCheckpoint(ctx context.Context, userID, commentID int64) (Outcome, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if comment == nil {
		return OutcomeNotFound, nil
	}
	if err := s.store.SetCheckpoint(ctx, userID, comment.ID); err != nil {
		return 0, err
	}
	return OutcomeDone, nil
}

// DeleteThread deletes the thread if userID owns it.
func (s *Service) DeleteThread(ctx context.Context, userID, threadID int64) (Outcome, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if thread == nil {
		return OutcomeNotFound, nil
	}
	if !thread.OwnedBy(userID) {
		return OutcomeDenied, nil
	}
	if err := s.store.DeleteThread(ctx, thread.ID); err != nil {
		return 0, err
	}
	return OutcomeDone, nil
}

// DeleteComment deletes the comment if userID authored it.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID int64) (Outcome, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if comment == nil {
		return OutcomeNotFound, nil
	}
	if comment.AuthorID != userID {
		return OutcomeDenied, nil
	}
	if err := s.store.DeleteComment(ctx, comment.ID); err != nil {
		return 0, err
	}
	return OutcomeDone, nil
}

// Lookup resolves a typed short code to its card. Undecodable codes and
// codes of deleted comments are both OutcomeNotFound.
func (s *Service) Lookup(ctx context.Context, code string) (*Card, Outcome, error) {
	id, err := shortcode.Decode(code)
	if err != nil {
		return nil, OutcomeNotFound, nil
	}
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if comment == nil {
		return nil, OutcomeNotFound, nil
	}
	card, err := s.Card(ctx, comment)
	if err != nil {
		return nil, 0, err
	}
	return card, OutcomeDone, nil
}

// Card gathers the thread, counts and code for comment.
func (s *Service) Card(ctx context.Context, comment *store.Comment) (*Card, error) {
	code, err := shortcode.Encode(comment.ID)
	if err != nil {
		return nil, fmt.Errorf("card for comment %d: %w", comment.ID, err)
	}
	thread, err := s.store.GetThread(ctx, comment.ThreadID)
	if err != nil {
		return nil, err
	}
	reactions, err := s.store.CountReactions(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	replies, err := s.store.CountReplies(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	return &Card{
		Comment:   comment,
		Thread:    thread,
		Code:      code,
		Reactions: reactions,
		Replies:   replies,
	}, nil
}

func (s *Service) notify(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("kind", ev.Kind.String()).
			Int64("recipient_id", ev.RecipientID).
			Msg("notification not recorded")
	}
}
