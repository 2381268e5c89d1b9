package store

import "time"

type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Thread groups comments about one external link. OwnerID is nil for
// public threads.
type Thread struct {
	ID        int64     `json:"id"`
	Link      string    `json:"link"`
	OwnerID   *int64    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedBy reports whether userID owns the thread.
func (t *Thread) OwnedBy(userID int64) bool {
	return t.OwnerID != nil && *t.OwnerID == userID
}

type Comment struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"thread_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AudioRef   string    `json:"audio_ref"`
	Duration   int       `json:"duration_seconds"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reply carries exactly one of AudioRef or Text.
type Reply struct {
	ID         int64     `json:"id"`
	CommentID  int64     `json:"comment_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AudioRef   string    `json:"audio_ref,omitempty"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsVoice reports whether the reply is a voice reply.
func (r *Reply) IsVoice() bool {
	return r.AudioRef != ""
}

type ReactionKind string

const (
	ReactionHeart   ReactionKind = "heart"
	ReactionLaugh   ReactionKind = "laugh"
	ReactionDislike ReactionKind = "dislike"
)

// ReactionKinds lists the valid kinds in display order.
var ReactionKinds = []ReactionKind{ReactionHeart, ReactionLaugh, ReactionDislike}

func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionHeart, ReactionLaugh, ReactionDislike:
		return true
	}
	return false
}

type Reaction struct {
	ID        int64        `json:"id"`
	CommentID int64        `json:"comment_id"`
	UserID    int64        `json:"user_id"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReactionCounts is keyed by kind; kinds without reactions are absent.
type ReactionCounts map[ReactionKind]int

type Favorite struct {
	UserID    int64     `json:"user_id"`
	CommentID int64     `json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Checkpoint struct {
	UserID    int64     `json:"user_id"`
	CommentID int64     `json:"comment_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NotificationKind string

const (
	NotificationReply    NotificationKind = "reply"
	NotificationReaction NotificationKind = "reaction"
)

type NotificationMeta struct {
	ThreadID  int64        `json:"thread_id,omitempty"`
	CommentID int64        `json:"comment_id,omitempty"`
	ShortCode string       `json:"short_code,omitempty"`
	Reaction  ReactionKind `json:"reaction,omitempty"`
}

type Notification struct {
	ID          int64            `json:"id"`
	EventKey    string           `json:"event_key"`
	RecipientID int64            `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	Meta        NotificationMeta `json:"meta"`
	Delivered   bool             `json:"delivered"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationFilter selects a recipient's notifications. A zero Kind
// matches every kind.
type NotificationFilter struct {
	RecipientID     int64
	Kind            NotificationKind
	UndeliveredOnly bool
}

// Emoji returns the symbol shown for the kind.
func (k ReactionKind) Emoji() string {
	switch k {
	case ReactionHeart:
		return "❤️"
	case ReactionLaugh:
		return "😂"
	case ReactionDislike:
		return "👎"
	}
	return "?"
}
