package store

import (
	"context"
)

// Store defines the interface for data persistence. Single-row getters
// return (nil, nil) when the row does not exist.
type Store interface {
	// Users
	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)

	// Threads
	CreateThreadIfAbsent(ctx context.Context, link string, ownerID *int64) (*Thread, error)
	GetThread(ctx context.Context, id int64) (*Thread, error)
	GetThreadByLink(ctx context.Context, link string) (*Thread, error)
	ListThreadsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*Thread, error)
	CountThreadsByOwner(ctx context.Context, ownerID int64) (int, error)
	DeleteThread(ctx context.Context, id int64) error

	// Comments
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id int64) (*Comment, error)
	ListThreadComments(ctx context.Context, threadID int64, offset, limit int) ([]*Comment, error)
	CountThreadComments(ctx context.Context, threadID int64) (int, error)
	CommentPosition(ctx context.Context, comment *Comment) (int, error)
	ListUserComments(ctx context.Context, authorID int64, offset, limit int) ([]*Comment, error)
	CountUserComments(ctx context.Context, authorID int64) (int, error)
	DeleteComment(ctx context.Context, id int64) error

	// Replies
	CreateReply(ctx context.Context, reply *Reply) error
	ListReplies(ctx context.Context, commentID int64, offset, limit int) ([]*Reply, error)
	CountReplies(ctx context.Context, commentID int64) (int, error)

	// Reactions
	AddReaction(ctx context.Context, reaction *Reaction) error
	CountReactions(ctx context.Context, commentID int64) (ReactionCounts, error)

	// Favorites
	ToggleFavorite(ctx context.Context, userID, commentID int64) (bool, error) // true when added
	ListFavorites(ctx context.Context, userID int64, offset, limit int) ([]*Comment, error)
	CountFavorites(ctx context.Context, userID int64) (int, error)

	// Checkpoints
	SetCheckpoint(ctx context.Context, userID, commentID int64) error
	GetCheckpoint(ctx context.Context, userID int64) (*Checkpoint, error)

	// Notifications
	CreateNotification(ctx context.Context, n *Notification) (bool, error) // false when the event key exists
	ListNotifications(ctx context.Context, filter NotificationFilter, offset, limit int) ([]*Notification, error)
	CountNotifications(ctx context.Context, filter NotificationFilter) (int, error)
	MarkNotificationDelivered(ctx context.Context, id int64) error

	// Lifecycle
	Close() error
}
