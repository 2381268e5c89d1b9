package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store on database/sql. Queries are written with '?'
// placeholders and rebound for drivers that need positional ones.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// q rebinds '?' placeholders to $1..$n on PostgreSQL.
func (s *SQLStore) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Users

func (s *SQLStore) UpsertUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, display_name, handle, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			handle = excluded.handle,
			updated_at = excluded.updated_at
	`), user.ID, user.DisplayName, nullString(user.Handle), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ID, err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, display_name, handle, created_at, updated_at
		FROM users WHERE id = ?
	`), id)

	var user User
	var handle sql.NullString
	err := row.Scan(&user.ID, &user.DisplayName, &handle, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Handle = handle.String
	return &user, nil
}

// Threads

const threadColumns = `id, link, owner_id, created_at`

// CreateThreadIfAbsent returns the thread for link, creating it when absent.
// A non-nil ownerID claims an existing thread that has no owner yet; an
// owned thread keeps its owner.
func (s *SQLStore) CreateThreadIfAbsent(ctx context.Context, link string, ownerID *int64) (*Thread, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO threads (link, owner_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (link) DO NOTHING
	`), link, nullInt64(ownerID), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	if ownerID != nil {
		_, err := s.db.ExecContext(ctx, s.q(`
			UPDATE threads SET owner_id = ? WHERE link = ? AND owner_id IS NULL
		`), *ownerID, link)
		if err != nil {
			return nil, fmt.Errorf("claim thread: %w", err)
		}
	}

	thread, err := s.GetThreadByLink(ctx, link)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("create thread: %q vanished after insert", link)
	}
	return thread, nil
}

func (s *SQLStore) GetThread(ctx context.Context, id int64) (*Thread, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+threadColumns+` FROM threads WHERE id = ?`), id)
	thread, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return thread, err
}

func (s *SQLStore) GetThreadByLink(ctx context.Context, link string) (*Thread, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+threadColumns+` FROM threads WHERE link = ?`), link)
	thread, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return thread, err
}

func (s *SQLStore) ListThreadsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*Thread, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+threadColumns+` FROM threads
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (s *SQLStore) CountThreadsByOwner(ctx context.Context, ownerID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM threads WHERE owner_id = ?`, ownerID)
}

// DeleteThread removes the thread; comments and everything hanging off them
// go with it through ON DELETE CASCADE.
func (s *SQLStore) DeleteThread(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM threads WHERE id = ?`), id)
	return err
}

// Comments

const commentColumns = `id, thread_id, author_id, author_name, audio_ref, duration_seconds, created_at`

func (s *SQLStore) CreateComment(ctx context.Context, comment *Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO comments (thread_id, author_id, author_name, audio_ref, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), comment.ThreadID, comment.AuthorID, comment.AuthorName, comment.AudioRef,
		comment.Duration, comment.CreatedAt).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLStore) GetComment(ctx context.Context, id int64) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+commentColumns+` FROM comments WHERE id = ?`), id)
	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return comment, err
}

func (s *SQLStore) ListThreadComments(ctx context.Context, threadID int64, offset, limit int) ([]*Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE thread_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, threadID, limit, offset)
}

func (s *SQLStore) CountThreadComments(ctx context.Context, threadID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM comments WHERE thread_id = ?`, threadID)
}

// CommentPosition returns the zero-based index of comment within its
// thread's ascending listing.
func (s *SQLStore) CommentPosition(ctx context.Context, comment *Comment) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM comments
		WHERE thread_id = ? AND (created_at < ? OR (created_at = ? AND id < ?))
	`, comment.ThreadID, comment.CreatedAt, comment.CreatedAt, comment.ID)
}

func (s *SQLStore) ListUserComments(ctx context.Context, authorID int64, offset, limit int) ([]*Comment, error) {
	return s.listComments(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE author_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, authorID, limit, offset)
}

func (s *SQLStore) CountUserComments(ctx context.Context, authorID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM comments WHERE author_id = ?`, authorID)
}

func (s *SQLStore) DeleteComment(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM comments WHERE id = ?`), id)
	return err
}

func (s *SQLStore) listComments(ctx context.Context, query string, args ...any) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// Replies

func (s *SQLStore) CreateReply(ctx context.Context, reply *Reply) error {
	if (reply.AudioRef == "") == (reply.Text == "") {
		return errors.New("create reply: exactly one of audio or text is required")
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO replies (comment_id, author_id, author_name, audio_ref, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), reply.CommentID, reply.AuthorID, reply.AuthorName, nullString(reply.AudioRef),
		nullString(reply.Text), reply.CreatedAt).Scan(&reply.ID)
	if err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}

func (s *SQLStore) ListReplies(ctx context.Context, commentID int64, offset, limit int) ([]*Reply, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, comment_id, author_id, author_name, audio_ref, text, created_at
		FROM replies
		WHERE comment_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`), commentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var replies []*Reply
	for rows.Next() {
		var reply Reply
		var audioRef, text sql.NullString
		if err := rows.Scan(&reply.ID, &reply.CommentID, &reply.AuthorID, &reply.AuthorName,
			&audioRef, &text, &reply.CreatedAt); err != nil {
			return nil, err
		}
		reply.AudioRef = audioRef.String
		reply.Text = text.String
		replies = append(replies, &reply)
	}
	return replies, rows.Err()
}

func (s *SQLStore) CountReplies(ctx context.Context, commentID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM replies WHERE comment_id = ?`, commentID)
}

// Reactions

func (s *SQLStore) AddReaction(ctx context.Context, reaction *Reaction) error {
	if !reaction.Kind.Valid() {
		return fmt.Errorf("add reaction: unknown kind %q", reaction.Kind)
	}
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO reactions (comment_id, user_id, kind, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), reaction.CommentID, reaction.UserID, string(reaction.Kind), reaction.CreatedAt).Scan(&reaction.ID)
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (s *SQLStore) CountReactions(ctx context.Context, commentID int64) (ReactionCounts, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT kind, COUNT(*) FROM reactions WHERE comment_id = ? GROUP BY kind
	`), commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(ReactionCounts)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[ReactionKind(kind)] = n
	}
	return counts, rows.Err()
}

// Favorites

// ToggleFavorite removes the favorite when present and adds it otherwise.
func (s *SQLStore) ToggleFavorite(ctx context.Context, userID, commentID int64) (bool, error) {
	var added bool
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM favorites WHERE user_id = ? AND comment_id = ?
		`), userID, commentID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO favorites (user_id, comment_id, created_at) VALUES (?, ?, ?)
		`), userID, commentID, time.Now().UTC())
		if err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return added, nil
}

func (s *SQLStore) ListFavorites(ctx context.Context, userID int64, offset, limit int) ([]*Comment, error) {
	return s.listComments(ctx, `
		SELECT c.id, c.thread_id, c.author_id, c.author_name, c.audio_ref, c.duration_seconds, c.created_at
		FROM favorites f
		JOIN comments c ON c.id = f.comment_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
}

func (s *SQLStore) CountFavorites(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = ?`, userID)
}

// Checkpoints

func (s *SQLStore) SetCheckpoint(ctx context.Context, userID, commentID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO checkpoints (user_id, comment_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			comment_id = excluded.comment_id,
			updated_at = excluded.updated_at
	`), userID, commentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) GetCheckpoint(ctx context.Context, userID int64) (*Checkpoint, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT user_id, comment_id, updated_at FROM checkpoints WHERE user_id = ?
	`), userID).Scan(&cp.UserID, &cp.CommentID, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Notifications

// CreateNotification inserts n unless a notification with the same event
// key already exists, in which case it reports false and leaves n.ID unset.
func (s *SQLStore) CreateNotification(ctx context.Context, n *Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(n.Meta)
	if err != nil {
		return false, fmt.Errorf("encode notification meta: %w", err)
	}

	err = s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO notifications (event_key, recipient_id, kind, message, meta, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_key) DO NOTHING
		RETURNING id
	`), n.EventKey, n.RecipientID, string(n.Kind), n.Message, string(meta),
		n.Delivered, n.CreatedAt).Scan(&n.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	return true, nil
}

func (s *SQLStore) ListNotifications(ctx context.Context, filter NotificationFilter, offset, limit int) ([]*Notification, error) {
	where, args := notificationWhere(filter)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, event_key, recipient_id, kind, message, meta, delivered, created_at
		FROM notifications
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var kind, meta string
		if err := rows.Scan(&n.ID, &n.EventKey, &n.RecipientID, &kind, &n.Message, &meta,
			&n.Delivered, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = NotificationKind(kind)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &n.Meta); err != nil {
				return nil, fmt.Errorf("decode notification %d meta: %w", n.ID, err)
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountNotifications(ctx context.Context, filter NotificationFilter) (int, error) {
	where, args := notificationWhere(filter)
	return s.count(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, args...)
}

func (s *SQLStore) MarkNotificationDelivered(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE notifications SET delivered = ? WHERE id = ?`), true, id)
	return err
}

func notificationWhere(filter NotificationFilter) (string, []any) {
	clauses := []string{"recipient_id = ?"}
	args := []any{filter.RecipientID}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.UndeliveredOnly {
		clauses = append(clauses, "delivered = ?")
		args = append(args, false)
	}
	return strings.Join(clauses, " AND "), args
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func scanThread(row scanner) (*Thread, error) {
	var thread Thread
	var owner sql.NullInt64
	if err := row.Scan(&thread.ID, &thread.Link, &owner, &thread.CreatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.Int64
		thread.OwnerID = &id
	}
	return &thread, nil
}

func scanComment(row scanner) (*Comment, error) {
	var comment Comment
	err := row.Scan(&comment.ID, &comment.ThreadID, &comment.AuthorID, &comment.AuthorName,
		&comment.AudioRef, &comment.Duration, &comment.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
