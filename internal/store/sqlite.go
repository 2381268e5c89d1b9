package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteStore opens (creating if needed) the SQLite database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}

	return newSQLStore(db, dialectSQLite), nil
}

func migrateSQLite(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL,
		handle TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS threads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link TEXT NOT NULL UNIQUE,
		owner_id INTEGER REFERENCES users(id),
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_threads_owner ON threads(owner_id) WHERE owner_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id),
		author_name TEXT NOT NULL,
		audio_ref TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_comments_thread ON comments(thread_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_comments_author ON comments(author_id, created_at);

	CREATE TABLE IF NOT EXISTS replies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id),
		author_name TEXT NOT NULL,
		audio_ref TEXT,
		text TEXT,
		created_at DATETIME NOT NULL,
		CHECK ((audio_ref IS NULL) <> (text IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_replies_comment ON replies(comment_id, created_at);

	CREATE TABLE IF NOT EXISTS reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL CHECK (kind IN ('heart', 'laugh', 'dislike')),
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reactions_comment ON reactions(comment_id);

	CREATE TABLE IF NOT EXISTS favorites (
		user_id INTEGER NOT NULL REFERENCES users(id),
		comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, comment_id)
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		user_id INTEGER PRIMARY KEY REFERENCES users(id),
		comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_key TEXT NOT NULL UNIQUE,
		recipient_id INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('reply', 'reaction')),
		message TEXT NOT NULL,
		meta TEXT NOT NULL DEFAULT '{}',
		delivered BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}
