package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"yasbot/internal/biz/repo"
	"yasbot/internal/infra/feishu"

	_ "modernc.org/sqlite"
)

// Repositories contains all repositories
type Repositories struct {
	Chat     repo.ChatRepo
	Groups   repo.GroupRepo
	Messages repo.MessageLogRepo
	Guests   repo.GuestRepo

	db *sql.DB
}

// NewRepositories opens the store and creates all repositories.
func NewRepositories(feishuClient *feishu.Client, dbPath string) (*Repositories, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Chat:     NewChatRepo(feishuClient),
		Groups:   NewGroupRepo(db),
		Messages: NewMessageLogRepo(db),
		Guests:   NewGuestRepo(db),
		db:       db,
	}, nil
}

// Close closes the underlying store.
func (r *Repositories) Close() error {
	return r.db.Close()
}

func openDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			group_id TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			date INTEGER NOT NULL,
			total INTEGER NOT NULL,
			top_lines TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_summaries_date ON daily_summaries(date)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			sender_phone TEXT NOT NULL,
			sender_handle TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group_time ON messages(group_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS guests (
			number TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			open_id TEXT NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL,
			confirmed INTEGER NOT NULL DEFAULT 0,
			confirmed_at INTEGER NOT NULL DEFAULT 0,
			invited_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guests_open_id ON guests(open_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}
