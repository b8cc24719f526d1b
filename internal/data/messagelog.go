package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

// messageLogRepo implements the per-group message log
type messageLogRepo struct {
	db *sql.DB
}

// NewMessageLogRepo creates a new message log repository
func NewMessageLogRepo(db *sql.DB) repo.MessageLogRepo {
	return &messageLogRepo{db: db}
}

// Append logs one message
func (r *messageLogRepo) Append(ctx context.Context, msg *domain.LoggedMessage) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (group_id, sender_phone, sender_handle, text, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, msg.GroupID, msg.SenderPhone, msg.SenderHandle, msg.Text, ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListRange returns messages with start <= timestamp < end in insertion order
func (r *messageLogRepo) ListRange(ctx context.Context, groupID string, start, end time.Time) ([]domain.LoggedMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, sender_phone, sender_handle, text, timestamp
		FROM messages
		WHERE group_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY id
	`, groupID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.LoggedMessage
	for rows.Next() {
		var msg domain.LoggedMessage
		var ts int64
		if err := rows.Scan(&msg.GroupID, &msg.SenderPhone, &msg.SenderHandle, &msg.Text, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Timestamp = time.Unix(ts, 0)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteOlderThan drops messages logged before cutoff
func (r *messageLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}
