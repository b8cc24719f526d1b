package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

// groupRepo implements the registered-group repository
type groupRepo struct {
	db *sql.DB
}

// NewGroupRepo creates a new group repository
func NewGroupRepo(db *sql.DB) repo.GroupRepo {
	return &groupRepo{db: db}
}

// Add registers a group; a second registration is reported, not an error
func (r *groupRepo) Add(ctx context.Context, groupID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO groups (group_id, added_at) VALUES (?, ?)
	`, groupID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert group: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Remove unregisters a group
func (r *groupRepo) Remove(ctx context.Context, groupID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE group_id = ?`, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// IsRegistered reports whether the group is on the digest list
func (r *groupRepo) IsRegistered(ctx context.Context, groupID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE group_id = ?`, groupID)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query group: %w", err)
	}
	return true, nil
}

// List returns all registered group ids
func (r *groupRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_id FROM groups ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveDailySummary persists a delivered digest record
func (r *groupRepo) SaveDailySummary(ctx context.Context, summary *domain.DailySummary) error {
	topLines, err := json.Marshal(summary.TopLines)
	if err != nil {
		return fmt.Errorf("failed to encode top lines: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (group_id, date, total, top_lines)
		VALUES (?, ?, ?, ?)
	`, summary.GroupID, summary.Date.Unix(), summary.Total, string(topLines))
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}
