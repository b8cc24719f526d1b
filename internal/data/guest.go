package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

// guestRepo implements the party guest list repository
type guestRepo struct {
	db *sql.DB
}

// NewGuestRepo creates a new guest repository
func NewGuestRepo(db *sql.DB) repo.GuestRepo {
	return &guestRepo{db: db}
}

// Add inserts a guest; an existing number is reported, not an error
func (r *guestRepo) Add(ctx context.Context, guest *domain.Guest) (bool, error) {
	addedAt := guest.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO guests (number, name, open_id, added_at) VALUES (?, ?, ?, ?)
	`, guest.Number, guest.Name, guest.OpenID, addedAt.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert guest: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Remove deletes a guest by number
func (r *guestRepo) Remove(ctx context.Context, number string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guests WHERE number = ?`, number)
	if err != nil {
		return false, fmt.Errorf("failed to delete guest: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns all guests in insertion order
func (r *guestRepo) List(ctx context.Context) ([]domain.Guest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT number, name, open_id, added_at, confirmed, confirmed_at, invited_at
		FROM guests
		ORDER BY added_at, number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	var guests []domain.Guest
	for rows.Next() {
		var g domain.Guest
		var addedAt, confirmedAt, invitedAt int64
		var confirmed int
		if err := rows.Scan(&g.Number, &g.Name, &g.OpenID, &addedAt, &confirmed, &confirmedAt, &invitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		g.AddedAt = time.Unix(addedAt, 0)
		g.Confirmed = confirmed != 0
		if confirmedAt > 0 {
			g.ConfirmedAt = time.Unix(confirmedAt, 0)
		}
		if invitedAt > 0 {
			g.InvitedAt = time.Unix(invitedAt, 0)
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

// SetOpenID stores the resolved platform identity for a guest
func (r *guestRepo) SetOpenID(ctx context.Context, number, openID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE guests SET open_id = ? WHERE number = ?
	`, openID, number)
	if err != nil {
		return fmt.Errorf("failed to set guest open_id: %w", err)
	}
	return nil
}

// SetConfirmed updates a guest's presence confirmation, keyed by the
// resolved platform identity
func (r *guestRepo) SetConfirmed(ctx context.Context, openID string, confirmed bool) (bool, error) {
	confirmedVal := 0
	confirmedAt := int64(0)
	if confirmed {
		confirmedVal = 1
		confirmedAt = time.Now().Unix()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE guests SET confirmed = ?, confirmed_at = ? WHERE open_id = ? AND open_id != ''
	`, confirmedVal, confirmedAt, openID)
	if err != nil {
		return false, fmt.Errorf("failed to update guest: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkInvited stamps the invite time for a guest
func (r *guestRepo) MarkInvited(ctx context.Context, number string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE guests SET invited_at = ? WHERE number = ?
	`, time.Now().Unix(), number)
	if err != nil {
		return fmt.Errorf("failed to mark invited: %w", err)
	}
	return nil
}
