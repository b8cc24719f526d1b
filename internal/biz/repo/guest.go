package repo

import (
	"context"

	"yasbot/internal/biz/domain"
)

// GuestRepo is the party guest list repository interface.
type GuestRepo interface {
	// Add inserts a guest. added is false when the number already exists.
	Add(ctx context.Context, guest *domain.Guest) (added bool, err error)

	// Remove deletes a guest by number. removed is false on no match.
	Remove(ctx context.Context, number string) (removed bool, err error)

	// List returns all guests in insertion order.
	List(ctx context.Context) ([]domain.Guest, error)

	// SetOpenID stores the resolved platform identity for a guest.
	SetOpenID(ctx context.Context, number, openID string) error

	// SetConfirmed updates a guest's presence confirmation, keyed by the
	// resolved platform identity. found is false when no guest carries
	// that identity.
	SetConfirmed(ctx context.Context, openID string, confirmed bool) (found bool, err error)

	// MarkInvited stamps the invite time for a guest.
	MarkInvited(ctx context.Context, number string) error
}
