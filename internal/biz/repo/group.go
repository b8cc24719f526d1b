package repo

import (
	"context"
	"time"

	"yasbot/internal/biz/domain"
)

// GroupRepo is the registered-group repository interface.
type GroupRepo interface {
	// Add registers a group for daily digests. added is false when the
	// group was already registered; that is not an error.
	Add(ctx context.Context, groupID string) (added bool, err error)

	// Remove unregisters a group. removed is false when the group was not
	// registered.
	Remove(ctx context.Context, groupID string) (removed bool, err error)

	// IsRegistered reports whether a group receives daily digests.
	IsRegistered(ctx context.Context, groupID string) (bool, error)

	// List returns all registered group ids.
	List(ctx context.Context) ([]string, error)

	// SaveDailySummary persists the record of a delivered digest.
	SaveDailySummary(ctx context.Context, summary *domain.DailySummary) error
}

// MessageLogRepo is the per-group message log interface.
type MessageLogRepo interface {
	// Append logs one message.
	Append(ctx context.Context, msg *domain.LoggedMessage) error

	// ListRange returns logged messages for a group with
	// start <= timestamp < end, in insertion order.
	ListRange(ctx context.Context, groupID string, start, end time.Time) ([]domain.LoggedMessage, error)

	// DeleteOlderThan drops messages logged before cutoff and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
