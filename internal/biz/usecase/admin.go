package usecase

import (
	"context"
	"fmt"

	"yasbot/internal/biz/repo"
)

// AdminUsecase handles group registration and the admin command surface.
type AdminUsecase struct {
	groups repo.GroupRepo
}

// NewAdminUsecase creates a new admin usecase
func NewAdminUsecase(groups repo.GroupRepo) *AdminUsecase {
	return &AdminUsecase{groups: groups}
}

// RegisterGroup registers a group for daily digests. Re-registering an
// already-registered group reports that distinctly instead of erroring.
func (uc *AdminUsecase) RegisterGroup(ctx context.Context, groupID string) (string, error) {
	added, err := uc.groups.Add(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("register group: %w", err)
	}
	if !added {
		return "Group was already registered", nil
	}
	return "Group registered successfully", nil
}

// UnregisterGroup removes a group from the digest list.
func (uc *AdminUsecase) UnregisterGroup(ctx context.Context, groupID string) (string, error) {
	removed, err := uc.groups.Remove(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("unregister group: %w", err)
	}
	if !removed {
		return "Group was not registered", nil
	}
	return "Group removed successfully", nil
}

// HelpText lists the admin directives.
func (uc *AdminUsecase) HelpText() string {
	return "🤔 Commands:\n" +
		"\n" +
		"• @add-group\n" +
		"• @remove-group\n" +
		"• @add-guest <name> <number>\n" +
		"• @remove-guest <number>\n" +
		"• @get-guests\n" +
		"• @send-invitation\n"
}
