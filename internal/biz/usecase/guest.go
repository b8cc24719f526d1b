package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

// GuestUsecase manages the party guest list and invite delivery.
type GuestUsecase struct {
	guests repo.GuestRepo
	chat   repo.ChatRepo
	log    zerolog.Logger

	inviteText string
}

// NewGuestUsecase creates a new guest usecase
func NewGuestUsecase(guests repo.GuestRepo, chat repo.ChatRepo, inviteText string, log zerolog.Logger) *GuestUsecase {
	return &GuestUsecase{
		guests:     guests,
		chat:       chat,
		log:        log.With().Str("component", "guest").Logger(),
		inviteText: inviteText,
	}
}

// AddGuest parses "<name...> <number>" from the directive argument and
// inserts the guest. The number is resolved to a platform identity right
// away so presence directives can match the sender later.
func (uc *GuestUsecase) AddGuest(ctx context.Context, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "Usage: @add-guest <name> <number>", nil
	}

	number := domain.NormalizePhone(fields[len(fields)-1])
	name := strings.Join(fields[:len(fields)-1], " ")
	if number == "" {
		return "Usage: @add-guest <name> <number>", nil
	}

	added, err := uc.guests.Add(ctx, &domain.Guest{
		Name:    name,
		Number:  number,
		AddedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("add guest: %w", err)
	}
	if !added {
		return fmt.Sprintf("%s is already on the guest list", name), nil
	}

	uc.resolveGuestIdentity(ctx, number)
	return fmt.Sprintf("%s added to the guest list", name), nil
}

// resolveGuestIdentity looks the number up in the directory and stores the
// open_id on the guest. Unresolvable numbers stay pending; SendInvites
// retries them.
func (uc *GuestUsecase) resolveGuestIdentity(ctx context.Context, number string) {
	member, err := uc.chat.ResolveMemberByPhone(ctx, number)
	if err != nil || member == nil {
		uc.log.Warn().Err(err).Str("number", number).Msg("guest identity unresolved")
		return
	}
	if err := uc.guests.SetOpenID(ctx, number, member.UserID); err != nil {
		uc.log.Warn().Err(err).Str("number", number).Msg("storing guest identity failed")
	}
}

// RemoveGuest deletes a guest by number.
func (uc *GuestUsecase) RemoveGuest(ctx context.Context, args string) (string, error) {
	number := domain.NormalizePhone(strings.TrimSpace(args))
	if number == "" {
		return "Usage: @remove-guest <number>", nil
	}

	removed, err := uc.guests.Remove(ctx, number)
	if err != nil {
		return "", fmt.Errorf("remove guest: %w", err)
	}
	if !removed {
		return "That number is not on the guest list", nil
	}
	return "Guest removed", nil
}

// ListGuests renders the guest list with confirmation state.
func (uc *GuestUsecase) ListGuests(ctx context.Context) (string, error) {
	guests, err := uc.guests.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list guests: %w", err)
	}
	if len(guests) == 0 {
		return "The guest list is empty", nil
	}

	lines := []string{fmt.Sprintf("🎉 Guest list (%d):", len(guests))}
	for _, g := range guests {
		status := "pending"
		if g.Confirmed {
			status = "confirmed ✅"
		}
		lines = append(lines, fmt.Sprintf("• %s (%s) – %s", g.Name, g.Number, status))
	}
	return strings.Join(lines, "\n"), nil
}

// SetPresence confirms or cancels the sender's attendance, keyed by their
// platform identity.
func (uc *GuestUsecase) SetPresence(ctx context.Context, senderID string, confirmed bool) (string, error) {
	if senderID == "" {
		return "I couldn't figure out who you are 😕", nil
	}

	found, err := uc.guests.SetConfirmed(ctx, senderID, confirmed)
	if err != nil {
		return "", fmt.Errorf("set presence: %w", err)
	}
	if !found {
		return "You're not on the guest list yet — ask an admin to add you", nil
	}
	if confirmed {
		return "Presence confirmed, see you there! 🎉", nil
	}
	return "Presence cancelled, we'll miss you 😢", nil
}

// SendInvites direct-messages the invite to every guest that has not been
// invited yet. Guests whose number cannot be resolved are skipped and
// reported, not fatal.
func (uc *GuestUsecase) SendInvites(ctx context.Context) (string, error) {
	guests, err := uc.guests.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list guests: %w", err)
	}

	sent, skipped := 0, 0
	for _, g := range guests {
		if !g.InvitedAt.IsZero() {
			continue
		}

		member, err := uc.chat.ResolveMemberByPhone(ctx, g.Number)
		if err != nil || member == nil {
			uc.log.Warn().Err(err).Str("number", g.Number).Msg("cannot resolve guest")
			skipped++
			continue
		}
		if g.OpenID != member.UserID {
			if err := uc.guests.SetOpenID(ctx, g.Number, member.UserID); err != nil {
				uc.log.Warn().Err(err).Str("number", g.Number).Msg("storing guest identity failed")
			}
		}

		if err := uc.chat.SendTextToUser(ctx, member.UserID, uc.inviteText); err != nil {
			uc.log.Warn().Err(err).Str("number", g.Number).Msg("invite send failed")
			skipped++
			continue
		}

		if err := uc.guests.MarkInvited(ctx, g.Number); err != nil {
			uc.log.Warn().Err(err).Str("number", g.Number).Msg("mark invited failed")
		}
		sent++
	}

	return fmt.Sprintf("Invites sent: %d, skipped: %d", sent, skipped), nil
}
