package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz/domain"
)

type stubGuests struct {
	guests  []domain.Guest
	invited []string
}

func (s *stubGuests) Add(_ context.Context, guest *domain.Guest) (bool, error) {
	for _, g := range s.guests {
		if g.Number == guest.Number {
			return false, nil
		}
	}
	s.guests = append(s.guests, *guest)
	return true, nil
}

func (s *stubGuests) Remove(_ context.Context, number string) (bool, error) {
	for i, g := range s.guests {
		if g.Number == number {
			s.guests = append(s.guests[:i], s.guests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubGuests) List(context.Context) ([]domain.Guest, error) { return s.guests, nil }

func (s *stubGuests) SetOpenID(_ context.Context, number, openID string) error {
	for i, g := range s.guests {
		if g.Number == number {
			s.guests[i].OpenID = openID
		}
	}
	return nil
}

func (s *stubGuests) SetConfirmed(_ context.Context, openID string, confirmed bool) (bool, error) {
	for i, g := range s.guests {
		if g.OpenID != "" && g.OpenID == openID {
			s.guests[i].Confirmed = confirmed
			return true, nil
		}
	}
	return false, nil
}

func (s *stubGuests) MarkInvited(_ context.Context, number string) error {
	s.invited = append(s.invited, number)
	return nil
}

func TestAddGuestParsesNameAndNumber(t *testing.T) {
	guests := &stubGuests{}
	chat := &stubChat{byPhone: map[string]*domain.Member{
		"541112345678": {UserID: "ou_ana", Name: "Ana María"},
	}}
	uc := NewGuestUsecase(guests, chat, "invite", zerolog.Nop())

	reply, err := uc.AddGuest(context.Background(), "Ana María +54 11 1234-5678")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "Ana María added") {
		t.Fatalf("reply = %q", reply)
	}
	if len(guests.guests) != 1 {
		t.Fatalf("guest count = %d", len(guests.guests))
	}
	g := guests.guests[0]
	if g.Name != "Ana María" || g.Number != "541112345678" {
		t.Fatalf("stored guest = %+v", g)
	}
	if g.OpenID != "ou_ana" {
		t.Fatalf("open id = %q, want resolved at add time", g.OpenID)
	}
}

func TestAddGuestKeepsUnresolvedIdentityPending(t *testing.T) {
	guests := &stubGuests{}
	uc := NewGuestUsecase(guests, &stubChat{}, "invite", zerolog.Nop())

	if _, err := uc.AddGuest(context.Background(), "Ana 111"); err != nil {
		t.Fatal(err)
	}
	if guests.guests[0].OpenID != "" {
		t.Fatalf("open id = %q, want pending", guests.guests[0].OpenID)
	}
}

func TestAddGuestUsageOnBadArgs(t *testing.T) {
	uc := NewGuestUsecase(&stubGuests{}, &stubChat{}, "invite", zerolog.Nop())

	for _, args := range []string{"", "OnlyAName", "No Number Here"} {
		reply, err := uc.AddGuest(context.Background(), args)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(reply, "Usage:") {
			t.Fatalf("args %q: reply = %q", args, reply)
		}
	}
}

func TestAddGuestDuplicate(t *testing.T) {
	uc := NewGuestUsecase(&stubGuests{}, &stubChat{}, "invite", zerolog.Nop())

	_, _ = uc.AddGuest(context.Background(), "Ana 111")
	reply, err := uc.AddGuest(context.Background(), "Ana 111")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "already on the guest list") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestSetPresence(t *testing.T) {
	guests := &stubGuests{guests: []domain.Guest{{Name: "Ana", Number: "111", OpenID: "ou_ana"}}}
	uc := NewGuestUsecase(guests, &stubChat{}, "invite", zerolog.Nop())

	reply, err := uc.SetPresence(context.Background(), "ou_ana", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "confirmed") {
		t.Fatalf("reply = %q", reply)
	}
	if !guests.guests[0].Confirmed {
		t.Fatal("confirmation not stored")
	}

	reply, _ = uc.SetPresence(context.Background(), "ou_stranger", true)
	if !strings.Contains(reply, "not on the guest list") {
		t.Fatalf("unknown sender reply = %q", reply)
	}

	reply, _ = uc.SetPresence(context.Background(), "", true)
	if !strings.Contains(reply, "who you are") {
		t.Fatalf("empty sender reply = %q", reply)
	}
}

func TestSetPresenceNeverMatchesPendingGuests(t *testing.T) {
	guests := &stubGuests{guests: []domain.Guest{{Name: "Ana", Number: "111"}}}
	uc := NewGuestUsecase(guests, &stubChat{}, "invite", zerolog.Nop())

	reply, err := uc.SetPresence(context.Background(), "ou_ana", true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "not on the guest list") {
		t.Fatalf("pending guest reply = %q", reply)
	}
}

func TestSendInvitesSkipsUnresolvableAndAlreadyInvited(t *testing.T) {
	guests := &stubGuests{guests: []domain.Guest{
		{Name: "Ana", Number: "111"},
		{Name: "Bea", Number: "222"},                         // not in the directory
		{Name: "Cleo", Number: "333", InvitedAt: time.Now()}, // already invited
	}}
	chat := &stubChat{byPhone: map[string]*domain.Member{
		"111": {UserID: "ou_ana", Name: "Ana"},
	}}
	uc := NewGuestUsecase(guests, chat, "party time", zerolog.Nop())

	reply, err := uc.SendInvites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Invites sent: 1, skipped: 1" {
		t.Fatalf("reply = %q", reply)
	}
	if chat.direct["ou_ana"] != "party time" {
		t.Fatalf("invite not delivered: %+v", chat.direct)
	}
	if len(guests.invited) != 1 || guests.invited[0] != "111" {
		t.Fatalf("invited marks = %+v", guests.invited)
	}
	if guests.guests[0].OpenID != "ou_ana" {
		t.Fatalf("open id = %q, want refreshed on invite", guests.guests[0].OpenID)
	}
}
