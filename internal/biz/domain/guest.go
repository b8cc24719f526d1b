package domain

import "time"

// Guest represents one entry of the party guest list.
type Guest struct {
	Name        string
	Number      string // normalized phone number, primary key
	OpenID      string // resolved platform identity, "" until resolved
	AddedAt     time.Time
	Confirmed   bool
	ConfirmedAt time.Time
	InvitedAt   time.Time
}
