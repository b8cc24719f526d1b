package domain

import (
	"strings"
	"time"
)

// Message represents an inbound chat message, already decoupled from the
// transport's wire shape.
type Message struct {
	ChatID      string
	MsgID       string
	Text        string
	SenderID    string // platform identity (open_id)
	SenderPhone string // may be empty when the transport cannot resolve it
	IsGroup     bool
	IsBot       bool // authored by the bot itself
	CreateTime  time.Time
}

// Normalized returns the message text prepared for command matching.
func (m *Message) Normalized() string {
	return strings.ToLower(strings.TrimSpace(m.Text))
}

// RateKey builds the limiter key for per-sender throttles in this chat.
func (m *Message) RateKey() string {
	return m.ChatID + ":" + m.SenderID
}

// LoggedMessage is one row of the per-group message log consumed by the
// daily digest.
type LoggedMessage struct {
	GroupID      string
	SenderPhone  string
	SenderHandle string // platform identity seen when the message arrived
	Text         string
	Timestamp    time.Time
}

// NormalizePhone strips everything but digits from a phone number so that
// formatting variants of the same sender collapse into one tally key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
