package domain

// Member represents a chat member (value object)
type Member struct {
	UserID string
	Name   string
}

// FormatMention formats the @ mention handle for outbound text.
func (m *Member) FormatMention() string {
	if m.Name != "" {
		return "@" + m.Name
	}
	return "@" + m.UserID
}
