package repo

import (
	"context"

	"yasbot/internal/biz/domain"
)

// ChatRepo is the chat transport interface.
// Failure of any send is non-fatal per call; callers log and continue.
type ChatRepo interface {
	// SendText sends a plain text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendTextWithMentions sends a text message that @-mentions members.
	SendTextWithMentions(ctx context.Context, chatID, text string, mentions []domain.Member) error

	// SendTextToUser sends a direct message to one user.
	SendTextToUser(ctx context.Context, userID, text string) error

	// SendImageWithCaption sends a local image file with caption text.
	SendImageWithCaption(ctx context.Context, chatID, imagePath, caption string) error

	// GetChatMembers lists the current members of a group chat.
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)

	// ResolveMemberByPhone resolves a phone number to a platform identity.
	// Returns nil without error when the directory has no match.
	ResolveMemberByPhone(ctx context.Context, phone string) (*domain.Member, error)

	// BotID returns the bot's own platform identity, or "" if unknown.
	BotID() string
}
