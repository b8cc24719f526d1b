package data

import (
	"context"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
	"yasbot/internal/infra/feishu"
)

// chatRepo implements the chat transport over the Feishu client
type chatRepo struct {
	client *feishu.Client
}

// NewChatRepo creates a new chat repository
func NewChatRepo(client *feishu.Client) repo.ChatRepo {
	return &chatRepo{client: client}
}

// SendText sends a text message
func (r *chatRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

// SendTextWithMentions sends a text message with @ mentions
func (r *chatRepo) SendTextWithMentions(ctx context.Context, chatID, text string, mentions []domain.Member) error {
	converted := make([]feishu.Mention, 0, len(mentions))
	for _, m := range mentions {
		converted = append(converted, feishu.Mention{UserID: m.UserID, UserName: m.Name})
	}
	return r.client.SendTextWithMentions(ctx, chatID, text, converted)
}

// SendTextToUser sends a direct message to one user
func (r *chatRepo) SendTextToUser(ctx context.Context, userID, text string) error {
	return r.client.SendTextToUser(ctx, userID, text)
}

// SendImageWithCaption sends a local image followed by its caption text
func (r *chatRepo) SendImageWithCaption(ctx context.Context, chatID, imagePath, caption string) error {
	if err := r.client.SendImage(ctx, chatID, imagePath); err != nil {
		return err
	}
	if caption == "" {
		return nil
	}
	return r.client.SendText(ctx, chatID, caption)
}

// GetChatMembers gets chat member list
func (r *chatRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var result []domain.Member
	for _, m := range members {
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}

// ResolveMemberByPhone resolves a phone number to a platform identity
func (r *chatRepo) ResolveMemberByPhone(ctx context.Context, phone string) (*domain.Member, error) {
	userID, err := r.client.ResolveUserIDByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, nil
	}
	return &domain.Member{UserID: userID}, nil
}

// BotID returns the bot's own platform identity
func (r *chatRepo) BotID() string {
	return r.client.BotOpenID()
}
