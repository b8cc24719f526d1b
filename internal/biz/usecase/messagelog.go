package usecase

import (
	"context"
	"fmt"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

// MessageLogUsecase records group messages for the daily digest.
type MessageLogUsecase struct {
	groups   repo.GroupRepo
	messages repo.MessageLogRepo
}

// NewMessageLogUsecase creates a new message log usecase
func NewMessageLogUsecase(groups repo.GroupRepo, messages repo.MessageLogRepo) *MessageLogUsecase {
	return &MessageLogUsecase{groups: groups, messages: messages}
}

// LogIfRegistered appends the message to the log when its group is
// registered for digests. Failure leaves no partial side effects: the
// message is simply not logged.
func (uc *MessageLogUsecase) LogIfRegistered(ctx context.Context, msg *domain.Message) error {
	if !msg.IsGroup {
		return nil
	}

	registered, err := uc.groups.IsRegistered(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return nil
	}

	entry := &domain.LoggedMessage{
		GroupID:      msg.ChatID,
		SenderPhone:  msg.SenderPhone,
		SenderHandle: msg.SenderID,
		Text:         msg.Text,
		Timestamp:    msg.CreateTime,
	}
	if err := uc.messages.Append(ctx, entry); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
