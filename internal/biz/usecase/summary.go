package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
)

const topSenderCount = 3

// SummaryUsecase computes and delivers per-group daily activity digests.
type SummaryUsecase struct {
	groups   repo.GroupRepo
	messages repo.MessageLogRepo
	chat     repo.ChatRepo
	log      zerolog.Logger
}

// NewSummaryUsecase creates a new summary usecase
func NewSummaryUsecase(groups repo.GroupRepo, messages repo.MessageLogRepo, chat repo.ChatRepo, log zerolog.Logger) *SummaryUsecase {
	return &SummaryUsecase{
		groups:   groups,
		messages: messages,
		chat:     chat,
		log:      log.With().Str("component", "summary").Logger(),
	}
}

// Summarize tallies msgs by sender, ranks them and resolves mention
// identities for the top entries. Ties rank by first appearance in msgs.
func (uc *SummaryUsecase) Summarize(ctx context.Context, groupID string, msgs []domain.LoggedMessage) domain.Summary {
	summary := domain.Summary{GroupID: groupID, TotalCount: len(msgs)}
	if len(msgs) == 0 {
		return summary
	}

	type tally struct {
		key        string // normalized phone, or handle when no phone
		phone      string
		count      int
		lastHandle string
	}

	var order []string
	byKey := make(map[string]*tally)

	for _, msg := range msgs {
		phone := domain.NormalizePhone(msg.SenderPhone)
		key := phone
		if key == "" {
			key = msg.SenderHandle
		}
		if key == "" {
			continue
		}

		t, ok := byKey[key]
		if !ok {
			t = &tally{key: key, phone: phone}
			byKey[key] = t
			order = append(order, key)
		}
		t.count++
		if msg.SenderHandle != "" {
			t.lastHandle = msg.SenderHandle
		}
	}

	ranked := make([]*tally, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, byKey[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})

	if len(ranked) > topSenderCount {
		ranked = ranked[:topSenderCount]
	}

	for _, t := range ranked {
		summary.Top = append(summary.Top, domain.TopSender{
			Handle:    t.key,
			Count:     t.count,
			MentionID: uc.resolveMentionID(ctx, t.phone, t.lastHandle),
		})
	}
	return summary
}

// resolveMentionID prefers the most recently seen platform identity, falls
// back to the directory, and finally synthesizes a deterministic
// placeholder from the phone number.
func (uc *SummaryUsecase) resolveMentionID(ctx context.Context, phone, lastHandle string) string {
	if lastHandle != "" {
		return lastHandle
	}

	if phone != "" {
		member, err := uc.chat.ResolveMemberByPhone(ctx, phone)
		if err != nil {
			uc.log.Warn().Err(err).Str("phone", phone).Msg("directory lookup failed")
		} else if member != nil {
			return member.UserID
		}
		return phone + "@unresolved"
	}
	return "unknown@unresolved"
}

// BuildDigest renders the outbound digest text and its mention list.
func (uc *SummaryUsecase) BuildDigest(summary domain.Summary, date time.Time) (string, []domain.Member) {
	dateString := date.Format("02/01/2006")

	if summary.TotalCount == 0 {
		return fmt.Sprintf("📋 No messages logged for %s.", dateString), nil
	}

	var mentions []domain.Member
	for _, top := range summary.Top {
		mentions = append(mentions, domain.Member{UserID: top.MentionID, Name: top.Handle})
	}

	topLines := digestLines(summary)
	text := fmt.Sprintf("📊 Daily recap for %s 📊\nTotal messages: %d\n\nTop %d participants:\n%s",
		dateString, summary.TotalCount, len(topLines), strings.Join(topLines, "\n"))
	return text, mentions
}

func digestLines(summary domain.Summary) []string {
	var lines []string
	for i, top := range summary.Top {
		lines = append(lines, fmt.Sprintf("%d. @%s – %d message(s)", i+1, top.Handle, top.Count))
	}
	return lines
}

// SendDailySummary runs the whole digest flow for one registered group:
// load yesterday's window, rank, send, persist. Unregistered groups are
// skipped silently.
func (uc *SummaryUsecase) SendDailySummary(ctx context.Context, groupID string, day time.Time) error {
	registered, err := uc.groups.IsRegistered(ctx, groupID)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return nil
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	msgs, err := uc.messages.ListRange(ctx, groupID, start, end)
	if err != nil {
		return fmt.Errorf("load message log: %w", err)
	}

	summary := uc.Summarize(ctx, groupID, msgs)
	summary.Date = start

	text, mentions := uc.BuildDigest(summary, start)
	if len(mentions) > 0 {
		err = uc.chat.SendTextWithMentions(ctx, groupID, text, mentions)
	} else {
		err = uc.chat.SendText(ctx, groupID, text)
	}
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	if summary.TotalCount == 0 {
		return nil
	}

	record := &domain.DailySummary{
		GroupID:  groupID,
		Date:     start,
		Total:    summary.TotalCount,
		TopLines: digestLines(summary),
	}
	if err := uc.groups.SaveDailySummary(ctx, record); err != nil {
		return fmt.Errorf("save summary record: %w", err)
	}
	return nil
}
