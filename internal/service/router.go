package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz"
	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
	"yasbot/internal/ratelimit"
)

// persistenceErrorText is the degraded reply when the store is down.
const persistenceErrorText = "Something went wrong, try again in a bit 😕"

// RouterConfig holds dispatch policy: who is an admin, the maintenance
// allowlist and the throttle windows.
type RouterConfig struct {
	AdminIDs        []string
	MaintenanceMode bool
	AllowedChats    []string // chats and senders still served in maintenance mode

	GreetingWindow time.Duration
	RainWindow     time.Duration
	MentionWindow  time.Duration

	// Location anchors "yesterday" for the on-demand digest; it must be
	// the scheduler's zone so both digests cover the same window.
	Location *time.Location
}

// Router dispatches one inbound message to at most one handler. Rules are
// evaluated in a fixed priority order: administrative directives first,
// then group management, then universal directives; the first match wins
// and handlers never chain.
type Router struct {
	config RouterConfig
	chat   repo.ChatRepo
	uc     *biz.Usecases

	greetingLimiter *ratelimit.Limiter
	rainLimiter     *ratelimit.Limiter
	mentionLimiter  *ratelimit.Limiter

	admins  map[string]struct{}
	allowed map[string]struct{}
	rules   []rule
	now     func() time.Time
	log     zerolog.Logger
}

// rule is one (predicate, handler) row of the dispatch table.
type rule struct {
	name      string
	adminOnly bool
	match     func(text string, msg *domain.Message) bool
	handle    func(ctx context.Context, msg *domain.Message, text string) error
}

// NewRouter creates a new router
func NewRouter(config RouterConfig, chat repo.ChatRepo, uc *biz.Usecases, log zerolog.Logger) *Router {
	if config.Location == nil {
		config.Location = time.Local
	}
	r := &Router{
		config:          config,
		chat:            chat,
		uc:              uc,
		greetingLimiter: ratelimit.New(ratelimit.WithSuppressAfter(4)),
		rainLimiter:     ratelimit.New(),
		mentionLimiter:  ratelimit.New(ratelimit.WithSuppressAfter(0)),
		admins:          toSet(config.AdminIDs),
		allowed:         toSet(config.AllowedChats),
		now:             time.Now,
		log:             log.With().Str("component", "router").Logger(),
	}
	r.rules = r.buildRules()
	return r
}

// Limiters exposes the router's throttles for periodic pruning.
func (r *Router) Limiters() []*ratelimit.Limiter {
	return []*ratelimit.Limiter{r.greetingLimiter, r.rainLimiter, r.mentionLimiter}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Handle runs one message through filter and dispatch. Exactly one handler
// runs per message; handler failures never propagate past this boundary.
func (r *Router) Handle(ctx context.Context, msg *domain.Message) {
	if r.filtered(msg) {
		return
	}

	text := msg.Normalized()
	for _, rule := range r.rules {
		if rule.adminOnly && !r.isAdmin(msg.SenderID) {
			continue
		}
		if !rule.match(text, msg) {
			continue
		}

		if err := rule.handle(ctx, msg, text); err != nil {
			r.log.Error().Err(err).Str("rule", rule.name).Str("chat_id", msg.ChatID).Msg("handler failed")
			r.reply(ctx, msg, persistenceErrorText)
		}
		return
	}

	// Fallback: no directive matched, log the message for the daily digest.
	if err := r.uc.MessageLog.LogIfRegistered(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("message log failed")
	}
}

// filtered reports whether the message is discarded before dispatch: the
// bot's own messages always, and unlisted senders in maintenance mode.
func (r *Router) filtered(msg *domain.Message) bool {
	if msg.IsBot {
		return true
	}
	if botID := r.chat.BotID(); botID != "" && msg.SenderID == botID {
		return true
	}

	if !r.config.MaintenanceMode {
		return false
	}
	if r.isAdmin(msg.SenderID) {
		return false
	}
	if _, ok := r.allowed[msg.ChatID]; ok {
		return false
	}
	if _, ok := r.allowed[msg.SenderID]; ok {
		return false
	}
	return true
}

func (r *Router) isAdmin(senderID string) bool {
	_, ok := r.admins[senderID]
	return ok
}

// buildRules assembles the priority-ordered dispatch table. Administrative
// directives come first so an admin string that happens to contain a
// universal keyword is still treated as administrative.
func (r *Router) buildRules() []rule {
	return []rule{
		{
			name:      "admin-help",
			adminOnly: true,
			match:     containsRule("@admin"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				r.reply(ctx, msg, r.uc.Admin.HelpText())
				return nil
			},
		},
		{
			name:      "add-group",
			adminOnly: true,
			match:     containsRule("@add-group"),
			handle:    r.handleAddGroup,
		},
		{
			name:      "remove-group",
			adminOnly: true,
			match:     containsRule("@remove-group"),
			handle:    r.handleRemoveGroup,
		},
		{
			name:      "add-guest",
			adminOnly: true,
			match:     containsRule("@add-guest"),
			handle:    r.guestDirective("@add-guest", r.uc.Guests.AddGuest),
		},
		{
			name:      "remove-guest",
			adminOnly: true,
			match:     containsRule("@remove-guest"),
			handle:    r.guestDirective("@remove-guest", r.uc.Guests.RemoveGuest),
		},
		{
			name:      "get-guests",
			adminOnly: true,
			match:     containsRule("@get-guests"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				reply, err := r.uc.Guests.ListGuests(ctx)
				if err != nil {
					return err
				}
				r.reply(ctx, msg, reply)
				return nil
			},
		},
		{
			name:      "send-invitation",
			adminOnly: true,
			match:     containsRule("@send-invitation"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				reply, err := r.uc.Guests.SendInvites(ctx)
				if err != nil {
					return err
				}
				r.reply(ctx, msg, reply)
				return nil
			},
		},
		{
			name:   "mention-all",
			match:  equalsRule("!all", "!everyone"),
			handle: r.handleMentionAll,
		},
		{
			name:  "help",
			match: equalsRule("!help"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				r.reply(ctx, msg, helpText)
				return nil
			},
		},
		{
			name:   "greeting",
			match:  equalsRule("hi", "hello", "hey", "hiya"),
			handle: r.handleGreeting,
		},
		{
			name:   "rain-question",
			match:  matchRainQuestion,
			handle: r.handleRainQuestion,
		},
		{
			name:  "confirm-presence",
			match: equalsRule("!confirm"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				return r.handlePresence(ctx, msg, true)
			},
		},
		{
			name:  "cancel-presence",
			match: equalsRule("!cancel"),
			handle: func(ctx context.Context, msg *domain.Message, _ string) error {
				return r.handlePresence(ctx, msg, false)
			},
		},
		{
			name:   "summary",
			match:  equalsRule("!summary"),
			handle: r.handleSummary,
		},
	}
}

const helpText = "🤖 Hey! I'm YasBot. Add me to a group and I'm on duty.\n\n" +
	"Available commands:\n" +
	"- `!all`: mentions everyone in the group.\n" +
	"- `!summary`: yesterday's activity recap.\n" +
	"- `!help`: shows this message.\n\n" +
	"🚀 Ping me anytime!"

func containsRule(directive string) func(string, *domain.Message) bool {
	return func(text string, _ *domain.Message) bool {
		return strings.Contains(text, directive)
	}
}

func equalsRule(directives ...string) func(string, *domain.Message) bool {
	return func(text string, _ *domain.Message) bool {
		for _, d := range directives {
			if text == d {
				return true
			}
		}
		return false
	}
}

// matchRainQuestion matches both the bare directive and conversational
// phrasings like "is it going to rain today?".
func matchRainQuestion(text string, _ *domain.Message) bool {
	if text == "!rain" {
		return true
	}
	return strings.Contains(text, "rain") && strings.Contains(text, "?")
}

func (r *Router) handleAddGroup(ctx context.Context, msg *domain.Message, _ string) error {
	if !msg.IsGroup {
		r.reply(ctx, msg, "❌ This command can only be used in groups.")
		return nil
	}

	reply, err := r.uc.Admin.RegisterGroup(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	r.reply(ctx, msg, reply)
	return nil
}

func (r *Router) handleRemoveGroup(ctx context.Context, msg *domain.Message, _ string) error {
	if !msg.IsGroup {
		r.reply(ctx, msg, "❌ This command can only be used in groups.")
		return nil
	}

	reply, err := r.uc.Admin.UnregisterGroup(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	r.reply(ctx, msg, reply)
	return nil
}

// guestDirective adapts a guest usecase call that takes the argument text
// after the directive keyword.
func (r *Router) guestDirective(directive string, fn func(context.Context, string) (string, error)) func(context.Context, *domain.Message, string) error {
	return func(ctx context.Context, msg *domain.Message, text string) error {
		args := argsAfter(text, directive)
		reply, err := fn(ctx, args)
		if err != nil {
			return err
		}
		r.reply(ctx, msg, reply)
		return nil
	}
}

// argsAfter returns the text following the directive keyword.
func argsAfter(text, directive string) string {
	idx := strings.Index(text, directive)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx+len(directive):])
}

// handleMentionAll mentions every current group member except the bot.
// One mention burst per group per window; repeats get a wait notice with
// the remaining time.
func (r *Router) handleMentionAll(ctx context.Context, msg *domain.Message, _ string) error {
	if !msg.IsGroup {
		r.reply(ctx, msg, "❌ This command can only be used in groups.")
		return nil
	}

	res := r.mentionLimiter.Check(msg.ChatID, r.config.MentionWindow)
	if res.Decision != ratelimit.Allow {
		minutes := int(res.Remaining.Round(time.Minute) / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		r.reply(ctx, msg, fmt.Sprintf("⏳ Wait %dm before using this command again.", minutes))
		return nil
	}

	members, err := r.chat.GetChatMembers(ctx, msg.ChatID)
	if err != nil {
		r.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("member listing failed")
		return nil
	}

	botID := r.chat.BotID()
	var mentions []domain.Member
	var handles []string
	for _, m := range members {
		if botID != "" && m.UserID == botID {
			continue
		}
		mentions = append(mentions, m)
		handles = append(handles, m.FormatMention())
	}
	if len(mentions) == 0 {
		return nil
	}

	if err := r.chat.SendTextWithMentions(ctx, msg.ChatID, strings.Join(handles, " "), mentions); err != nil {
		r.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("mention-all send failed")
	}
	return nil
}

func (r *Router) handleGreeting(ctx context.Context, msg *domain.Message, _ string) error {
	res := r.greetingLimiter.Check(msg.RateKey(), r.config.GreetingWindow)
	if res.Decision == ratelimit.Suppress {
		return nil
	}

	if reply := r.uc.Greeting.Hello(ctx, res.Tier); reply != "" {
		r.reply(ctx, msg, reply)
	}
	return nil
}

// handleRainQuestion answers the first ask with the forecast, the second
// with sass, and stays quiet after that until the window turns over.
func (r *Router) handleRainQuestion(ctx context.Context, msg *domain.Message, _ string) error {
	res := r.rainLimiter.Check(msg.RateKey(), r.config.RainWindow)
	switch res.Decision {
	case ratelimit.Allow:
		r.reply(ctx, msg, r.uc.Weather.RainAnswer(ctx))
	case ratelimit.SoftWarn:
		r.reply(ctx, msg, r.uc.Weather.RainSass())
	}
	return nil
}

func (r *Router) handlePresence(ctx context.Context, msg *domain.Message, confirmed bool) error {
	reply, err := r.uc.Guests.SetPresence(ctx, msg.SenderID, confirmed)
	if err != nil {
		return err
	}
	r.reply(ctx, msg, reply)
	return nil
}

func (r *Router) handleSummary(ctx context.Context, msg *domain.Message, _ string) error {
	if !msg.IsGroup {
		r.reply(ctx, msg, "❌ This command can only be used in groups.")
		return nil
	}
	yesterday := r.now().In(r.config.Location).AddDate(0, 0, -1)
	return r.uc.Summary.SendDailySummary(ctx, msg.ChatID, yesterday)
}

// reply sends a plain text reply; transport failure is logged, never
// propagated.
func (r *Router) reply(ctx context.Context, msg *domain.Message, text string) {
	if err := r.chat.SendText(ctx, msg.ChatID, text); err != nil {
		r.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("reply send failed")
	}
}
