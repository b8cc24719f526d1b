package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz"
	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/usecase"
)

type sentMessage struct {
	chatID   string
	text     string
	mentions []domain.Member
}

type fakeChat struct {
	sent    []sentMessage
	direct  []sentMessage
	members map[string][]domain.Member
	byPhone map[string]*domain.Member
	botID   string
}

func (f *fakeChat) SendText(_ context.Context, chatID, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeChat) SendTextWithMentions(_ context.Context, chatID, text string, mentions []domain.Member) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, mentions: mentions})
	return nil
}

func (f *fakeChat) SendTextToUser(_ context.Context, userID, text string) error {
	f.direct = append(f.direct, sentMessage{chatID: userID, text: text})
	return nil
}

func (f *fakeChat) SendImageWithCaption(_ context.Context, chatID, _, caption string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: caption})
	return nil
}

func (f *fakeChat) GetChatMembers(_ context.Context, chatID string) ([]domain.Member, error) {
	return f.members[chatID], nil
}

func (f *fakeChat) ResolveMemberByPhone(_ context.Context, number string) (*domain.Member, error) {
	return f.byPhone[number], nil
}

func (f *fakeChat) BotID() string { return f.botID }

func (f *fakeChat) lastText(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("expected a reply, got none")
	}
	return f.sent[len(f.sent)-1].text
}

type memGroups struct {
	registered map[string]bool
}

func (m *memGroups) Add(_ context.Context, groupID string) (bool, error) {
	if m.registered[groupID] {
		return false, nil
	}
	m.registered[groupID] = true
	return true, nil
}

func (m *memGroups) Remove(_ context.Context, groupID string) (bool, error) {
	if !m.registered[groupID] {
		return false, nil
	}
	delete(m.registered, groupID)
	return true, nil
}

func (m *memGroups) IsRegistered(_ context.Context, groupID string) (bool, error) {
	return m.registered[groupID], nil
}

func (m *memGroups) List(context.Context) ([]string, error) {
	var ids []string
	for id := range m.registered {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memGroups) SaveDailySummary(context.Context, *domain.DailySummary) error { return nil }

type memMessages struct {
	rows []domain.LoggedMessage
}

func (m *memMessages) Append(_ context.Context, msg *domain.LoggedMessage) error {
	m.rows = append(m.rows, *msg)
	return nil
}

func (m *memMessages) ListRange(_ context.Context, groupID string, start, end time.Time) ([]domain.LoggedMessage, error) {
	var out []domain.LoggedMessage
	for _, row := range m.rows {
		if row.GroupID == groupID && !row.Timestamp.Before(start) && row.Timestamp.Before(end) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memMessages) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.LoggedMessage
	var removed int64
	for _, row := range m.rows {
		if row.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return removed, nil
}

type memGuests struct {
	guests []domain.Guest
}

func (m *memGuests) Add(_ context.Context, guest *domain.Guest) (bool, error) {
	for _, g := range m.guests {
		if g.Number == guest.Number {
			return false, nil
		}
	}
	m.guests = append(m.guests, *guest)
	return true, nil
}

func (m *memGuests) Remove(_ context.Context, number string) (bool, error) {
	for i, g := range m.guests {
		if g.Number == number {
			m.guests = append(m.guests[:i], m.guests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memGuests) List(context.Context) ([]domain.Guest, error) { return m.guests, nil }

func (m *memGuests) SetOpenID(_ context.Context, number, openID string) error {
	for i, g := range m.guests {
		if g.Number == number {
			m.guests[i].OpenID = openID
		}
	}
	return nil
}

func (m *memGuests) SetConfirmed(_ context.Context, openID string, confirmed bool) (bool, error) {
	for i, g := range m.guests {
		if g.OpenID != "" && g.OpenID == openID {
			m.guests[i].Confirmed = confirmed
			return true, nil
		}
	}
	return false, nil
}

func (m *memGuests) MarkInvited(context.Context, string) error { return nil }

type fixedWeather struct {
	bundle domain.WeatherBundle
}

func (f *fixedWeather) FetchBundle(context.Context, float64, float64) (*domain.WeatherBundle, error) {
	b := f.bundle
	return &b, nil
}

type routerFixture struct {
	router   *Router
	chat     *fakeChat
	groups   *memGroups
	messages *memMessages
	guests   *memGuests
}

func newRouterFixture(t *testing.T, config RouterConfig) *routerFixture {
	t.Helper()

	chat := &fakeChat{
		botID:   "bot-1",
		members: map[string][]domain.Member{},
		byPhone: map[string]*domain.Member{},
	}
	groups := &memGroups{registered: map[string]bool{}}
	messages := &memMessages{}
	guests := &memGuests{}

	log := zerolog.Nop()
	weatherUC := usecase.NewWeatherUsecase(&fixedWeather{bundle: domain.WeatherBundle{
		Current: domain.CurrentWeather{Temp: 22, Code: 2, IsDay: true},
		Daily:   domain.DailyForecast{RainProbability: 70, TempMax: 25, TempMin: 15},
	}}, domain.WeatherConfig{
		Lat: -34.6037, Lon: -58.3816, City: "Buenos Aires",
		TTL:        30 * time.Minute,
		Thresholds: domain.DefaultWeatherThresholds(),
	}, log)

	uc := &biz.Usecases{
		Weather:    weatherUC,
		Greeting:   usecase.NewGreetingUsecase(weatherUC),
		Summary:    usecase.NewSummaryUsecase(groups, messages, chat, log),
		Admin:      usecase.NewAdminUsecase(groups),
		Guests:     usecase.NewGuestUsecase(guests, chat, "You're invited!", log),
		MessageLog: usecase.NewMessageLogUsecase(groups, messages),
	}

	if config.GreetingWindow == 0 {
		config.GreetingWindow = time.Hour
	}
	if config.RainWindow == 0 {
		config.RainWindow = 3 * time.Hour
	}
	if config.MentionWindow == 0 {
		config.MentionWindow = 10 * time.Minute
	}

	return &routerFixture{
		router:   NewRouter(config, chat, uc, log),
		chat:     chat,
		groups:   groups,
		messages: messages,
		guests:   guests,
	}
}

func groupMsg(text string) *domain.Message {
	return &domain.Message{
		ChatID:     "oc_group",
		MsgID:      "om_1",
		Text:       text,
		SenderID:   "ou_alice",
		IsGroup:    true,
		CreateTime: time.Now(),
	}
}

func TestRouterIgnoresOwnMessages(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{})

	msg := groupMsg("hi")
	msg.IsBot = true
	fx.router.Handle(context.Background(), msg)

	echo := groupMsg("hi")
	echo.SenderID = "bot-1"
	fx.router.Handle(context.Background(), echo)

	if len(fx.chat.sent) != 0 {
		t.Fatalf("bot's own messages must be discarded, got %d replies", len(fx.chat.sent))
	}
}

func TestRouterMaintenanceMode(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{
		AdminIDs:        []string{"ou_admin"},
		MaintenanceMode: true,
		AllowedChats:    []string{"oc_allowed"},
	})

	fx.router.Handle(context.Background(), groupMsg("!help"))
	if len(fx.chat.sent) != 0 {
		t.Fatal("unlisted sender must be ignored in maintenance mode")
	}

	allowed := groupMsg("!help")
	allowed.ChatID = "oc_allowed"
	fx.router.Handle(context.Background(), allowed)
	if len(fx.chat.sent) != 1 {
		t.Fatal("allowlisted chat must still be served in maintenance mode")
	}

	admin := groupMsg("!help")
	admin.SenderID = "ou_admin"
	fx.router.Handle(context.Background(), admin)
	if len(fx.chat.sent) != 2 {
		t.Fatal("admin must still be served in maintenance mode")
	}
}

func TestRouterAdminDirectiveRequiresAdmin(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{AdminIDs: []string{"ou_admin"}})

	fx.router.Handle(context.Background(), groupMsg("@add-group"))
	if len(fx.chat.sent) != 0 {
		t.Fatal("non-admin must not trigger administrative directives")
	}
	if fx.groups.registered["oc_group"] {
		t.Fatal("group must not be registered by a non-admin")
	}
}

func TestRouterRegisterGroupIdempotent(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{AdminIDs: []string{"ou_admin"}})

	msg := groupMsg("@add-group")
	msg.SenderID = "ou_admin"

	fx.router.Handle(context.Background(), msg)
	if got := fx.chat.lastText(t); !strings.Contains(got, "registered successfully") {
		t.Fatalf("first registration reply = %q", got)
	}

	fx.router.Handle(context.Background(), msg)
	if got := fx.chat.lastText(t); !strings.Contains(got, "already registered") {
		t.Fatalf("second registration reply = %q", got)
	}
	if !fx.groups.registered["oc_group"] {
		t.Fatal("group must stay registered after the duplicate directive")
	}
}

func TestRouterRegisterGroupRejectsDirectChat(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{AdminIDs: []string{"ou_admin"}})

	msg := groupMsg("@add-group")
	msg.SenderID = "ou_admin"
	msg.IsGroup = false

	fx.router.Handle(context.Background(), msg)
	if got := fx.chat.lastText(t); !strings.Contains(got, "only be used in groups") {
		t.Fatalf("direct chat reply = %q", got)
	}
}

func TestRouterMentionAll(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{MentionWindow: 10 * time.Minute})
	fx.chat.members["oc_group"] = []domain.Member{
		{UserID: "ou_alice", Name: "Alice"},
		{UserID: "ou_bob", Name: "Bob"},
		{UserID: "bot-1", Name: "YasBot"},
	}

	fx.router.Handle(context.Background(), groupMsg("!all"))

	if len(fx.chat.sent) != 1 {
		t.Fatalf("expected 1 mention burst, got %d sends", len(fx.chat.sent))
	}
	burst := fx.chat.sent[0]
	if len(burst.mentions) != 2 {
		t.Fatalf("bot must be excluded from mentions, got %d", len(burst.mentions))
	}
	if !strings.Contains(burst.text, "@Alice") || !strings.Contains(burst.text, "@Bob") {
		t.Fatalf("mention text = %q", burst.text)
	}
	if strings.Contains(burst.text, "YasBot") {
		t.Fatalf("mention text must not include the bot: %q", burst.text)
	}
}

func TestRouterMentionAllThrottled(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{MentionWindow: 10 * time.Minute})
	fx.chat.members["oc_group"] = []domain.Member{{UserID: "ou_alice", Name: "Alice"}}

	fx.router.Handle(context.Background(), groupMsg("!all"))

	// Repeats inside the window always get the wait notice, never silence.
	for i := 0; i < 3; i++ {
		fx.router.Handle(context.Background(), groupMsg("!everyone"))
		got := fx.chat.lastText(t)
		if !strings.Contains(got, "Wait") || !strings.Contains(got, "m before") {
			t.Fatalf("repeat %d reply = %q", i+1, got)
		}
	}
	if len(fx.chat.sent) != 4 {
		t.Fatalf("expected 1 burst + 3 wait notices, got %d sends", len(fx.chat.sent))
	}
}

func TestRouterGreetingEscalation(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{GreetingWindow: time.Hour})

	replies := []string{}
	for i := 0; i < 4; i++ {
		before := len(fx.chat.sent)
		fx.router.Handle(context.Background(), groupMsg("hi"))
		if len(fx.chat.sent) > before {
			replies = append(replies, fx.chat.lastText(t))
		} else {
			replies = append(replies, "")
		}
	}

	if !strings.Contains(replies[0], "good") {
		t.Fatalf("first greeting = %q", replies[0])
	}
	if !strings.Contains(replies[1], "already said hi") {
		t.Fatalf("second greeting = %q", replies[1])
	}
	if !strings.Contains(replies[2], "not saying hi") {
		t.Fatalf("third greeting = %q", replies[2])
	}
	if replies[3] != "" {
		t.Fatalf("fourth greeting must be silent, got %q", replies[3])
	}
}

func TestRouterRainQuestionEscalation(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{RainWindow: 3 * time.Hour})

	fx.router.Handle(context.Background(), groupMsg("is it going to rain today?"))
	if got := fx.chat.lastText(t); !strings.Contains(got, "70%") {
		t.Fatalf("first rain reply = %q", got)
	}

	fx.router.Handle(context.Background(), groupMsg("!rain"))
	second := fx.chat.lastText(t)
	if strings.Contains(second, "70%") {
		t.Fatalf("second ask must get sass, not the forecast: %q", second)
	}

	before := len(fx.chat.sent)
	fx.router.Handle(context.Background(), groupMsg("!rain"))
	if len(fx.chat.sent) != before {
		t.Fatal("third ask inside the window must be ignored")
	}
}

func TestRouterFallbackLogsRegisteredGroupTraffic(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{})
	fx.groups.registered["oc_group"] = true

	fx.router.Handle(context.Background(), groupMsg("just chatting about nothing"))

	if len(fx.chat.sent) != 0 {
		t.Fatal("plain chatter must not trigger a reply")
	}
	if len(fx.messages.rows) != 1 {
		t.Fatalf("expected 1 logged message, got %d", len(fx.messages.rows))
	}
	if fx.messages.rows[0].SenderHandle != "ou_alice" {
		t.Fatalf("logged handle = %q", fx.messages.rows[0].SenderHandle)
	}
}

func TestRouterFallbackSkipsUnregisteredGroups(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{})

	fx.router.Handle(context.Background(), groupMsg("just chatting"))

	if len(fx.messages.rows) != 0 {
		t.Fatalf("unregistered group traffic must not be logged, got %d rows", len(fx.messages.rows))
	}
}

func TestRouterDirectivesWinOverLogging(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{})
	fx.groups.registered["oc_group"] = true

	fx.router.Handle(context.Background(), groupMsg("!help"))

	if len(fx.messages.rows) != 0 {
		t.Fatalf("a matched directive must not also be logged, got %d rows", len(fx.messages.rows))
	}
	if got := fx.chat.lastText(t); !strings.Contains(got, "YasBot") {
		t.Fatalf("help reply = %q", got)
	}
}

func TestRouterPresenceConfirmFromGroupSender(t *testing.T) {
	fx := newRouterFixture(t, RouterConfig{AdminIDs: []string{"ou_admin"}})
	fx.chat.byPhone["541112345678"] = &domain.Member{UserID: "ou_alice", Name: "Alice"}

	add := groupMsg("@add-guest Alice 541112345678")
	add.SenderID = "ou_admin"
	fx.router.Handle(context.Background(), add)
	if got := fx.chat.lastText(t); !strings.Contains(got, "added to the guest list") {
		t.Fatalf("add reply = %q", got)
	}
	if fx.guests.guests[0].OpenID != "ou_alice" {
		t.Fatalf("guest open id = %q, want resolved at add time", fx.guests.guests[0].OpenID)
	}

	// Inbound messages carry only the platform sender id, never a phone
	// number; confirmation must work on that alone.
	fx.router.Handle(context.Background(), groupMsg("!confirm"))
	if got := fx.chat.lastText(t); !strings.Contains(got, "confirmed") {
		t.Fatalf("confirm reply = %q", got)
	}
	if !fx.guests.guests[0].Confirmed {
		t.Fatal("guest must be flagged confirmed")
	}

	stranger := groupMsg("!cancel")
	stranger.SenderID = "ou_mallory"
	fx.router.Handle(context.Background(), stranger)
	if got := fx.chat.lastText(t); !strings.Contains(got, "not on the guest list") {
		t.Fatalf("stranger reply = %q", got)
	}
}

func TestRouterSummaryWindowFollowsConfiguredZone(t *testing.T) {
	zone := time.FixedZone("UTC-3", -3*60*60)
	fx := newRouterFixture(t, RouterConfig{Location: zone})
	fx.groups.registered["oc_group"] = true

	// 01:00 UTC on the 11th is still the evening of the 10th in the
	// configured zone, so the digest must cover the 9th there.
	fx.router.now = func() time.Time {
		return time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC)
	}

	fx.router.Handle(context.Background(), groupMsg("!summary"))

	if got := fx.chat.lastText(t); !strings.Contains(got, "09/03/2026") {
		t.Fatalf("digest = %q, want the 9th in the configured zone", got)
	}
}
