package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post
	ChatType   string // p2p (private), group
	Content    string // Text content with mention placeholders resolved
	Sender     *Sender
	CreateTime int64 // Milliseconds Unix timestamp from Feishu
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // User ID or bot ID
	SenderType string // user, bot
	TenantKey  string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID   string `json:"member_id"`
	MemberType string `json:"member_type"` // user, bot
	Name       string `json:"name"`
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string
	log       zerolog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		log:       log.With().Str("component", "feishu").Logger(),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// BotOpenID returns the bot's own open_id, or "" if not yet known
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// Start connects to Feishu via WebSocket and starts listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Create Lark API client
	c.larkCli = lark.NewClient(c.appID, c.appSecret)

	// Fetch bot's own open_id at startup
	if err := c.fetchBotOpenID(); err != nil {
		c.log.Warn().Err(err).Msg("failed to fetch bot open_id")
	}

	// Register event handler
	// Note: Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			// Process message asynchronously, return immediately to let SDK send ACK
			go c.handleMessage(event)
			return nil
		})

	// Create WebSocket client
	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("starting websocket connection")

	// Start WebSocket (blocking)
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID() error {
	// 1. First get tenant_access_token
	tokenReq := fmt.Sprintf(`{"app_id":%q,"app_secret":%q}`, c.appID, c.appSecret)
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	// 2. Get bot info
	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}

	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	c.log.Info().Str("open_id", c.botOpenID).Str("name", botResult.Bot.AppName).Msg("bot identity resolved")
	return nil
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}

	// Parse create time (milliseconds Unix timestamp)
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	// Parse sender info
	if event.Event.Sender != nil {
		msg.Sender = &Sender{}
		if event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
			msg.Sender.SenderID = *event.Event.Sender.SenderId.OpenId
		}
		if event.Event.Sender.SenderType != nil {
			msg.Sender.SenderType = *event.Event.Sender.SenderType
		}
		if event.Event.Sender.TenantKey != nil {
			msg.Sender.TenantKey = *event.Event.Sender.TenantKey
		}
	}

	switch msg.MsgType {
	case "text":
		msg.Content = c.parseTextContent(*rawMsg.Content, c.buildMentionMap(rawMsg.Mentions))
	default:
		// Only text messages drive commands
		return
	}

	c.log.Debug().
		Str("chat_id", msg.ChatID).
		Str("chat_type", msg.ChatType).
		Str("text", truncate(msg.Content, 50)).
		Msg("message received")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// buildMentionMap maps mention placeholders (@_user_1) to replacement
// text. The bot's own mention maps to the empty string so "@Bot !all"
// still matches the bare directive.
func (c *Client) buildMentionMap(mentions []*larkim.MentionEvent) map[string]string {
	mentionMap := make(map[string]string)
	for _, mention := range mentions {
		if mention.Key == nil {
			continue
		}
		if mention.Id != nil && mention.Id.OpenId != nil && *mention.Id.OpenId == c.botOpenID {
			mentionMap[*mention.Key] = ""
			continue
		}
		if mention.Name != nil {
			mentionMap[*mention.Key] = "@" + *mention.Name
		}
	}
	return mentionMap
}

// parseTextContent extracts text from a text message
// It also substitutes mention placeholders (@_user_1) with their
// replacement text
func (c *Client) parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// replaceMentions substitutes mention placeholders (@_user_1, @_user_2,
// etc.) with their replacement text and trims whitespace left by stripped
// ones
func replaceMentions(text string, mentionMap map[string]string) string {
	if len(mentionMap) == 0 {
		return text
	}
	result := text
	for key, replacement := range mentionMap {
		result = strings.ReplaceAll(result, key, replacement)
	}
	return strings.TrimSpace(result)
}

// Mention represents a user to be mentioned in a message
type Mention struct {
	UserID   string // open_id (ou_xxx) or user_id
	UserName string // Display name for the mention
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.sendTextTo(ctx, larkim.ReceiveIdTypeChatId, chatID, text)
}

// SendTextToUser sends a direct text message to a user by open_id
func (c *Client) SendTextToUser(ctx context.Context, openID, text string) error {
	return c.sendTextTo(ctx, larkim.ReceiveIdTypeOpenId, openID, text)
}

func (c *Client) sendTextTo(ctx context.Context, receiveIDType, receiveID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.log.Debug().Str("receive_id", receiveID).Msg("message sent")
	return nil
}

// SendTextWithMentions sends a text message with @ mentions
// Format: text with <at user_id="ou_xxx">@name</at> tags
func (c *Client) SendTextWithMentions(ctx context.Context, chatID, text string, mentions []Mention) error {
	mentionText := text
	for _, m := range mentions {
		tag := fmt.Sprintf("<at user_id=%q>@%s</at>", m.UserID, m.UserName)
		mentionText = tag + " " + mentionText
	}

	content := map[string]string{"text": mentionText}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message with mentions failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message with mentions error: %s", resp.Msg)
	}

	c.log.Debug().Str("chat_id", chatID).Int("mentions", len(mentions)).Msg("message with mentions sent")
	return nil
}

// SendImage uploads a local image file and sends it to a chat
func (c *Client) SendImage(ctx context.Context, chatID, imagePath string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	uploadReq := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType(larkim.ImageTypeMessage).
			Image(file).
			Build()).
		Build()

	uploadResp, err := c.larkCli.Im.Image.Create(ctx, uploadReq)
	if err != nil {
		return fmt.Errorf("upload image failed: %w", err)
	}
	if !uploadResp.Success() {
		return fmt.Errorf("upload image error: %s", uploadResp.Msg)
	}

	content := map[string]string{"image_key": *uploadResp.Data.ImageKey}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeImage).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send image failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send image error: %s", resp.Msg)
	}

	c.log.Debug().Str("chat_id", chatID).Str("path", imagePath).Msg("image sent")
	return nil
}

// GetChatMembers retrieves members of a chat (group)
// Uses pagination to get all members
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id"). // Request open_id format for user IDs
			ChatId(chatID).
			PageSize(100) // Max page size

		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.MemberIdType != nil {
				member.MemberType = *item.MemberIdType
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.log.Debug().Str("chat_id", chatID).Int("members", len(members)).Msg("chat members retrieved")
	return members, nil
}

// ResolveUserIDByPhone resolves a mobile number to an open_id via the
// contact directory. Returns "" without error when there is no match.
func (c *Client) ResolveUserIDByPhone(ctx context.Context, phone string) (string, error) {
	req := larkcontact.NewBatchGetIdUserReqBuilder().
		UserIdType("open_id").
		Body(larkcontact.NewBatchGetIdUserReqBodyBuilder().
			Mobiles([]string{phone}).
			Build()).
		Build()

	resp, err := c.larkCli.Contact.User.BatchGetId(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resolve phone failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("resolve phone error: %s", resp.Msg)
	}

	for _, user := range resp.Data.UserList {
		if user.UserId != nil && *user.UserId != "" {
			return *user.UserId, nil
		}
	}
	return "", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
