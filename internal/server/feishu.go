package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz/domain"
	"yasbot/internal/infra/feishu"
	"yasbot/internal/service"
)

// FeishuServer bridges the Feishu event stream into the router. Events can
// be redelivered by the platform, so inbound messages are deduplicated by
// message id before dispatch.
type FeishuServer struct {
	client    *feishu.Client
	router    *service.Router
	scheduler *service.Scheduler
	log       zerolog.Logger

	seenMu sync.Mutex
	seen   map[string]time.Time // msgID -> first seen
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(client *feishu.Client, router *service.Router, scheduler *service.Scheduler, log zerolog.Logger) *FeishuServer {
	return &FeishuServer{
		client:    client,
		router:    router,
		scheduler: scheduler,
		log:       log.With().Str("component", "server").Logger(),
		seen:      make(map[string]time.Time),
	}
}

// Start begins serving events. Blocks until the client's event loop exits.
func (s *FeishuServer) Start() error {
	if s.scheduler != nil {
		s.scheduler.Start(context.Background())
	}

	s.client.OnMessage(s.handleMessage)
	return s.client.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.client.Stop()
}

func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if s.markSeen(msg.MsgID) {
		s.log.Debug().Str("msg_id", msg.MsgID).Msg("duplicate event ignored")
		return
	}

	s.router.Handle(context.Background(), toDomain(msg))
}

// toDomain converts a wire message into the transport-neutral shape the
// router consumes.
func toDomain(msg *feishu.Message) *domain.Message {
	out := &domain.Message{
		ChatID:     msg.ChatID,
		MsgID:      msg.MsgID,
		Text:       msg.Content,
		IsGroup:    msg.ChatType == "group",
		CreateTime: time.UnixMilli(msg.CreateTime),
	}
	if msg.Sender != nil {
		out.SenderID = msg.Sender.SenderID
		out.IsBot = msg.Sender.SenderType == "bot"
	}
	return out
}

// markSeen records the message id and reports whether it was already seen.
// Entries older than five minutes are swept on each insert.
func (s *FeishuServer) markSeen(msgID string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	if _, ok := s.seen[msgID]; ok {
		return true
	}
	s.seen[msgID] = time.Now()

	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return false
}
