package bot

import (
	"context"
	"sync"
	"time"

	"github.com/lojasmm/lmbot/internal/cache"
	"github.com/lojasmm/lmbot/internal/logger"
	"github.com/lojasmm/lmbot/internal/whatsapp"
)

// Meta redelivers webhooks it considers unacknowledged; ids seen within this
// window are dropped.
const dedupeWindow = 10 * time.Minute

// Sender delivers replies to a user.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	MarkRead(ctx context.Context, messageID string) error
}

// Handler connects the transport to the dispatcher. Messages are queued per
// user and drained by one worker goroutine per active user, so the webhook
// acknowledges at once and each user's messages are answered in arrival order.
type Handler struct {
	ctx        context.Context
	sender     Sender
	dispatcher *Dispatcher
	limiter    *limiter
	seen       *cache.TTL[string, struct{}]
	wg         sync.WaitGroup

	mu     sync.Mutex
	queues map[string][]whatsapp.Inbound // a key is present while its worker runs
}

// NewHandler returns a handler whose in-flight work is cancelled with ctx.
func NewHandler(ctx context.Context, sender Sender, d *Dispatcher) *Handler {
	return &Handler{
		ctx:        ctx,
		sender:     sender,
		dispatcher: d,
		limiter:    newLimiter(rateLimitMax, rateLimitWindow),
		seen:       cache.NewTTL[string, struct{}](dedupeWindow),
		queues:     make(map[string][]whatsapp.Inbound),
	}
}

// HandleMessage implements whatsapp.MessageHandler.
func (h *Handler) HandleMessage(msg whatsapp.Inbound) {
	if msg.MessageID != "" && !h.seen.Add(msg.MessageID, struct{}{}) {
		logger.Debug("bot: duplicate delivery", "id", msg.MessageID)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	q, running := h.queues[msg.From]
	h.queues[msg.From] = append(q, msg)
	if running {
		return
	}
	h.wg.Add(1)
	go h.drain(msg.From)
}

// drain processes the user's queue in order and exits once it is empty.
func (h *Handler) drain(user string) {
	defer h.wg.Done()
	for {
		h.mu.Lock()
		q := h.queues[user]
		if len(q) == 0 {
			delete(h.queues, user)
			h.mu.Unlock()
			return
		}
		msg := q[0]
		h.queues[user] = q[1:]
		h.mu.Unlock()

		h.process(msg)
	}
}

func (h *Handler) process(msg whatsapp.Inbound) {
	ctx := h.ctx
	if !h.limiter.Allow(msg.From) {
		h.send(ctx, msg.From, msgRateLimited)
		return
	}

	logger.Info("bot: message", "from", msg.From, "name", msg.Name, "text", preview(msg.Text))

	if msg.MessageID != "" {
		if err := h.sender.MarkRead(ctx, msg.MessageID); err != nil {
			logger.Debug("bot: mark read failed", "id", msg.MessageID, "err", err)
		}
	}

	for _, chunk := range h.dispatcher.Handle(ctx, msg.From, msg.Text) {
		if ctx.Err() != nil || !h.send(ctx, msg.From, chunk) {
			return
		}
	}
}

func (h *Handler) send(ctx context.Context, to, body string) bool {
	if err := h.sender.SendText(ctx, to, body); err != nil {
		logger.Error("bot: failed to send reply", "to", to, "err", err)
		return false
	}
	return true
}

// Wait blocks until every message being processed has been answered.
func (h *Handler) Wait() { h.wg.Wait() }

// Cleanup forgets rate limit state for users idle longer than maxAge.
func (h *Handler) Cleanup(maxAge time.Duration) { h.limiter.Cleanup(maxAge) }

func preview(s string) string {
	return shorten(s, 50)
}
