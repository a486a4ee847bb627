// Package bot routes user text and commands to the session store and the
// completion backend.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/lojasmm/lmbot/internal/backend"
	"github.com/lojasmm/lmbot/internal/format"
	"github.com/lojasmm/lmbot/internal/logger"
	"github.com/lojasmm/lmbot/internal/search"
	"github.com/lojasmm/lmbot/internal/session"
	"github.com/lojasmm/lmbot/internal/sysinfo"
)

// Backend is the completion service as the dispatcher sees it.
type Backend interface {
	Probe(ctx context.Context) bool
	ListModels(ctx context.Context) []string
	Generate(ctx context.Context, messages []backend.Message, temperature float64, maxTokens int) (string, error)
}

// Searcher answers /search queries.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Result, error)
}

// StatsFunc samples host load for /status.
type StatsFunc func(ctx context.Context) (sysinfo.Stats, error)

type Dispatcher struct {
	backend  Backend
	sessions *session.Store
	search   Searcher
	stats    StatsFunc
	limit    int
}

type Option func(*Dispatcher)

// WithSearch enables the /search command.
func WithSearch(s Searcher) Option {
	return func(d *Dispatcher) { d.search = s }
}

// WithStats adds host load to /status.
func WithStats(f StatsFunc) Option {
	return func(d *Dispatcher) { d.stats = f }
}

// WithMessageLimit sets the outbound chunk size in characters.
func WithMessageLimit(n int) Option {
	return func(d *Dispatcher) { d.limit = n }
}

func NewDispatcher(b Backend, s *session.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:  b,
		sessions: s,
		limit:    format.DefaultLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ask runs one dialogue exchange for the user. If the backend does not answer
// the probe it returns backend.ErrBackendUnavailable without touching the
// session. Otherwise the user turn is kept even when generation fails; the
// assistant turn is appended only on success.
func (d *Dispatcher) Ask(ctx context.Context, userID, text string) (string, error) {
	if !d.backend.Probe(ctx) {
		return "", backend.ErrBackendUnavailable
	}

	var reply string
	err := d.sessions.WithLock(userID, func(sess *session.Session) error {
		sess.AppendTurn(session.RoleUser, text)

		out, err := d.backend.Generate(ctx, toMessages(sess.Messages), sess.Settings.Temperature, sess.Settings.MaxTokens)
		if err != nil {
			return err
		}

		reply = strings.TrimSpace(out)
		if reply != "" {
			sess.AppendTurn(session.RoleAssistant, reply)
		}
		return nil
	})
	return reply, err
}

// HandleUserText answers dialogue text with the chunks to send back. Once ctx
// is done a failed exchange yields no chunks.
func (d *Dispatcher) HandleUserText(ctx context.Context, userID, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	reply, err := d.Ask(ctx, userID, text)
	switch {
	case err != nil && ctx.Err() != nil:
		logger.Debug("bot: exchange cancelled", "user", userID, "err", err)
		return nil
	case errors.Is(err, backend.ErrBackendUnavailable):
		reply = msgBackendDown
	case err != nil:
		logger.Error("bot: generation failed", "user", userID, "err", err)
		var gerr *backend.GenerationError
		if errors.As(err, &gerr) {
			reply = gerr.UserMessage()
		} else {
			reply = msgGenerationFailed
		}
	case reply == "":
		reply = msgEmptyReply
	}
	return format.Chunk(reply, d.limit)
}

// HandleCommand answers a slash command. command may include the leading
// slash.
func (d *Dispatcher) HandleCommand(ctx context.Context, userID, command string, args []string) string {
	switch strings.ToLower(strings.TrimPrefix(command, "/")) {
	case "start":
		return d.cmdStart(ctx, userID)
	case "help":
		return msgHelp
	case "new":
		d.sessions.Renew(userID)
		return msgNewDialogue
	case "models":
		return d.cmdModels(ctx)
	case "mode":
		return d.cmdMode(userID, args)
	case "settings":
		return d.cmdSettings(userID, args)
	case "status":
		return d.cmdStatus(ctx, userID)
	case "search":
		return d.cmdSearch(ctx, args)
	default:
		return msgUnknownCommand
	}
}

// Handle routes raw inbound text: a leading slash means a command.
func (d *Dispatcher) Handle(ctx context.Context, userID, text string) []string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return d.HandleUserText(ctx, userID, text)
	}
	fields := strings.Fields(text)
	return format.Chunk(d.HandleCommand(ctx, userID, fields[0], fields[1:]), d.limit)
}

func toMessages(turns []session.Turn) []backend.Message {
	msgs := make([]backend.Message, len(turns))
	for i, t := range turns {
		msgs[i] = backend.Message{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}
