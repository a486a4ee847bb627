// Package session keeps per-user dialogue state in memory for the lifetime of
// the process.
package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store maps user ids to sessions and serializes access per user: concurrent
// calls for the same user run one at a time, different users run in parallel.
type Store struct {
	systemPrompt string
	historyLimit int
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// entry pairs a user's lock with their session. refs, live and lastUsed are
// guarded by Store.mu; session is guarded by entry.mu.
type entry struct {
	mu       sync.Mutex
	session  *Session
	refs     int
	live     bool
	lastUsed time.Time
}

// NewStore returns an empty store. New sessions get systemPrompt as their
// system turn and keep at most historyLimit turns.
func NewStore(systemPrompt string, historyLimit int) *Store {
	if historyLimit < 2 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
		now:          time.Now,
		entries:      make(map[string]*entry),
	}
}

// DefaultSettings returns the settings a new session starts with.
func (s *Store) DefaultSettings() Settings { return DefaultSettings(s.systemPrompt) }

func (s *Store) acquire(userID string) *entry {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	e.refs++
	e.lastUsed = s.now()
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

func (s *Store) release(e *entry) {
	live := e.session != nil
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	e.live = live
	e.lastUsed = s.now()
	s.mu.Unlock()
}

// session returns the entry's session, creating it with defaults. Caller
// holds e.mu.
func (s *Store) session(e *entry, userID string) *Session {
	if e.session == nil {
		e.session = &Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			Settings:     DefaultSettings(s.systemPrompt),
			Mode:         DefaultMode,
			CreatedAt:    s.now(),
			historyLimit: s.historyLimit,
		}
	}
	return e.session
}

// WithLock runs fn with the user's session, creating it if needed, while
// holding the user's lock. The session must not be retained after fn returns.
func (s *Store) WithLock(userID string, fn func(sess *Session) error) error {
	e := s.acquire(userID)
	defer s.release(e)
	return fn(s.session(e, userID))
}

// GetOrCreate returns a snapshot of the user's session, creating a default
// one if absent.
func (s *Store) GetOrCreate(userID string) Session {
	var snap Session
	s.WithLock(userID, func(sess *Session) error {
		snap = sess.Snapshot()
		return nil
	})
	return snap
}

// Get returns a snapshot of the user's session without creating one.
func (s *Store) Get(userID string) (Session, bool) {
	e := s.acquire(userID)
	defer s.release(e)
	if e.session == nil {
		return Session{}, false
	}
	return e.session.Snapshot(), true
}

// Reset discards the user's session. Settings and mode are not preserved;
// the next access starts from defaults.
func (s *Store) Reset(userID string) {
	e := s.acquire(userID)
	defer s.release(e)
	e.session = nil
}

// Renew replaces the user's session with a fresh default one and returns a
// snapshot of it. Like Reset, settings and mode are not preserved.
func (s *Store) Renew(userID string) Session {
	e := s.acquire(userID)
	defer s.release(e)
	e.session = nil
	return s.session(e, userID).Snapshot()
}

// SetMode selects the user's mode. It does not change Settings.Temperature.
func (s *Store) SetMode(userID, raw string) (ModeInfo, error) {
	var info ModeInfo
	err := s.WithLock(userID, func(sess *Session) error {
		var err error
		info, err = sess.SetMode(raw)
		return err
	})
	return info, err
}

// UpdateSetting validates and applies one setting. On error the session is
// unchanged.
func (s *Store) UpdateSetting(userID, key, raw string) (Setting, error) {
	var set Setting
	err := s.WithLock(userID, func(sess *Session) error {
		var err error
		set, err = sess.UpdateSetting(key, raw)
		return err
	})
	return set, err
}

// AppendTurn adds a turn to the user's history and trims it.
func (s *Store) AppendTurn(userID string, role Role, content string) {
	s.WithLock(userID, func(sess *Session) error {
		sess.AppendTurn(role, content)
		return nil
	})
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.live {
			n++
		}
	}
	return n
}

// Cleanup drops bookkeeping for users without a session who have been idle
// for longer than maxAge. Live sessions are never removed.
func (s *Store) Cleanup(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !e.live && e.refs == 0 && now.Sub(e.lastUsed) > maxAge {
			delete(s.entries, id)
		}
	}
}

// Snapshot returns a copy that shares no memory with the session.
func (sess *Session) Snapshot() Session { return sess.clone() }

// AppendTurn appends a turn, inserting the system prompt first if the
// history is empty, then applies the history limit.
func (sess *Session) AppendTurn(role Role, content string) {
	if len(sess.Messages) == 0 && role != RoleSystem {
		sess.Messages = append(sess.Messages, Turn{Role: RoleSystem, Content: sess.Settings.SystemPrompt})
	}
	sess.Messages = append(sess.Messages, Turn{Role: role, Content: content})

	limit := sess.historyLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	sess.Messages = Trim(sess.Messages, limit)
}

// SetMode parses raw and selects that mode.
func (sess *Session) SetMode(raw string) (ModeInfo, error) {
	m, err := ParseMode(raw)
	if err != nil {
		return ModeInfo{}, err
	}
	sess.Mode = m
	info, _ := m.Info()
	return info, nil
}

// UpdateSetting accepts "temperature" (or "temp") in [0,2] and "tokens" in
// [50,2000].
func (sess *Session) UpdateSetting(key, raw string) (Setting, error) {
	raw = strings.TrimSpace(raw)

	switch strings.ToLower(strings.TrimSpace(key)) {
	case string(SettingTemperature), "temp":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Setting{}, fmt.Errorf("%w: temperature %q is not a number", ErrInvalidValue, raw)
		}
		if v < MinTemperature || v > MaxTemperature {
			return Setting{}, fmt.Errorf("%w: temperature must be between %g and %g", ErrOutOfRange, MinTemperature, MaxTemperature)
		}
		sess.Settings.Temperature = v
		return Setting{Key: SettingTemperature, Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil

	case string(SettingTokens):
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Setting{}, fmt.Errorf("%w: tokens %q is not an integer", ErrInvalidValue, raw)
		}
		if v < MinMaxTokens || v > MaxMaxTokens {
			return Setting{}, fmt.Errorf("%w: tokens must be between %d and %d", ErrOutOfRange, MinMaxTokens, MaxMaxTokens)
		}
		sess.Settings.MaxTokens = v
		return Setting{Key: SettingTokens, Value: strconv.Itoa(v)}, nil

	default:
		return Setting{}, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
}
