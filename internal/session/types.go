package session

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a dialogue. Turns are only ever appended.
type Turn struct {
	Role    Role
	Content string
}

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500

	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 50
	MaxMaxTokens   = 2000
)

// Settings are the per-user generation parameters.
type Settings struct {
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings(systemPrompt string) Settings {
	return Settings{
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: systemPrompt,
	}
}

// SettingKey names a user-adjustable setting.
type SettingKey string

const (
	SettingTemperature SettingKey = "temperature"
	SettingTokens      SettingKey = "tokens"
)

// Setting describes a successful settings update.
type Setting struct {
	Key   SettingKey
	Value string
}

// Mode is a named preset suggesting a temperature. Selecting a mode does not
// apply that temperature to Settings.
type Mode int

const (
	ModeBalanced Mode = iota + 1
	ModeCreative
	ModePrecise
	ModeCasual
)

const DefaultMode = ModeBalanced

// ModeInfo is the catalog entry for a mode.
type ModeInfo struct {
	Mode        Mode
	Name        string
	Temperature float64
	Description string
}

var modes = []ModeInfo{
	{ModeBalanced, "Balanced", 0.7, "A balance of creativity and accuracy"},
	{ModeCreative, "Creative", 0.9, "More imaginative, expansive answers"},
	{ModePrecise, "Precise", 0.3, "Factual, concise answers"},
	{ModeCasual, "Casual", 0.8, "Informal, lively conversation"},
}

// Modes lists every mode in menu order.
func Modes() []ModeInfo { return slices.Clone(modes) }

// Info returns the catalog entry for m.
func (m Mode) Info() (ModeInfo, bool) {
	for _, info := range modes {
		if info.Mode == m {
			return info, true
		}
	}
	return ModeInfo{}, false
}

func (m Mode) String() string { return strconv.Itoa(int(m)) }

// ParseMode accepts the menu number of a mode ("1".."4").
func ParseMode(raw string) (Mode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
	m := Mode(n)
	if _, ok := m.Info(); !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
	return m, nil
}

// Session is one user's dialogue state.
type Session struct {
	ID        string
	UserID    string
	Messages  []Turn
	Settings  Settings
	Mode      Mode
	CreatedAt time.Time

	historyLimit int
}

func (s *Session) clone() Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return c
}
