package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrompt = "You are a test assistant."

func TestGetOrCreateDefaults(t *testing.T) {
	s := NewStore(testPrompt, 10)

	sess := s.GetOrCreate("42")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "42", sess.UserID)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, DefaultMode, sess.Mode)
	assert.Equal(t, 0.7, sess.Settings.Temperature)
	assert.Equal(t, 500, sess.Settings.MaxTokens)
	assert.Equal(t, testPrompt, sess.Settings.SystemPrompt)

	again := s.GetOrCreate("42")
	assert.Equal(t, sess.ID, again.ID)
	assert.Equal(t, 1, s.Len())
}

func TestGetDoesNotCreate(t *testing.T) {
	s := NewStore(testPrompt, 10)

	_, ok := s.Get("7")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	s.GetOrCreate("7")
	_, ok = s.Get("7")
	assert.True(t, ok)
}

func TestAppendTurnInsertsSystemPrompt(t *testing.T) {
	s := NewStore(testPrompt, 10)
	s.AppendTurn("u", RoleUser, "hello")

	msgs := s.GetOrCreate("u").Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, Turn{Role: RoleSystem, Content: testPrompt}, msgs[0])
	assert.Equal(t, Turn{Role: RoleUser, Content: "hello"}, msgs[1])
}

func TestAppendTurnKeepsBound(t *testing.T) {
	s := NewStore(testPrompt, 10)
	for i := 0; i < 25; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.AppendTurn("u", role, fmt.Sprintf("turn %d", i))

		msgs := s.GetOrCreate("u").Messages
		require.LessOrEqual(t, len(msgs), 10)
		require.Equal(t, RoleSystem, msgs[0].Role)
		require.Equal(t, testPrompt, msgs[0].Content)
	}

	msgs := s.GetOrCreate("u").Messages
	require.Len(t, msgs, 10)
	assert.Equal(t, "turn 16", msgs[1].Content)
	assert.Equal(t, "turn 24", msgs[9].Content)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore(testPrompt, 10)
	s.AppendTurn("u", RoleUser, "hello")

	snap := s.GetOrCreate("u")
	snap.Messages[1].Content = "tampered"
	snap.Settings.Temperature = 1.9

	fresh := s.GetOrCreate("u")
	assert.Equal(t, "hello", fresh.Messages[1].Content)
	assert.Equal(t, 0.7, fresh.Settings.Temperature)
}

func TestReset(t *testing.T) {
	s := NewStore(testPrompt, 10)
	s.AppendTurn("42", RoleUser, "one")
	s.AppendTurn("42", RoleAssistant, "two")
	s.AppendTurn("42", RoleUser, "three")
	_, err := s.UpdateSetting("42", "temperature", "1.5")
	require.NoError(t, err)
	_, err = s.SetMode("42", "3")
	require.NoError(t, err)
	before := s.GetOrCreate("42")

	s.Reset("42")
	assert.Equal(t, 0, s.Len())

	sess := s.GetOrCreate("42")
	assert.Empty(t, sess.Messages)
	assert.Equal(t, 0.7, sess.Settings.Temperature)
	assert.Equal(t, 500, sess.Settings.MaxTokens)
	assert.Equal(t, DefaultMode, sess.Mode)
	assert.NotEqual(t, before.ID, sess.ID)
}

func TestRenew(t *testing.T) {
	s := NewStore(testPrompt, 10)
	s.AppendTurn("42", RoleUser, "one")
	_, err := s.UpdateSetting("42", "tokens", "1000")
	require.NoError(t, err)
	before := s.GetOrCreate("42")

	fresh := s.Renew("42")
	assert.NotEqual(t, before.ID, fresh.ID)
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, 500, fresh.Settings.MaxTokens)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("42")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, got.ID)
}

func TestSetMode(t *testing.T) {
	s := NewStore(testPrompt, 10)

	_, err := s.SetMode("u", "5")
	assert.True(t, errors.Is(err, ErrInvalidMode))
	_, err = s.SetMode("u", "two")
	assert.True(t, errors.Is(err, ErrInvalidMode))
	assert.Equal(t, DefaultMode, s.GetOrCreate("u").Mode)

	info, err := s.SetMode("u", "2")
	require.NoError(t, err)
	assert.Equal(t, ModeCreative, info.Mode)
	assert.Equal(t, 0.9, info.Temperature)

	sess := s.GetOrCreate("u")
	assert.Equal(t, "2", sess.Mode.String())
	// the mode's suggested temperature is not applied
	assert.Equal(t, 0.7, sess.Settings.Temperature)
}

func TestUpdateSetting(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"temperature", "temperature", "0.8", nil},
		{"temp alias", "temp", "0", nil},
		{"temperature upper bound", "temperature", "2", nil},
		{"temperature too high", "temperature", "3", ErrOutOfRange},
		{"temperature negative", "temperature", "-0.1", ErrOutOfRange},
		{"temperature not a number", "temperature", "warm", ErrInvalidValue},
		{"temperature NaN", "temperature", "NaN", ErrInvalidValue},
		{"tokens", "tokens", "1000", nil},
		{"tokens lower bound", "tokens", "50", nil},
		{"tokens too low", "tokens", "49", ErrOutOfRange},
		{"tokens too high", "tokens", "2001", ErrOutOfRange},
		{"tokens fractional", "tokens", "100.5", ErrInvalidValue},
		{"unknown key", "model", "phi-2", ErrUnknownSetting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(testPrompt, 10)
			before := s.GetOrCreate("u").Settings

			_, err := s.UpdateSetting("u", tt.key, tt.value)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, before, s.GetOrCreate("u").Settings)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUpdateSettingApplies(t *testing.T) {
	s := NewStore(testPrompt, 10)

	set, err := s.UpdateSetting("u", "temperature", "0.8")
	require.NoError(t, err)
	assert.Equal(t, SettingTemperature, set.Key)
	assert.Equal(t, "0.8", set.Value)
	assert.Equal(t, 0.8, s.GetOrCreate("u").Settings.Temperature)

	_, err = s.UpdateSetting("u", "temperature", "3")
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.Equal(t, 0.8, s.GetOrCreate("u").Settings.Temperature)

	_, err = s.UpdateSetting("u", "tokens", "1200")
	require.NoError(t, err)
	assert.Equal(t, 1200, s.GetOrCreate("u").Settings.MaxTokens)
}

func TestWithLockSerializesPerUser(t *testing.T) {
	s := NewStore(testPrompt, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.WithLock("u", func(sess *Session) error {
				n := len(sess.Messages)
				sess.AppendTurn(RoleUser, "x")
				if n == 0 {
					n = 1
				}
				assert.Equal(t, n+1, len(sess.Messages))
				return nil
			})
		}()
	}
	wg.Wait()

	// system turn plus one turn per goroutine
	assert.Len(t, s.GetOrCreate("u").Messages, 51)
}

func TestWithLockReturnsError(t *testing.T) {
	s := NewStore(testPrompt, 10)
	boom := errors.New("boom")
	err := s.WithLock("u", func(sess *Session) error { return boom })
	assert.Equal(t, boom, err)
}

func TestCleanup(t *testing.T) {
	s := NewStore(testPrompt, 10)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.GetOrCreate("live")
	s.GetOrCreate("gone")
	s.Reset("gone")

	clock = clock.Add(2 * time.Hour)
	s.Cleanup(time.Hour)

	s.mu.Lock()
	_, liveKept := s.entries["live"]
	_, goneKept := s.entries["gone"]
	s.mu.Unlock()

	assert.True(t, liveKept)
	assert.False(t, goneKept)
	assert.Equal(t, 1, s.Len())
}
