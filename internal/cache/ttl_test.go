package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time           { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*TTL[string, string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	c := NewTTL[string, string](ttl)
	c.now = clock.now
	return c, clock
}

func TestGetFreshAndExpired(t *testing.T) {
	c, clock := newTestCache(300 * time.Second)
	c.Set("golang", "result")

	clock.advance(299 * time.Second)
	v, ok := c.Get("golang")
	assert.True(t, ok)
	assert.Equal(t, "result", v)

	clock.advance(time.Second)
	_, ok = c.Get("golang")
	assert.False(t, ok)
}

func TestSetSweepsExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clock.advance(2 * time.Minute)
	c.Set("c", "3")

	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestGetOrFetch(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "fetched", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), "q", fetch)
		require.NoError(t, err)
		assert.Equal(t, "fetched", v)
	}
	assert.Equal(t, 1, calls)

	clock.advance(time.Minute)
	_, err := c.GetOrFetch(context.Background(), "q", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrFetch(context.Background(), "q", func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestAdd(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	assert.True(t, c.Add("wamid.1", "x"))
	assert.False(t, c.Add("wamid.1", "y"))
	v, _ := c.Get("wamid.1")
	assert.Equal(t, "x", v)

	clock.advance(time.Minute)
	assert.True(t, c.Add("wamid.1", "z"))
}

func TestDefaultTTL(t *testing.T) {
	c := NewTTL[int, int](0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
