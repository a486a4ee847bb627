package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimitWindow = time.Minute
	rateLimitMax    = 10
)

// limiter allows each user a burst of n messages, refilled over window.
type limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*userLimiter
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLimiter(n int, window time.Duration) *limiter {
	return &limiter{
		limit: rate.Every(window / time.Duration(n)),
		burst: n,
		now:   time.Now,
		users: make(map[string]*userLimiter),
	}
}

func (l *limiter) Allow(user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u, ok := l.users[user]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.users[user] = u
	}
	u.lastSeen = now
	return u.lim.AllowN(now, 1)
}

// Cleanup removes users not seen within maxAge.
func (l *limiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for user, u := range l.users {
		if now.Sub(u.lastSeen) > maxAge {
			delete(l.users, user)
		}
	}
}
