package app

import (
	"sync"
	"time"

	"github.com/dkeye/Messzola/internal/domain"
)

// RateLimiter is a per-user sliding window over inbound envelopes.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether uid may send one more envelope now. A nil limiter
// or a non-positive limit allows everything.
func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	rl.history[uid] = append(fresh, now)
	return true
}

// Forget drops the window of a user that went offline.
func (rl *RateLimiter) Forget(uid domain.UserID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, uid)
	rl.mu.Unlock()
}
