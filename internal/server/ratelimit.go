package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter limits how often a client may open drawing sessions and how
// many slice bytes it may upload per day.
type RateLimiter struct {
	mu sync.RWMutex

	// Session rate limiting
	sessionsPerMinute int
	sessionsPerHour   int

	// Slice quotas
	maxSlicesPerDay int
	maxDataPerDay   int64 // in bytes

	clients map[string]*ClientUsage
}

// ClientUsage tracks usage for a specific client IP.
type ClientUsage struct {
	sessionsLastMinute int
	sessionsLastHour   int

	slicesToday int
	dataToday   int64 // slice bytes uploaded today

	lastSessionTime time.Time
	dayStartTime    time.Time
}

// NewRateLimiter creates a new rate limiter. A zero limit disables that check.
func NewRateLimiter(sessionsPerMinute, sessionsPerHour, maxSlicesPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		sessionsPerMinute: sessionsPerMinute,
		sessionsPerHour:   sessionsPerHour,
		maxSlicesPerDay:   maxSlicesPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
	}
}

// CheckSession records a new session for the client if its rate allows one.
func (rl *RateLimiter) CheckSession(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage := rl.getOrCreateUsage(clientID, now)
	rl.resetCountersIfNeeded(usage, now)

	if rl.sessionsPerMinute > 0 && usage.sessionsLastMinute >= rl.sessionsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.sessionsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastSessionTime),
		}
	}
	if rl.sessionsPerHour > 0 && usage.sessionsLastHour >= rl.sessionsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.sessionsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.lastSessionTime),
		}
	}

	usage.sessionsLastMinute++
	usage.sessionsLastHour++
	usage.lastSessionTime = now
	return nil
}

// CheckSlice records a slice upload of size bytes if the daily quotas allow it.
func (rl *RateLimiter) CheckSlice(clientID string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage := rl.getOrCreateUsage(clientID, now)
	rl.resetCountersIfNeeded(usage, now)

	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxSlicesPerDay > 0 && usage.slicesToday >= rl.maxSlicesPerDay {
		return &QuotaExceededError{
			Type:   "slices",
			Limit:  int64(rl.maxSlicesPerDay),
			Used:   int64(usage.slicesToday),
			Resets: resets,
		}
	}
	if rl.maxDataPerDay > 0 && usage.dataToday+size > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: resets,
		}
	}

	usage.slicesToday++
	usage.dataToday += size
	return nil
}

func (rl *RateLimiter) resetCountersIfNeeded(usage *ClientUsage, now time.Time) {
	if now.YearDay() != usage.dayStartTime.YearDay() || now.Year() != usage.dayStartTime.Year() {
		usage.slicesToday = 0
		usage.dataToday = 0
		usage.dayStartTime = now
	}

	if now.Sub(usage.lastSessionTime) >= time.Minute {
		usage.sessionsLastMinute = 0
	}
	if now.Sub(usage.lastSessionTime) >= time.Hour {
		usage.sessionsLastHour = 0
	}
}

func (rl *RateLimiter) getOrCreateUsage(clientID string, now time.Time) *ClientUsage {
	usage, exists := rl.clients[clientID]
	if !exists {
		usage = &ClientUsage{
			lastSessionTime: now,
			dayStartTime:    now,
		}
		rl.clients[clientID] = usage
	}
	return usage
}

// GetUsage returns a copy of the usage recorded for a client.
func (rl *RateLimiter) GetUsage(clientID string) ClientUsage {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if usage, exists := rl.clients[clientID]; exists {
		return *usage
	}
	return ClientUsage{}
}

// RateLimitError represents a session rate violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("session rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily slice quota violation.
type QuotaExceededError struct {
	Type   string    // "slices" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
