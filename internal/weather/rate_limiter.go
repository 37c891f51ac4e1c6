package weather

import (
	"sync"
	"time"
)

const (
	DefaultDailyLimit = 999
	DefaultWindow     = 24 * time.Hour
)

// Clock returns the current time. Tests substitute a fake one.
type Clock func() time.Time

// LimitStatus is the outcome of a limiter check.
type LimitStatus struct {
	Allowed   bool
	Used      int
	Remaining int
	Limit     int
	ResetAt   time.Time
	// Since is when Used started counting: limiter creation for the first
	// window, the rolling Check afterwards.
	Since time.Time
	// At is the clock reading the status was computed for.
	At time.Time
}

// RateLimiter counts outbound provider calls in a fixed window.
//
// Check runs before the provider call and Increment after a successful one.
// Increment does not guard the capacity, callers must Check first.
type RateLimiter struct {
	mu          sync.Mutex
	used        int
	since       time.Time
	windowStart time.Time
	window      time.Duration
	limit       int
	clock       Clock
}

// NewRateLimiter starts the first window at the next local midnight after now.
func NewRateLimiter(limit int, window time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	now := clock()
	return &RateLimiter{
		since:       now,
		windowStart: nextMidnight(now),
		window:      window,
		limit:       limit,
		clock:       clock,
	}
}

// Check rolls the window if it has elapsed and reports whether another
// outbound call fits in it.
func (l *RateLimiter) Check() LimitStatus {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !now.Before(l.windowStart.Add(l.window)) {
		l.windowStart = now
		l.since = now
		l.used = 0
	}

	return l.statusLocked(now)
}

// Increment records one outbound call.
func (l *RateLimiter) Increment() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used++
}

// Snapshot reports the current counters without rolling the window.
func (l *RateLimiter) Snapshot() LimitStatus {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked(now)
}

// Window is the length of a counting window.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}

func (l *RateLimiter) statusLocked(now time.Time) LimitStatus {
	return LimitStatus{
		Allowed:   l.used < l.limit,
		Used:      l.used,
		Remaining: max(0, l.limit-l.used),
		Limit:     l.limit,
		ResetAt:   l.windowStart.Add(l.window),
		Since:     l.since,
		At:        now,
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
