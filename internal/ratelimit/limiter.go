// Package ratelimit implements the admission control for outbound
// translation calls: a sliding one-minute window plus a daily counter
// that resets at UTC date rollover.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// MinuteLimitError is returned when the trailing 60s window is full.
// Wait is how long until the oldest recorded call ages out.
type MinuteLimitError struct {
	Wait time.Duration
}

func (e *MinuteLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: please wait %s", e.Wait)
}

// DailyLimitError is returned when the per-day budget is spent.
type DailyLimitError struct {
	Used int
	Max  int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit exceeded: %d/%d requests used today", e.Used, e.Max)
}

// Limiter tracks call timestamps within the trailing minute and a daily
// counter. All checks and updates happen under one mutex so concurrent
// dispatches cannot both observe spare capacity and both proceed.
type Limiter struct {
	mu           sync.Mutex
	requests     []time.Time
	dailyCount   int
	lastReset    time.Time
	maxPerMinute int
	maxPerDay    int

	now func() time.Time
}

func New(maxPerMinute, maxPerDay int) *Limiter {
	return &Limiter{
		requests:     make([]time.Time, 0, min(maxPerMinute, 1000)),
		lastReset:    time.Now().UTC(),
		maxPerMinute: maxPerMinute,
		maxPerDay:    maxPerDay,
		now:          time.Now,
	}
}

// Admit checks both limits and, on success, records the call. Check and
// record are a single step under the lock.
func (l *Limiter) Admit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollDayLocked(now)
	l.trimWindowLocked(now)

	if len(l.requests) >= l.maxPerMinute {
		oldest := l.requests[0]
		wait := time.Minute - now.Sub(oldest)
		if wait < 0 {
			wait = 0
		}
		return &MinuteLimitError{Wait: wait}
	}

	if l.dailyCount >= l.maxPerDay {
		return &DailyLimitError{Used: l.dailyCount, Max: l.maxPerDay}
	}

	l.requests = append(l.requests, now)
	l.dailyCount++
	return nil
}

// rollDayLocked resets the daily counter the first time the limiter is
// consulted on a new UTC calendar day. The minute window is cleared too.
func (l *Limiter) rollDayLocked(now time.Time) {
	nowUTC := now.UTC()
	y1, m1, d1 := l.lastReset.Date()
	y2, m2, d2 := nowUTC.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		l.dailyCount = 0
		l.lastReset = nowUTC
		l.requests = l.requests[:0]
	}
}

// trimWindowLocked drops timestamps older than one minute. The slice is
// append-only and ordered, so the survivors are a suffix.
func (l *Limiter) trimWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}

func (l *Limiter) RemainingThisMinute() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trimWindowLocked(l.now())
	if n := l.maxPerMinute - len(l.requests); n > 0 {
		return n
	}
	return 0
}

func (l *Limiter) RemainingToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked(l.now())
	if n := l.maxPerDay - l.dailyCount; n > 0 {
		return n
	}
	return 0
}

// NextAvailable reports how long until a minute-window slot frees up, or
// zero if a call could be admitted right now.
func (l *Limiter) NextAvailable() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.trimWindowLocked(now)
	if len(l.requests) >= l.maxPerMinute {
		wait := time.Minute - now.Sub(l.requests[0])
		if wait > 0 {
			return wait
		}
	}
	return 0
}

// SetLimits reconfigures both budgets without touching recorded state.
func (l *Limiter) SetLimits(maxPerMinute, maxPerDay int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPerMinute = maxPerMinute
	l.maxPerDay = maxPerDay
}

type Stats struct {
	RequestsThisMinute int       `json:"requests_this_minute"`
	RequestsToday      int       `json:"requests_today"`
	MaxPerMinute       int       `json:"max_per_minute"`
	MaxPerDay          int       `json:"max_per_day"`
	LastReset          time.Time `json:"last_reset"`
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trimWindowLocked(l.now())
	return Stats{
		RequestsThisMinute: len(l.requests),
		RequestsToday:      l.dailyCount,
		MaxPerMinute:       l.maxPerMinute,
		MaxPerDay:          l.maxPerDay,
		LastReset:          l.lastReset,
	}
}
