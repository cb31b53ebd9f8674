// Package session enforces per-session outreach quotas.
package session

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxOutreach = 20
	DefaultMaxDuration = 30 * time.Minute
)

// Guard holds one session's action budget. Both counters only move forward;
// Start begins a fresh budget.
type Guard struct {
	mu          sync.Mutex
	maxOutreach int
	maxDuration time.Duration
	count       int
	started     time.Time
	now         func() time.Time
}

// NewGuard returns a guard with the given ceilings; non-positive values fall
// back to the defaults. The session clock starts immediately.
func NewGuard(maxOutreach int, maxDuration time.Duration) *Guard {
	if maxOutreach <= 0 {
		maxOutreach = DefaultMaxOutreach
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	g := &Guard{maxOutreach: maxOutreach, maxDuration: maxDuration, now: time.Now}
	g.started = g.now()
	return g
}

// WithClock replaces the time source and restarts the session clock.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	if now != nil {
		g.mu.Lock()
		g.now = now
		g.started = now()
		g.mu.Unlock()
	}
	return g
}

// Start resets the budget for a new session.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
	g.started = g.now()
}

// CanPerformOutreach is false once the outreach ceiling is reached or the
// session has run longer than its duration ceiling.
func (g *Guard) CanPerformOutreach() bool {
	return g.Reason() == ""
}

// Reason explains a refusal; it is empty while outreach is allowed.
func (g *Guard) Reason() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count >= g.maxOutreach {
		return fmt.Sprintf("outreach limit reached (%d/%d)", g.count, g.maxOutreach)
	}
	if elapsed := g.now().Sub(g.started); elapsed > g.maxDuration {
		return fmt.Sprintf("session duration exceeded (%s > %s)", elapsed.Round(time.Second), g.maxDuration)
	}
	return ""
}

// RecordOutreach counts one confirmed outreach.
func (g *Guard) RecordOutreach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
}

// Count returns the outreach actions recorded so far.
func (g *Guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Remaining returns how many outreach actions are left before the ceiling.
func (g *Guard) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if left := g.maxOutreach - g.count; left > 0 {
		return left
	}
	return 0
}

// Elapsed returns the time since the session started.
func (g *Guard) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Sub(g.started)
}
