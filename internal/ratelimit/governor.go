// Package ratelimit admits outbound actions through a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRequests = 10
	DefaultWindow      = 60 * time.Second
)

var (
	retryPause = [2]time.Duration{2 * time.Second, 5 * time.Second}
	// settlePause keeps admitted actions from bursting on window edges.
	settlePause = [2]time.Duration{500 * time.Millisecond, 2 * time.Second}
)

// Waiter pauses for a random duration in [min, max].
type Waiter interface {
	Wait(ctx context.Context, min, max time.Duration) error
}

// Governor allows at most maxRequests admissions in any trailing window.
type Governor struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	admitted    []time.Time

	waiter Waiter
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Governor. Non-positive limits select the defaults (10 per 60s).
func New(maxRequests int, window time.Duration, waiter Waiter, logger *zap.Logger) *Governor {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Governor{
		maxRequests: maxRequests,
		window:      window,
		waiter:      waiter,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	if now != nil {
		g.now = now
	}
	return g
}

// TryAdmit prunes expired entries and admits the action when the window has room.
// A refused call leaves the window untouched apart from pruning.
func (g *Governor) TryAdmit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if len(g.admitted) >= g.maxRequests {
		return false
	}

	g.admitted = append(g.admitted, now)
	return true
}

// AdmitBlocking retries TryAdmit with 2–5s pauses until admitted, then pauses
// another 0.5–2s. Only ctx cancellation ends it early.
func (g *Governor) AdmitBlocking(ctx context.Context) error {
	for attempt := 1; !g.TryAdmit(); attempt++ {
		g.logger.Debug("rate window full, waiting",
			zap.Int("attempt", attempt),
			zap.Int("max_requests", g.maxRequests),
			zap.Duration("window", g.window),
		)
		if err := g.waiter.Wait(ctx, retryPause[0], retryPause[1]); err != nil {
			return err
		}
	}

	return g.waiter.Wait(ctx, settlePause[0], settlePause[1])
}

// InWindow returns the number of admissions inside the trailing window.
func (g *Governor) InWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.admitted)
}

// Limits returns the configured maximum and window.
func (g *Governor) Limits() (int, time.Duration) {
	return g.maxRequests, g.window
}

func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	keep := 0
	for keep < len(g.admitted) && !g.admitted[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		g.admitted = append(g.admitted[:0], g.admitted[keep:]...)
	}
}
