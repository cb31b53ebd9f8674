package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// clockWaiter advances the fake clock by the lower bound of every pause.
type clockWaiter struct {
	clock  *fakeClock
	pauses [][2]time.Duration
}

func (w *clockWaiter) Wait(ctx context.Context, min, max time.Duration) error {
	w.pauses = append(w.pauses, [2]time.Duration{min, max})
	w.clock.advance(min)
	return ctx.Err()
}

func newTestGovernor(max int, window time.Duration) (*Governor, *fakeClock, *clockWaiter) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	waiter := &clockWaiter{clock: clock}
	g := New(max, window, waiter, nil)
	g.now = clock.now
	return g, clock, waiter
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	g := New(0, 0, nil, nil)
	max, window := g.Limits()
	if max != DefaultMaxRequests || window != DefaultWindow {
		t.Fatalf("expected defaults, got %d per %s", max, window)
	}
}

func TestTryAdmitRefusesWhenFull(t *testing.T) {
	t.Parallel()

	g, clock, _ := newTestGovernor(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !g.TryAdmit() {
			t.Fatalf("admission %d refused", i+1)
		}
		clock.advance(time.Second)
	}

	if g.TryAdmit() {
		t.Fatalf("expected fourth admission to be refused")
	}
	if got := g.InWindow(); got != 3 {
		t.Fatalf("refusal must not mutate the window, got %d entries", got)
	}

	// First entry was admitted at t0; it leaves the window at t0+60s.
	clock.advance(57 * time.Second)
	if !g.TryAdmit() {
		t.Fatalf("expected admission once the oldest entry expired")
	}
}

func TestWindowNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	configs := []struct {
		max    int
		window time.Duration
	}{
		{1, time.Second},
		{5, 10 * time.Second},
		{10, time.Minute},
	}

	for _, cfg := range configs {
		g, clock, _ := newTestGovernor(cfg.max, cfg.window)
		rng := rand.New(rand.NewPCG(uint64(cfg.max), 7))
		var admitted []time.Time

		for i := 0; i < 2000; i++ {
			clock.advance(time.Duration(rng.Int64N(int64(cfg.window / 4))))
			if g.TryAdmit() {
				admitted = append(admitted, clock.t)
			}

			cutoff := clock.t.Add(-cfg.window)
			inWindow := 0
			for _, ts := range admitted {
				if ts.After(cutoff) {
					inWindow++
				}
			}
			if inWindow > cfg.max {
				t.Fatalf("max=%d window=%s: %d admissions in trailing window", cfg.max, cfg.window, inWindow)
			}
		}
	}
}

func TestAdmitBlockingWaitsForRoom(t *testing.T) {
	t.Parallel()

	g, _, waiter := newTestGovernor(1, 10*time.Second)

	if err := g.AdmitBlocking(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waiter.pauses) != 1 || waiter.pauses[0] != settlePause {
		t.Fatalf("expected a single settle pause, got %v", waiter.pauses)
	}

	waiter.pauses = nil
	if err := g.AdmitBlocking(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	retries := len(waiter.pauses) - 1
	if retries < 1 {
		t.Fatalf("expected at least one retry pause, got %v", waiter.pauses)
	}
	for _, p := range waiter.pauses[:retries] {
		if p != retryPause {
			t.Fatalf("expected retry pause %v, got %v", retryPause, p)
		}
	}
	if waiter.pauses[retries] != settlePause {
		t.Fatalf("expected trailing settle pause, got %v", waiter.pauses[retries])
	}
}

func TestAdmitBlockingStopsOnCancel(t *testing.T) {
	t.Parallel()

	g, _, _ := newTestGovernor(1, time.Hour)
	if !g.TryAdmit() {
		t.Fatalf("expected first admission")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.AdmitBlocking(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
