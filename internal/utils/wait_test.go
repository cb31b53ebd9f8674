package utils

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestWaitForHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	t.Parallel()

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUniformDurationStaysInRange(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	lo, hi := 300*time.Millisecond, 800*time.Millisecond

	for i := 0; i < 1000; i++ {
		d := UniformDuration(rng, lo, hi)
		if d < lo || d > hi {
			t.Fatalf("duration %s outside [%s, %s]", d, lo, hi)
		}
	}

	if d := UniformDuration(rng, hi, lo); d < lo || d > hi {
		t.Fatalf("swapped bounds produced %s", d)
	}
}

func TestUniformIntInclusive(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := UniformInt(rng, -2, 2)
		if v < -2 || v > 2 {
			t.Fatalf("value %d outside [-2, 2]", v)
		}
		seen[v] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every value in range to appear, saw %v", seen)
	}
}
