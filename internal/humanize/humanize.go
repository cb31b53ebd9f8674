// Package humanize turns page actions into human-looking ones: randomised
// pauses, irregular scrolling and jittered pointer trajectories.
package humanize

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
	"github.com/spigell/zhipin-responder/internal/utils"
)

// Direction of a scroll step.
type Direction int

const (
	Down Direction = iota
	Up
)

const (
	defaultScrollMin = 200
	defaultScrollMax = 500

	bottomScrollMin     = 300
	bottomScrollMax     = 600
	correctionScrollMin = 100
	correctionScrollMax = 200
	// correctionChance is the probability of an upward correction after each
	// downward step. A perfectly monotonic scroll is itself a bot signal.
	correctionChance = 0.3

	originMaxX   = 500
	originMaxY   = 800
	minMoveSteps = 10
	maxMoveSteps = 20
	moveJitter   = 10
	clickJitter  = 5
	hoverJitter  = 10
)

var (
	scrollPause = [2]time.Duration{300 * time.Millisecond, 800 * time.Millisecond}
	stepPause   = [2]time.Duration{20 * time.Millisecond, 50 * time.Millisecond}
	aimPause    = [2]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	afterClick  = [2]time.Duration{300 * time.Millisecond, 800 * time.Millisecond}
	afterHover  = [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	afterFill   = [2]time.Duration{300 * time.Millisecond, 800 * time.Millisecond}
)

// Timer emits humanised actions against one surface. It is not meant to be
// shared between sessions.
type Timer struct {
	surface browser.Surface
	logger  *zap.Logger
	sleep   utils.Sleeper

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Timer. A nil rng or sleep falls back to a runtime-seeded
// generator and utils.WaitFor.
func New(surface browser.Surface, logger *zap.Logger, rng *rand.Rand, sleep utils.Sleeper) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = utils.NewRand()
	}
	if sleep == nil {
		sleep = utils.WaitFor
	}
	return &Timer{surface: surface, logger: logger, rng: rng, sleep: sleep}
}

// Wait pauses for a uniformly random duration in [min, max].
func (t *Timer) Wait(ctx context.Context, min, max time.Duration) error {
	t.rngMu.Lock()
	d := utils.UniformDuration(t.rng, min, max)
	t.rngMu.Unlock()

	return t.sleep(ctx, d)
}

// Intn returns a uniform int in [lo, hi] from the timer's generator.
func (t *Timer) Intn(lo, hi int) int {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return utils.UniformInt(t.rng, lo, hi)
}

func (t *Timer) chance(p float64) bool {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return t.rng.Float64() < p
}

func (t *Timer) wait(ctx context.Context, r [2]time.Duration) error {
	return t.Wait(ctx, r[0], r[1])
}
