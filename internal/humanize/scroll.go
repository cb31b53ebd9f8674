package humanize

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// ScrollStep scrolls once by a distance drawn from [minDist, maxDist] and
// pauses 0.3–0.8s. Zero bounds select the 200–500 default.
func (t *Timer) ScrollStep(ctx context.Context, dir Direction, minDist, maxDist int) error {
	if minDist <= 0 && maxDist <= 0 {
		minDist, maxDist = defaultScrollMin, defaultScrollMax
	}

	distance := float64(t.Intn(minDist, maxDist))
	if dir == Up {
		distance = -distance
	}

	if err := t.surface.ScrollBy(0, distance); err != nil {
		return browser.Interaction("scroll", "", err)
	}

	return t.wait(ctx, scrollPause)
}

// ScrollToBottom performs steps downward scrolls of 300–600, each followed
// with probability 0.3 by an upward correction of 100–200.
func (t *Timer) ScrollToBottom(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := t.ScrollStep(ctx, Down, bottomScrollMin, bottomScrollMax); err != nil {
			return err
		}

		if t.chance(correctionChance) {
			if err := t.ScrollStep(ctx, Up, correctionScrollMin, correctionScrollMax); err != nil {
				return err
			}
		}
	}

	return nil
}

// ScrollToElement brings the first match of selector towards the viewport.
// Best-effort: failures are logged and swallowed.
func (t *Timer) ScrollToElement(ctx context.Context, selector string) {
	el, err := t.surface.QueryOne(selector)
	if err != nil || el == nil {
		t.logger.Debug("scroll to element skipped", zap.String("selector", selector), zap.Error(err))
		return
	}

	box, err := el.BoundingBox()
	if err != nil || box == nil {
		t.logger.Debug("scroll to element skipped", zap.String("selector", selector), zap.Error(err))
		return
	}

	if err := t.surface.ScrollBy(0, box.Y-float64(originMaxY)/2); err != nil {
		t.logger.Debug("scroll to element failed", zap.String("selector", selector), zap.Error(err))
		return
	}

	_ = t.wait(ctx, scrollPause)
}
