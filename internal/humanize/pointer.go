package humanize

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// MoveTo drags the pointer from a random origin to (x, y) through 10–20
// jittered intermediate points with 20–50ms between them.
func (t *Timer) MoveTo(ctx context.Context, x, y float64) error {
	originX := float64(t.Intn(0, originMaxX))
	originY := float64(t.Intn(0, originMaxY))
	steps := t.Intn(minMoveSteps, maxMoveSteps)

	for i := 1; i <= steps; i++ {
		progress := float64(i) / float64(steps)
		px := originX + (x-originX)*progress + float64(t.Intn(-moveJitter, moveJitter))
		py := originY + (y-originY)*progress + float64(t.Intn(-moveJitter, moveJitter))

		if err := t.surface.MoveMouse(px, py); err != nil {
			return browser.Interaction("move", "", err)
		}

		if err := t.wait(ctx, stepPause); err != nil {
			return err
		}
	}

	return nil
}

// Click locates the first match of selector and clicks it like a person.
func (t *Timer) Click(ctx context.Context, selector string) error {
	el, err := t.surface.QueryOne(selector)
	if err != nil {
		return browser.Interaction("click", selector, err)
	}
	if el == nil {
		return browser.NotFound("click", selector)
	}

	return t.ClickElement(ctx, el)
}

// ClickElement aims near the centre of el (±5), moves there, pauses and
// clicks. Without a bounding box it falls back to a direct click.
func (t *Timer) ClickElement(ctx context.Context, el browser.Element) error {
	box, err := el.BoundingBox()
	if err != nil {
		t.logger.Debug("bounding box unavailable, clicking directly", zap.Error(err))
		box = nil
	}

	if box != nil {
		cx, cy := box.Center()
		x := cx + float64(t.Intn(-clickJitter, clickJitter))
		y := cy + float64(t.Intn(-clickJitter, clickJitter))

		if err := t.MoveTo(ctx, x, y); err != nil {
			return err
		}
		if err := t.wait(ctx, aimPause); err != nil {
			return err
		}
		if err := t.surface.ClickAt(x, y); err != nil {
			return browser.Interaction("click", "", err)
		}
	} else if err := el.Click(); err != nil {
		return browser.Interaction("click", "", err)
	}

	return t.wait(ctx, afterClick)
}

// Hover rests the pointer near the centre of the first match (±10) and
// lingers 0.5–1.5s. It never fails.
func (t *Timer) Hover(ctx context.Context, selector string) {
	el, err := t.surface.QueryOne(selector)
	if err == nil && el != nil {
		if box, berr := el.BoundingBox(); berr == nil && box != nil {
			cx, cy := box.Center()
			x := cx + float64(t.Intn(-hoverJitter, hoverJitter))
			y := cy + float64(t.Intn(-hoverJitter, hoverJitter))
			if merr := t.surface.MoveMouse(x, y); merr != nil {
				t.logger.Debug("hover move failed", zap.String("selector", selector), zap.Error(merr))
			}
		}
	} else {
		t.logger.Debug("hover target unavailable", zap.String("selector", selector), zap.Error(err))
	}

	_ = t.wait(ctx, afterHover)
}

// Type fills a text field and pauses 0.3–0.8s.
func (t *Timer) Type(ctx context.Context, selector, text string) error {
	if err := t.surface.Fill(selector, text); err != nil {
		return browser.Interaction("fill", selector, err)
	}
	return t.wait(ctx, afterFill)
}
