package humanize

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/spigell/zhipin-responder/internal/browser"
	"github.com/spigell/zhipin-responder/internal/browser/browsertest"
)

type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestTimer(page *browsertest.Page, seed uint64) (*Timer, *recordingSleeper) {
	rec := &recordingSleeper{}
	return New(page, nil, rand.New(rand.NewPCG(seed, seed+1)), rec.sleep), rec
}

func TestWaitWithinBounds(t *testing.T) {
	t.Parallel()

	timer, rec := newTestTimer(browsertest.NewPage(""), 1)
	for i := 0; i < 200; i++ {
		if err := timer.Wait(context.Background(), time.Second, 3*time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for _, d := range rec.pauses {
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("pause %s outside [1s, 3s]", d)
		}
	}
}

func TestScrollStepDefaultsAndDirection(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	timer, rec := newTestTimer(page, 2)

	if err := timer.ScrollStep(context.Background(), Down, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := timer.ScrollStep(context.Background(), Up, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scrolls := page.EventsOf(browsertest.EventScroll)
	if len(scrolls) != 2 {
		t.Fatalf("expected 2 scrolls, got %d", len(scrolls))
	}
	if scrolls[0].Y < 200 || scrolls[0].Y > 500 {
		t.Fatalf("downward distance %v outside default range", scrolls[0].Y)
	}
	if scrolls[1].Y > -200 || scrolls[1].Y < -500 {
		t.Fatalf("upward distance %v outside default range", scrolls[1].Y)
	}

	for _, d := range rec.pauses {
		if d < 300*time.Millisecond || d > 800*time.Millisecond {
			t.Fatalf("scroll pause %s outside [0.3s, 0.8s]", d)
		}
	}
}

func TestScrollToBottomInjectsCorrections(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	timer, _ := newTestTimer(page, 3)

	const steps = 200
	if err := timer.ScrollToBottom(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var down, up int
	for _, e := range page.EventsOf(browsertest.EventScroll) {
		switch {
		case e.Y >= 300 && e.Y <= 600:
			down++
		case e.Y <= -100 && e.Y >= -200:
			up++
		default:
			t.Fatalf("unexpected scroll distance %v", e.Y)
		}
	}

	if down != steps {
		t.Fatalf("expected %d downward steps, got %d", steps, down)
	}
	// 0.3 probability over 200 steps; a deterministic seed keeps this stable.
	if up == 0 || up >= down {
		t.Fatalf("expected some but not all steps corrected, got %d of %d", up, down)
	}
}

func TestMoveToReachesTargetWithJitter(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	timer, rec := newTestTimer(page, 4)

	if err := timer.MoveTo(context.Background(), 900, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	moves := page.EventsOf(browsertest.EventMove)
	if len(moves) < 10 || len(moves) > 20 {
		t.Fatalf("expected 10-20 steps, got %d", len(moves))
	}
	if len(rec.pauses) != len(moves) {
		t.Fatalf("expected one pause per step, got %d pauses for %d steps", len(rec.pauses), len(moves))
	}
	for _, d := range rec.pauses {
		if d < 20*time.Millisecond || d > 50*time.Millisecond {
			t.Fatalf("step pause %s outside [20ms, 50ms]", d)
		}
	}

	last := moves[len(moves)-1]
	if math.Abs(last.X-900) > 10 || math.Abs(last.Y-400) > 10 {
		t.Fatalf("final point (%v, %v) too far from target", last.X, last.Y)
	}
}

func TestClickUsesBoundingBox(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	page.Set(".btn-send", &browsertest.Element{Box: &browser.Box{X: 100, Y: 200, Width: 80, Height: 30}})
	timer, _ := newTestTimer(page, 5)

	if err := timer.Click(context.Background(), ".btn-send"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clicks := page.EventsOf(browsertest.EventClick)
	if len(clicks) != 1 {
		t.Fatalf("expected one click, got %d", len(clicks))
	}
	if math.Abs(clicks[0].X-140) > 5 || math.Abs(clicks[0].Y-215) > 5 {
		t.Fatalf("click (%v, %v) not within ±5 of centre", clicks[0].X, clicks[0].Y)
	}
	if len(page.EventsOf(browsertest.EventMove)) < 10 {
		t.Fatalf("expected a pointer trajectory before the click")
	}
}

func TestClickFallsBackToDirectClick(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	el := &browsertest.Element{}
	page.Set(".btn-start", el)
	timer, rec := newTestTimer(page, 6)

	if err := timer.Click(context.Background(), ".btn-start"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Clicks != 1 {
		t.Fatalf("expected direct click, got %d", el.Clicks)
	}
	if len(page.EventsOf(browsertest.EventClick)) != 0 {
		t.Fatalf("did not expect a coordinate click")
	}
	last := rec.pauses[len(rec.pauses)-1]
	if last < 300*time.Millisecond || last > 800*time.Millisecond {
		t.Fatalf("post-click pause %s outside [0.3s, 0.8s]", last)
	}
}

func TestClickMissingElement(t *testing.T) {
	t.Parallel()

	timer, _ := newTestTimer(browsertest.NewPage(""), 7)

	err := timer.Click(context.Background(), ".missing")
	if !browser.IsInteraction(err) {
		t.Fatalf("expected interaction error, got %v", err)
	}
	if !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestHoverNeverFails(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	timer, rec := newTestTimer(page, 8)

	timer.Hover(context.Background(), ".missing")

	page.Set(".card", &browsertest.Element{Box: &browser.Box{X: 0, Y: 0, Width: 100, Height: 100}})
	timer.Hover(context.Background(), ".card")

	moves := page.EventsOf(browsertest.EventMove)
	if len(moves) != 1 {
		t.Fatalf("expected one direct move, got %d", len(moves))
	}
	if math.Abs(moves[0].X-50) > 10 || math.Abs(moves[0].Y-50) > 10 {
		t.Fatalf("hover point (%v, %v) not within ±10 of centre", moves[0].X, moves[0].Y)
	}
	for _, d := range rec.pauses {
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("hover pause %s outside [0.5s, 1.5s]", d)
		}
	}
}

func TestTypeReportsFillFailure(t *testing.T) {
	t.Parallel()

	page := browsertest.NewPage("")
	page.FillErr = browsertest.ErrInjected
	timer, _ := newTestTimer(page, 9)

	err := timer.Type(context.Background(), ".ipt-phone", "13800000000")
	if !browser.IsInteraction(err) {
		t.Fatalf("expected interaction error, got %v", err)
	}
}
