package risk

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// Collect reads the risk markers of the current page. Query failures count
// as "marker absent": a page that cannot be inspected is not evidence of a
// block.
func Collect(surface browser.Surface) Signals {
	return Signals{
		SliderChallenge: present(surface, SelectorSlider),
		VerifyMarkers:   present(surface, SelectorVerifyMarker),
		RiskDialog:      present(surface, SelectorRiskDialog),
		VerifyDialog:    present(surface, SelectorVerifyDialog),
		ForbiddenPage:   present(surface, SelectorForbidden),
		URL:             surface.URL(),
	}
}

func present(surface browser.Surface, selector string) bool {
	el, err := surface.QueryOne(selector)
	return err == nil && el != nil
}

// Monitor tracks one session's risk. Once RiskBlocked has been observed the
// blocked latch stays set until the session is replaced.
type Monitor struct {
	mu      sync.Mutex
	last    State
	blocked bool
	logger  *zap.Logger
}

// NewMonitor returns a monitor in the Normal state.
func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{logger: logger}
}

// Check classifies the surface's current page and records the result.
func (m *Monitor) Check(surface browser.Surface) (State, Signals) {
	signals := Collect(surface)
	state := m.Observe(signals)
	return state, signals
}

// Observe records a classification of signals.
func (m *Monitor) Observe(signals Signals) State {
	state := Classify(signals)

	m.mu.Lock()
	m.last = state
	latched := state == RiskBlocked && !m.blocked
	if state == RiskBlocked {
		m.blocked = true
	}
	m.mu.Unlock()

	switch {
	case latched:
		m.logger.Warn("session blocked by platform",
			zap.String("reason", Reason(signals)),
			zap.String("url", signals.URL),
		)
	case state == CaptchaSuspected:
		m.logger.Warn("captcha suspected",
			zap.String("reason", Reason(signals)),
			zap.String("url", signals.URL),
		)
	}

	return state
}

// Last returns the most recent classification.
func (m *Monitor) Last() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Blocked reports the sticky latch.
func (m *Monitor) Blocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocked
}

// SolveChallenge never solves anything; challenges are left to a human.
func (m *Monitor) SolveChallenge() bool {
	m.logger.Info("challenge requires manual solving")
	return false
}
