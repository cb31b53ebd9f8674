// Package risk classifies what the platform currently thinks of the session.
//
// State graph:
//
//	Normal ◄──► CaptchaSuspected
//	   │               │
//	   └───────┬───────┘
//	           ▼
//	      RiskBlocked   (latched by Monitor until a new session)
//
// Classification is stateless: every check looks only at the current page.
// Monitor layers a one-way blocked latch on top of it.
package risk

import (
	"errors"
	"fmt"
	"strings"
)

// State is the outcome of one page classification.
type State int

const (
	Normal State = iota
	CaptchaSuspected
	RiskBlocked
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case CaptchaSuspected:
		return "captcha_suspected"
	case RiskBlocked:
		return "risk_blocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Page markers.
const (
	SelectorSlider       = ".geetest_slider_button"
	SelectorVerifyMarker = `[class*="verify"], [id*="verify"], .captcha`
	SelectorRiskDialog   = ".risk-dialog"
	SelectorVerifyDialog = ".verify-dialog"
	SelectorForbidden    = ".forbidden-page"
)

var blockedURLMarkers = []string{"captcha", "verify"}

// Signals is what a page shows at one moment.
type Signals struct {
	SliderChallenge bool
	VerifyMarkers   bool
	RiskDialog      bool
	VerifyDialog    bool
	ForbiddenPage   bool
	URL             string
}

// Empty reports whether no marker is present.
func (s Signals) Empty() bool {
	return !s.SliderChallenge && !s.VerifyMarkers && !s.RiskDialog &&
		!s.VerifyDialog && !s.ForbiddenPage && !urlLooksBlocked(s.URL)
}

// Classify maps signals to a state. Checks run in a fixed order: slider
// challenge, generic verification markers, then dialogs, forbidden page and
// URL. A page carrying a verify dialog also matches the generic verification
// pattern in a real browser, so it classifies as CaptchaSuspected.
func Classify(s Signals) State {
	switch {
	case s.SliderChallenge:
		return CaptchaSuspected
	case s.VerifyMarkers:
		return CaptchaSuspected
	case s.RiskDialog, s.VerifyDialog, s.ForbiddenPage, urlLooksBlocked(s.URL):
		return RiskBlocked
	default:
		return Normal
	}
}

// Reason names the first signal that drove the classification.
func Reason(s Signals) string {
	switch {
	case s.SliderChallenge:
		return "slider challenge"
	case s.VerifyMarkers:
		return "verification marker"
	case s.RiskDialog:
		return "risk-control dialog"
	case s.VerifyDialog:
		return "verification dialog"
	case s.ForbiddenPage:
		return "forbidden page"
	case urlLooksBlocked(s.URL):
		return "verification url"
	default:
		return ""
	}
}

func urlLooksBlocked(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range blockedURLMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ErrDetected matches every DetectedError through errors.Is.
var ErrDetected = errors.New("risk detected")

// DetectedError halts the current operation. It is never retried.
type DetectedError struct {
	State  State
	Reason string
}

func (e *DetectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("risk detected: %s", e.State)
	}
	return fmt.Sprintf("risk detected: %s (%s)", e.State, e.Reason)
}

func (e *DetectedError) Is(target error) bool { return target == ErrDetected }

// IsBlocked reports whether err carries a RiskBlocked detection.
func IsBlocked(err error) bool {
	var de *DetectedError
	return errors.As(err, &de) && de.State == RiskBlocked
}
