// Package responder drives one browser session against the job site. Every
// outbound action passes the rate governor and the session guard, every page
// load is checked by the risk monitor, and every click, scroll and keystroke
// goes through the humanizing timer.
package responder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
	"github.com/spigell/zhipin-responder/internal/cookies"
	"github.com/spigell/zhipin-responder/internal/humanize"
	"github.com/spigell/zhipin-responder/internal/logger"
	"github.com/spigell/zhipin-responder/internal/proxy"
	"github.com/spigell/zhipin-responder/internal/ratelimit"
	"github.com/spigell/zhipin-responder/internal/risk"
	"github.com/spigell/zhipin-responder/internal/session"
	"github.com/spigell/zhipin-responder/internal/utils"
)

const (
	DefaultMaxErrors         = 3
	DefaultNavigationTimeout = 30 * time.Second

	loginCheckTimeout = 10 * time.Second
	detailTimeout     = 15 * time.Second
)

var (
	ErrSessionAborted  = errors.New("session aborted after repeated interaction failures")
	ErrNotStarted      = errors.New("session is not started")
	ErrProfileRequired = errors.New("profile is required")
	ErrNoListingID     = errors.New("listing has no id")
)

var (
	retryBackoff     = [2]time.Duration{5 * time.Second, 15 * time.Second}
	afterLanding     = [2]time.Duration{2 * time.Second, 4 * time.Second}
	afterLoginEntry  = [2]time.Duration{1 * time.Second, 2 * time.Second}
	afterLoginSubmit = [2]time.Duration{3 * time.Second, 5 * time.Second}
	afterCard        = [2]time.Duration{100 * time.Millisecond, 300 * time.Millisecond}
	afterDetail      = [2]time.Duration{2 * time.Second, 3 * time.Second}
	afterDescription = [2]time.Duration{1 * time.Second, 2 * time.Second}
	afterStartChat   = [2]time.Duration{1 * time.Second, 2 * time.Second}
	afterMessage     = [2]time.Duration{500 * time.Millisecond, 1 * time.Second}
	afterSend        = [2]time.Duration{1 * time.Second, 2 * time.Second}
	betweenListings  = [2]time.Duration{2 * time.Second, 5 * time.Second}
)

// Options tune one session. Zero values select the defaults.
type Options struct {
	Headless          bool
	AntiDetection     bool
	UserAgent         string
	NavigationTimeout time.Duration
	// MaxErrors is the number of consecutive interaction failures tolerated
	// before the session aborts.
	MaxErrors int
	// Rate and quota limits; see ratelimit.New and session.NewGuard for the
	// defaults.
	MaxRequests int
	Window      time.Duration
	MaxOutreach int
	MaxDuration time.Duration
	// FullDescription makes scoring open every listing page for its full text.
	FullDescription bool
}

// Deps are the collaborators of a session. Only Launcher is required.
type Deps struct {
	Launcher browser.Launcher
	Proxies  *proxy.Rotator
	Cookies  cookies.Store
	Logger   *zap.Logger
	Rand     *rand.Rand
	Sleep    utils.Sleeper
	Now      func() time.Time
}

// Session owns one browser page. Its methods serialize on an internal lock,
// so at most one action is in flight at any time.
type Session struct {
	id     string
	opts   Options
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	page     browser.Page
	timer    *humanize.Timer
	governor *ratelimit.Governor
	guard    *session.Guard
	monitor  *risk.Monitor
	endpoint *proxy.Endpoint
	loggedIn bool
	failures int
	aborted  bool
}

// New prepares a session; nothing is launched until Start.
func New(opts Options, deps Deps) *Session {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	if deps.Rand == nil {
		deps.Rand = utils.NewRand()
	}
	if deps.Sleep == nil {
		deps.Sleep = utils.WaitFor
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		opts:   opts,
		deps:   deps,
		logger: logger.WithSessionFields(deps.Logger, id, ""),
	}
}

// ID returns the session handle.
func (s *Session) ID() string { return s.id }

// Start launches the browser with a fresh fingerprint, restores cookies and
// checks whether the stored cookies still hold a login. Starting a running
// session closes the old page first and resets every budget.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deps.Launcher == nil {
		return errors.New("no browser launcher configured")
	}
	if s.page != nil {
		s.closePage()
	}

	fp := newFingerprint(s.deps.Rand, s.opts.AntiDetection)
	if s.opts.UserAgent != "" {
		fp.UserAgent = s.opts.UserAgent
	}
	launch := browser.LaunchOptions{
		Headless:  s.opts.Headless,
		UserAgent: fp.UserAgent,
		Width:     fp.Width,
		Height:    fp.Height,
		Locale:    fingerprintLocale,
	}

	s.endpoint = nil
	proxyLabel := ""
	if s.deps.Proxies != nil {
		if ep, ok := s.deps.Proxies.Next(); ok {
			s.endpoint = &ep
			proxyLabel = ep.String()
			launch.Proxy = &browser.Proxy{Server: ep.Server(), Username: ep.Username, Password: ep.Password}
		}
	}
	s.logger = logger.WithSessionFields(s.deps.Logger, s.id, proxyLabel)

	page, err := s.deps.Launcher.Launch(ctx, launch)
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	s.page = page

	s.timer = humanize.New(page, s.logger, s.deps.Rand, s.deps.Sleep)
	s.governor = ratelimit.New(s.opts.MaxRequests, s.opts.Window, s.timer, s.logger).WithClock(s.deps.Now)
	s.guard = session.NewGuard(s.opts.MaxOutreach, s.opts.MaxDuration).WithClock(s.deps.Now)
	s.monitor = risk.NewMonitor(s.logger)
	s.failures = 0
	s.aborted = false
	s.loggedIn = false

	if s.opts.AntiDetection {
		if err := page.SetViewport(fp.JitteredWidth, fp.JitteredHeight); err != nil {
			s.closePage()
			return fmt.Errorf("setting viewport: %w", err)
		}
		if err := page.InjectStartupScript(stealthScript); err != nil {
			s.closePage()
			return fmt.Errorf("injecting startup script: %w", err)
		}
	}

	s.restoreCookies(ctx)
	s.loggedIn = s.checkLogin(ctx)
	s.guard.Start()

	s.logger.Info("session started",
		zap.String("user_agent", fp.UserAgent),
		zap.Int("width", fp.Width),
		zap.Int("height", fp.Height),
		zap.Bool("anti_detection", s.opts.AntiDetection),
		zap.Bool("logged_in", s.loggedIn),
	)
	return nil
}

// Close releases the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closePage()
}

func (s *Session) closePage() error {
	if s.page == nil {
		return nil
	}
	err := s.page.Close()
	s.page = nil
	s.logger.Info("session closed")
	return err
}

// Status is a snapshot of the session budgets.
type Status struct {
	ID        string        `json:"session_id"`
	Started   bool          `json:"started"`
	LoggedIn  bool          `json:"logged_in"`
	Risk      string        `json:"risk"`
	Outreach  int           `json:"outreach"`
	Remaining int           `json:"remaining"`
	Elapsed   time.Duration `json:"elapsed"`
	Proxy     string        `json:"proxy,omitempty"`
	Aborted   bool          `json:"aborted"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{ID: s.id, Started: s.page != nil, LoggedIn: s.loggedIn, Aborted: s.aborted, Risk: risk.Normal.String()}
	if s.monitor != nil {
		st.Risk = s.monitor.Last().String()
		if s.monitor.Blocked() {
			st.Risk = risk.RiskBlocked.String()
		}
	}
	if s.guard != nil {
		st.Outreach = s.guard.Count()
		st.Remaining = s.guard.Remaining()
		st.Elapsed = s.guard.Elapsed()
	}
	if s.endpoint != nil {
		st.Proxy = s.endpoint.String()
	}
	return st
}

// ready is called with the lock held at the top of every action.
func (s *Session) ready() error {
	if s.page == nil {
		return ErrNotStarted
	}
	if s.aborted {
		return ErrSessionAborted
	}
	return nil
}

func (s *Session) ensureNotBlocked() error {
	if s.monitor.Blocked() {
		return &risk.DetectedError{State: risk.RiskBlocked, Reason: "session was blocked earlier"}
	}
	return nil
}

// checkRisk inspects the current page and turns any risk signal into a
// DetectedError. Challenges are never solved automatically.
func (s *Session) checkRisk() error {
	state, signals := s.monitor.Check(s.page)
	switch state {
	case risk.RiskBlocked:
		return &risk.DetectedError{State: state, Reason: risk.Reason(signals)}
	case risk.CaptchaSuspected:
		if s.monitor.SolveChallenge() {
			return nil
		}
		return &risk.DetectedError{State: state, Reason: risk.Reason(signals)}
	}
	return nil
}

// retry runs fn until it succeeds. Interaction failures are retried after a
// 5–15s backoff unless the page now shows a risk signal; once MaxErrors
// consecutive failures pile up the session aborts. Other errors return as is.
func (s *Session) retry(ctx context.Context, op string, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !browser.IsInteraction(err) {
			return err
		}
		if rerr := s.checkRisk(); rerr != nil {
			return rerr
		}

		s.failures++
		s.logger.Warn("interaction failed",
			zap.String("op", op),
			zap.Int("failures", s.failures),
			zap.Int("max_errors", s.opts.MaxErrors),
			zap.Error(err),
		)
		if s.failures >= s.opts.MaxErrors {
			s.aborted = true
			s.logger.Error("aborting session", zap.String("op", op))
			return fmt.Errorf("%w: %w", ErrSessionAborted, err)
		}

		if werr := s.timer.Wait(ctx, retryBackoff[0], retryBackoff[1]); werr != nil {
			return werr
		}
	}
}

// succeeded clears the consecutive failure count.
func (s *Session) succeeded() {
	s.failures = 0
}

// open navigates with retries, lingers and checks the landing page.
func (s *Session) open(ctx context.Context, url string, timeout time.Duration, pause [2]time.Duration) error {
	err := s.retry(ctx, "navigate", func() error {
		return browser.Interaction("navigate", "", s.page.Navigate(url, timeout))
	})
	if err != nil {
		return err
	}
	if err := s.timer.Wait(ctx, pause[0], pause[1]); err != nil {
		return err
	}
	return s.checkRisk()
}

func (s *Session) restoreCookies(ctx context.Context) {
	if s.deps.Cookies == nil {
		return
	}
	jar, err := s.deps.Cookies.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load cookies", zap.Error(err))
		return
	}
	if len(jar) == 0 {
		return
	}
	if err := s.page.SetCookies(jar); err != nil {
		s.logger.Warn("failed to restore cookies", zap.Error(err))
		return
	}
	s.logger.Debug("cookies restored", zap.Int("count", len(jar)))
}

func (s *Session) saveCookies(ctx context.Context) {
	if s.deps.Cookies == nil {
		return
	}
	jar, err := s.page.Cookies()
	if err != nil {
		s.logger.Warn("failed to read cookies", zap.Error(err))
		return
	}
	if err := s.deps.Cookies.Save(ctx, jar); err != nil {
		s.logger.Warn("failed to save cookies", zap.Error(err))
		return
	}
	s.logger.Debug("cookies saved", zap.Int("count", len(jar)))
}
