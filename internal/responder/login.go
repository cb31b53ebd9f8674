package responder

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// Login signs in with phone and password. It reports false without error
// when the site does not accept the credentials, and a risk.DetectedError
// when a challenge appears.
func (s *Session) Login(ctx context.Context, phone, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return false, err
	}

	if err := s.ensureNotBlocked(); err != nil {
		return false, err
	}

	s.logger.Info("logging in")
	if err := s.governor.AdmitBlocking(ctx); err != nil {
		return false, err
	}
	if err := s.open(ctx, zhipin.HomeURL, s.opts.NavigationTimeout, afterLanding); err != nil {
		return false, err
	}

	if err := s.retry(ctx, "open login form", func() error {
		return s.timer.Click(ctx, zhipin.SelectorLoginEntry)
	}); err != nil {
		return false, err
	}
	if err := s.timer.Wait(ctx, afterLoginEntry[0], afterLoginEntry[1]); err != nil {
		return false, err
	}

	if err := s.retry(ctx, "fill phone", func() error {
		return s.timer.Type(ctx, zhipin.SelectorPhoneInput, phone)
	}); err != nil {
		return false, err
	}
	if err := s.retry(ctx, "fill password", func() error {
		return s.timer.Type(ctx, zhipin.SelectorPasswordInput, password)
	}); err != nil {
		return false, err
	}
	if err := s.retry(ctx, "submit login", func() error {
		return s.timer.Click(ctx, zhipin.SelectorLoginSubmit)
	}); err != nil {
		return false, err
	}

	if err := s.timer.Wait(ctx, afterLoginSubmit[0], afterLoginSubmit[1]); err != nil {
		return false, err
	}
	if err := s.checkRisk(); err != nil {
		s.logger.Warn("challenge during login", zap.Error(err))
		return false, err
	}

	s.succeeded()
	if !strings.Contains(s.page.URL(), zhipin.Host) {
		s.logger.Warn("login was not accepted", zap.String("url", s.page.URL()))
		return false, nil
	}

	s.loggedIn = true
	s.saveCookies(ctx)
	s.logger.Info("logged in")
	return true, nil
}

// CheckLogin opens the home page and looks for an account marker. Any
// failure reads as not logged in; a ban page also latches the session as
// blocked.
func (s *Session) CheckLogin(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready() != nil {
		return false
	}
	s.loggedIn = s.checkLogin(ctx)
	return s.loggedIn
}

func (s *Session) checkLogin(ctx context.Context) bool {
	if s.monitor.Blocked() {
		return false
	}
	if err := s.governor.AdmitBlocking(ctx); err != nil {
		return false
	}
	if err := s.page.Navigate(zhipin.HomeURL, loginCheckTimeout); err != nil {
		s.logger.Debug("login check navigation failed", zap.Error(err))
		return false
	}
	if err := s.checkRisk(); err != nil {
		s.logger.Warn("home page flagged", zap.Error(err))
		return false
	}
	for _, selector := range zhipin.LoggedInSelectors {
		if el, err := s.page.QueryOne(selector); err == nil && el != nil {
			return true
		}
	}
	return false
}
