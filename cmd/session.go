package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser/playwright"
	"github.com/spigell/zhipin-responder/internal/cookies"
	"github.com/spigell/zhipin-responder/internal/proxy"
	"github.com/spigell/zhipin-responder/internal/responder"
	"github.com/spigell/zhipin-responder/internal/secrets"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

// normalize replaces missing config sections with empty ones.
func normalize(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	if config.Search == nil {
		config.Search = &zhipin.SearchParams{}
	}
	if config.Account == nil {
		config.Account = &AccountConfig{}
	}
	if config.Browser == nil {
		config.Browser = &BrowserConfig{AntiDetection: true}
	}
	if config.Proxy == nil {
		config.Proxy = &ProxyConfig{}
	}
	if config.Rate == nil {
		config.Rate = &RateConfig{}
	}
	if config.Session == nil {
		config.Session = &SessionConfig{}
	}
	if config.Cookies == nil {
		config.Cookies = &CookiesConfig{}
	}
	if config.Apply == nil {
		config.Apply = &ApplyConfig{}
	}
	if config.Apply.Exclude == nil {
		config.Apply.Exclude = &struct {
			Employers        []string `mapstructure:"employers"`
			InactiveStatuses []string `mapstructure:"inactive-statuses"`
		}{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.Serve == nil {
		config.Serve = &ServeConfig{}
	}
	return config
}

func sessionOptions(config *Config) responder.Options {
	return responder.Options{
		Headless:          config.Browser.Headless,
		AntiDetection:     config.Browser.AntiDetection,
		UserAgent:         config.Browser.UserAgent,
		NavigationTimeout: config.Browser.NavigationTimeout,
		MaxErrors:         config.Session.MaxErrors,
		MaxRequests:       config.Rate.MaxRequests,
		Window:            config.Rate.Window,
		MaxOutreach:       config.Session.MaxOutreach,
		MaxDuration:       config.Session.MaxDuration,
		FullDescription:   config.Apply.FullDescription,
	}
}

// sessionDeps wires the browser, the proxy pool and the cookie jar. The
// returned cleanup releases what the jar holds open.
func sessionDeps(ctx context.Context, config *Config, logger *zap.Logger) (responder.Deps, func(), error) {
	deps := responder.Deps{
		Launcher: playwright.NewLauncher(config.Browser.Install, zhipin.BaseURL, logger),
		Logger:   logger,
	}
	cleanup := func() {}

	if config.Proxy.Enabled {
		rotator, err := newRotator(config.Proxy)
		if err != nil {
			return deps, cleanup, err
		}
		logger.Info("proxy pool loaded", zap.Int("count", rotator.Len()))
		deps.Proxies = rotator
	}

	switch {
	case config.Cookies.RedisURL != "":
		client, err := cookies.NewRedisClient(ctx, config.Cookies.RedisURL)
		if err != nil {
			return deps, cleanup, fmt.Errorf("cookie store: %w", err)
		}
		deps.Cookies = cookies.NewRedisStore(client, config.Cookies.RedisKey, config.Cookies.RedisTTL)
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		}
	case config.Cookies.File != "":
		deps.Cookies = cookies.NewFileStore(config.Cookies.File)
	}

	return deps, cleanup, nil
}

func newRotator(config *ProxyConfig) (*proxy.Rotator, error) {
	endpoints, err := proxy.ParseAll(config.List)
	if err != nil {
		return nil, fmt.Errorf("proxy list: %w", err)
	}

	if config.File != "" {
		fromFile, err := proxy.LoadFile(config.File)
		if err != nil {
			return nil, fmt.Errorf("proxy file: %w", err)
		}
		endpoints = append(endpoints, fromFile...)
	}

	if len(endpoints) == 0 {
		return nil, errors.New("proxy is enabled but neither proxy.list nor proxy.file has entries")
	}
	return proxy.NewRotator(endpoints), nil
}

func resolvePassword(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name: "account password",
		File: config.Account.PasswordFile,
		Env:  "ZHIPIN_PASSWORD",
	})
}

// startSession launches the browser and makes sure the account is signed in,
// logging in with the configured credentials when the cookie jar is stale.
func startSession(ctx context.Context, session *responder.Session, config *Config, logger *zap.Logger) error {
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	if session.Status().LoggedIn {
		return nil
	}

	if config.Account.Phone == "" {
		logger.Warn("not logged in and no account configured, continuing as guest")
		return nil
	}

	password, err := resolvePassword(config)
	if err != nil {
		return err
	}

	ok, err := session.Login(ctx, config.Account.Phone, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !ok {
		return errors.New("login was not accepted")
	}
	return nil
}
