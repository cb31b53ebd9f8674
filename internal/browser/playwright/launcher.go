// Package playwright implements browser.Launcher on top of Playwright's
// Chromium.
package playwright

import (
	"context"
	"fmt"

	pw "github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
)

var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--no-sandbox",
}

// Launcher starts one Playwright driver and Chromium per Launch call.
type Launcher struct {
	// Install downloads the driver and Chromium before the first launch.
	Install bool
	// CookieURL receives restored cookies that carry no domain.
	CookieURL string
	Logger    *zap.Logger
}

func NewLauncher(install bool, cookieURL string, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{Install: install, CookieURL: cookieURL, Logger: logger}
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runOpts := &pw.RunOptions{Browsers: []string{"chromium"}}
	if l.Install {
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("installing playwright: %w", err)
		}
	}

	runtime, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	launch := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(opts.Headless),
		Args:     launchArgs,
	}
	if opts.Proxy != nil {
		launch.Proxy = &pw.Proxy{Server: opts.Proxy.Server}
		if opts.Proxy.Username != "" {
			launch.Proxy.Username = pw.String(opts.Proxy.Username)
			launch.Proxy.Password = pw.String(opts.Proxy.Password)
		}
	}

	chromium, err := runtime.Chromium.Launch(launch)
	if err != nil {
		_ = runtime.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	contextOpts := pw.BrowserNewContextOptions{}
	if opts.Width > 0 && opts.Height > 0 {
		contextOpts.Viewport = &pw.Size{Width: opts.Width, Height: opts.Height}
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = pw.String(opts.UserAgent)
	}
	if opts.Locale != "" {
		contextOpts.Locale = pw.String(opts.Locale)
	}

	bctx, err := chromium.NewContext(contextOpts)
	if err != nil {
		_ = chromium.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = chromium.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	l.Logger.Debug("chromium launched",
		zap.Bool("headless", opts.Headless),
		zap.Bool("proxy", opts.Proxy != nil),
	)

	return &Page{runtime: runtime, browser: chromium, context: bctx, page: page, logger: l.Logger, cookieURL: l.CookieURL}, nil
}
