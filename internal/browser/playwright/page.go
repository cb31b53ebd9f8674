package playwright

import (
	"errors"
	"time"

	pw "github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// Page adapts a Playwright page to browser.Page.
type Page struct {
	runtime *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	page    pw.Page
	logger  *zap.Logger

	cookieURL string
}

func (p *Page) Navigate(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, pw.PageGotoOptions{
		Timeout:   pw.Float(float64(timeout.Milliseconds())),
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) QueryOne(selector string) (browser.Element, error) {
	handle, err := p.page.QuerySelector(selector)
	if err != nil || handle == nil {
		return nil, err
	}
	return &element{handle: handle}, nil
}

func (p *Page) QueryAll(selector string) ([]browser.Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrap(handles), nil
}

func (p *Page) MoveMouse(x, y float64) error { return p.page.Mouse().Move(x, y) }

func (p *Page) ClickAt(x, y float64) error { return p.page.Mouse().Click(x, y) }

func (p *Page) Fill(selector, text string) error {
	return p.page.Locator(selector).First().Fill(text)
}

func (p *Page) ScrollBy(dx, dy float64) error { return p.page.Mouse().Wheel(dx, dy) }

func (p *Page) Cookies() ([]browser.Cookie, error) {
	cookies, err := p.context.Cookies()
	if err != nil {
		return nil, err
	}
	return fromPlaywright(cookies), nil
}

func (p *Page) SetCookies(cookies []browser.Cookie) error {
	return p.context.AddCookies(toPlaywright(cookies, p.cookieURL))
}

func (p *Page) SetViewport(width, height int) error {
	return p.page.SetViewportSize(width, height)
}

func (p *Page) InjectStartupScript(code string) error {
	return p.context.AddInitScript(pw.Script{Content: pw.String(code)})
}

// Close shuts the browser and the driver down; both errors are reported.
func (p *Page) Close() error {
	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.runtime.Stop(); err != nil {
		errs = append(errs, err)
	}
	p.logger.Debug("chromium stopped")
	return errors.Join(errs...)
}

type element struct {
	handle pw.ElementHandle
}

func wrap(handles []pw.ElementHandle) []browser.Element {
	out := make([]browser.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &element{handle: h})
	}
	return out
}

func (e *element) Text() (string, error) { return e.handle.InnerText() }

func (e *element) Attribute(name string) (string, error) { return e.handle.GetAttribute(name) }

func (e *element) BoundingBox() (*browser.Box, error) {
	rect, err := e.handle.BoundingBox()
	if err != nil || rect == nil {
		return nil, err
	}
	return &browser.Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (e *element) QueryOne(selector string) (browser.Element, error) {
	handle, err := e.handle.QuerySelector(selector)
	if err != nil || handle == nil {
		return nil, err
	}
	return &element{handle: handle}, nil
}

func (e *element) QueryAll(selector string) ([]browser.Element, error) {
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrap(handles), nil
}

func (e *element) Click() error { return e.handle.Click() }
