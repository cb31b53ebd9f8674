// Package browsertest provides a scriptable in-memory browser.Surface.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// Event kinds recorded by Page.
const (
	EventNavigate = "navigate"
	EventMove     = "move"
	EventClick    = "click"
	EventScroll   = "scroll"
	EventFill     = "fill"
)

// Event is one recorded surface call.
type Event struct {
	Kind     string
	X        float64
	Y        float64
	Selector string
	Text     string
}

// Element is a fake DOM node.
type Element struct {
	Content  string
	Attrs    map[string]string
	Box      *browser.Box
	Children map[string][]*Element
	ClickErr error
	Clicks   int

	mu sync.Mutex
}

func (e *Element) Text() (string, error) { return e.Content, nil }

func (e *Element) Attribute(name string) (string, error) {
	return e.Attrs[name], nil
}

func (e *Element) BoundingBox() (*browser.Box, error) { return e.Box, nil }

func (e *Element) QueryOne(selector string) (browser.Element, error) {
	if els := e.Children[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, nil
}

func (e *Element) QueryAll(selector string) ([]browser.Element, error) {
	return toElements(e.Children[selector]), nil
}

func (e *Element) Click() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	return nil
}

// Page is a fake browser.Surface. Zero value is usable.
type Page struct {
	mu       sync.Mutex
	url      string
	elements map[string][]*Element
	events   []Event
	cookies  []browser.Cookie
	scripts  []string
	viewport [2]int
	closed   bool

	// OnNavigate runs after the URL changes, letting tests swap page content.
	OnNavigate func(p *Page, url string) error
	// OnClick runs for every coordinate click.
	OnClick func(p *Page, x, y float64) error
	FillErr error
}

// ErrInjected is a generic failure for tests.
var ErrInjected = errors.New("injected failure")

// NewPage returns an empty page at url.
func NewPage(url string) *Page {
	return &Page{url: url, elements: map[string][]*Element{}}
}

// Set replaces the elements matched by selector.
func (p *Page) Set(selector string, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.elements == nil {
		p.elements = map[string][]*Element{}
	}
	if len(els) == 0 {
		delete(p.elements, selector)
		return
	}
	p.elements[selector] = els
}

// Clear drops every element.
func (p *Page) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = map[string][]*Element{}
}

// SetURL changes the current URL without recording a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Events returns a copy of the recorded calls.
func (p *Page) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOf returns the recorded calls of one kind.
func (p *Page) EventsOf(kind string) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Scripts returns injected startup scripts.
func (p *Page) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scripts...)
}

// Viewport returns the last size set.
func (p *Page) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport[0], p.viewport[1]
}

func (p *Page) record(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *Page) Navigate(url string, _ time.Duration) error {
	p.record(Event{Kind: EventNavigate, Text: url})
	p.SetURL(url)
	if p.OnNavigate != nil {
		return p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) QueryOne(selector string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if els := p.elements[selector]; len(els) > 0 {
		return els[0], nil
	}
	return nil, nil
}

func (p *Page) QueryAll(selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return toElements(p.elements[selector]), nil
}

func (p *Page) MoveMouse(x, y float64) error {
	p.record(Event{Kind: EventMove, X: x, Y: y})
	return nil
}

func (p *Page) ClickAt(x, y float64) error {
	p.record(Event{Kind: EventClick, X: x, Y: y})
	if p.OnClick != nil {
		return p.OnClick(p, x, y)
	}
	return nil
}

func (p *Page) Fill(selector, text string) error {
	if p.FillErr != nil {
		return p.FillErr
	}
	p.record(Event{Kind: EventFill, Selector: selector, Text: text})
	return nil
}

func (p *Page) ScrollBy(dx, dy float64) error {
	p.record(Event{Kind: EventScroll, X: dx, Y: dy})
	return nil
}

func (p *Page) Cookies() ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *Page) SetViewport(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = [2]int{width, height}
	return nil
}

func (p *Page) InjectStartupScript(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, code)
	return nil
}

func toElements(els []*Element) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Launcher hands out Page and records every launch request.
type Launcher struct {
	Page *Page
	Err  error

	mu       sync.Mutex
	launches []browser.LaunchOptions
}

func (l *Launcher) Launch(_ context.Context, opts browser.LaunchOptions) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, opts)
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}

// Launches returns the recorded launch options.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}
