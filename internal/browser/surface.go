// Package browser describes the automation surface the session drives.
// Implementations wrap a real browser page; the rest of the tool only talks
// to these interfaces.
package browser

import (
	"context"
	"time"
)

// Box is an element bounding box in page coordinates.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center returns the middle point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Element is a handle to one DOM node.
type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
	// BoundingBox returns nil without error when the node is not rendered.
	BoundingBox() (*Box, error)
	// QueryOne returns nil without error when nothing matches.
	QueryOne(selector string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	Click() error
}

// Surface is the set of primitive page operations.
type Surface interface {
	Navigate(url string, timeout time.Duration) error
	URL() string
	// QueryOne returns nil without error when nothing matches.
	QueryOne(selector string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	MoveMouse(x, y float64) error
	ClickAt(x, y float64) error
	Fill(selector, text string) error
	ScrollBy(dx, dy float64) error
	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error
	SetViewport(width, height int) error
	InjectStartupScript(code string) error
}

// Cookie mirrors the JSON shape browsers export, so jars written by other
// tooling load unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// TextOf returns the text of the first match of selector under
// root, or "" when there is no match or the read fails.
func TextOf(root Element, selector string) string {
	if root == nil {
		return ""
	}
	el, err := root.QueryOne(selector)
	if err != nil || el == nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return text
}

// Page is a Surface backed by a running browser.
type Page interface {
	Surface
	Close() error
}

// Proxy is the egress proxy a browser is launched with.
type Proxy struct {
	Server   string
	Username string
	Password string
}

// LaunchOptions describe the browser fingerprint and egress.
type LaunchOptions struct {
	Headless  bool
	Proxy     *Proxy
	UserAgent string
	Width     int
	Height    int
	Locale    string
}

// Launcher starts a browser and opens one page in it.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Page, error)
}
