package playwright

import (
	pw "github.com/playwright-community/playwright-go"

	"github.com/spigell/zhipin-responder/internal/browser"
)

func fromPlaywright(cookies []pw.Cookie) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		out = append(out, cookie)
	}
	return out
}

// toPlaywright converts a jar for AddCookies. Cookies without a domain are
// bound to fallbackURL, or dropped when it is empty.
func toPlaywright(cookies []browser.Cookie, fallbackURL string) []pw.OptionalCookie {
	out := make([]pw.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := pw.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			HttpOnly: pw.Bool(c.HTTPOnly),
			Secure:   pw.Bool(c.Secure),
		}
		if c.Domain != "" {
			cookie.Domain = pw.String(c.Domain)
			path := c.Path
			if path == "" {
				path = "/"
			}
			cookie.Path = pw.String(path)
		} else if fallbackURL != "" {
			cookie.URL = pw.String(fallbackURL)
		} else {
			continue
		}
		if c.Expires > 0 {
			cookie.Expires = pw.Float(c.Expires)
		}
		if c.SameSite != "" {
			sameSite := pw.SameSiteAttribute(c.SameSite)
			cookie.SameSite = &sameSite
		}
		out = append(out, cookie)
	}
	return out
}
