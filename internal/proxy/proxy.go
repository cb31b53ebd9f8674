// Package proxy parses egress proxy descriptors and rotates through them.
//
// Accepted grammar:
//
//	[scheme "://"] [user [":" password] "@"] host [":" port]
//
// The rightmost "@" separates credentials from the address, and the first
// ":" inside the credentials separates user from password. A password may
// therefore contain both ":" and "@"; a user name may contain neither.
// IPv6 hosts must be bracketed: "[::1]:8080".
package proxy

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	defaultScheme = "http"
	defaultPort   = "80"
)

// Endpoint is one parsed proxy.
type Endpoint struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
}

// Server returns the "scheme://host:port" form browsers expect.
func (e Endpoint) Server() string {
	return fmt.Sprintf("%s://%s:%s", e.Scheme, e.Host, e.Port)
}

// String hides the password.
func (e Endpoint) String() string {
	if e.Username == "" {
		return e.Server()
	}
	return fmt.Sprintf("%s://%s:***@%s:%s", e.Scheme, e.Username, e.Host, e.Port)
}

// FormatError reports a structurally broken proxy string.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed proxy %q: %s", redact(e.Raw), e.Reason)
}

// Parse decodes raw into an Endpoint.
func Parse(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, &FormatError{Raw: raw, Reason: "empty"}
	}

	ep := Endpoint{Scheme: defaultScheme, Port: defaultPort}

	if idx := strings.Index(s, "://"); idx >= 0 {
		scheme := strings.ToLower(s[:idx])
		if !validScheme(scheme) {
			return Endpoint{}, &FormatError{Raw: raw, Reason: fmt.Sprintf("invalid scheme %q", s[:idx])}
		}
		ep.Scheme = scheme
		s = s[idx+3:]
	}

	if at := strings.LastIndex(s, "@"); at >= 0 {
		creds := s[:at]
		s = s[at+1:]

		user, pass, _ := strings.Cut(creds, ":")
		if user == "" {
			return Endpoint{}, &FormatError{Raw: raw, Reason: "empty user name before '@'"}
		}
		ep.Username = user
		ep.Password = pass
	}

	host, port, err := splitHostPort(s)
	if err != nil {
		return Endpoint{}, &FormatError{Raw: raw, Reason: err.Error()}
	}
	ep.Host = host
	if port != "" {
		ep.Port = port
	}

	return ep, nil
}

func splitHostPort(s string) (string, string, error) {
	var host, port string

	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", fmt.Errorf("unterminated IPv6 host")
		}
		host = s[:end+1]
		rest := s[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return "", "", fmt.Errorf("unexpected %q after IPv6 host", rest)
			}
			port = rest[1:]
			if port == "" {
				return "", "", fmt.Errorf("empty port")
			}
		}
	} else {
		var hasPort bool
		host, port, hasPort = strings.Cut(s, ":")
		if hasPort && port == "" {
			return "", "", fmt.Errorf("empty port")
		}
	}

	if host == "" || host == "[]" {
		return "", "", fmt.Errorf("empty host")
	}
	if strings.ContainsAny(host, " /?#@") {
		return "", "", fmt.Errorf("invalid host %q", host)
	}

	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", "", fmt.Errorf("invalid port %q", port)
		}
	}

	return host, port, nil
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}

func redact(raw string) string {
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return raw
	}
	prefix := raw[:at]
	start := strings.Index(prefix, "://")
	if start >= 0 {
		start += 3
	} else {
		start = 0
	}
	user, _, hasPass := strings.Cut(prefix[start:], ":")
	if !hasPass {
		return raw
	}
	return prefix[:start] + user + ":***" + raw[at:]
}

// ParseAll parses every entry and fails on the first malformed one.
func ParseAll(raws []string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ep, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// LoadFile reads one proxy per line. Blank lines and lines starting with '#'
// are ignored.
func LoadFile(path string) ([]Endpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	var raws []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	return ParseAll(raws)
}

// Rotator hands out endpoints round-robin. Safe for concurrent use.
type Rotator struct {
	mu        sync.Mutex
	endpoints []Endpoint
	cursor    int
}

// NewRotator copies endpoints into a new pool.
func NewRotator(endpoints []Endpoint) *Rotator {
	return &Rotator{endpoints: append([]Endpoint(nil), endpoints...)}
}

// Next returns the endpoint at the cursor and advances it. The second value
// is false for an empty pool.
func (r *Rotator) Next() (Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.endpoints) == 0 {
		return Endpoint{}, false
	}

	ep := r.endpoints[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.endpoints)
	return ep, true
}

// Len returns the pool size.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
