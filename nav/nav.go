// Package nav is the navigation collaborator: something that can be told
// "go to path P" and asked where the user currently is.
package nav

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Navigator moves the user to a path. Path may carry a query string.
type Navigator interface {
	Navigate(path string)
}

// Locator reports the current location.
type Locator interface {
	Current() Location
}

// Location is a parsed local path plus its query parameters.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses a local path such as "/signin?redirect=/shipping".
// Absolute URLs and scheme-relative paths are rejected.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{Path: "/", Query: url.Values{}}, nil
	}
	if !IsLocal(raw) {
		return Location{}, fmt.Errorf("nav: %q is not a local path", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("nav: parse %q: %w", raw, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{Path: path, Query: u.Query()}, nil
}

// MustParseLocation is ParseLocation for literals. It panics on error.
func MustParseLocation(raw string) Location {
	loc, err := ParseLocation(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// Param returns the first value of query parameter name.
func (l Location) Param(name string) string {
	if l.Query == nil {
		return ""
	}
	return l.Query.Get(name)
}

// String renders the location back to "path?query".
func (l Location) String() string {
	path := l.Path
	if path == "" {
		path = "/"
	}
	if len(l.Query) == 0 {
		return path
	}
	return path + "?" + EncodeQuery(l.Query)
}

// EncodeQuery is url.Values.Encode with slashes left readable, so
// "redirect=/shipping" stays as written.
func EncodeQuery(v url.Values) string {
	return strings.ReplaceAll(v.Encode(), "%2F", "/")
}

// IsLocal reports whether p is a path on this site: it starts with a single
// slash and carries no scheme or host.
func IsLocal(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// ErrEmptyHistory is returned by Back when there is nowhere to go.
var ErrEmptyHistory = errors.New("nav: no previous location")

// History is an in-memory Navigator and Locator that records every
// navigation. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []string
}

// NewHistory creates a history positioned at start ("/" when empty or not
// local).
func NewHistory(start string) *History {
	if !IsLocal(start) {
		start = "/"
	}
	return &History{entries: []string{start}}
}

// Navigate pushes path. Non-local paths are replaced by "/".
func (h *History) Navigate(path string) {
	if !IsLocal(path) {
		path = "/"
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, path)
}

// Current returns the most recent location.
func (h *History) Current() Location {
	loc, err := ParseLocation(h.CurrentPath())
	if err != nil {
		return Location{Path: "/", Query: url.Values{}}
	}
	return loc
}

// CurrentPath returns the most recent raw path.
func (h *History) CurrentPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Back pops the current location.
func (h *History) Back() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return "", ErrEmptyHistory
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], nil
}

// Entries returns a copy of every visited path, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Compile-time interface checks.
var (
	_ Navigator = (*History)(nil)
	_ Locator   = (*History)(nil)
)
