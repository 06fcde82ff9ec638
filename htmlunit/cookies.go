package htmlunit

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/chromedp/webdriver"
)

// entry is a stored cookie.
type entry struct {
	name, value  string
	domain, path string
	// hostOnly cookies are only sent to exactly domain, not its subdomains.
	hostOnly bool
	secure   bool
	httpOnly bool
	// expires is the zero time for session cookies.
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !e.expires.After(now)
}

func (e *entry) sameKey(o *entry) bool {
	return e.name == o.name && e.domain == o.domain && e.path == o.path
}

func (e *entry) cookie() webdriver.Cookie {
	c := webdriver.Cookie{
		Name:     e.name,
		Value:    e.value,
		Domain:   e.domain,
		Path:     e.path,
		Secure:   e.secure,
		HTTPOnly: e.httpOnly,
	}
	if !e.expires.IsZero() {
		c.Expires = webdriver.FormatExpires(e.expires)
	}
	return c
}

// cookieStore holds a session's cookies in creation order. It implements
// http.CookieJar, so that cookies set by responses, including redirects, are
// kept alongside the ones added through the driver.
type cookieStore struct {
	mu      sync.Mutex
	entries []*entry
	now     func() time.Time
}

func newCookieStore() *cookieStore {
	return &cookieStore{now: time.Now}
}

// canonicalHost returns u's lower-cased host without its port.
func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// domainMatch reports whether host domain-matches domain, as in RFC 6265
// section 5.1.3.
func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	if net.ParseIP(host) != nil {
		return false
	}
	return strings.HasSuffix(host, "."+domain)
}

// pathMatch reports whether the request path matches the cookie path, as in
// RFC 6265 section 5.1.4.
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == "" {
		reqPath = "/"
	}
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

// defaultPath is the directory of the request path, as in RFC 6265 section
// 5.1.4.
func defaultPath(reqPath string) string {
	if !strings.HasPrefix(reqPath, "/") {
		return "/"
	}
	i := strings.LastIndex(reqPath, "/")
	if i == 0 {
		return "/"
	}
	return reqPath[:i]
}

func (e *entry) visibleTo(u *url.URL) bool {
	host := canonicalHost(u)
	if e.hostOnly && host != e.domain {
		return false
	}
	if !e.hostOnly && !domainMatch(host, e.domain) {
		return false
	}
	if e.secure && u.Scheme != "https" {
		return false
	}
	return pathMatch(u.Path, e.path)
}

// set stores e, replacing a cookie with the same name, domain and path in
// place. An already expired e only removes the cookie it replaces.
func (s *cookieStore) set(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.entries, e.sameKey)
	switch {
	case i >= 0 && e.expired(s.now()):
		s.entries = slices.Delete(s.entries, i, i+1)
	case i >= 0:
		s.entries[i] = e
	case !e.expired(s.now()):
		s.entries = append(s.entries, e)
	}
}

// visible returns the unexpired cookies visible to u, dropping expired ones
// from the store.
func (s *cookieStore) visible(u *url.URL) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var res []*entry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		kept = append(kept, e)
		if e.visibleTo(u) {
			res = append(res, e)
		}
	}
	s.entries = kept
	return res
}

// remove deletes the cookies visible to u named name, or all of them when
// name is empty.
func (s *cookieStore) remove(u *url.URL, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.visibleTo(u) && (name == "" || e.name == name) {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// SetCookies satisfies http.CookieJar.
func (s *cookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := canonicalHost(u)
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		e := &entry{
			name:     c.Name,
			value:    c.Value,
			domain:   host,
			hostOnly: true,
			path:     c.Path,
			secure:   c.Secure,
			httpOnly: c.HttpOnly,
		}
		if d := strings.TrimPrefix(strings.ToLower(c.Domain), "."); d != "" {
			if !domainMatch(host, d) {
				continue
			}
			e.domain, e.hostOnly = d, false
		}
		if !strings.HasPrefix(e.path, "/") {
			e.path = defaultPath(u.Path)
		}
		switch {
		case c.MaxAge < 0:
			e.expires = time.Unix(0, 0)
		case c.MaxAge > 0:
			e.expires = s.now().Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			e.expires = c.Expires
		}
		s.set(e)
	}
}

// Cookies satisfies http.CookieJar.
func (s *cookieStore) Cookies(u *url.URL) []*http.Cookie {
	var res []*http.Cookie
	for _, e := range s.visible(u) {
		res = append(res, &http.Cookie{Name: e.name, Value: e.value})
	}
	return res
}
