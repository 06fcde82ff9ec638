package webdriver

import (
	"strconv"
	"strings"
	"time"
)

// Cookie is a cookie exchanged with a browser session.
//
// Its JSON encoding is the cookie wire format: the keys name, value, domain,
// path and expires, where expires is a millisecond timestamp string.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  string `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// expiresSuffix turns a seconds timestamp into a milliseconds one.
const expiresSuffix = "000"

// FormatExpires encodes t as a cookie expires value: the whole seconds since
// the epoch with "000" appended. Sub-second precision is dropped.
func FormatExpires(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + expiresSuffix
}

// ExpiresIn returns the expires value for a cookie expiring d from now.
func ExpiresIn(d time.Duration) string {
	return FormatExpires(time.Now().Add(d))
}

// ParseExpires decodes a cookie expires value. The empty string is a session
// cookie and yields the zero time. Any other value must be whole seconds with
// "000" appended, as written by FormatExpires.
func ParseExpires(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	secs, ok := strings.CutSuffix(s, expiresSuffix)
	if !ok {
		return time.Time{}, ErrInvalidExpiry
	}
	n, err := strconv.ParseInt(secs, 10, 64)
	// Only the canonical form reads back unchanged.
	if err != nil || n < 0 || strconv.FormatInt(n, 10) != secs {
		return time.Time{}, ErrInvalidExpiry
	}
	return time.Unix(n, 0), nil
}

// ExpiryTime returns the time the cookie expires, or the zero time for a
// session cookie.
func (c Cookie) ExpiryTime() (time.Time, error) {
	return ParseExpires(c.Expires)
}

// Validate checks the invariants a cookie must hold before it can be added to
// a session.
func (c Cookie) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidCookie
	}
	if _, err := c.ExpiryTime(); err != nil {
		return err
	}
	return nil
}

// FindCookie returns the first cookie in cookies named name.
func FindCookie(cookies []Cookie, name string) (Cookie, bool) {
	for _, c := range cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}
