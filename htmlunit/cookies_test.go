package htmlunit

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestDomainMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		host, domain string
		want         bool
	}{
		{"localhost", "localhost", true},
		{"www.google.com", "google.com", true},
		{"google.com", "www.google.com", false},
		{"notgoogle.com", "google.com", false},
		{"127.0.0.1", "0.0.1", false},
	}
	for _, test := range tests {
		if got := domainMatch(test.host, test.domain); got != test.want {
			t.Errorf("domainMatch(%q, %q) = %v, want %v", test.host, test.domain, got, test.want)
		}
	}
}

func TestPathMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		reqPath, cookiePath string
		want                bool
	}{
		{"", "/", true},
		{"/", "/", true},
		{"/foo/bar", "/foo", true},
		{"/foo/bar", "/foo/", true},
		{"/foobar", "/foo", false},
		{"/foo", "/foo/bar", false},
	}
	for _, test := range tests {
		if got := pathMatch(test.reqPath, test.cookiePath); got != test.want {
			t.Errorf("pathMatch(%q, %q) = %v, want %v", test.reqPath, test.cookiePath, got, test.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"":             "/",
		"/":            "/",
		"/page.html":   "/",
		"/a/page.html": "/a",
		"relative":     "/",
	} {
		if got := defaultPath(in); got != want {
			t.Errorf("defaultPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func names(entries []*entry) []string {
	var res []string
	for _, e := range entries {
		res = append(res, e.name+"="+e.value)
	}
	return res
}

func TestCookieStoreSetReplacesInPlace(t *testing.T) {
	t.Parallel()
	s := newCookieStore()
	u := mustParse(t, "http://localhost/")
	for _, e := range []*entry{
		{name: "a", value: "1", domain: "localhost", path: "/", hostOnly: true},
		{name: "b", value: "2", domain: "localhost", path: "/", hostOnly: true},
		{name: "a", value: "3", domain: "localhost", path: "/", hostOnly: true},
	} {
		s.set(e)
	}
	if diff := cmp.Diff([]string{"a=3", "b=2"}, names(s.visible(u))); diff != "" {
		t.Errorf("visible() returned diff (-want/+got):\n%s", diff)
	}
}

func TestCookieStoreExpiry(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	s := newCookieStore()
	s.now = func() time.Time { return now }
	u := mustParse(t, "http://localhost/")

	s.set(&entry{name: "short", domain: "localhost", path: "/", hostOnly: true, expires: now.Add(time.Second)})
	s.set(&entry{name: "session", domain: "localhost", path: "/", hostOnly: true})
	if got := len(s.visible(u)); got != 2 {
		t.Fatalf("got %d cookies, want 2", got)
	}

	now = now.Add(2 * time.Second)
	if diff := cmp.Diff([]string{"session="}, names(s.visible(u))); diff != "" {
		t.Errorf("visible() returned diff (-want/+got):\n%s", diff)
	}
	if len(s.entries) != 1 {
		t.Errorf("expired cookie not purged: %d entries", len(s.entries))
	}

	// Setting an expired cookie deletes the stored one.
	s.set(&entry{name: "session", domain: "localhost", path: "/", hostOnly: true, expires: now.Add(-time.Second)})
	if got := s.visible(u); len(got) != 0 {
		t.Errorf("visible() = %v, want none", names(got))
	}
}

func TestCookieStoreVisibility(t *testing.T) {
	t.Parallel()
	s := newCookieStore()
	s.set(&entry{name: "host", domain: "example.com", path: "/", hostOnly: true})
	s.set(&entry{name: "domain", domain: "example.com", path: "/"})
	s.set(&entry{name: "secure", domain: "example.com", path: "/", secure: true})
	s.set(&entry{name: "sub", domain: "example.com", path: "/sub"})

	tests := []struct {
		urlstr string
		want   []string
	}{
		{"http://example.com/", []string{"host=", "domain="}},
		{"https://example.com/sub/page", []string{"host=", "domain=", "secure=", "sub="}},
		{"http://www.example.com/", []string{"domain="}},
		{"http://other.com/", nil},
	}
	for _, test := range tests {
		got := names(s.visible(mustParse(t, test.urlstr)))
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("visible(%q) returned diff (-want/+got):\n%s", test.urlstr, diff)
		}
	}
}

func TestCookieStoreRemove(t *testing.T) {
	t.Parallel()
	s := newCookieStore()
	s.set(&entry{name: "a", domain: "localhost", path: "/", hostOnly: true})
	s.set(&entry{name: "b", domain: "localhost", path: "/", hostOnly: true})
	s.set(&entry{name: "a", domain: "example.com", path: "/", hostOnly: true})

	local := mustParse(t, "http://localhost/")
	s.remove(local, "a")
	if diff := cmp.Diff([]string{"b="}, names(s.visible(local))); diff != "" {
		t.Errorf("after remove(a) diff (-want/+got):\n%s", diff)
	}
	s.remove(local, "")
	if got := s.visible(local); len(got) != 0 {
		t.Errorf("after remove all, visible() = %v", names(got))
	}
	if got := names(s.visible(mustParse(t, "http://example.com/"))); len(got) != 1 {
		t.Errorf("cookie for other host removed: %v", got)
	}
}

func TestCookieStoreJar(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	s := newCookieStore()
	s.now = func() time.Time { return now }
	u := mustParse(t, "http://www.example.com/dir/page.html")

	s.SetCookies(u, []*http.Cookie{
		{Name: "plain", Value: "1"},
		{Name: "wide", Value: "2", Domain: ".example.com", Path: "/"},
		{Name: "foreign", Value: "3", Domain: "other.com"},
		{Name: "aged", Value: "4", MaxAge: 60},
	})
	got := s.visible(u)
	if diff := cmp.Diff([]string{"plain=1", "wide=2", "aged=4"}, names(got)); diff != "" {
		t.Fatalf("visible() returned diff (-want/+got):\n%s", diff)
	}
	if got[0].path != "/dir" || !got[0].hostOnly {
		t.Errorf("plain cookie = %+v, want host-only with path /dir", got[0])
	}
	if got[1].domain != "example.com" || got[1].hostOnly {
		t.Errorf("wide cookie = %+v, want domain example.com", got[1])
	}
	if want := now.Add(time.Minute); !got[2].expires.Equal(want) {
		t.Errorf("aged cookie expires %v, want %v", got[2].expires, want)
	}

	s.SetCookies(u, []*http.Cookie{{Name: "plain", MaxAge: -1}})
	if diff := cmp.Diff([]string{"wide=2", "aged=4"}, names(s.visible(u))); diff != "" {
		t.Errorf("after deleting via MaxAge diff (-want/+got):\n%s", diff)
	}

	hc := s.Cookies(mustParse(t, "http://example.com/"))
	if len(hc) != 1 || hc[0].Name != "wide" {
		t.Errorf("Cookies() = %v, want only wide", hc)
	}
}
