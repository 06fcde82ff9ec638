package drivertest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chromedp/webdriver"
)

// RunCookieTests runs the cookie semantics suite.
func RunCookieTests(t *testing.T, env *Env) {
	t.Run("AddCookie", runTest(testAddCookie, env))
	t.Run("DeleteAllCookies", runTest(testDeleteAllCookies, env))
	t.Run("DeleteCookie", runTest(testDeleteCookie, env))
	t.Run("AddCookieWithoutName", runTest(testAddCookieWithoutName, env))
	t.Run("AddCookieSubsecondExpiry", runTest(testAddCookieSubsecondExpiry, env))
	t.Run("OnlineCookie", runTest(testOnlineCookie, env))
}

// setUpCookieTest loads the simple test page with no cookies set, and returns
// the cookie the tests add: foo=bar for localhost, expiring in 100 seconds.
func setUpCookieTest(t *testing.T, env *Env) (context.Context, webdriver.Cookie) {
	t.Helper()
	ctx := testContext(t, env)
	urlstr := env.Server.URL("simpleTest.html")
	if err := env.Driver.Get(ctx, urlstr); err != nil {
		t.Fatalf("Get(%q) returned error: %v", urlstr, err)
	}
	if err := env.Driver.DeleteAllCookies(ctx); err != nil {
		t.Fatalf("DeleteAllCookies() returned error: %v", err)
	}
	return ctx, webdriver.Cookie{
		Name:    "foo",
		Value:   "bar",
		Expires: webdriver.ExpiresIn(100 * time.Second),
		Domain:  "localhost",
		Path:    "/",
	}
}

func getCookies(ctx context.Context, t *testing.T, d webdriver.Driver) []webdriver.Cookie {
	t.Helper()
	cookies, err := d.GetCookies(ctx)
	if err != nil {
		t.Fatalf("GetCookies() returned error: %v", err)
	}
	return cookies
}

func addCookie(ctx context.Context, t *testing.T, d webdriver.Driver, c webdriver.Cookie) {
	t.Helper()
	if err := d.AddCookie(ctx, c); err != nil {
		t.Fatalf("AddCookie(%+v) returned error: %v", c, err)
	}
}

func testAddCookie(t *testing.T, env *Env) {
	ctx, want := setUpCookieTest(t, env)
	addCookie(ctx, t, env.Driver, want)

	cookies := getCookies(ctx, t, env.Driver)
	if len(cookies) != 1 {
		t.Fatalf("GetCookies() = %+v, want exactly %+v", cookies, want)
	}
	if diff := cmp.Diff(want, cookies[0]); diff != "" {
		t.Fatalf("GetCookies() returned diff (-want/+got):\n%s", diff)
	}
}

func testDeleteAllCookies(t *testing.T, env *Env) {
	ctx, cookie := setUpCookieTest(t, env)
	addCookie(ctx, t, env.Driver, cookie)

	// Deleting twice must leave the collection empty both times.
	for i := 0; i < 2; i++ {
		if err := env.Driver.DeleteAllCookies(ctx); err != nil {
			t.Fatalf("DeleteAllCookies() #%d returned error: %v", i+1, err)
		}
		if cookies := getCookies(ctx, t, env.Driver); len(cookies) != 0 {
			t.Fatalf("after DeleteAllCookies() #%d, GetCookies() = %+v, want none", i+1, cookies)
		}
	}
}

func testDeleteCookie(t *testing.T, env *Env) {
	ctx, cookie := setUpCookieTest(t, env)
	other := cookie
	other.Name, other.Value = "baz", "qux"
	addCookie(ctx, t, env.Driver, cookie)
	addCookie(ctx, t, env.Driver, other)

	if err := env.Driver.DeleteCookie(ctx, cookie.Name); err != nil {
		t.Fatalf("DeleteCookie(%q) returned error: %v", cookie.Name, err)
	}
	cookies := getCookies(ctx, t, env.Driver)
	if c, ok := webdriver.FindCookie(cookies, cookie.Name); ok {
		t.Fatalf("deleted cookie found: %+v", c)
	}
	got, ok := webdriver.FindCookie(cookies, other.Name)
	if !ok {
		t.Fatalf("GetCookies() = %+v, missing cookie %q", cookies, other.Name)
	}
	if diff := cmp.Diff(other, got); diff != "" {
		t.Fatalf("untouched cookie changed (-want/+got):\n%s", diff)
	}
}

func testAddCookieWithoutName(t *testing.T, env *Env) {
	ctx, cookie := setUpCookieTest(t, env)
	cookie.Name = ""
	if err := env.Driver.AddCookie(ctx, cookie); err == nil {
		t.Fatal("AddCookie() without a name did not return an error")
	}
	if cookies := getCookies(ctx, t, env.Driver); len(cookies) != 0 {
		t.Fatalf("GetCookies() = %+v, want none", cookies)
	}
}

// testAddCookieSubsecondExpiry adds a cookie whose expiry can't be read back
// unchanged, which must be refused.
func testAddCookieSubsecondExpiry(t *testing.T, env *Env) {
	ctx, cookie := setUpCookieTest(t, env)
	cookie.Expires = "4102444800123"
	if err := env.Driver.AddCookie(ctx, cookie); !errors.Is(err, webdriver.ErrInvalidExpiry) {
		t.Fatalf("AddCookie(%+v) returned error %v, want %v", cookie, err, webdriver.ErrInvalidExpiry)
	}
	if cookies := getCookies(ctx, t, env.Driver); len(cookies) != 0 {
		t.Fatalf("GetCookies() = %+v, want none", cookies)
	}

	// The same instant at second precision round-trips.
	cookie.Expires = "4102444800000"
	addCookie(ctx, t, env.Driver, cookie)
	got, ok := webdriver.FindCookie(getCookies(ctx, t, env.Driver), cookie.Name)
	if !ok {
		t.Fatalf("cookie %q not found", cookie.Name)
	}
	if diff := cmp.Diff(cookie, got); diff != "" {
		t.Fatalf("GetCookies() returned diff (-want/+got):\n%s", diff)
	}
}

// testOnlineCookie needs internet access. Network failures are reported the
// same way as assertion failures.
func testOnlineCookie(t *testing.T, env *Env) {
	if !env.Online {
		t.Skipf("requires network access; set %s=true", EnvOnline)
	}
	want := env.OnlineCookie
	ctx := testContext(t, env)
	if err := env.Driver.Get(ctx, want.URL); err != nil {
		t.Fatalf("Get(%q) returned error: %v", want.URL, err)
	}
	cookies := getCookies(ctx, t, env.Driver)
	c, ok := webdriver.FindCookie(cookies, want.Name)
	if !ok {
		t.Fatalf("GetCookies() = %+v, missing cookie %q", cookies, want.Name)
	}
	if !strings.Contains(c.Domain, want.Domain) {
		t.Fatalf("cookie %q has domain %q, want it to contain %q", c.Name, c.Domain, want.Domain)
	}
}
