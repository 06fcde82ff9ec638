package htmlunit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/webdriver"
	"github.com/chromedp/webdriver/drivertest"
)

var env *drivertest.Env

func TestMain(m *testing.M) {
	c, err := webdriver.ConfigFromEnv("htmlunit")
	if err != nil {
		log.Fatal(err)
	}
	env, err = drivertest.Start(context.Background(), "htmlunit", c.Options()...)
	if err != nil {
		log.Fatal(err)
	}
	code := m.Run()
	if err := env.Stop(context.Background()); err != nil {
		log.Print(err)
	}
	os.Exit(code)
}

func TestCookies(t *testing.T) {
	drivertest.RunCookieTests(t, env)
}

func TestAPIExamples(t *testing.T) {
	drivertest.RunAPIExampleTests(t, env)
}

func newDriver(t *testing.T, opts ...webdriver.Option) *Driver {
	t.Helper()
	d := New(webdriver.NewOptions(append([]webdriver.Option{webdriver.WithLogf(t.Logf)}, opts...)...))
	t.Cleanup(func() {
		_ = d.Quit(context.Background())
	})
	return d
}

func TestRegistered(t *testing.T) {
	d, err := webdriver.New(context.Background(), "HtmlUnit")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*Driver); !ok {
		t.Fatalf("webdriver.New returned %T, want *Driver", d)
	}
	if d.SessionID() == "" {
		t.Error("empty session id")
	}
	if err := d.Quit(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestNoPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDriver(t)

	urlstr, err := d.CurrentURL(ctx)
	if err != nil || urlstr != "about:blank" {
		t.Errorf("CurrentURL() = %q, %v, want about:blank", urlstr, err)
	}
	if err := d.AddCookie(ctx, webdriver.Cookie{Name: "foo"}); !errors.Is(err, webdriver.ErrNoPage) {
		t.Errorf("AddCookie() returned %v, want %v", err, webdriver.ErrNoPage)
	}
	if _, err := d.GetCookies(ctx); !errors.Is(err, webdriver.ErrNoPage) {
		t.Errorf("GetCookies() returned %v, want %v", err, webdriver.ErrNoPage)
	}
	if err := d.Back(ctx); !errors.Is(err, webdriver.ErrInvalidNavigation) {
		t.Errorf("Back() returned %v, want %v", err, webdriver.ErrInvalidNavigation)
	}
}

func TestNavigationBounds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDriver(t)
	if err := d.Get(ctx, env.Server.URL("simpleTest.html")); err != nil {
		t.Fatal(err)
	}
	if err := d.Back(ctx); !errors.Is(err, webdriver.ErrInvalidNavigation) {
		t.Errorf("Back() returned %v, want %v", err, webdriver.ErrInvalidNavigation)
	}
	if err := d.Forward(ctx); !errors.Is(err, webdriver.ErrInvalidNavigation) {
		t.Errorf("Forward() returned %v, want %v", err, webdriver.ErrInvalidNavigation)
	}
}

func TestGetTruncatesHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDriver(t)
	for _, path := range []string{"formPage.html", "resultPage.html"} {
		if err := d.Get(ctx, env.Server.URL(path)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Back(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Get(ctx, env.Server.URL("xhtmlTest.html")); err != nil {
		t.Fatal(err)
	}
	if err := d.Forward(ctx); !errors.Is(err, webdriver.ErrInvalidNavigation) {
		t.Errorf("Forward() after Get returned %v, want %v", err, webdriver.ErrInvalidNavigation)
	}
	if err := d.Back(ctx); err != nil {
		t.Fatal(err)
	}
	if title, _ := d.Title(ctx); title != "We Leave From Here" {
		t.Errorf("Title() = %q, want %q", title, "We Leave From Here")
	}
}

func TestUnsupportedScheme(t *testing.T) {
	t.Parallel()
	d := newDriver(t)
	if err := d.Get(context.Background(), "ftp://localhost/"); err == nil {
		t.Error("Get() with ftp url did not return an error")
	}
}

func TestAddCookieForeignDomain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDriver(t)
	if err := d.Get(ctx, env.Server.URL("simpleTest.html")); err != nil {
		t.Fatal(err)
	}
	err := d.AddCookie(ctx, webdriver.Cookie{Name: "foo", Value: "bar", Domain: "example.com"})
	if !errors.Is(err, webdriver.ErrInvalidCookie) {
		t.Errorf("AddCookie() returned %v, want %v", err, webdriver.ErrInvalidCookie)
	}
}

func TestAddCookieDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDriver(t)
	if err := d.Get(ctx, env.Server.URL("simpleTest.html")); err != nil {
		t.Fatal(err)
	}
	if err := d.AddCookie(ctx, webdriver.Cookie{Name: "foo", Value: "bar"}); err != nil {
		t.Fatal(err)
	}
	cookies, err := d.GetCookies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := webdriver.Cookie{Name: "foo", Value: "bar", Domain: "localhost", Path: "/"}
	if len(cookies) != 1 || cookies[0] != want {
		t.Errorf("GetCookies() = %+v, want [%+v]", cookies, want)
	}
}

func TestQuit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := New(webdriver.NewOptions())
	if err := d.Get(ctx, env.Server.URL("simpleTest.html")); err != nil {
		t.Fatal(err)
	}
	if err := d.Quit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Quit(ctx); !errors.Is(err, webdriver.ErrSessionClosed) {
		t.Errorf("second Quit() returned %v, want %v", err, webdriver.ErrSessionClosed)
	}
	if _, err := d.Title(ctx); !errors.Is(err, webdriver.ErrSessionClosed) {
		t.Errorf("Title() after Quit returned %v, want %v", err, webdriver.ErrSessionClosed)
	}
}

// changingServer serves /first and /moved as plain pages, and /changing as a
// page that changes on every later visit: to a meta refresh to /moved, or with
// slow set, to a response that never completes.
func changingServer(t *testing.T, slow bool) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	visits := 0
	titled := func(title string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body></body></html>", title)
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/first", titled("First"))
	mux.Handle("/moved", titled("Moved"))
	mux.HandleFunc("/changing", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		visits++
		n := visits
		mu.Unlock()
		switch {
		case n == 1:
			titled("Changing")(w, r)
		case slow:
			select {
			case <-r.Context().Done():
			case <-time.After(time.Minute):
			}
		default:
			fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0; url=/moved"><title>Changing</title></head></html>`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshFollowsMetaRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := changingServer(t, false)
	d := newDriver(t)
	for _, path := range []string{"/first", "/changing"} {
		if err := d.Get(ctx, srv.URL+path); err != nil {
			t.Fatal(err)
		}
	}

	if err := d.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() returned error: %v", err)
	}
	if title, _ := d.Title(ctx); title != "Moved" {
		t.Errorf("Title() after Refresh = %q, want %q", title, "Moved")
	}
	if urlstr, _ := d.CurrentURL(ctx); !strings.HasSuffix(urlstr, "/moved") {
		t.Errorf("CurrentURL() after Refresh = %q, want it to end with /moved", urlstr)
	}

	// The refreshed entry stays at the same history position.
	if err := d.Back(ctx); err != nil {
		t.Fatal(err)
	}
	if title, _ := d.Title(ctx); title != "First" {
		t.Errorf("Title() after Back = %q, want %q", title, "First")
	}
	if err := d.Forward(ctx); err != nil {
		t.Fatal(err)
	}
	if title, _ := d.Title(ctx); title != "Moved" {
		t.Errorf("Title() after Forward = %q, want %q", title, "Moved")
	}
	if err := d.Forward(ctx); !errors.Is(err, webdriver.ErrInvalidNavigation) {
		t.Errorf("Forward() at the end returned %v, want %v", err, webdriver.ErrInvalidNavigation)
	}
}

func TestRefreshPageLoadTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv := changingServer(t, true)
	d := newDriver(t, webdriver.PageLoadTimeout(100*time.Millisecond))
	if err := d.Get(ctx, srv.URL+"/changing"); err != nil {
		t.Fatal(err)
	}
	if err := d.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Refresh() returned %v, want %v", err, context.DeadlineExceeded)
	}
	if title, _ := d.Title(ctx); title != "Changing" {
		t.Errorf("Title() after failed Refresh = %q, want %q", title, "Changing")
	}
}
