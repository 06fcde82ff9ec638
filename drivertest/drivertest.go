// Package drivertest provides test suites that exercise webdriver drivers
// against a local webserver fixture. The suites are kept in their own package
// so that every driver, including ones outside this module, can validate
// its behavior.
//
// A driver package typically starts one environment for all of its tests:
//
//	var env *drivertest.Env
//
//	func TestMain(m *testing.M) {
//		c, err := webdriver.ConfigFromEnv("htmlunit")
//		if err != nil {
//			log.Fatal(err)
//		}
//		env, err = drivertest.Start(context.Background(), "htmlunit", c.Options()...)
//		if err != nil {
//			log.Fatal(err)
//		}
//		code := m.Run()
//		if err := env.Stop(context.Background()); err != nil {
//			log.Print(err)
//		}
//		os.Exit(code)
//	}
//
//	func TestCookies(t *testing.T) { drivertest.RunCookieTests(t, env) }
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/webdriver"
	"github.com/chromedp/webdriver/webserver"
)

// EnvOnline enables the tests that need internet access when set to a value
// other than "false".
const EnvOnline = "WEBDRIVER_TEST_ONLINE"

// DefaultTestTimeout bounds each test of the suites.
const DefaultTestTimeout = 30 * time.Second

// OnlineCookie describes the cookie an external site is expected to set.
type OnlineCookie struct {
	// URL is the page to load.
	URL string
	// Name is the cookie that must be present.
	Name string
	// Domain must be a substring of the cookie's domain.
	Domain string
}

// DefaultOnlineCookie is checked by the network dependent cookie test.
var DefaultOnlineCookie = OnlineCookie{
	URL:    "http://www.google.com",
	Name:   "NID",
	Domain: "google",
}

// Env is the suite-scoped state the suites run against: one driver and one
// running fixture, shared by all the tests of a suite run.
type Env struct {
	// Browser is the name the driver was constructed with.
	Browser string
	Driver  webdriver.Driver
	Server  *webserver.Server

	// Online enables tests that need internet access.
	Online       bool
	OnlineCookie OnlineCookie

	// TestTimeout bounds each test.
	TestTimeout time.Duration

	stopOnce sync.Once
	stopErr  error
}

// Start starts the fixture, then constructs the driver for browser. If the
// driver can't be constructed the fixture is stopped again.
func Start(ctx context.Context, browser string, opts ...webdriver.Option) (*Env, error) {
	srv := webserver.New(webserver.WithLogf(webdriver.NewOptions(opts...).Logf))
	if err := srv.Start(); err != nil {
		return nil, err
	}
	d, err := webdriver.New(ctx, browser, opts...)
	if err != nil {
		if stopErr := srv.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return nil, err
	}
	return &Env{
		Browser:      browser,
		Driver:       d,
		Server:       srv,
		Online:       onlineFromEnv(),
		OnlineCookie: DefaultOnlineCookie,
		TestTimeout:  DefaultTestTimeout,
	}, nil
}

// StartFromEnv is like Start, taking the driver name and options from
// webdriver.ConfigFromEnv. The browser named by the environment, if any,
// overrides browser.
func StartFromEnv(ctx context.Context, browser string) (*Env, error) {
	c, err := webdriver.ConfigFromEnv(browser)
	if err != nil {
		return nil, err
	}
	return Start(ctx, c.Browser, c.Options()...)
}

func onlineFromEnv() bool {
	s := os.Getenv(EnvOnline)
	return s != "" && s != "false"
}

// Stop quits the driver and stops the fixture. Only the first call does any
// work; later calls return the same result.
func (e *Env) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		var errs []error
		if err := e.Driver.Quit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("quitting %s driver: %w", e.Browser, err))
		}
		if err := e.Server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping webserver: %w", err))
		}
		e.stopErr = errors.Join(errs...)
	})
	return e.stopErr
}

// Setup starts an environment scoped to tb, stopping it when tb and its
// subtests complete. It fails tb if the environment can't be started.
func Setup(tb testing.TB, browser string, opts ...webdriver.Option) *Env {
	tb.Helper()
	env, err := Start(context.Background(), browser, opts...)
	if err != nil {
		tb.Fatalf("starting %s environment: %v", browser, err)
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := env.Stop(ctx); err != nil {
			tb.Error(err)
		}
	})
	return env
}

func runTest(f func(*testing.T, *Env), env *Env) func(*testing.T) {
	return func(t *testing.T) {
		f(t, env)
	}
}

// testContext returns a context bounded by the environment's test timeout,
// cancelled when t completes.
func testContext(t *testing.T, env *Env) context.Context {
	timeout := env.TestTimeout
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RunAll runs every suite.
func RunAll(t *testing.T, env *Env) {
	t.Run("Cookies", func(t *testing.T) { RunCookieTests(t, env) })
	t.Run("APIExamples", func(t *testing.T) { RunAPIExampleTests(t, env) })
}
