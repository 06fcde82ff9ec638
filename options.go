package webdriver

import (
	"fmt"
	"log"
	"net/http"
	"time"
)

// DefaultPageLoadTimeout bounds how long Get and the history navigations wait
// for a page to load when no PageLoadTimeout option is given.
const DefaultPageLoadTimeout = 30 * time.Second

// Options holds the settings forwarded by New to a driver constructor. Each
// driver reads the settings that apply to it and ignores the rest.
type Options struct {
	// ExecPath is the browser executable to start.
	ExecPath string

	// Flags are command line flags passed to a started browser. A string
	// value is passed as --name=value; a bool as --name when true.
	Flags map[string]interface{}

	// RemoteURL is the endpoint of an already running browser.
	RemoteURL string

	// HTTPClient is used by drivers that fetch pages themselves.
	HTTPClient *http.Client

	// PageLoadTimeout bounds page loads.
	PageLoadTimeout time.Duration

	// Logf, Errorf and Debugf receive general, error and protocol logging.
	Logf, Errorf, Debugf func(string, ...interface{})
}

// Option is a driver construction option.
type Option func(*Options)

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Flags:           make(map[string]interface{}),
		PageLoadTimeout: DefaultPageLoadTimeout,
		Logf:            log.Printf,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Errorf == nil {
		logf := o.Logf
		o.Errorf = func(s string, v ...interface{}) { logf("ERROR: "+s, v...) }
	}
	if o.Debugf == nil {
		o.Debugf = func(string, ...interface{}) {}
	}
	return o
}

// ExecPath sets the browser executable. The path can be absolute, or the name
// of a program to look up in PATH.
func ExecPath(path string) Option {
	return func(o *Options) {
		o.ExecPath = path
	}
}

// Flag is a generic command line option to pass a flag to a started browser.
// If the value is a string, it will be passed as --name=value. If it's a
// boolean, it will be passed as --name if value is true.
func Flag(name string, value interface{}) Option {
	return func(o *Options) {
		o.Flags[name] = value
	}
}

// UserDataDir sets the profile directory used by a started browser. When it
// is not set, drivers create a temporary directory and remove it on Quit.
func UserDataDir(dir string) Option {
	return Flag("user-data-dir", dir)
}

// ProxyServer sets the outbound proxy server.
func ProxyServer(proxy string) Option {
	return Flag("proxy-server", proxy)
}

// WindowSize sets the initial window size.
func WindowSize(width, height int) Option {
	return Flag("window-size", fmt.Sprintf("%d,%d", width, height))
}

// UserAgent sets the default User-Agent header.
func UserAgent(userAgent string) Option {
	return Flag("user-agent", userAgent)
}

// Headless runs the browser without a window.
func Headless(o *Options) {
	Flag("headless", true)(o)
}

// NoSandbox disables the browser's sandbox.
func NoSandbox(o *Options) {
	Flag("no-sandbox", true)(o)
}

// DisableGPU disables the GPU process.
func DisableGPU(o *Options) {
	Flag("disable-gpu", true)(o)
}

// RemoteURL attaches to the browser at urlstr instead of starting one.
func RemoteURL(urlstr string) Option {
	return func(o *Options) {
		o.RemoteURL = urlstr
	}
}

// HTTPClient sets the client used by drivers that fetch pages themselves.
func HTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// PageLoadTimeout bounds how long navigations wait for a page to load.
func PageLoadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.PageLoadTimeout = d
	}
}

// WithLogf sets the func receiving general logging.
func WithLogf(f func(string, ...interface{})) Option {
	return func(o *Options) {
		o.Logf = f
	}
}

// WithErrorf sets the func receiving error logging.
func WithErrorf(f func(string, ...interface{})) Option {
	return func(o *Options) {
		o.Errorf = f
	}
}

// WithDebugf sets the func receiving protocol level logging.
func WithDebugf(f func(string, ...interface{})) Option {
	return func(o *Options) {
		o.Debugf = f
	}
}
