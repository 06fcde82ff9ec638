// Package chrome provides webdriver drivers that control Chrome and Chromium
// through the DevTools protocol.
//
// Importing the package registers these drivers:
//
//	chrome          starts Google Chrome
//	chromium        starts Chromium
//	headless-shell  starts the headless-shell build, always headless
//	chrome-remote   attaches to the browser at webdriver.RemoteURL
package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"

	"github.com/chromedp/webdriver"
	"github.com/chromedp/webdriver/devtools"
)

func init() {
	webdriver.Register("chrome", execDriver(chromeExecPaths, false))
	webdriver.Register("chromium", execDriver(chromiumExecPaths, false))
	webdriver.Register("headless-shell", execDriver(headlessShellExecPaths, true))
	webdriver.Register("chrome-remote", func(ctx context.Context, opts *webdriver.Options) (webdriver.Driver, error) {
		return NewRemote(ctx, opts)
	})
}

func execDriver(paths []string, headless bool) webdriver.NewFunc {
	return func(ctx context.Context, opts *webdriver.Options) (webdriver.Driver, error) {
		if opts.ExecPath == "" {
			opts.ExecPath = findExecPath(paths...)
		}
		if headless {
			opts.Flags["headless"] = true
		}
		return New(ctx, opts)
	}
}

// Driver is a browser session on a single page target.
type Driver struct {
	opts    *webdriver.Options
	alloc   *allocator
	browser *Browser

	targetID target.ID
	session  *Session

	closed bool
}

// New starts a browser from opts.ExecPath with opts.Flags and opens a page
// in it. ctx bounds the startup only.
func New(ctx context.Context, opts *webdriver.Options) (*Driver, error) {
	alloc := newAllocator(opts.ExecPath, opts.Flags, opts.Logf)
	urlstr, err := alloc.start(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", opts.ExecPath, err)
	}
	d, err := newDriver(ctx, urlstr, opts)
	if err != nil {
		alloc.kill()
		return nil, err
	}
	d.alloc = alloc
	return d, nil
}

// NewRemote opens a page in the already running browser at opts.RemoteURL,
// either a websocket url or the browser's http debugging endpoint.
func NewRemote(ctx context.Context, opts *webdriver.Options) (*Driver, error) {
	urlstr := opts.RemoteURL
	if urlstr == "" {
		return nil, ErrNoRemoteURL
	}
	if !strings.HasPrefix(urlstr, "ws://") && !strings.HasPrefix(urlstr, "wss://") {
		endpoint := strings.TrimSuffix(urlstr, "/")
		if !strings.HasSuffix(endpoint, "/json") {
			endpoint += "/json"
		}
		var err error
		urlstr, err = devtools.New(devtools.URL(endpoint)).BrowserWebsocketURL(ctx)
		if err != nil {
			return nil, err
		}
	}
	return newDriver(ctx, devtools.ForceIP(urlstr), opts)
}

func newDriver(ctx context.Context, urlstr string, opts *webdriver.Options) (*Driver, error) {
	b, err := NewBrowser(ctx, urlstr,
		WithLogf(opts.Logf),
		WithErrorf(opts.Errorf),
		WithDebugf(opts.Debugf),
	)
	if err != nil {
		return nil, err
	}

	bctx := cdp.WithExecutor(ctx, b)
	targetID, err := target.CreateTarget("about:blank").Do(bctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	sessionID, err := target.AttachToTarget(targetID).WithFlatten(true).Do(bctx)
	if err != nil {
		b.Close()
		return nil, err
	}

	d := &Driver{
		opts:     opts,
		browser:  b,
		targetID: targetID,
		session:  b.Session(sessionID),
	}
	sctx := d.exec(ctx)
	if err := page.Enable().Do(sctx); err != nil {
		b.Close()
		return nil, err
	}
	if err := network.Enable().Do(sctx); err != nil {
		b.Close()
		return nil, err
	}
	return d, nil
}

// exec returns ctx with the page session as its executor.
func (d *Driver) exec(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, d.session)
}

// SessionID satisfies webdriver.Driver.
func (d *Driver) SessionID() string {
	return string(d.targetID)
}

func (d *Driver) check() error {
	if d.closed {
		return webdriver.ErrSessionClosed
	}
	return nil
}

// waitFor starts listening for page events before an action, returning a
// channel closed when match reports true for one of them.
func (d *Driver) waitFor(match func(ev interface{}) bool) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	fired := false
	remove := d.browser.listen(d.session.ID, func(ev interface{}) {
		if !fired && match(ev) {
			fired = true
			close(ch)
		}
	})
	return ch, remove
}

func isLoad(ev interface{}) bool {
	_, ok := ev.(*page.EventLoadEventFired)
	return ok
}

// isCommit matches a completed load, or a main frame navigation restored from
// the back-forward cache, which fires no load event.
func isCommit(ev interface{}) bool {
	switch ev := ev.(type) {
	case *page.EventLoadEventFired:
		return true
	case *page.EventFrameNavigated:
		return ev.Frame.ParentID == "" && ev.Type == page.NavigationTypeBackForwardCacheRestore
	}
	return false
}

// navigate runs action, then waits until match fires or the page load
// timeout passes.
func (d *Driver) navigate(ctx context.Context, match func(interface{}) bool, action func(context.Context) (wait bool, err error)) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.PageLoadTimeout)
		defer cancel()
	}

	loaded, remove := d.waitFor(match)
	defer remove()

	wait, err := action(d.exec(ctx))
	if err != nil || !wait {
		return err
	}
	select {
	case <-loaded:
		return nil
	case <-d.browser.Done():
		return ErrBrowserClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get satisfies webdriver.Driver.
func (d *Driver) Get(ctx context.Context, urlstr string) error {
	return d.navigate(ctx, isLoad, func(ctx context.Context) (bool, error) {
		_, loaderID, errorText, err := page.Navigate(urlstr).Do(ctx)
		if err != nil {
			return false, err
		}
		if errorText != "" {
			return false, fmt.Errorf("page load error %s", errorText)
		}
		// No loader means a same document navigation, such as to a
		// fragment; there is no load event.
		return loaderID != "", nil
	})
}

// history moves delta entries through the session history.
func (d *Driver) history(ctx context.Context, delta int64) error {
	return d.navigate(ctx, isCommit, func(ctx context.Context) (bool, error) {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return false, err
		}
		i := cur + delta
		if i < 0 || i >= int64(len(entries)) {
			return false, webdriver.ErrInvalidNavigation
		}
		if err := page.NavigateToHistoryEntry(entries[i].ID).Do(ctx); err != nil {
			return false, err
		}
		// Fragment entries of one document don't load.
		return stripFragment(entries[i].URL) != stripFragment(entries[cur].URL), nil
	})
}

func stripFragment(urlstr string) string {
	s, _, _ := strings.Cut(urlstr, "#")
	return s
}

// Back satisfies webdriver.Driver.
func (d *Driver) Back(ctx context.Context) error {
	return d.history(ctx, -1)
}

// Forward satisfies webdriver.Driver.
func (d *Driver) Forward(ctx context.Context) error {
	return d.history(ctx, 1)
}

// Refresh satisfies webdriver.Driver.
func (d *Driver) Refresh(ctx context.Context) error {
	return d.navigate(ctx, isLoad, func(ctx context.Context) (bool, error) {
		return true, page.Reload().Do(ctx)
	})
}

// evaluate evaluates expr in the page and decodes its value into res.
func (d *Driver) evaluate(ctx context.Context, expr string, res interface{}) error {
	if err := d.check(); err != nil {
		return err
	}
	v, exp, err := runtime.Evaluate(expr).WithReturnByValue(true).Do(d.exec(ctx))
	if err != nil {
		return err
	}
	if exp != nil {
		return exp
	}
	if v.Type == runtime.TypeUndefined {
		return fmt.Errorf("%s evaluated to undefined", expr)
	}
	if len(v.Value) == 0 {
		return json.Unmarshal([]byte("null"), res)
	}
	return json.Unmarshal(v.Value, res)
}

// CurrentURL satisfies webdriver.Driver.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var s string
	err := d.evaluate(ctx, `document.location.href`, &s)
	return s, err
}

// Title satisfies webdriver.Driver.
func (d *Driver) Title(ctx context.Context) (string, error) {
	var s string
	err := d.evaluate(ctx, `document.title`, &s)
	return s, err
}

// PageSource satisfies webdriver.Driver.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	var s string
	err := d.evaluate(ctx, `document.documentElement.outerHTML`, &s)
	return s, err
}

const textJS = `(function(sel) {
	const el = document.querySelector(sel);
	return el === null ? null : el.innerText;
})(%s)`

// Text satisfies webdriver.Driver.
func (d *Driver) Text(ctx context.Context, sel string) (string, error) {
	quoted, err := json.Marshal(sel)
	if err != nil {
		return "", err
	}
	var s *string
	if err := d.evaluate(ctx, fmt.Sprintf(textJS, quoted), &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", webdriver.ErrNoResults
	}
	return strings.TrimSpace(*s), nil
}

// pageURL returns the current page url, which must be a http(s) url for the
// cookie commands.
func (d *Driver) pageURL(ctx context.Context) (*url.URL, error) {
	urlstr, err := d.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(urlstr)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, webdriver.ErrNoPage
	}
	return u, nil
}

// AddCookie satisfies webdriver.Driver. A domain equal to the page's host
// makes a host-only cookie.
func (d *Driver) AddCookie(ctx context.Context, c webdriver.Cookie) error {
	u, err := d.pageURL(ctx)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	path := c.Path
	if path == "" {
		path = "/"
	}
	params := network.SetCookie(c.Name, c.Value).
		WithURL(u.String()).
		WithPath(path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)

	host := strings.ToLower(u.Hostname())
	if domain := strings.TrimPrefix(strings.ToLower(c.Domain), "."); domain != "" && domain != host {
		if !strings.HasSuffix(host, "."+domain) || net.ParseIP(host) != nil {
			return fmt.Errorf("%w: domain %q does not match %q", webdriver.ErrInvalidCookie, c.Domain, host)
		}
		params = params.WithDomain(c.Domain)
	}
	if t, _ := c.ExpiryTime(); !t.IsZero() {
		expires := cdp.TimeSinceEpoch(t)
		params = params.WithExpires(&expires)
	}
	return cdp.Execute(d.exec(ctx), network.CommandSetCookie, params, nil)
}

// GetCookies satisfies webdriver.Driver.
func (d *Driver) GetCookies(ctx context.Context) ([]webdriver.Cookie, error) {
	u, err := d.pageURL(ctx)
	if err != nil {
		return nil, err
	}
	cookies, err := network.GetCookies().WithUrls([]string{u.String()}).Do(d.exec(ctx))
	if err != nil {
		return nil, err
	}
	res := make([]webdriver.Cookie, 0, len(cookies))
	for _, c := range cookies {
		wc := webdriver.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session {
			wc.Expires = webdriver.FormatExpires(time.Unix(int64(c.Expires), 0))
		}
		res = append(res, wc)
	}
	return res, nil
}

// DeleteCookie satisfies webdriver.Driver.
func (d *Driver) DeleteCookie(ctx context.Context, name string) error {
	u, err := d.pageURL(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		return webdriver.ErrInvalidCookie
	}
	return network.DeleteCookies(name).WithURL(u.String()).Do(d.exec(ctx))
}

// DeleteAllCookies satisfies webdriver.Driver. Only the cookies visible to
// the current page are deleted.
func (d *Driver) DeleteAllCookies(ctx context.Context) error {
	cookies, err := d.GetCookies(ctx)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		err := network.DeleteCookies(c.Name).
			WithDomain(c.Domain).
			WithPath(c.Path).
			Do(d.exec(ctx))
		if err != nil {
			return err
		}
	}
	return nil
}

// Screenshot satisfies webdriver.Screenshotter, capturing the viewport as a
// PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return page.CaptureScreenshot().
		WithFormat(page.CaptureScreenshotFormatPng).
		Do(d.exec(ctx))
}

// PrintToPDF satisfies webdriver.PDFPrinter.
func (d *Driver) PrintToPDF(ctx context.Context) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	buf, _, err := page.PrintToPDF().Do(d.exec(ctx))
	return buf, err
}

// Quit satisfies webdriver.Driver. A started browser is closed and waited
// for; for a remote browser only the page is closed.
func (d *Driver) Quit(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	d.closed = true

	bctx := cdp.WithExecutor(ctx, d.browser)
	var err error
	if d.alloc == nil {
		err = cdp.Execute(bctx, target.CommandCloseTarget, target.CloseTarget(d.targetID), nil)
		d.browser.Close()
		return err
	}

	if err = browser.Close().Do(bctx); err != nil && !errors.Is(err, ErrBrowserClosed) {
		d.opts.Errorf("could not close browser: %v", err)
		d.alloc.cmd.Process.Kill()
	}
	d.browser.Close()

	done := make(chan error, 1)
	go func() { done <- d.alloc.wait() }()
	select {
	case err = <-done:
	case <-ctx.Done():
		d.alloc.cmd.Process.Kill()
		err = <-done
	}
	d.opts.Debugf("chrome: session %s quit", d.targetID)
	return err
}
