// Package htmlunit provides a headless driver that fetches and parses pages
// in process, without a browser. It does not run JavaScript.
//
// Importing the package registers the driver as "htmlunit":
//
//	import _ "github.com/chromedp/webdriver/htmlunit"
package htmlunit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/chromedp/webdriver"
)

func init() {
	webdriver.Register("htmlunit", func(ctx context.Context, opts *webdriver.Options) (webdriver.Driver, error) {
		return New(opts), nil
	})
}

// maxMetaRefreshes bounds how many meta refresh redirects a load follows.
const maxMetaRefreshes = 10

// page is a loaded document.
type page struct {
	url    *url.URL
	source string
	doc    *goquery.Document
}

// Driver is an in-process browser session.
type Driver struct {
	id     string
	opts   *webdriver.Options
	client *http.Client
	jar    *cookieStore

	// history holds visited URLs; pos indexes the current one.
	history []string
	pos     int
	cur     *page
	closed  bool
}

// New creates a driver. Only the HTTPClient, PageLoadTimeout and logging
// options apply.
func New(opts *webdriver.Options) *Driver {
	jar := newCookieStore()
	client := new(http.Client)
	if opts.HTTPClient != nil {
		*client = *opts.HTTPClient
	}
	client.Jar = jar
	return &Driver{
		id:     uuid.NewString(),
		opts:   opts,
		client: client,
		jar:    jar,
		pos:    -1,
	}
}

// SessionID satisfies webdriver.Driver.
func (d *Driver) SessionID() string {
	return d.id
}

func (d *Driver) check() error {
	if d.closed {
		return webdriver.ErrSessionClosed
	}
	return nil
}

func (d *Driver) current() (*page, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if d.cur == nil {
		return nil, webdriver.ErrNoPage
	}
	return d.cur, nil
}

// fetch requests u and parses the response body.
func (d *Driver) fetch(ctx context.Context, u *url.URL) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	d.opts.Debugf("GET %s -> %s", u, res.Status)

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", u, err)
	}
	final := *res.Request.URL
	final.Fragment = u.Fragment
	return &page{url: &final, source: string(buf), doc: doc}, nil
}

// load fetches urlstr, resolved against the current page, following meta
// refresh redirects.
func (d *Driver) load(ctx context.Context, urlstr string) (*page, error) {
	u, err := url.Parse(urlstr)
	if err != nil {
		return nil, err
	}
	if d.cur != nil {
		u = d.cur.url.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	// Moving to a fragment of the current document doesn't reload it.
	if d.cur != nil && u.Fragment != "" {
		a, b := *u, *d.cur.url
		a.Fragment, b.Fragment = "", ""
		if a == b {
			return &page{url: u, source: d.cur.source, doc: d.cur.doc}, nil
		}
	}
	return d.open(ctx, u)
}

// open fetches u within the page load timeout, following meta refresh
// redirects.
func (d *Driver) open(ctx context.Context, u *url.URL) (*page, error) {
	if d.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.PageLoadTimeout)
		defer cancel()
	}
	p, err := d.fetch(ctx, u)
	for i := 0; err == nil && i < maxMetaRefreshes; i++ {
		next, ok := metaRefresh(p)
		if !ok {
			break
		}
		d.opts.Debugf("meta refresh %s -> %s", p.url, next)
		p, err = d.fetch(ctx, next)
	}
	return p, err
}

// metaRefresh returns the target of an immediate meta refresh redirect.
func metaRefresh(p *page) (*url.URL, bool) {
	var content string
	p.doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			content = s.AttrOr("content", "")
			return false
		}
		return true
	})
	delay, target, _ := strings.Cut(content, ";")
	if secs, err := strconv.ParseFloat(strings.TrimSpace(delay), 64); err != nil || secs != 0 {
		return nil, false
	}
	target = strings.TrimSpace(target)
	if len(target) > 4 && strings.EqualFold(target[:4], "url=") {
		target = target[4:]
	}
	target = strings.Trim(strings.TrimSpace(target), `'"`)
	if target == "" {
		return nil, false
	}
	u, err := p.url.Parse(target)
	if err != nil {
		return nil, false
	}
	return u, true
}

// Get satisfies webdriver.Driver.
func (d *Driver) Get(ctx context.Context, urlstr string) error {
	if err := d.check(); err != nil {
		return err
	}
	p, err := d.load(ctx, urlstr)
	if err != nil {
		return err
	}
	d.cur = p
	d.history = append(d.history[:d.pos+1], p.url.String())
	d.pos = len(d.history) - 1
	return nil
}

// navigate moves delta entries through the history.
func (d *Driver) navigate(ctx context.Context, delta int) error {
	if err := d.check(); err != nil {
		return err
	}
	i := d.pos + delta
	if i < 0 || i >= len(d.history) {
		return webdriver.ErrInvalidNavigation
	}
	p, err := d.load(ctx, d.history[i])
	if err != nil {
		return err
	}
	d.cur, d.pos = p, i
	return nil
}

// Back satisfies webdriver.Driver.
func (d *Driver) Back(ctx context.Context) error {
	return d.navigate(ctx, -1)
}

// Forward satisfies webdriver.Driver.
func (d *Driver) Forward(ctx context.Context) error {
	return d.navigate(ctx, 1)
}

// Refresh satisfies webdriver.Driver. It reloads the current entry in place;
// where a meta refresh leads elsewhere, the entry is updated.
func (d *Driver) Refresh(ctx context.Context) error {
	cur, err := d.current()
	if err != nil {
		return err
	}
	p, err := d.open(ctx, cur.url)
	if err != nil {
		return err
	}
	d.cur = p
	d.history[d.pos] = p.url.String()
	return nil
}

// CurrentURL satisfies webdriver.Driver. It is "about:blank" before the first
// page is loaded.
func (d *Driver) CurrentURL(context.Context) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	if d.cur == nil {
		return "about:blank", nil
	}
	return d.cur.url.String(), nil
}

// Title satisfies webdriver.Driver.
func (d *Driver) Title(context.Context) (string, error) {
	if err := d.check(); err != nil {
		return "", err
	}
	if d.cur == nil {
		return "", nil
	}
	title := d.cur.doc.Find("title").First().Text()
	return strings.Join(strings.Fields(title), " "), nil
}

// PageSource satisfies webdriver.Driver.
func (d *Driver) PageSource(context.Context) (string, error) {
	cur, err := d.current()
	if err != nil {
		return "", err
	}
	return cur.source, nil
}

// Text satisfies webdriver.Driver.
func (d *Driver) Text(_ context.Context, sel string) (string, error) {
	cur, err := d.current()
	if err != nil {
		return "", err
	}
	s := cur.doc.Find(sel).First()
	if s.Length() == 0 {
		return "", webdriver.ErrNoResults
	}
	return strings.TrimSpace(s.Text()), nil
}

// AddCookie satisfies webdriver.Driver. An empty domain makes a host-only
// cookie for the current page's host; an empty path defaults to "/".
func (d *Driver) AddCookie(_ context.Context, c webdriver.Cookie) error {
	cur, err := d.current()
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	host := canonicalHost(cur.url)
	e := &entry{
		name:     c.Name,
		value:    c.Value,
		domain:   host,
		hostOnly: true,
		path:     c.Path,
		secure:   c.Secure,
		httpOnly: c.HTTPOnly,
	}
	if domain := strings.TrimPrefix(strings.ToLower(c.Domain), "."); domain != "" {
		if !domainMatch(host, domain) {
			return fmt.Errorf("%w: domain %q does not match %q", webdriver.ErrInvalidCookie, c.Domain, host)
		}
		e.domain, e.hostOnly = domain, domain == host
	}
	if e.path == "" {
		e.path = "/"
	}
	e.expires, _ = c.ExpiryTime()
	d.jar.set(e)
	return nil
}

// GetCookies satisfies webdriver.Driver. Cookies are listed in the order
// they were created.
func (d *Driver) GetCookies(context.Context) ([]webdriver.Cookie, error) {
	cur, err := d.current()
	if err != nil {
		return nil, err
	}
	entries := d.jar.visible(cur.url)
	cookies := make([]webdriver.Cookie, 0, len(entries))
	for _, e := range entries {
		cookies = append(cookies, e.cookie())
	}
	return cookies, nil
}

// DeleteCookie satisfies webdriver.Driver.
func (d *Driver) DeleteCookie(_ context.Context, name string) error {
	cur, err := d.current()
	if err != nil {
		return err
	}
	if name == "" {
		return webdriver.ErrInvalidCookie
	}
	d.jar.remove(cur.url, name)
	return nil
}

// DeleteAllCookies satisfies webdriver.Driver.
func (d *Driver) DeleteAllCookies(context.Context) error {
	cur, err := d.current()
	if err != nil {
		return err
	}
	d.jar.remove(cur.url, "")
	return nil
}

// Quit satisfies webdriver.Driver.
func (d *Driver) Quit(context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	d.closed = true
	d.cur, d.history = nil, nil
	d.client.CloseIdleConnections()
	d.opts.Debugf("htmlunit: session %s quit", d.id)
	return nil
}
