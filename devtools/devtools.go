// Package devtools provides a client for the HTTP endpoints of a browser's
// remote debugging server.
package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mailru/easyjson"
)

const (
	// DefaultEndpoint is the default endpoint to connect to.
	DefaultEndpoint = "http://localhost:9222/json"

	// DefaultWatchInterval is the default check duration.
	DefaultWatchInterval = 100 * time.Millisecond

	// DefaultWatchTimeout is the default watch timeout.
	DefaultWatchTimeout = 5 * time.Second
)

// Error is a devtools client error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

const (
	// ErrUnsupportedProtocolType is the unsupported protocol type error.
	ErrUnsupportedProtocolType Error = "unsupported protocol type"

	// ErrUnsupportedProtocolVersion is the unsupported protocol version error.
	ErrUnsupportedProtocolVersion Error = "unsupported protocol version"

	// ErrNoWebsocketURL is returned when the browser does not report its
	// websocket debugger url.
	ErrNoWebsocketURL Error = "no websocket debugger url"
)

// Client is a remote debugging endpoint client.
type Client struct {
	url     string
	check   time.Duration
	timeout time.Duration
	client  *http.Client

	ver, typ string
	rw       sync.RWMutex
}

// New creates a new client.
func New(opts ...Option) *Client {
	c := &Client{
		url:     DefaultEndpoint,
		check:   DefaultWatchInterval,
		timeout: DefaultWatchTimeout,
		client:  http.DefaultClient,
	}

	// apply opts
	for _, o := range opts {
		o(c)
	}

	return c
}

// doReq executes a request.
func (c *Client) doReq(ctx context.Context, method, action string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url+"/"+action, nil)
	if err != nil {
		return err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("devtools: %s %s: %s: %s", method, action, res.Status, strings.TrimSpace(string(body)))
	}
	if z, ok := v.(easyjson.Unmarshaler); ok {
		return easyjson.Unmarshal(body, z)
	}
	return json.Unmarshal(body, v)
}

// ListTargets returns a list of all targets.
func (c *Client) ListTargets(ctx context.Context) ([]*Target, error) {
	if err := c.checkProtocol(ctx); err != nil {
		return nil, err
	}
	var targets []*Target
	if err := c.doReq(ctx, http.MethodGet, "list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// ListTargetsWithType returns a list of targets with the specified type.
func (c *Client) ListTargetsWithType(ctx context.Context, typ TargetType) ([]*Target, error) {
	targets, err := c.ListTargets(ctx)
	if err != nil {
		return nil, err
	}

	var ret []*Target
	for _, t := range targets {
		if t.Type == typ {
			ret = append(ret, t)
		}
	}
	return ret, nil
}

// ListPageTargets lists the available page targets.
func (c *Client) ListPageTargets(ctx context.Context) ([]*Target, error) {
	return c.ListTargetsWithType(ctx, Page)
}

var browserRE = regexp.MustCompile(`(?i)^(headlesschrome|chrome|chromium|microsoft edge)`)

// loadProtocolInfo loads the protocol information from the remote URL.
func (c *Client) loadProtocolInfo(ctx context.Context) (string, string, error) {
	c.rw.Lock()
	defer c.rw.Unlock()

	if c.ver == "" {
		v, err := c.VersionInfo(ctx)
		if err != nil {
			return "", "", err
		}
		if m := browserRE.FindStringSubmatch(v["Browser"]); m != nil {
			c.typ = strings.ToLower(m[1])
		}
		c.ver = v["Protocol-Version"]
	}

	return c.ver, c.typ, nil
}

// checkProtocol verifies the remote speaks a known protocol version.
func (c *Client) checkProtocol(ctx context.Context) error {
	ver, typ, err := c.loadProtocolInfo(ctx)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(ver, "1.") {
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocolVersion, ver)
	}
	if typ == "" {
		return ErrUnsupportedProtocolType
	}
	return nil
}

// NewPageTarget creates a new page target, loading urlstr when it is not
// empty.
func (c *Client) NewPageTarget(ctx context.Context, urlstr string) (*Target, error) {
	if err := c.checkProtocol(ctx); err != nil {
		return nil, err
	}
	action := "new"
	if urlstr != "" {
		action += "?" + urlstr
	}
	t := new(Target)
	if err := c.doReq(ctx, http.MethodPut, action, t); err != nil {
		return nil, err
	}
	return t, nil
}

// VersionInfo returns information about the remote debugging protocol.
func (c *Client) VersionInfo(ctx context.Context) (map[string]string, error) {
	v := make(map[string]string)
	if err := c.doReq(ctx, http.MethodGet, "version", &v); err != nil {
		return nil, err
	}
	return v, nil
}

// BrowserWebsocketURL returns the websocket url of the browser target.
func (c *Client) BrowserWebsocketURL(ctx context.Context) (string, error) {
	v, err := c.VersionInfo(ctx)
	if err != nil {
		return "", err
	}
	urlstr := v["webSocketDebuggerUrl"]
	if urlstr == "" {
		return "", ErrNoWebsocketURL
	}
	return ForceIP(urlstr), nil
}

// WatchPageTargets watches for new page targets. The returned channel is
// closed when ctx is done, or when listing targets fails for longer than the
// watch timeout.
func (c *Client) WatchPageTargets(ctx context.Context) <-chan *Target {
	ch := make(chan *Target)
	go func() {
		defer close(ch)

		encountered := make(map[string]bool)
		check := func() error {
			targets, err := c.ListPageTargets(ctx)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if encountered[t.ID] {
					continue
				}
				encountered[t.ID] = true
				select {
				case ch <- t:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}

		lastGood := time.Now()
		for {
			if err := check(); err == nil {
				lastGood = time.Now()
			} else if time.Since(lastGood) > c.timeout {
				return
			}

			select {
			case <-time.After(c.check):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// ForceIP forces the host component in urlstr to be an IP address.
//
// Since Chrome 66+, clients connecting to the remote debugging server must
// send the "Host:" header as either an IP address, or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme):], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.Index(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			urlstr = scheme + addr.IP.String() + port + path
		}
	}
	return urlstr
}

// Option is a client option.
type Option func(*Client)

// URL is a client option to specify the remote debugging endpoint, such as
// "http://localhost:9222/json".
func URL(urlstr string) Option {
	return func(c *Client) {
		c.url = strings.TrimSuffix(ForceIP(urlstr), "/")
	}
}

// HTTPClient is a client option to specify the http client used for
// requests.
func HTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WatchInterval is a client option that specifies the check interval duration.
func WatchInterval(check time.Duration) Option {
	return func(c *Client) {
		c.check = check
	}
}

// WatchTimeout is a client option that specifies the watch timeout duration.
func WatchTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}
