// Package webserver provides the local web server used as a fixture by the
// driver test suites. It serves a fixed set of deterministic test pages.
package webserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed testdata/*.html
var pages embed.FS

// Error is a webserver error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error values.
const (
	// ErrAlreadyStarted is returned when starting a running server.
	ErrAlreadyStarted Error = "already started"

	// ErrNotStarted is returned when stopping a server that is not running.
	ErrNotStarted Error = "not started"
)

// DefaultPageDelay is how long the numbered pages take to respond.
const DefaultPageDelay = 500 * time.Millisecond

// DefaultShutdownTimeout is how long Stop waits for in-flight requests.
const DefaultShutdownTimeout = 5 * time.Second

// Server is a local web server with an explicit start/stop lifecycle.
type Server struct {
	addr            string
	pageDelay       time.Duration
	shutdownTimeout time.Duration
	logf            func(string, ...interface{})

	mu   sync.Mutex
	srv  *http.Server
	port int
	done chan struct{}
}

// Option is a server option.
type Option func(*Server)

// Port sets the port to listen on. The default, 0, picks a free port.
func Port(port int) Option {
	return func(s *Server) {
		s.addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	}
}

// PageDelay sets how long the /page/{n} handler sleeps before responding.
func PageDelay(d time.Duration) Option {
	return func(s *Server) {
		s.pageDelay = d
	}
}

// ShutdownTimeout sets how long Stop waits for in-flight requests.
func ShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithLogf sets the func receiving server logging.
func WithLogf(f func(string, ...interface{})) Option {
	return func(s *Server) {
		s.logf = f
	}
}

// New creates a server. It does not listen until Start is called.
func New(opts ...Option) *Server {
	s := &Server{
		addr:            "127.0.0.1:0",
		pageDelay:       DefaultPageDelay,
		shutdownTimeout: DefaultShutdownTimeout,
		logf:            log.Printf,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start starts listening and serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("webserver: listen: %w", err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.srv = &http.Server{Handler: s.Handler()}
	s.done = make(chan struct{})

	srv, done := s.srv, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logf("webserver: serve: %v", err)
		}
	}()
	s.logf("webserver: listening on %s", ln.Addr())
	return nil
}

// Stop stops the server, waiting for in-flight requests for up to the
// shutdown timeout before closing their connections. A timeout is reported
// in the returned error.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		err = errors.Join(fmt.Errorf("webserver: shutdown: %w", err), s.srv.Close())
	}
	<-s.done
	s.srv, s.done, s.port = nil, nil, 0
	return err
}

// Port returns the port the running server listens on, or 0 when stopped.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the URL of the page at path on the running server. The host is
// always "localhost", so that cookies for the "localhost" domain apply.
func (s *Server) URL(path string) string {
	return fmt.Sprintf("http://localhost:%d/%s", s.Port(), strings.TrimPrefix(path, "/"))
}

// Handler returns the handler serving the test pages.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(pages, "testdata")
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, middleware.NoCache)
	r.Get("/page/{n}", s.page)
	r.Get("/sleep", s.sleep)
	r.Get("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/resultPage.html", http.StatusFound)
	})
	r.Handle("/*", http.FileServer(http.FS(static)))
	return r
}

const pageHTML = `<html><head><title>Page%[1]s</title></head>` +
	`<body>Page number <span id="pageNumber">%[1]s</span>` +
	`<p><a href="../xhtmlTest.html" target="_top">top</a></body></html>`

// page serves a numbered page after a delay.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		return
	case <-time.After(s.pageDelay):
	}
	n := chi.URLParam(r, "n")
	if n == "" {
		n = "Unknown"
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, pageHTML, html.EscapeString(n))
}

// sleep responds after the number of seconds given by the time parameter.
func (s *Server) sleep(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.Atoi(r.URL.Query().Get("time"))
	if err != nil || secs < 0 {
		http.Error(w, "invalid time parameter", http.StatusBadRequest)
		return
	}
	select {
	case <-r.Context().Done():
		return
	case <-time.After(time.Duration(secs) * time.Second):
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><head><title>Done</title></head><body></body></html>")
}
