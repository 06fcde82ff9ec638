// webdriver-proxy proxies the remote debugging protocol between a client and
// a browser, logging every message passed in either direction.
//
// It is useful for recording what a driver sends to the browser, or for
// debugging remote browser instances:
//
//	webdriver-proxy -l localhost:9223 -r localhost:9222
//
// then point the chrome-remote driver at http://localhost:9223.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chromedp/webdriver/devtools"
)

func main() {
	listen := flag.String("l", "localhost:9223", "listen address")
	remote := flag.String("r", "localhost:9222", "remote address")
	noLog := flag.Bool("n", false, "disable logging to file")
	logMask := flag.String("log", "logs/cdp-%s.log", "log file mask")
	flag.Parse()

	p := &proxy{remote: *remote}
	if !*noLog {
		p.logMask = *logMask
	}
	log.Fatal(http.ListenAndServe(*listen, p.handler()))
}

const (
	incomingBufferSize = 10 * 1024 * 1024
	outgoingBufferSize = 25 * 1024 * 1024
)

var wsUpgrader = &websocket.Upgrader{
	ReadBufferSize:  incomingBufferSize,
	WriteBufferSize: outgoingBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var wsDialer = &websocket.Dialer{
	ReadBufferSize:   outgoingBufferSize,
	WriteBufferSize:  incomingBufferSize,
	HandshakeTimeout: 10 * time.Second,
}

// proxy forwards http requests and websocket connections to remote.
type proxy struct {
	// remote is the host:port of the browser's debugging server.
	remote string
	// logMask is a file name format taking the target id; empty logs to
	// stdout only.
	logMask string
	// stdout receives the connection logs besides the log file.
	stdout io.Writer
}

func (p *proxy) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.HandleFunc("/devtools/{kind}/{id}", p.serveWS)
	r.Handle("/*", httputil.NewSingleHostReverseProxy(&url.URL{Scheme: "http", Host: p.remote}))
	return r
}

func (p *proxy) serveWS(res http.ResponseWriter, req *http.Request) {
	kind, id := chi.URLParam(req, "kind"), chi.URLParam(req, "id")
	f, logger, err := p.createLog(id)
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	if f != nil {
		defer f.Close()
	}
	logger.Printf("---------- connection from %s ----------", req.RemoteAddr)

	ver, err := devtools.New(devtools.URL("http://"+p.remote+"/json")).VersionInfo(req.Context())
	if err != nil {
		msg := fmt.Sprintf("version error, got: %v", err)
		logger.Println(msg)
		http.Error(res, msg, http.StatusInternalServerError)
		return
	}
	logger.Printf("endpoint %s reported: %s (protocol %s)", p.remote, ver["Browser"], ver["Protocol-Version"])

	endpoint := "ws://" + p.remote + "/devtools/" + kind + "/" + id

	// connect outgoing websocket
	logger.Printf("connecting to %s", endpoint)
	out, pres, err := wsDialer.DialContext(req.Context(), endpoint, nil)
	if err != nil {
		msg := fmt.Sprintf("could not connect to %s, got: %v", endpoint, err)
		logger.Println(msg)
		http.Error(res, msg, http.StatusBadGateway)
		return
	}
	defer pres.Body.Close()
	defer out.Close()
	logger.Printf("connected to %s", endpoint)

	// connect incoming websocket
	in, err := wsUpgrader.Upgrade(res, req, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.Printf("could not upgrade websocket from %s, got: %v", req.RemoteAddr, err)
		return
	}
	defer in.Close()
	logger.Printf("upgraded connection on %s", req.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 2)
	go proxyWS(ctx, logger, "<-", in, out, errc)
	go proxyWS(ctx, logger, "->", out, in, errc)
	<-errc
	logger.Printf("---------- closing %s ----------", req.RemoteAddr)
}

// proxyWS copies messages from in to out, logging each with prefix.
func proxyWS(ctx context.Context, logger *log.Logger, prefix string, in, out *websocket.Conn, errc chan error) {
	for {
		mt, buf, err := in.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		logger.Printf("%s %s", prefix, buf)
		if err := out.WriteMessage(mt, buf); err != nil {
			errc <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *proxy) createLog(id string) (io.Closer, *log.Logger, error) {
	var w io.Writer = os.Stdout
	if p.stdout != nil {
		w = p.stdout
	}
	if p.logMask == "" {
		return nil, log.New(w, "", log.LstdFlags), nil
	}
	f, err := os.OpenFile(fmt.Sprintf(p.logMask, id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, log.New(io.MultiWriter(w, f), "", log.LstdFlags), nil
}
