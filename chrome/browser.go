package chrome

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
)

// Browser is a connection to a browser's websocket endpoint. Commands are
// multiplexed over the connection by message id; events are routed to the
// listeners of their session.
type Browser struct {
	conn Transport

	// next is the next message id.
	next int64

	// cmdQueue is the outgoing command queue.
	cmdQueue chan cmdJob

	// closing is closed by Close; done once the dispatcher has exited.
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	lmu       sync.Mutex
	listeners map[target.SessionID][]*listener

	// logging funcs
	logf, errf, dbgf func(string, ...interface{})
}

type cmdJob struct {
	msg  *cdproto.Message
	resp chan *cdproto.Message
}

type listener struct {
	fn func(ev interface{})
}

// NewBrowser connects to the browser at the websocket urlstr.
func NewBrowser(ctx context.Context, urlstr string, opts ...BrowserOption) (*Browser, error) {
	b := &Browser{
		cmdQueue:  make(chan cmdJob),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[target.SessionID][]*listener),
	}
	for _, o := range opts {
		o(b)
	}
	if b.logf == nil {
		b.logf = func(string, ...interface{}) {}
	}
	if b.errf == nil {
		b.errf = func(s string, v ...interface{}) { b.logf("ERROR: "+s, v...) }
	}

	var dialOpts []DialOption
	if b.dbgf != nil {
		dialOpts = append(dialOpts, WithConnDebugf(b.dbgf))
	} else {
		b.dbgf = func(string, ...interface{}) {}
	}
	conn, err := DialContext(ctx, urlstr, dialOpts...)
	if err != nil {
		return nil, err
	}
	b.conn = conn

	go b.run()
	return b, nil
}

// Execute satisfies cdp.Executor, sending browser level commands.
func (b *Browser) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	return b.execute(ctx, "", method, params, res)
}

// Session returns a cdp.Executor for the attached session id.
func (b *Browser) Session(sessionID target.SessionID) *Session {
	return &Session{browser: b, ID: sessionID}
}

func (b *Browser) execute(ctx context.Context, sessionID target.SessionID, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	var buf easyjson.RawMessage
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return err
		}
	}

	job := cmdJob{
		msg: &cdproto.Message{
			ID:        atomic.AddInt64(&b.next, 1),
			SessionID: sessionID,
			Method:    cdproto.MethodType(method),
			Params:    buf,
		},
		resp: make(chan *cdproto.Message, 1),
	}
	select {
	case b.cmdQueue <- job:
	case <-b.done:
		return ErrBrowserClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case msg, ok := <-job.resp:
		switch {
		case !ok:
			return ErrBrowserClosed
		case msg.Error != nil:
			return msg.Error
		case res != nil:
			return easyjson.Unmarshal(msg.Result, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// listen calls fn with every event received for sessionID, until the
// returned func is called. fn is called from the dispatcher and must not
// block.
func (b *Browser) listen(sessionID target.SessionID, fn func(ev interface{})) func() {
	l := &listener{fn: fn}
	b.lmu.Lock()
	b.listeners[sessionID] = append(b.listeners[sessionID], l)
	b.lmu.Unlock()
	return func() {
		b.lmu.Lock()
		defer b.lmu.Unlock()
		ls := b.listeners[sessionID]
		for i, x := range ls {
			if x == l {
				b.listeners[sessionID] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
		if len(b.listeners[sessionID]) == 0 {
			delete(b.listeners, sessionID)
		}
	}
}

// dispatch routes an event to the listeners of its session.
func (b *Browser) dispatch(msg *cdproto.Message) {
	b.lmu.Lock()
	ls := append([]*listener(nil), b.listeners[msg.SessionID]...)
	b.lmu.Unlock()
	if len(ls) == 0 && msg.Method != cdproto.EventRuntimeExceptionThrown {
		return
	}

	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		b.dbgf("could not unmarshal event %s: %v", msg.Method, err)
		return
	}
	if e, ok := ev.(*runtime.EventExceptionThrown); ok {
		b.errf("%s", e.ExceptionDetails)
	}
	for _, l := range ls {
		l.fn(ev)
	}
}

func (b *Browser) run() {
	defer close(b.done)
	defer b.conn.Close()

	type readResult struct {
		msg *cdproto.Message
		err error
	}
	// Websocket reads block, so they happen in their own goroutine.
	readQueue := make(chan readResult)
	go func() {
		for {
			msg := new(cdproto.Message)
			err := b.conn.Read(context.Background(), msg)
			select {
			case readQueue <- readResult{msg, err}:
			case <-b.closing:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	// respByID is only used by this goroutine.
	respByID := make(map[int64]chan *cdproto.Message)
	defer func() {
		for _, resp := range respByID {
			close(resp)
		}
	}()

	for {
		select {
		case r := <-readQueue:
			if r.err != nil {
				select {
				case <-b.closing:
				default:
					b.errf("could not read message: %v", r.err)
				}
				return
			}
			msg := r.msg
			switch {
			case msg.Method != "":
				b.dispatch(msg)
			case msg.ID != 0:
				resp, ok := respByID[msg.ID]
				if !ok {
					b.errf("id %d not present in response map", msg.ID)
					continue
				}
				delete(respByID, msg.ID)
				resp <- msg
			default:
				b.errf("ignoring malformed incoming message (missing id or method): %#v", msg)
			}

		case q := <-b.cmdQueue:
			if err := b.conn.Write(context.Background(), q.msg); err != nil {
				b.errf("could not write message: %v", err)
				close(q.resp)
				continue
			}
			respByID[q.msg.ID] = q.resp

		case <-b.closing:
			return
		}
	}
}

// Close closes the connection, failing pending commands with
// ErrBrowserClosed. It does not close the browser itself.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		close(b.closing)
	})
	<-b.done
	return nil
}

// Done is closed once the connection is gone.
func (b *Browser) Done() <-chan struct{} {
	return b.done
}

// Session is a cdp.Executor for one attached target session.
type Session struct {
	browser *Browser
	ID      target.SessionID
}

// Execute satisfies cdp.Executor.
func (s *Session) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	return s.browser.execute(ctx, s.ID, method, params, res)
}

// BrowserOption is a browser option.
type BrowserOption func(*Browser)

// WithLogf is a browser option to specify a func to receive general logging.
func WithLogf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.logf = f
	}
}

// WithErrorf is a browser option to specify a func to receive error logging.
func WithErrorf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.errf = f
	}
}

// WithDebugf is a browser option to specify a func to log actual websocket
// messages.
func WithDebugf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.dbgf = f
	}
}
