package chrome

import (
	"bytes"
	"context"
	"io"
	"net"

	"github.com/chromedp/cdproto"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Transport is the common interface to send/receive messages to a target.
type Transport interface {
	Read(context.Context, *cdproto.Message) error
	Write(context.Context, *cdproto.Message) error
	io.Closer
}

// Conn implements Transport with a gobwas/ws websocket connection.
type Conn struct {
	conn net.Conn

	// buf helps us reuse space when reading from the websocket.
	buf bytes.Buffer

	// reuse the easyjson structs to avoid allocs per Read/Write.
	decoder jlexer.Lexer
	encoder jwriter.Writer

	reader wsutil.Reader
	writer *wsutil.Writer

	dbgf func(string, ...interface{})
}

// DialContext dials the specified websocket URL using gobwas/ws.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	if br != nil {
		// The server sent frames right after the handshake.
		ws.PutReader(br)
		conn.Close()
		return nil, ErrInvalidWebsocketMessage
	}

	c := &Conn{
		conn: conn,
		reader: wsutil.Reader{
			Source: conn,
			State:  ws.StateClientSide,
		},
		writer: wsutil.NewWriterBufferSize(conn, ws.StateClientSide, ws.OpText, 0),
	}
	// Chrome doesn't support fragmented incoming messages; grow the buffer
	// to fit a whole message instead.
	c.writer.DisableFlush()
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close satisfies the io.Closer interface.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// bufReadAll reads the next text message into c.buf.
func (c *Conn) bufReadAll() ([]byte, error) {
	h, err := c.reader.NextFrame()
	if err != nil {
		return nil, err
	}
	if h.OpCode != ws.OpText {
		return nil, ErrInvalidWebsocketMessage
	}

	c.buf.Reset()
	if _, err := c.buf.ReadFrom(&c.reader); err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}

// Read reads the next message.
func (c *Conn) Read(_ context.Context, msg *cdproto.Message) error {
	buf, err := c.bufReadAll()
	if err != nil {
		return err
	}
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	c.decoder = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&c.decoder)
	if err := c.decoder.Error(); err != nil {
		return err
	}

	// buf is reused by the next read, and the raw fields alias it.
	msg.Params = append([]byte(nil), msg.Params...)
	msg.Result = append([]byte(nil), msg.Result...)
	return nil
}

// Write writes a message.
func (c *Conn) Write(_ context.Context, msg *cdproto.Message) error {
	c.writer.Reset(c.conn, ws.StateClientSide, ws.OpText)

	c.encoder = jwriter.Writer{}
	msg.MarshalEasyJSON(&c.encoder)
	if err := c.encoder.Error; err != nil {
		return err
	}
	buf, err := c.encoder.BuildBytes()
	if err != nil {
		return err
	}
	if c.dbgf != nil {
		c.dbgf("-> %s", buf)
	}
	if _, err := c.writer.Write(buf); err != nil {
		return err
	}
	return c.writer.Flush()
}

// DialOption is a dial option.
type DialOption func(*Conn)

// WithConnDebugf is a dial option to set a protocol logger.
func WithConnDebugf(f func(string, ...interface{})) DialOption {
	return func(c *Conn) {
		c.dbgf = f
	}
}
