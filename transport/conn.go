package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
)

var (
	ErrUnsupportedScheme = errors.New("Unsupported transport scheme")
)

// Conn is an ordered, reliable byte stream to the chat server.
type Conn interface {
	io.ReadWriteCloser

	// Closed reports whether either side has closed the connection.
	Closed() bool

	RemoteAddr() string
}

// Dialer opens a Conn to addr.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Dial connects to addr, choosing the transport from its scheme:
//
//	host:port, tcp://host:port        TCP
//	ws://host:port/path, wss://...    WebSocket
func Dial(ctx context.Context, addr string, options Options) (Conn, error) {
	dialer, err := DialerFor(addr, options)
	if err != nil {
		return nil, err
	}

	return dialer.Dial(ctx, addr)
}

// DialerFor picks the Dialer for addr's scheme.
func DialerFor(addr string, options Options) (Dialer, error) {
	scheme := "tcp"
	if i := strings.Index(addr, "://"); i >= 0 {
		scheme = addr[:i]
	}

	switch scheme {
	case "tcp":
		return &TCPDialer{Timeout: options.DialTimeout}, nil

	case "ws", "wss":
		return &WebSocketDialer{Timeout: options.DialTimeout}, nil

	default:
		return nil, ErrUnsupportedScheme
	}
}

// closeHandshaker is implemented by streams that tell the server they are
// going away before the socket is closed.
type closeHandshaker interface {
	closeHandshake()
}

// trackedConn remembers when the connection stops working, so callers can
// poll for the server closing it.
type trackedConn struct {
	net.Conn

	rw     io.ReadWriter
	closed atomic.Bool
}

func newTrackedConn(conn net.Conn, rw io.ReadWriter) *trackedConn {
	if rw == nil {
		rw = conn
	}

	return &trackedConn{Conn: conn, rw: rw}
}

func (t *trackedConn) Read(p []byte) (int, error) {
	n, err := t.rw.Read(p)
	if err != nil {
		t.closed.Store(true)
	}

	return n, err
}

func (t *trackedConn) Write(p []byte) (int, error) {
	n, err := t.rw.Write(p)
	if err != nil {
		t.closed.Store(true)
	}

	return n, err
}

func (t *trackedConn) Close() error {
	if !t.closed.Swap(true) {
		if h, ok := t.rw.(closeHandshaker); ok {
			h.closeHandshake()
		}
	}

	err := t.Conn.Close()
	if isClosedErr(err) {
		return nil
	}

	return err
}

func (t *trackedConn) Closed() bool {
	return t.closed.Load()
}

func (t *trackedConn) RemoteAddr() string {
	return t.Conn.RemoteAddr().String()
}

func isClosedErr(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}

// Wrap tracks an already established connection, e.g. one end of a
// net.Pipe.
func Wrap(conn net.Conn) Conn {
	return newTrackedConn(conn, nil)
}
