package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocketDialer connects over a WebSocket. Frames are sent as text
// messages, and a message from the server may hold any number of frames.
type WebSocketDialer struct {
	Timeout time.Duration
}

func (d *WebSocketDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}

	conn, br, _, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to %s: %w", addr, err)
	}

	return newTrackedConn(conn, newWebSocketStream(conn, br)), nil
}

var _ Dialer = (*WebSocketDialer)(nil)

// webSocketStream turns WebSocket messages back into a byte stream.
type webSocketStream struct {
	conn net.Conn

	// r holds bytes the server sent before the handshake finished
	r io.Reader

	mu      sync.Mutex
	pending []byte

	// writeMu serialises our messages with the replies to control frames
	// the reader sends
	writeMu sync.Mutex
}

func newWebSocketStream(conn net.Conn, br *bufio.Reader) *webSocketStream {
	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}

	return &webSocketStream{conn: conn, r: r}
}

func (w *webSocketStream) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.pending) == 0 {
		data, _, err := wsutil.ReadServerData(struct {
			io.Reader
			io.Writer
		}{w.r, lockedWriter{&w.writeMu, w.conn}})
		if err != nil {
			return 0, err
		}

		w.pending = data
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]

	return n, nil
}

func (w *webSocketStream) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := wsutil.WriteClientText(w.conn, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

func (w *webSocketStream) closeHandshake() {
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	_ = wsutil.WriteClientMessage(w.conn, ws.OpClose, body)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}
