package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luma/huddle/protocol"
	"github.com/luma/huddle/transport"
)

// connection is one transport connection and the goroutines reading it.
//
// ctx is cancelled, with ErrConnectionLost or ErrDisconnected as its cause,
// as soon as the connection stops working. Every wait on the connection
// watches it.
type connection struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	conn transport.Conn

	writeMu sync.Mutex

	// closing is set by Disconnect, so the listener knows the read failure
	// it is about to see was asked for
	closing atomic.Bool

	// done is closed once the listener and its workers have stopped
	done chan struct{}
}

func newConnection(conn transport.Conn) *connection {
	ctx, cancel := context.WithCancelCause(context.Background())

	return &connection{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		done:   make(chan struct{}),
	}
}

// send writes a frame. A frame with invalid fields is never partially
// written, a write failure ends the connection.
func (c *connection) send(frame protocol.Frame) error {
	data, err := frame.Marshal()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.err(); err != nil {
		return err
	}

	if _, err := c.conn.Write(data); err != nil {
		c.lose(err)
		return c.err()
	}

	return nil
}

// lose ends the connection because err stopped it from working.
func (c *connection) lose(err error) {
	if c.closing.Load() {
		c.cancel(ErrDisconnected)
		return
	}

	c.cancel(fmt.Errorf("%w: %v", ErrConnectionLost, err))
}

// err returns why the connection stopped working, or nil while it works.
func (c *connection) err() error {
	if c.ctx.Err() == nil {
		return nil
	}

	return context.Cause(c.ctx)
}

// closed reports whether the transport is closed or the listener has gone.
func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return c.conn.Closed()
	}
}
