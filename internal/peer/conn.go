package peer

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/huddle/protocol"
)

var (
	ErrConnClosed = errors.New("Connection is closed")
)

// Conn is one client connection.
type Conn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	conn     net.Conn
	maxFrame int

	writeQueue chan []byte
	done       chan struct{}

	mu     sync.Mutex
	hungUp bool

	log *zap.Logger
}

func newConn(parentCtx context.Context, conn net.Conn, maxFrame int, log *zap.Logger) *Conn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Conn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		maxFrame:   maxFrame,
		writeQueue: make(chan []byte, 127),
		done:       make(chan struct{}),
		log:        log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

// Send queues a frame for the write loop.
func (c *Conn) Send(frame protocol.Frame) error {
	data, err := frame.Marshal()
	if err != nil {
		return err
	}

	select {
	case c.writeQueue <- data:
		return nil

	case <-c.ctx.Done():
		return ErrConnClosed

	case <-c.done:
		return ErrConnClosed
	}
}

// HangUp stops reading from the client. Frames already queued are still
// written before the connection closes.
func (c *Conn) HangUp() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hungUp = true
}

// Close closes the connection straight away.
func (c *Conn) Close() error {
	c.cancel()

	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (c *Conn) isHungUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hungUp
}

func (c *Conn) serve(handler Handler) {
	defer close(c.done)

	c.loopWaiter.Add(1)
	go func() {
		defer c.loopWaiter.Done()
		c.writeLoop()
	}()

	c.readLoop(handler)

	// Ask the write loop to finish once it has drained the queue
	select {
	case c.writeQueue <- nil:
	case <-c.ctx.Done():
	}

	c.loopWaiter.Wait()

	if err := c.Close(); err != nil {
		c.log.Warn("Failed to close connection cleanly", zap.Error(err))
	}

	handler.Disconnected(c)
}

func (c *Conn) readLoop(handler Handler) {
	log := c.log.Named("readLoop")
	r := protocol.NewFrameReader(c.conn, c.maxFrame)

	for {
		raw, err := r.ReadFrame()
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			log.Warn("Dropping frame", zap.Error(err))
			continue
		}

		if err != nil {
			log.Info("Client went away", zap.Error(err))
			return
		}

		if len(raw) == 0 {
			continue
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			log.Warn("Failed to decode client frame", zap.Error(err))
			continue
		}

		handler.HandleFrame(c, frame)

		if c.isHungUp() {
			return
		}
	}
}

func (c *Conn) writeLoop() {
	log := c.log.Named("writeLoop")

	for {
		select {
		case <-c.ctx.Done():
			return

		case data := <-c.writeQueue:
			if data == nil {
				// Our read loop has terminated, we should too
				return
			}

			if _, err := c.conn.Write(data); err != nil {
				log.Warn("Failed to write frame", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}
