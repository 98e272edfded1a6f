package client

import (
	"bytes"
	"errors"

	"go.uber.org/zap"

	"github.com/luma/huddle/protocol"
)

// listen applies frames from the server until the transport fails. Frames
// about a group are applied by the group's lane, so frames for one group are
// applied in the order the server sent them. Everything else is applied right
// here, before the next frame is taken.
func (c *Client) listen(conn *connection) {
	log := c.log.Named("listener")

	workers := newLanes(c.options.Workers, c.options.LaneDepth)

	defer func() {
		workers.stop()
		close(conn.done)

		log.Info("Listener exited")
	}()

	frames := make(chan protocol.Frame)
	go c.read(conn, frames, log)

	in := &inbox{
		frames: frames,
		apply: func(frame protocol.Frame) {
			c.handle(conn, frame)
		},
	}

	for {
		frame, ok := in.next()
		if !ok {
			c.connectionLost(conn)
			return
		}

		if key, ok := laneKey(frame); ok {
			job := func() {
				c.handle(conn, frame)
			}

			if !workers.submitWith(in.enqueue, key, job) {
				c.connectionLost(conn)
				return
			}
			continue
		}

		if frame.Command == protocol.VerifyUsername {
			// Group frames read before the verification were sent while we
			// were not joined
			if !workers.drainWith(in.enqueue) {
				c.connectionLost(conn)
				return
			}
		}

		c.handle(conn, frame)
	}
}

// read decodes frames into frames until the transport fails, then ends the
// connection and closes frames.
func (c *Client) read(conn *connection, frames chan<- protocol.Frame, log *zap.Logger) {
	defer close(frames)

	r := protocol.NewFrameReader(conn.conn, c.options.MaxFrameSize)

	for {
		raw, err := r.ReadFrame()
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			log.Warn("Dropping frame", zap.Error(err))
			continue
		}

		if err != nil {
			conn.lose(err)

			if errors.Is(conn.err(), ErrDisconnected) {
				log.Info("Connection closed")
			} else {
				log.Warn("Failed to read from server", zap.Error(err))
			}

			return
		}

		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			log.Warn("Dropping frame", zap.Error(err))
			continue
		}

		frames <- frame
	}
}

// inbox hands out frames in the order they were read.
type inbox struct {
	frames  <-chan protocol.Frame
	backlog []protocol.Frame

	// apply handles a frame straight away
	apply func(frame protocol.Frame)
}

func (in *inbox) next() (protocol.Frame, bool) {
	if len(in.backlog) > 0 {
		frame := in.backlog[0]
		in.backlog = in.backlog[1:]
		return frame, true
	}

	frame, ok := <-in.frames
	return frame, ok
}

// enqueue waits for room in queue and keeps reading meanwhile. A lane may be
// waiting for the group catalog to resolve a group, so catalog frames are
// applied at once and everything else is kept for next.
func (in *inbox) enqueue(queue chan<- func(), job func()) bool {
	for {
		select {
		case queue <- job:
			return true

		case frame, ok := <-in.frames:
			if !ok {
				return false
			}

			if frame.Command == protocol.SendGroupsList {
				in.apply(frame)
				continue
			}

			in.backlog = append(in.backlog, frame)
		}
	}
}

func (c *Client) handle(conn *connection, frame protocol.Frame) {
	if err := c.dispatcher.dispatch(conn.ctx, frame); err != nil {
		c.log.Named("dispatcher").Warn("Rejected frame",
			zap.String("command", string(frame.Command)),
			zap.Strings("params", frame.Params),
			zap.Error(err))
	}
}

// laneKey returns the group ID of frames that are about a single group.
func laneKey(frame protocol.Frame) (int, bool) {
	switch frame.Command {
	case protocol.SendMessageLabel,
		protocol.SendMessageContent,
		protocol.SendUserList,
		protocol.UserJoinNotif,
		protocol.UserLeaveNotif:

		id, err := frame.Int(0)
		return id, err == nil
	default:
		return 0, false
	}
}
