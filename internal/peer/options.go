package peer

import (
	"go.uber.org/zap"

	"github.com/luma/huddle/protocol"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free port
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// MaxFrameSize bounds frames read from clients
	MaxFrameSize int

	Handler Handler

	Log *zap.Logger
}

// Handler reacts to frames from clients.
type Handler interface {
	// HandleFrame is called from the connection's read loop, frames from one
	// connection are handled in the order they were sent.
	HandleFrame(conn *Conn, frame protocol.Frame)

	// Disconnected is called once the connection is gone.
	Disconnected(conn *Conn)
}
