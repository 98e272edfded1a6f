package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/huddle/transport"
)

const (
	DefaultRequestTimeout    = 10 * time.Second
	DefaultDisconnectTimeout = 5 * time.Second
	DefaultDisconnectPoll    = 100 * time.Millisecond
	DefaultWorkers           = 8
	DefaultLaneDepth         = 256
)

type Options struct {
	// RequestTimeout bounds how long a call waits for the server's answer
	RequestTimeout time.Duration

	// DisconnectTimeout is how long Disconnect waits for the server to close
	// the connection before closing it itself
	DisconnectTimeout time.Duration

	// DisconnectPoll is how often Disconnect checks whether the server has
	// closed the connection
	DisconnectPoll time.Duration

	// Workers is the number of goroutines applying group frames
	Workers int

	// LaneDepth is how many group frames may wait for each worker
	LaneDepth int

	// MaxFrameSize bounds frames read from the server
	MaxFrameSize int

	// History is the number of payloads each event channel keeps
	History int

	Transport transport.Options

	// Dialer overrides picking a transport from the address scheme
	Dialer transport.Dialer

	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}

	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = DefaultDisconnectTimeout
	}

	if o.DisconnectPoll <= 0 {
		o.DisconnectPoll = DefaultDisconnectPoll
	}

	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}

	if o.LaneDepth < 1 {
		o.LaneDepth = DefaultLaneDepth
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
