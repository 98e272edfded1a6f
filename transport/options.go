package transport

import "time"

type Options struct {
	// DialTimeout bounds connecting, zero means only the context bounds it
	DialTimeout time.Duration
}
