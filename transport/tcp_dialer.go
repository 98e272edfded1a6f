package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// TCPDialer connects over plain TCP.
type TCPDialer struct {
	Timeout time.Duration
}

func (d *TCPDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	addr = strings.TrimPrefix(addr, "tcp://")

	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to %s: %w", addr, err)
	}

	return newTrackedConn(conn, nil), nil
}

var _ Dialer = (*TCPDialer)(nil)
