package ftp

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// deadlineConn wraps a net.Conn and sets a read/write deadline before every operation.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (n int, err error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (n int, err error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// limitedConn wraps a net.Conn and throttles writes through a token bucket.
// Writes larger than the bucket's burst are split so the limiter never sees
// a request it cannot satisfy.
type limitedConn struct {
	net.Conn
	limiter *rate.Limiter
}

func (c *limitedConn) Write(b []byte) (int, error) {
	var written int
	for len(b) > 0 {
		chunk := len(b)
		if burst := c.limiter.Burst(); chunk > burst {
			chunk = burst
		}
		if err := c.limiter.WaitN(context.Background(), chunk); err != nil {
			return written, err
		}
		n, err := c.Conn.Write(b[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		b = b[chunk:]
	}
	return written, nil
}
