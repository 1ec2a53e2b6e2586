package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var ErrHalfCloseUnsupported = errors.New("connection does not support closing the write side")

// Conn wraps a stream connection, refreshing a read or write deadline before
// every operation when the corresponding timeout is set. A zero timeout blocks
// indefinitely.
type Conn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*Conn)

func WithReadTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.readTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.writeTimeout = d
	}
}

func New(c net.Conn, opts ...Option) *Conn {
	conn := &Conn{Conn: c}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Dial connects to the given TCP address. A zero timeout leaves the connect
// attempt bounded only by ctx.
func Dial(ctx context.Context, addr string, timeout time.Duration, opts ...Option) (*Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return New(c, opts...), nil
}

func (c *Conn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// CloseWrite shuts down the sending side of the connection, signalling the end
// of the stream while still allowing reads.
func (c *Conn) CloseWrite() error {
	cw, ok := c.Conn.(interface{ CloseWrite() error })
	if !ok {
		return ErrHalfCloseUnsupported
	}
	return cw.CloseWrite()
}
