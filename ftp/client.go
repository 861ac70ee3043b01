package ftp

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultTimeout bounds control channel operations: connect, TLS
	// handshake, command send, reply receive.
	defaultTimeout = 30 * time.Second

	// defaultTransferTimeout bounds individual reads and writes on a
	// data connection. It is deliberately much larger than the control
	// timeout since a single file upload can legitimately take a while
	// on a slow uplink.
	defaultTransferTimeout = 120 * time.Second
)

// Client represents an FTP client connection.
type Client struct {
	// conn is the underlying network connection (control channel)
	conn net.Conn

	// reader is a buffered reader for the control channel
	reader *bufio.Reader

	// tlsConfig is the TLS configuration; nil means plain FTP
	tlsConfig *tls.Config

	// timeout bounds control channel operations
	timeout time.Duration

	// transferTimeout bounds individual data connection reads/writes
	transferTimeout time.Duration

	// logger is used for debug logging
	logger *slog.Logger

	// dialer is used to establish connections
	dialer *net.Dialer

	// host and port for the connection
	host string
	port string

	// limiter throttles data connection writes; nil means unlimited
	limiter *rate.Limiter

	// mu serializes commands on the control channel
	mu sync.Mutex
}

// Dial connects to an FTP server at the given address.
// The address should be in the form "host:port".
//
// Example:
//
//	client, err := ftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
// Example with TLS and a self-signed certificate (InsecureSkipVerify):
//
//	tlsConfig := &tls.Config{
//	    InsecureSkipVerify: true,
//	}
//	client, err := ftp.Dial("ftp.example.com:990", ftp.WithTLS(tlsConfig))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
func Dial(addr string, options ...Option) (*Client, error) {
	return DialContext(context.Background(), addr, options...)
}

// DialContext is like Dial but the connection attempt and TLS handshake can
// be aborted through ctx. The context does not govern the client after Dial
// returns; later operations are bounded by the configured timeouts.
func DialContext(ctx context.Context, addr string, options ...Option) (*Client, error) {
	// Parse the address
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	// Create the client with defaults
	c := &Client{
		host:            host,
		port:            port,
		timeout:         defaultTimeout,
		transferTimeout: defaultTransferTimeout,
		dialer:          &net.Dialer{},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// Apply options
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Bound the connect by the control timeout, on a copy so a dialer
	// passed through WithDialer is not mutated.
	dialer := *c.dialer
	dialer.Timeout = c.timeout
	c.dialer = &dialer

	// Establish the connection
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the control connection and reads the greeting.
func (c *Client) connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting to ftp server", "addr", addr, "tls", c.tlsConfig != nil)

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	// TLS is always applied before any protocol byte is exchanged.
	if c.tlsConfig != nil {
		c.logger.Debug("starting TLS handshake")
		tlsConn := tls.Client(conn, c.tlsConfig)

		// Set deadline for handshake
		if c.timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
				conn.Close()
				return fmt.Errorf("failed to set deadline: %w", err)
			}
		}

		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
		c.logger.Debug("TLS handshake complete")

		conn = tlsConn
	}

	c.conn = conn
	c.reader = bufio.NewReader(c.conn)

	// Set read deadline for greeting
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.conn.Close()
			c.conn = nil
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	// Read the greeting. It is consumed but not validated beyond parsing:
	// banners vary wildly between servers and the first meaningful check
	// is the USER reply.
	greeting, err := readReply(c.reader)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("failed to read greeting: %w", err)
	}

	c.logger.Debug("ftp greeting", "code", greeting.Code, "message", greeting.Message)

	return nil
}

// Login authenticates with the FTP server using the provided username and password.
func (c *Client) Login(username, password string) error {
	// Send USER command
	reply, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	// If we get 230, we're already logged in (no password required)
	if reply.Code == 230 {
		return nil
	}

	// If we get 331, we need to send the password
	if reply.Code != 331 {
		return &ProtocolError{
			Command:  "USER",
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	// Send PASS command
	if _, err := c.expectCode(230, "PASS", password); err != nil {
		return err
	}

	return nil
}

// Type sets the transfer type (e.g., "A", "I").
// The command is sent on every call; transfer type is part of the
// session state some servers reset between transfers, so callers that
// depend on binary mode set it per transfer.
func (c *Client) Type(transferType string) error {
	if _, err := c.expectCode(200, "TYPE", transferType); err != nil {
		return err
	}
	return nil
}

// MakeDir creates a directory on the server. Most servers reject MKD for a
// directory that already exists; callers treating "exists" and "created" as
// equivalent should ignore a *ProtocolError from this method.
func (c *Client) MakeDir(path string) error {
	_, err := c.expect2xx("MKD", path)
	return err
}

// ChangeDir changes the current working directory on the server.
func (c *Client) ChangeDir(path string) error {
	_, err := c.expectCode(250, "CWD", path)
	return err
}

// Quit closes the connection gracefully by sending the QUIT command.
// The reply is not awaited beyond the usual exchange; the connection is
// closed regardless of what the server answers.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}

	// Send QUIT command (ignore errors, we're closing anyway)
	_, _ = c.sendCommand("QUIT")

	return c.Close()
}

// Close shuts down the control connection without sending QUIT.
// Closing an already-closed client is a no-op.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
