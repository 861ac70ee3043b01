package ftp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// WithTimeout sets the timeout for control channel operations: the initial
// connection, the TLS handshake, and every command/reply exchange.
// The default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("timeout must not be negative, got %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTransferTimeout sets the timeout applied to each read and write on a
// data connection. It bounds how long a transfer may stall, not the total
// transfer duration. The default is 120 seconds.
func WithTransferTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("transfer timeout must not be negative, got %v", timeout)
		}
		c.transferTimeout = timeout
		return nil
	}
}

// WithTLS enables TLS on the connection. The socket is wrapped before the
// server greeting is read, and every data connection is wrapped the same
// way, so no FTP byte ever travels in the clear.
//
// The provided tls.Config should include the ServerName for certificate
// validation; nil is accepted and means a default config. The config is
// cloned, a minimum version of TLS 1.2 is enforced, and a
// ClientSessionCache is added if not present so data connections can
// resume the control connection's TLS session (required by vsftpd and
// ProFTPD among others).
func WithTLS(config *tls.Config) Option {
	return func(c *Client) error {
		if config == nil {
			config = &tls.Config{}
		}
		config = config.Clone()
		if config.MinVersion < tls.VersionTLS12 {
			config.MinVersion = tls.VersionTLS12
		}
		// Ensure we have a session cache for TLS session reuse
		if config.ClientSessionCache == nil {
			config.ClientSessionCache = tls.NewLRUClientSessionCache(0)
		}
		c.tlsConfig = config
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All FTP commands and replies will be logged at debug level, with PASS
// arguments redacted.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := ftp.Dial("ftp.example.com:21", ftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing connections.
// This can be used to configure source addresses, keep-alive settings, etc.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		if dialer == nil {
			return fmt.Errorf("dialer must not be nil")
		}
		c.dialer = dialer
		return nil
	}
}

// WithUploadLimit caps the data connection write rate at the given number
// of bytes per second using a token bucket. Zero disables the limit.
func WithUploadLimit(bytesPerSec int64) Option {
	return func(c *Client) error {
		if bytesPerSec < 0 {
			return fmt.Errorf("upload limit must not be negative, got %d", bytesPerSec)
		}
		if bytesPerSec == 0 {
			c.limiter = nil
			return nil
		}

		limiter := rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
		// Drain the initial burst so the very first write is paced too.
		_ = limiter.WaitN(context.Background(), int(bytesPerSec))
		c.limiter = limiter
		return nil
	}
}
