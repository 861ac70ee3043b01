package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	defaultControlTimeout  = 30 * time.Second
	defaultTransferTimeout = 120 * time.Second

	defaultPort = 21
)

// Credentials identify the server and account for one publishing run.
// They are read-only inputs; no call mutates them.
type Credentials struct {
	// Host is the server name or address, without a port.
	Host string

	// Port is the control-channel port; 0 means the FTP default, 21.
	Port int

	// User and Password authenticate the session.
	User     string
	Password string

	// RemoteDir is the directory uploads land in. Missing path segments
	// are created. Empty means the account's login directory.
	RemoteDir string

	// TLS switches both the control and data channels to implicit TLS.
	TLS bool
}

// Validate reports whether the credentials are complete enough to
// attempt a connection.
func (c Credentials) Validate() error {
	if c.Host == "" {
		return errors.New("publish: host is required")
	}
	if c.User == "" {
		return errors.New("publish: user is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("publish: port %d out of range", c.Port)
	}
	return nil
}

// addr returns the dialable host:port, applying the default port.
func (c Credentials) addr() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Item is one file to publish.
type Item struct {
	// Name is the remote filename, without any directory part.
	Name string

	// Content is the full file body. Empty files are legal.
	Content []byte

	// ContentType is advisory metadata for callers (UIs, manifests);
	// it never crosses the wire.
	ContentType string
}

// Validate rejects names that would escape the target directory or
// corrupt the control channel.
func (it Item) Validate() error {
	if it.Name == "" {
		return errors.New("publish: item name is empty")
	}
	if strings.ContainsAny(it.Name, `/\`) {
		return fmt.Errorf("publish: item name %q contains a path separator", it.Name)
	}
	if strings.ContainsAny(it.Name, "\r\n\x00") {
		return fmt.Errorf("publish: item name %q contains a control character", it.Name)
	}
	return nil
}

// Result is the outcome of a connection test.
type Result struct {
	// OK is true when the server accepted the credentials.
	OK bool

	// Message is human-readable and safe to show in a UI.
	Message string
}

// ProgressFunc receives the completed fraction of a batch after each
// stored file. Values are strictly increasing and the final call, after
// the last file, is exactly 1. It runs synchronously on the uploading
// goroutine.
type ProgressFunc func(fraction float64)

// Uploader is the publishing surface consumed by the CLI and other
// callers. Publisher implements it against a live server; Fake
// implements it in memory.
type Uploader interface {
	// TestConnection dials and logs in, then disconnects. It never
	// returns an error; failures are captured in the Result so UI code
	// has a single path to display them.
	TestConnection(ctx context.Context, creds Credentials) Result

	// Upload publishes a single item to the credentials' remote
	// directory.
	Upload(ctx context.Context, creds Credentials, item Item) error

	// UploadAll publishes items in order, reporting progress after
	// each. The first failure aborts the rest of the batch; items
	// stored before it remain on the server.
	UploadAll(ctx context.Context, creds Credentials, items []Item, onProgress ProgressFunc) error
}

// Publisher implements Uploader over FTP/FTPS. It holds configuration
// only — no connection state — so a single Publisher is safe for
// concurrent use; every call owns a private session.
type Publisher struct {
	controlTimeout  time.Duration
	transferTimeout time.Duration
	tlsConfig       *tls.Config
	uploadLimit     int64
	logger          *slog.Logger
}

var _ Uploader = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher) error

// WithControlTimeout bounds connecting, sending a command, and reading
// its reply. The default is 30 seconds.
func WithControlTimeout(d time.Duration) Option {
	return func(p *Publisher) error {
		if d < 0 {
			return fmt.Errorf("publish: control timeout cannot be negative, got %v", d)
		}
		p.controlTimeout = d
		return nil
	}
}

// WithTransferTimeout bounds individual reads and writes on data
// connections. The default is 120 seconds.
func WithTransferTimeout(d time.Duration) Option {
	return func(p *Publisher) error {
		if d < 0 {
			return fmt.Errorf("publish: transfer timeout cannot be negative, got %v", d)
		}
		p.transferTimeout = d
		return nil
	}
}

// WithTLSConfig supplies TLS material — extra root CAs, a client
// certificate, ServerName, InsecureSkipVerify for lab servers — used
// whenever credentials request TLS. The config is cloned per session.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Publisher) error {
		p.tlsConfig = cfg
		return nil
	}
}

// WithUploadLimit caps upload bandwidth in bytes per second; 0 removes
// the cap.
func WithUploadLimit(bytesPerSec int64) Option {
	return func(p *Publisher) error {
		if bytesPerSec < 0 {
			return fmt.Errorf("publish: upload limit cannot be negative, got %d", bytesPerSec)
		}
		p.uploadLimit = bytesPerSec
		return nil
	}
}

// WithLogger sets the logger for session and protocol debug events.
// Passing nil restores the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) error {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		p.logger = logger
		return nil
	}
}

// New returns a Publisher with the given options applied.
func New(opts ...Option) (*Publisher, error) {
	p := &Publisher{
		controlTimeout:  defaultControlTimeout,
		transferTimeout: defaultTransferTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// TestConnection dials and authenticates, then disconnects.
func (p *Publisher) TestConnection(ctx context.Context, creds Credentials) Result {
	if err := creds.Validate(); err != nil {
		return Result{OK: false, Message: err.Error()}
	}

	s, err := p.connect(ctx, creds)
	if err != nil {
		return Result{OK: false, Message: err.Error()}
	}
	s.close()

	return Result{
		OK:      true,
		Message: fmt.Sprintf("connected to %s as %s", creds.addr(), creds.User),
	}
}

// Upload publishes one item. The session sequence is identical to a
// one-item UploadAll.
func (p *Publisher) Upload(ctx context.Context, creds Credentials, item Item) error {
	return p.UploadAll(ctx, creds, []Item{item}, nil)
}

// UploadAll publishes items in order. Progress is reported after each
// stored file as (i+1)/len(items). The batch is fail-fast: the first
// error aborts the remaining items, and files already stored stay on
// the server (re-running the batch overwrites them). Cancellation is
// honored between files.
func (p *Publisher) UploadAll(ctx context.Context, creds Credentials, items []Item, onProgress ProgressFunc) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	// Validate every name up front so a bad batch fails before any
	// bytes move.
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	s, err := p.connect(ctx, creds)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.ensureDir(creds.RemoteDir); err != nil {
		return err
	}

	total := len(items)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.store(item); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(float64(i+1) / float64(total))
		}
	}
	return nil
}
