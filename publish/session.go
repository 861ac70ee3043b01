package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/sitepush/sitepush/ftp"
)

// session owns one control connection for the duration of one façade
// call. Sessions are never reused or shared; concurrent calls each open
// their own.
type session struct {
	client *ftp.Client
	logger *slog.Logger
}

// connect dials the server and authenticates. Failures come back
// classified: transport problems as *ConnectionError, rejected
// credentials as *AuthError, and unparseable reply text as the ftp
// package's ErrMalformedReply untouched.
func (p *Publisher) connect(ctx context.Context, creds Credentials) (*session, error) {
	logger := p.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := []ftp.Option{
		ftp.WithTimeout(p.controlTimeout),
		ftp.WithTransferTimeout(p.transferTimeout),
		ftp.WithLogger(logger),
	}
	if p.uploadLimit > 0 {
		opts = append(opts, ftp.WithUploadLimit(p.uploadLimit))
	}
	if creds.TLS {
		opts = append(opts, ftp.WithTLS(p.sessionTLSConfig(creds.Host)))
	}

	client, err := ftp.DialContext(ctx, creds.addr(), opts...)
	if err != nil {
		if errors.Is(err, ftp.ErrMalformedReply) {
			return nil, err
		}
		return nil, &ConnectionError{Err: err}
	}

	s := &session{client: client, logger: logger}
	if err := client.Login(creds.User, creds.Password); err != nil {
		s.close()
		if errors.Is(err, ftp.ErrMalformedReply) {
			return nil, err
		}
		var protoErr *ftp.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, &AuthError{Err: err}
		}
		return nil, &ConnectionError{Err: err}
	}
	return s, nil
}

// sessionTLSConfig clones the configured TLS material and fills in the
// server name from the credentials.
func (p *Publisher) sessionTLSConfig(host string) *tls.Config {
	cfg := p.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// ensureDir creates each path prefix of dir and changes into it.
// MKD replies are ignored outright: a 550 for an existing directory and
// a 257 for a fresh one are the same outcome here, and any real problem
// (permissions, bad path) resurfaces in the CWD that follows.
func (s *session) ensureDir(dir string) error {
	if dir == "" {
		return nil
	}

	for _, prefix := range dirPrefixes(dir) {
		if err := s.client.MakeDir(prefix); err != nil {
			s.logger.Debug("mkd ignored", "path", prefix, "error", err)
		}
	}

	if err := s.client.ChangeDir(dir); err != nil {
		if errors.Is(err, ftp.ErrMalformedReply) {
			return err
		}
		var protoErr *ftp.ProtocolError
		if errors.As(err, &protoErr) {
			return &DirError{Path: dir, Err: err}
		}
		return &ConnectionError{Err: err}
	}
	return nil
}

// dirPrefixes expands "/a/b/c" into ["/a", "/a/b", "/a/b/c"], keeping
// the path relative when the input is.
func dirPrefixes(dir string) []string {
	rooted := strings.HasPrefix(dir, "/")
	var prefixes []string
	current := ""
	for _, seg := range strings.Split(dir, "/") {
		if seg == "" {
			continue
		}
		switch {
		case current == "" && rooted:
			current = "/" + seg
		case current == "":
			current = seg
		default:
			current = current + "/" + seg
		}
		prefixes = append(prefixes, current)
	}
	return prefixes
}

// store uploads one item, attributing any failure to it by name.
func (s *session) store(item Item) error {
	if err := s.client.StoreBytes(item.Name, item.Content); err != nil {
		if errors.Is(err, ftp.ErrMalformedReply) {
			return err
		}
		return &TransferError{Name: item.Name, Err: err}
	}
	return nil
}

// close ends the session: QUIT best-effort, then the socket is closed
// regardless of what the server answered.
func (s *session) close() {
	_ = s.client.Quit()
}
