// Package ftptest provides a scriptable in-process FTP server for tests.
//
// The server speaks just enough of the protocol to exercise an upload
// client: USER/PASS login, MKD/CWD, TYPE, PASV with a fresh single-use
// data listener per negotiation, STOR with capture of the uploaded bytes,
// and QUIT. Every received command line is recorded so tests can assert
// on the exact wire sequence. Individual verbs can be overridden with
// Handle to script failures.
package ftptest

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

// dataAcceptTimeout bounds how long an armed passive listener waits for
// the client to connect.
const dataAcceptTimeout = 5 * time.Second

// HandlerFunc handles a single command. args is the text after the verb,
// without the trailing CRLF.
type HandlerFunc func(c *textproto.Conn, args string)

// Server is an in-process FTP server bound to 127.0.0.1.
type Server struct {
	listener  net.Listener
	addr      string
	tlsConfig *tls.Config

	handlers map[string]HandlerFunc

	mu       sync.Mutex
	commands []string
	files    map[string][]byte
	dirs     []string
	pending  *pendingData

	done chan struct{}
}

// pendingData is a passive-mode listener armed by PASV. The connection is
// accepted (and TLS-handshaken) in the background as soon as the client
// dials, the way a real server's data channel behaves; STOR then collects
// it from the channel.
type pendingData struct {
	listener net.Listener
	conn     chan net.Conn
}

// New starts a plain FTP server and registers its shutdown with t.Cleanup.
func New(t *testing.T) *Server {
	t.Helper()
	return start(t, nil)
}

// NewTLS starts a server that wraps the control and data connections in
// TLS using a freshly generated self-signed certificate. Clients connect
// with InsecureSkipVerify or with the certificate added to their roots.
func NewTLS(t *testing.T) *Server {
	t.Helper()
	cert := GenerateCert(t)
	return start(t, &tls.Config{Certificates: []tls.Certificate{cert}})
}

func start(t *testing.T, tlsConfig *tls.Config) *Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ftptest: listen: %v", err)
	}

	s := &Server{
		listener:  l,
		addr:      l.Addr().String(),
		tlsConfig: tlsConfig,
		handlers:  make(map[string]HandlerFunc),
		files:     make(map[string][]byte),
		done:      make(chan struct{}),
	}

	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Handle overrides the behavior for a command verb (e.g. "PASS", "STOR").
// Must be called before the client connects.
func (s *Server) Handle(verb string, h HandlerFunc) {
	s.handlers[strings.ToUpper(verb)] = h
}

// ReplyWith returns a handler that answers every invocation of a verb
// with the given reply line.
func ReplyWith(line string) HandlerFunc {
	return func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("%s", line)
	}
}

// Commands returns the command lines received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Files returns the content stored by STOR, keyed by the STOR argument.
func (s *Server) Files() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.files))
	for name, data := range s.files {
		out[name] = data
	}
	return out
}

// Dirs returns the paths received via MKD, in order.
func (s *Server) Dirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.dirs))
	copy(out, s.dirs)
	return out
}

// Close shuts the server down and releases any armed data listener.
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	pd := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pd != nil {
		pd.discard()
	}
	<-s.done
}

// serve accepts control connections until the listener is closed.
// Connections are handled one at a time; tests drive a single client.
func (s *Server) serve() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.tlsConfig != nil {
		tlsConn := tls.Server(conn, s.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			return
		}
		conn = tlsConn
	}

	fmt.Fprintf(conn, "220 ftptest service ready\r\n")

	textConn := textproto.NewConn(conn)
	defer textConn.Close()

	for {
		line, err := textConn.ReadLine()
		if err != nil {
			return
		}

		parts := strings.SplitN(line, " ", 2)
		verb := strings.ToUpper(parts[0])
		args := ""
		if len(parts) > 1 {
			args = parts[1]
		}

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		if handler, ok := s.handlers[verb]; ok {
			handler(textConn, args)
			if verb == "QUIT" {
				return
			}
			continue
		}

		switch verb {
		case "USER":
			_ = textConn.PrintfLine("331 User name okay, need password.")
		case "PASS":
			_ = textConn.PrintfLine("230 User logged in, proceed.")
		case "TYPE":
			_ = textConn.PrintfLine("200 Command okay.")
		case "MKD":
			s.mu.Lock()
			s.dirs = append(s.dirs, args)
			s.mu.Unlock()
			_ = textConn.PrintfLine("257 %q created.", args)
		case "CWD":
			_ = textConn.PrintfLine("250 Directory successfully changed.")
		case "PASV":
			s.DoPasv(textConn)
		case "STOR":
			s.DoStor(textConn, args)
		case "QUIT":
			_ = textConn.PrintfLine("221 Service closing control connection.")
			return
		default:
			_ = textConn.PrintfLine("502 Command not implemented.")
		}
	}
}

// DoPasv arms a fresh single-use data listener and advertises it.
// Exported so custom handlers can fall back to the default behavior.
func (s *Server) DoPasv(c *textproto.Conn) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = c.PrintfLine("425 Can't open data connection.")
		return
	}

	pd := &pendingData{
		listener: l,
		conn:     make(chan net.Conn, 1),
	}
	go pd.accept(s.tlsConfig)

	s.mu.Lock()
	if s.pending != nil {
		s.pending.discard()
	}
	s.pending = pd
	s.mu.Unlock()

	port := l.Addr().(*net.TCPAddr).Port
	_ = c.PrintfLine("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)
}

// accept waits for the client to dial the advertised port and performs the
// server side of the TLS handshake when configured. The result is handed
// to STOR through the conn channel; a closed channel means failure.
func (pd *pendingData) accept(tlsConfig *tls.Config) {
	defer close(pd.conn)
	defer pd.listener.Close()

	if tl, ok := pd.listener.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(dataAcceptTimeout))
	}

	dconn, err := pd.listener.Accept()
	if err != nil {
		return
	}

	if tlsConfig != nil {
		tlsConn := tls.Server(dconn, tlsConfig)
		_ = dconn.SetDeadline(time.Now().Add(dataAcceptTimeout))
		if err := tlsConn.Handshake(); err != nil {
			dconn.Close()
			return
		}
		_ = dconn.SetDeadline(time.Time{})
		dconn = tlsConn
	}

	pd.conn <- dconn
}

// discard tears down an armed listener that will never be used.
func (pd *pendingData) discard() {
	pd.listener.Close()
	if dconn, ok := <-pd.conn; ok {
		dconn.Close()
	}
}

// TakeData removes the armed passive listener and returns its accepted
// connection. Custom STOR handlers use it to consume the payload
// themselves before scripting a nonstandard completion reply.
func (s *Server) TakeData() (net.Conn, bool) {
	s.mu.Lock()
	pd := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pd == nil {
		return nil, false
	}
	dconn, ok := <-pd.conn
	return dconn, ok
}

// DoStor collects the pending data connection, drains it and records the
// bytes under the given name. Exported so custom handlers can wrap the
// default behavior (e.g. fail only the second STOR).
func (s *Server) DoStor(c *textproto.Conn, name string) {
	s.mu.Lock()
	armed := s.pending != nil
	s.mu.Unlock()
	if !armed {
		_ = c.PrintfLine("425 Use PASV first.")
		return
	}

	_ = c.PrintfLine("150 Ok to send data.")

	dconn, ok := s.TakeData()
	if !ok {
		_ = c.PrintfLine("425 Can't open data connection.")
		return
	}

	data, err := io.ReadAll(dconn)
	dconn.Close()
	if err != nil {
		_ = c.PrintfLine("426 Connection closed; transfer aborted.")
		return
	}

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()

	_ = c.PrintfLine("226 Transfer complete.")
}
