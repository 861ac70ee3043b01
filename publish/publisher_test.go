package publish_test

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepush/sitepush/ftp"
	"github.com/sitepush/sitepush/internal/ftptest"
	"github.com/sitepush/sitepush/publish"
)

func testCreds(t *testing.T, srv *ftptest.Server) publish.Credentials {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return publish.Credentials{
		Host:      host,
		Port:      port,
		User:      "deploy",
		Password:  "secret",
		RemoteDir: "/public_html/ncdb",
	}
}

func newPublisher(t *testing.T, opts ...publish.Option) *publish.Publisher {
	t.Helper()
	opts = append([]publish.Option{publish.WithControlTimeout(5 * time.Second)}, opts...)
	p, err := publish.New(opts...)
	require.NoError(t, err)
	return p
}

func countPrefix(cmds []string, prefix string) int {
	n := 0
	for _, cmd := range cmds {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}
	return n
}

func TestPublisher_UploadAll(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	items := []publish.Item{
		{Name: "index.html", Content: []byte("<html><body>hi</body></html>")},
		{Name: "style.css", Content: []byte("body { margin: 0 }")},
	}

	var progress []float64
	err := newPublisher(t).UploadAll(context.Background(), creds, items, func(fraction float64) {
		progress = append(progress, fraction)
	})
	require.NoError(t, err)

	want := []string{
		"USER deploy",
		"PASS secret",
		"MKD /public_html",
		"MKD /public_html/ncdb",
		"CWD /public_html/ncdb",
		"TYPE I", "PASV", "STOR index.html",
		"TYPE I", "PASV", "STOR style.css",
		"QUIT",
	}
	assert.Equal(t, want, srv.Commands())

	assert.Equal(t, []float64{0.5, 1.0}, progress)
	assert.Equal(t, items[0].Content, srv.Files()["index.html"])
	assert.Equal(t, items[1].Content, srv.Files()["style.css"])
}

func TestPublisher_ProgressMonotonic(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	items := []publish.Item{
		{Name: "a.html", Content: []byte("a")},
		{Name: "b.css", Content: []byte("b")},
		{Name: "c.js", Content: []byte("c")},
		{Name: "d.png", Content: nil}, // empty files are legal
	}

	var progress []float64
	err := newPublisher(t).UploadAll(context.Background(), creds, items, func(fraction float64) {
		progress = append(progress, fraction)
	})
	require.NoError(t, err)

	require.Len(t, progress, len(items))
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 1.0, progress[len(progress)-1])

	for _, item := range items {
		assert.Equal(t, item.Content, srv.Files()[item.Name], "content of %s", item.Name)
	}
}

func TestPublisher_UploadAll_Empty(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	called := false
	err := newPublisher(t).UploadAll(context.Background(), creds, nil, func(float64) {
		called = true
	})
	require.NoError(t, err)

	// The session still runs for its directory-ensuring side effect.
	want := []string{
		"USER deploy",
		"PASS secret",
		"MKD /public_html",
		"MKD /public_html/ncdb",
		"CWD /public_html/ncdb",
		"QUIT",
	}
	assert.Equal(t, want, srv.Commands())
	assert.False(t, called, "progress must not be reported for an empty batch")
}

func TestPublisher_UploadAll_FailFast(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	srv.Handle("STOR", func(c *textproto.Conn, args string) {
		if args == "b.css" {
			_ = c.PrintfLine("550 Permission denied.")
			return
		}
		srv.DoStor(c, args)
	})
	creds := testCreds(t, srv)

	items := []publish.Item{
		{Name: "a.html", Content: []byte("a")},
		{Name: "b.css", Content: []byte("b")},
		{Name: "c.js", Content: []byte("c")},
	}

	var progress []float64
	err := newPublisher(t).UploadAll(context.Background(), creds, items, func(fraction float64) {
		progress = append(progress, fraction)
	})

	var transferErr *publish.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "b.css", transferErr.Name)

	var protoErr *ftp.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, 550, protoErr.Code)

	// The failure at b.css must abort c.js entirely.
	cmds := srv.Commands()
	assert.Equal(t, 2, countPrefix(cmds, "STOR "))
	assert.NotContains(t, cmds, "STOR c.js")

	assert.Equal(t, []float64{1.0 / 3.0}, progress)
	assert.Contains(t, srv.Files(), "a.html", "files before the failure stay uploaded")
	assert.NotContains(t, srv.Files(), "c.js")
}

func TestPublisher_UploadAll_Canceled(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	items := []publish.Item{
		{Name: "a.html", Content: []byte("a")},
		{Name: "b.css", Content: []byte("b")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := newPublisher(t).UploadAll(ctx, creds, items, func(float64) {
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)

	// Cancelled after the first file: the second must never start.
	cmds := srv.Commands()
	assert.Equal(t, 1, countPrefix(cmds, "STOR "))
	assert.Equal(t, 1, countPrefix(cmds, "TYPE "))
}

func TestPublisher_UploadAll_AuthFailure(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	srv.Handle("PASS", ftptest.ReplyWith("530 Login incorrect."))
	creds := testCreds(t, srv)

	err := newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "a.html", Content: []byte("a")},
	}, nil)

	var authErr *publish.AuthError
	require.ErrorAs(t, err, &authErr)

	var protoErr *ftp.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, 530, protoErr.Code)

	assert.Zero(t, countPrefix(srv.Commands(), "MKD"), "no directory work after a failed login")
}

func TestPublisher_UploadAll_DirFailure(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	srv.Handle("CWD", ftptest.ReplyWith("550 Failed to change directory."))
	creds := testCreds(t, srv)

	err := newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "a.html", Content: []byte("a")},
	}, nil)

	var dirErr *publish.DirError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "/public_html/ncdb", dirErr.Path)

	cmds := srv.Commands()
	assert.Equal(t, 2, countPrefix(cmds, "MKD "), "the MKD walk still ran")
	assert.Zero(t, countPrefix(cmds, "TYPE"), "no transfer work after a failed CWD")
}

func TestPublisher_UploadAll_MkdRejectionIgnored(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	srv.Handle("MKD", ftptest.ReplyWith("550 Directory already exists."))
	creds := testCreds(t, srv)

	err := newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "a.html", Content: []byte("a")},
	}, nil)
	require.NoError(t, err, "MKD rejections must not fail the batch")
	assert.Contains(t, srv.Files(), "a.html")
}

func TestPublisher_UploadAll_ConnectFailure(t *testing.T) {
	t.Parallel()

	// Grab a port and close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	creds := publish.Credentials{Host: host, Port: port, User: "deploy", Password: "secret"}
	err = newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "a.html", Content: []byte("a")},
	}, nil)

	var connErr *publish.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestPublisher_UploadAll_MalformedReplyPassthrough(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	srv.Handle("CWD", ftptest.ReplyWith("garbage"))
	creds := testCreds(t, srv)

	err := newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "a.html", Content: []byte("a")},
	}, nil)

	require.ErrorIs(t, err, ftp.ErrMalformedReply)

	// Wire garbage is a protocol-level defect, not a directory problem.
	var dirErr *publish.DirError
	assert.False(t, errors.As(err, &dirErr))
}

func TestPublisher_UploadAll_InvalidItem(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	err := newPublisher(t).UploadAll(context.Background(), creds, []publish.Item{
		{Name: "ok.html", Content: []byte("a")},
		{Name: "../escape.html", Content: []byte("b")},
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "path separator")
	assert.Empty(t, srv.Commands(), "validation failures must not open a connection")
}

func TestPublisher_Upload(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	content := []byte("<html>single</html>")
	err := newPublisher(t).Upload(context.Background(), creds, publish.Item{
		Name:    "index.html",
		Content: content,
	})
	require.NoError(t, err)

	assert.Equal(t, content, srv.Files()["index.html"])
	assert.Equal(t, 1, countPrefix(srv.Commands(), "STOR "))
}

func TestPublisher_RelativeRemoteDir(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)
	creds.RemoteDir = "site"

	err := newPublisher(t).Upload(context.Background(), creds, publish.Item{
		Name:    "index.html",
		Content: []byte("x"),
	})
	require.NoError(t, err)

	cmds := srv.Commands()
	assert.Contains(t, cmds, "MKD site")
	assert.Contains(t, cmds, "CWD site")
}

func TestPublisher_TestConnection(t *testing.T) {
	t.Parallel()
	srv := ftptest.New(t)
	creds := testCreds(t, srv)

	result := newPublisher(t).TestConnection(context.Background(), creds)
	assert.True(t, result.OK)
	assert.Contains(t, result.Message, "deploy")

	// A connection test logs in and leaves; no directory or transfer work.
	want := []string{"USER deploy", "PASS secret", "QUIT"}
	assert.Equal(t, want, srv.Commands())
}

func TestPublisher_TestConnection_Failures(t *testing.T) {
	t.Parallel()

	t.Run("BadCredentials", func(t *testing.T) {
		t.Parallel()
		srv := ftptest.New(t)
		srv.Handle("PASS", ftptest.ReplyWith("530 Login incorrect."))

		result := newPublisher(t).TestConnection(context.Background(), testCreds(t, srv))
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "authentication failed")
	})

	t.Run("Unreachable", func(t *testing.T) {
		t.Parallel()
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		host, portStr, err := net.SplitHostPort(l.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)
		require.NoError(t, l.Close())

		creds := publish.Credentials{Host: host, Port: port, User: "deploy", Password: "secret"}
		result := newPublisher(t).TestConnection(context.Background(), creds)
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "connection failed")
	})

	t.Run("IncompleteCredentials", func(t *testing.T) {
		t.Parallel()
		result := newPublisher(t).TestConnection(context.Background(), publish.Credentials{})
		assert.False(t, result.OK)
		assert.NotEmpty(t, result.Message)
	})
}

func TestPublisher_TLS(t *testing.T) {
	t.Parallel()
	srv := ftptest.NewTLS(t)
	creds := testCreds(t, srv)
	creds.TLS = true

	pub := newPublisher(t, publish.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))

	items := []publish.Item{
		{Name: "index.html", Content: []byte("<html>tls</html>")},
		{Name: "style.css", Content: []byte("body{}")},
	}
	err := pub.UploadAll(context.Background(), creds, items, nil)
	require.NoError(t, err)

	assert.Equal(t, items[0].Content, srv.Files()["index.html"])
	assert.Equal(t, items[1].Content, srv.Files()["style.css"])
}

func TestCredentials_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		creds   publish.Credentials
		wantErr string
	}{
		{
			name:  "valid",
			creds: publish.Credentials{Host: "example.com", User: "u"},
		},
		{
			name:  "explicit port",
			creds: publish.Credentials{Host: "example.com", Port: 2121, User: "u"},
		},
		{
			name:    "missing host",
			creds:   publish.Credentials{User: "u"},
			wantErr: "host is required",
		},
		{
			name:    "missing user",
			creds:   publish.Credentials{Host: "example.com"},
			wantErr: "user is required",
		},
		{
			name:    "negative port",
			creds:   publish.Credentials{Host: "example.com", User: "u", Port: -1},
			wantErr: "out of range",
		},
		{
			name:    "port too large",
			creds:   publish.Credentials{Host: "example.com", User: "u", Port: 70000},
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.creds.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestItem_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		item    publish.Item
		wantErr string
	}{
		{
			name: "valid",
			item: publish.Item{Name: "index.html"},
		},
		{
			name: "empty content is fine",
			item: publish.Item{Name: "empty.txt", Content: nil},
		},
		{
			name:    "empty name",
			item:    publish.Item{},
			wantErr: "name is empty",
		},
		{
			name:    "slash",
			item:    publish.Item{Name: "a/b.html"},
			wantErr: "path separator",
		},
		{
			name:    "backslash",
			item:    publish.Item{Name: `a\b.html`},
			wantErr: "path separator",
		},
		{
			name:    "newline",
			item:    publish.Item{Name: "a\nQUIT"},
			wantErr: "control character",
		},
		{
			name:    "carriage return",
			item:    publish.Item{Name: "a\rb"},
			wantErr: "control character",
		},
		{
			name:    "nul",
			item:    publish.Item{Name: "a\x00b"},
			wantErr: "control character",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.item.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
