// Package ftp implements the FTP/FTPS client used to publish files to a
// remote web server.
//
// # Overview
//
// The client is deliberately small: it speaks the subset of FTP that an
// upload workflow needs (USER/PASS login, MKD/CWD directory handling,
// binary STOR over a passive-mode data connection, QUIT) and nothing else.
// Directory listings, downloads and resumable transfers are out of scope.
//
// Supported:
//   - Plain FTP connections
//   - FTPS with the connection wrapped in TLS before the greeting
//     (TLS 1.2 minimum, on both the control and data channels)
//   - Automatic TLS session reuse for data connections
//   - Passive mode (PASV) data channel negotiation
//   - Separate control and transfer timeouts
//   - Upload bandwidth limiting
//   - Progress tracking via an io.Reader wrapper
//
// # Basic Usage
//
//	client, err := ftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
//	if err := client.Login("username", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Store("index.html", file); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
// TLS is always applied before any protocol byte is exchanged. Servers that
// expect the AUTH TLS upgrade on a plaintext connection are not supported:
//
//	client, err := ftp.Dial("ftp.example.com:990",
//	    ftp.WithTLS(&tls.Config{
//	        ServerName: "ftp.example.com",
//	    }),
//	)
//
// Many servers (vsftpd, ProFTPD) require TLS session reuse between the
// control and data connections. The client maintains a shared TLS session
// cache so this works without extra configuration.
//
// # Error Handling
//
// Replies with an unexpected code are reported as *ProtocolError with the
// command, the server's message and the numeric code. Reply text that
// cannot be parsed at all is reported as an error wrapping
// ErrMalformedReply:
//
//	if err := client.Store("file.txt", reader); err != nil {
//	    var pe *ftp.ProtocolError
//	    if errors.As(err, &pe) {
//	        fmt.Printf("%s rejected with code %d\n", pe.Command, pe.Code)
//	    }
//	}
package ftp
