package ftp

import (
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

// pasvRegex matches the PASV reply format: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
var pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// parsePasvAddr parses a PASV reply and returns the data channel address.
// Example: "227 Entering Passive Mode (192,168,1,10,19,136)"
// Returns: "192.168.1.10:5000" (19*256 + 136 = 5000)
//
// The first parenthesized sextuple found in the text is used; servers differ
// in how much prose they wrap around it.
func parsePasvAddr(reply string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(reply)
	if len(matches) != 7 {
		return "", fmt.Errorf("%w: no passive address in %q", ErrMalformedReply, reply)
	}

	// Parse and validate the IP address parts
	var h [4]int
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", fmt.Errorf("%w: bad address octet %q", ErrMalformedReply, matches[i+1])
		}
		h[i] = val
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])

	// Parse and validate the port parts
	p1, err1 := strconv.Atoi(matches[5])
	p2, err2 := strconv.Atoi(matches[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", fmt.Errorf("%w: bad port pair %q,%q", ErrMalformedReply, matches[5], matches[6])
	}
	port := p1*256 + p2
	if port == 0 {
		return "", fmt.Errorf("%w: passive port is zero", ErrMalformedReply)
	}

	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// resolveDataAddr resolves the data connection address.
// If the PASV reply contains 0.0.0.0, it replaces it with the control connection host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		// If we can't split it, return as is (dialer will likely fail later)
		return pasvAddr
	}

	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}

	return pasvAddr
}

// openDataConn negotiates a passive mode data connection.
// If TLS is enabled on the control channel, the data connection is wrapped
// in TLS as well, reusing the shared session cache.
//
// Each data connection is single-use: opened for one transfer command and
// closed when that transfer is done.
func (c *Client) openDataConn() (net.Conn, error) {
	reply, err := c.sendCommand("PASV")
	if err != nil {
		return nil, fmt.Errorf("PASV failed: %w", err)
	}

	if reply.Code != 227 {
		return nil, &ProtocolError{
			Command:  "PASV",
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	addr, err := parsePasvAddr(reply.String())
	if err != nil {
		return nil, err
	}

	// If the server sends 0.0.0.0, we use the control connection address.
	addr = resolveDataAddr(addr, c.host)
	c.logger.Debug("opening data connection", "addr", addr)

	// Connect to the data port
	dataConn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}

	// If TLS is enabled, wrap the data connection
	if c.tlsConfig != nil {
		tlsConn := tls.Client(dataConn, c.tlsConfig)

		// Set deadline for handshake
		if c.timeout > 0 {
			if err := dataConn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
				dataConn.Close()
				return nil, fmt.Errorf("failed to set deadline: %w", err)
			}
		}

		if err := tlsConn.Handshake(); err != nil {
			dataConn.Close()
			return nil, fmt.Errorf("data connection TLS handshake failed: %w", err)
		}
		dataConn = tlsConn
	}

	conn := net.Conn(dataConn)

	// Wrap with deadline connection if a transfer timeout is set
	if c.transferTimeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: c.transferTimeout}
	}

	// Apply the upload bandwidth limit, if any
	if c.limiter != nil {
		conn = &limitedConn{Conn: conn, limiter: c.limiter}
	}

	return conn, nil
}

// startTransfer opens a data connection and issues the transfer command.
// The server must answer 150 or 125 (about to open / already open). The
// caller writes the payload to the returned connection, closes it, and then
// calls finishTransfer to collect the completion reply.
func (c *Client) startTransfer(verb string, args ...string) (net.Conn, error) {
	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	reply, err := c.sendCommand(verb, args...)
	if err != nil {
		dataConn.Close()
		return nil, err
	}

	if reply.Code != 150 && reply.Code != 125 {
		dataConn.Close()
		return nil, &ProtocolError{
			Command:  verb,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return dataConn, nil
}

// finishTransfer closes the data connection, which signals EOF to the
// server, then reads the completion reply (226) from the control channel.
func (c *Client) finishTransfer(verb string, dataConn net.Conn) error {
	// Close the data connection
	if err := dataConn.Close(); err != nil {
		return fmt.Errorf("failed to close data connection: %w", err)
	}

	// Set read deadline for the completion reply
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	// Read the completion reply
	reply, err := readReply(c.reader)
	if err != nil {
		return fmt.Errorf("failed to read completion reply: %w", err)
	}

	c.logger.Debug("ftp transfer complete", "code", reply.Code, "message", reply.Message)

	if reply.Code != 226 {
		return &ProtocolError{
			Command:  verb,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return nil
}
