package ftp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxReplyLen bounds the total size of a single reply. A server that keeps
// streaming continuation lines without ever terminating the reply is cut
// off here instead of growing the buffer forever.
const maxReplyLen = 16 * 1024

// Reply represents an FTP server reply.
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the human-readable message from the server
	Message string

	// Lines contains all lines of the reply (for multi-line replies)
	Lines []string
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the full reply as a string.
func (r *Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

// readReply reads a complete FTP reply from the reader.
// It handles both single-line and multi-line replies.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
//
// The reply is complete when a line starts with the code followed by a space.
func readReply(r *bufio.Reader) (*Reply, error) {
	// Read the first line
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, fmt.Errorf("%w: short line %q", ErrMalformedReply, line)
	}

	// The code is exactly three ASCII digits; Atoi alone would also
	// accept "+15".
	if !isDigits(line[0:3]) {
		return nil, fmt.Errorf("%w: bad code in %q", ErrMalformedReply, line)
	}
	code, _ := strconv.Atoi(line[0:3])

	lines := []string{line}

	// Optimization for common single-line reply
	if line[3] == ' ' {
		return &Reply{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	// Multi-line reply must start with '-'
	if line[3] != '-' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}

	// Read remaining lines
	if err := readMultiLine(r, code, &lines); err != nil {
		return nil, err
	}

	// Build the message
	var messageLines []string
	for _, l := range lines {
		if len(l) > 4 {
			messageLines = append(messageLines, l[4:])
		}
	}

	return &Reply{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func readMultiLine(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)
	total := len((*lines)[0])

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: unexpected EOF", ErrMalformedReply)
			}
			return err
		}

		total += len(line)
		if total > maxReplyLen {
			return fmt.Errorf("%w: reply exceeds %d bytes without terminating", ErrMalformedReply, maxReplyLen)
		}

		line = strings.TrimRight(line, "\r\n")

		// Check for RFC 2389 continuation (starts with space)
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}

		// Standard continuation or end line
		if len(line) < 4 || line[0:3] != codeStr {
			return fmt.Errorf("%w: code mismatch in %q", ErrMalformedReply, line)
		}

		*lines = append(*lines, line)

		if line[3] == ' ' {
			return nil // End of reply
		}

		if line[3] != '-' {
			return fmt.Errorf("%w: %q", ErrMalformedReply, line)
		}
	}
}

// formatCommand joins a verb and its arguments into a single command line.
// Arguments are rejected if they contain CR, LF or NUL: a filename with an
// embedded line break would otherwise smuggle a second command onto the
// control channel.
func formatCommand(verb string, args ...string) (string, error) {
	if strings.ContainsAny(verb, "\r\n\x00") {
		return "", fmt.Errorf("invalid command verb %q", verb)
	}
	for _, arg := range args {
		if strings.ContainsAny(arg, "\r\n\x00") {
			return "", fmt.Errorf("invalid command argument %q", arg)
		}
	}

	if len(args) == 0 {
		return verb, nil
	}
	return fmt.Sprintf("%s %s", verb, strings.Join(args, " ")), nil
}

// sendCommand sends an FTP command and returns the reply.
func (c *Client) sendCommand(command string, args ...string) (*Reply, error) {
	cmd, err := formatCommand(command, args...)
	if err != nil {
		return nil, err
	}

	// Log if debug is enabled; never log credentials
	if c.logger != nil {
		logCmd := cmd
		if command == "PASS" {
			logCmd = "PASS ****"
		}
		c.logger.Debug("ftp command", "cmd", logCmd)
	}

	// Lock the client to prevent concurrent commands
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("ftp: connection is closed")
	}

	// Set write deadline
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	// Send the command
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	// Set read deadline for the reply
	// Note: We set it on the underlying connection, not the bufio Reader
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	// Read the reply
	reply, err := readReply(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	// Log the reply if debug is enabled
	if c.logger != nil {
		c.logger.Debug("ftp reply", "code", reply.Code, "message", reply.Message)
	}

	return reply, nil
}

// expectCode sends a command and verifies the reply code matches the expected code.
// Returns an error if the code doesn't match or if the command fails.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if reply.Code != expectedCode {
		return reply, &ProtocolError{
			Command:  command,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return reply, nil
}

// expect2xx sends a command and verifies the reply is in the 2xx range (success).
func (c *Client) expect2xx(command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if !reply.Is2xx() {
		return reply, &ProtocolError{
			Command:  command,
			Response: reply.Message,
			Code:     reply.Code,
		}
	}

	return reply, nil
}
