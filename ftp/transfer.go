package ftp

import (
	"bytes"
	"fmt"
	"io"
)

// Store uploads data from an io.Reader to the given remote filename,
// relative to the server's current working directory.
// The transfer is performed in binary mode (TYPE I).
//
// Example:
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Store("remote.txt", file)
func (c *Client) Store(name string, r io.Reader) error {
	// Set binary mode
	if err := c.Type("I"); err != nil {
		return fmt.Errorf("failed to set binary mode: %w", err)
	}

	// Open data connection and send STOR command
	dataConn, err := c.startTransfer("STOR", name)
	if err != nil {
		return err
	}

	// Copy data to the connection
	_, copyErr := io.Copy(dataConn, r)

	// Always finish the transfer (close the data connection and read the
	// completion reply) so the control channel stays in a known state.
	finishErr := c.finishTransfer("STOR", dataConn)

	// Return the first error that occurred
	if copyErr != nil {
		return fmt.Errorf("upload failed: %w", copyErr)
	}
	return finishErr
}

// StoreBytes uploads the given byte slice to the remote filename.
// It is a convenience wrapper around Store for in-memory content.
func (c *Client) StoreBytes(name string, data []byte) error {
	return c.Store(name, bytes.NewReader(data))
}
