package publish

import "fmt"

// ConnectionError reports a failure to reach the server or keep the
// conversation alive: dialing, TLS handshakes, and socket I/O on either
// channel.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("publish: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports credentials the server rejected with a definite
// reply code. Retrying with the same credentials cannot succeed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("publish: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DirError reports that the remote directory could not be entered after
// it was (best-effort) created.
type DirError struct {
	Path string
	Err  error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("publish: cannot enter directory %s: %v", e.Path, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }

// TransferError reports that one file's transfer failed. Name attributes
// the failure so callers can tell the user which file to look at.
type TransferError struct {
	Name string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("publish: transfer of %s failed: %v", e.Name, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
