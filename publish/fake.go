package publish

import (
	"context"
	"errors"
	"sync"
)

// Fake implements Uploader in memory. It records what would have been
// published and supports failure injection, so command-line and UI code
// can be tested without a server. The zero value is ready to use.
type Fake struct {
	// FailConnect, when non-nil, makes every call fail as if the server
	// were unreachable.
	FailConnect error

	// FailAuth, when non-nil, makes every call fail as if the server
	// rejected the credentials.
	FailAuth error

	// FailAt fails the batch at the 1-based item index; 0 disables.
	FailAt int

	mu       sync.Mutex
	uploads  map[string][]Item
	progress []float64
}

var _ Uploader = (*Fake)(nil)

// TestConnection mirrors Publisher.TestConnection against the injected
// failures.
func (f *Fake) TestConnection(ctx context.Context, creds Credentials) Result {
	if err := creds.Validate(); err != nil {
		return Result{OK: false, Message: err.Error()}
	}
	if f.FailConnect != nil {
		return Result{OK: false, Message: (&ConnectionError{Err: f.FailConnect}).Error()}
	}
	if f.FailAuth != nil {
		return Result{OK: false, Message: (&AuthError{Err: f.FailAuth}).Error()}
	}
	return Result{OK: true, Message: "connected to " + creds.addr() + " as " + creds.User}
}

// Upload records a single item.
func (f *Fake) Upload(ctx context.Context, creds Credentials, item Item) error {
	return f.UploadAll(ctx, creds, []Item{item}, nil)
}

// UploadAll records items under the credentials' remote directory,
// honoring the same validation, ordering, fail-fast, and progress rules
// as the real Publisher.
func (f *Fake) UploadAll(ctx context.Context, creds Credentials, items []Item, onProgress ProgressFunc) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	if f.FailConnect != nil {
		return &ConnectionError{Err: f.FailConnect}
	}
	if f.FailAuth != nil {
		return &AuthError{Err: f.FailAuth}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	total := len(items)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FailAt == i+1 {
			return &TransferError{Name: item.Name, Err: errors.New("injected failure")}
		}
		if f.uploads == nil {
			f.uploads = make(map[string][]Item)
		}
		f.uploads[creds.RemoteDir] = append(f.uploads[creds.RemoteDir], item)

		fraction := float64(i+1) / float64(total)
		f.progress = append(f.progress, fraction)
		if onProgress != nil {
			onProgress(fraction)
		}
	}
	return nil
}

// Uploaded returns the items recorded under the given remote directory,
// in upload order.
func (f *Fake) Uploaded(remoteDir string) []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Item(nil), f.uploads[remoteDir]...)
}

// Progress returns every fraction reported across all batches.
func (f *Fake) Progress() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.progress...)
}

// Reset forgets recorded uploads and progress, keeping the failure
// configuration.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = nil
	f.progress = nil
}
