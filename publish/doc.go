// Package publish uploads exported static-site files to an FTP or FTPS
// server.
//
// The entry point is the Uploader interface, implemented by Publisher
// against a live server and by Fake in memory for tests. A Publisher
// carries configuration only; every call opens its own session, runs the
// fixed upload sequence (login, ensure the remote directory, store each
// file in order, quit) and closes the connection, so one Publisher may
// be shared across goroutines.
//
// Failures are typed by phase so callers can react differently to a
// wrong password and a full disk:
//
//	err := pub.UploadAll(ctx, creds, items, nil)
//	var authErr *publish.AuthError
//	if errors.As(err, &authErr) {
//	    // prompt for new credentials
//	}
//
// Batches are fail-fast: the first failing file aborts the rest, and
// files stored before the failure are left on the server. Re-running
// the batch overwrites them, so recovery is simply trying again.
package publish
