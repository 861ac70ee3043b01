package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitepush/sitepush/publish"
)

// runCommand executes the CLI against a fresh command tree and returns
// everything it printed.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// withFakeUploader routes every command through the given uploader for
// the duration of the test. Tests using it must not run in parallel.
func withFakeUploader(t *testing.T, uploader publish.Uploader) {
	t.Helper()
	orig := newUploader
	newUploader = func(opts ...publish.Option) (publish.Uploader, error) {
		return uploader, nil
	}
	t.Cleanup(func() { newUploader = orig })
}

// writeConfig writes an INI file into a temp directory and returns its
// path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitepush.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// emptyConfig gives a test its own blank config file so the
// developer's real ~/.sitepush.ini cannot leak into it.
func emptyConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, "")
}

// writeExportDir creates a directory holding the given files.
func writeExportDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}
