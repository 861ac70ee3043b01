package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sitepush/sitepush/publish"
)

func newPushCommand(g *globalFlags) *cobra.Command {
	var (
		watch        bool
		retries      int
		retriesSleep time.Duration
		bwlimit      string
	)

	cmd := &cobra.Command{
		Use:   "push <dir>",
		Short: "Upload every file in an export directory",
		Long: `Upload the files at the top level of <dir> to the configured remote
directory, creating it if needed. Subdirectories and dot-files are
skipped.

With --watch, sitepush stays running and re-publishes the directory
whenever its contents change. With --retries, transient failures re-run
the whole batch; re-uploading files that already made it is harmless
since the batch overwrites them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			s, err := g.resolve()
			if err != nil {
				return err
			}
			limit, err := parseBandwidth(bwlimit)
			if err != nil {
				return err
			}
			opts, err := s.publisherOptions(limit)
			if err != nil {
				return err
			}
			uploader, err := newUploader(opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			publishDir := func() error {
				return pushDir(ctx, uploader, s.creds, dir, retries, retriesSleep)
			}

			if err := publishDir(); err != nil {
				if !watch {
					return err
				}
				// In watch mode a failed publish is not fatal: the next
				// change triggers another attempt.
				logrus.Errorf("Publish failed: %v", err)
			}
			if !watch {
				return nil
			}
			return watchLoop(ctx, dir, publishDir)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&watch, "watch", false, "Stay running and re-publish when files change")
	flags.IntVar(&retries, "retries", 3, "Retry the whole batch this many times on transient failures")
	flags.DurationVar(&retriesSleep, "retries-sleep", time.Second, "Pause between retry attempts")
	flags.StringVar(&bwlimit, "bwlimit", "", "Upload bandwidth limit, e.g. 512k or 2M (empty for unlimited)")
	return cmd
}

// pushDir loads the directory and uploads it, retrying transient
// failures.
func pushDir(ctx context.Context, uploader publish.Uploader, creds publish.Credentials, dir string, retries int, retriesSleep time.Duration) error {
	items, err := publish.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logrus.Warnf("Nothing to publish in %s", dir)
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"files": len(items),
		"host":  creds.Host,
		"dir":   creds.RemoteDir,
	}).Info("publishing")

	uploaded := 0
	onProgress := func(float64) {
		uploaded++
		logrus.WithFields(logrus.Fields{
			"file":     items[uploaded-1].Name,
			"progress": fmt.Sprintf("%d/%d", uploaded, len(items)),
		}).Info("uploaded")
	}

	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for try := 1; try <= retries; try++ {
		uploaded = 0
		lastErr = uploader.UploadAll(ctx, creds, items, onProgress)
		if lastErr == nil {
			if try > 1 {
				logrus.Infof("Attempt %d/%d succeeded", try, retries)
			}
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		logrus.Errorf("Attempt %d/%d failed: %v", try, retries, lastErr)
		if try < retries && retriesSleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retriesSleep):
			}
		}
	}
	return lastErr
}

// retryable reports whether re-running the batch could help. Rejected
// credentials and invalid input fail the same way every time; network
// and per-file failures may not.
func retryable(err error) bool {
	var connErr *publish.ConnectionError
	var dirErr *publish.DirError
	var transferErr *publish.TransferError
	return errors.As(err, &connErr) || errors.As(err, &dirErr) || errors.As(err, &transferErr)
}
