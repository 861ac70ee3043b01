package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// debounceDelay collects the burst of events a typical export produces
// into one publish.
var debounceDelay = 500 * time.Millisecond

// watchLoop re-runs publishDir whenever the directory's contents change,
// until the context is canceled. A failing publish keeps the loop
// alive; the next change simply tries again.
func watchLoop(ctx context.Context, dir string, publishDir func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logrus.Infof("Watching %s for changes", dir)

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stopping watch")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			logrus.Debugf("Change detected: %s (%s)", event.Name, event.Op)
			debounce.Reset(debounceDelay)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Errorf("Watcher error: %v", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := publishDir(); err != nil {
				logrus.Errorf("Publish failed: %v", err)
			}
		}
	}
}

// relevantEvent filters out dot-files and metadata-only changes.
func relevantEvent(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	return event.Op&ops != 0
}
