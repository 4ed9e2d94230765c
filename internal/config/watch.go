package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay lets an editor finish writing before the file is re-read.
const settleDelay = 50 * time.Millisecond

// Watch calls fn with the re-parsed configuration each time the file at path
// changes, until ctx is done. Bursts of events are coalesced into one reload.
// Files that fail to parse are reported to onErr (if non-nil) and otherwise
// ignored, so the previous configuration stays in effect.
func Watch(ctx context.Context, path string, fn func(Config), onErr func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", path, err)
	}
	report := func(err error) {
		configLogger.Printf("reload failed: %v", err)
		if onErr != nil {
			onErr(err)
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				report(err)
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				drain(ctx, w.Events)

				c, err := Load(path)
				if err != nil {
					report(err)
				} else {
					fn(c)
				}
				// Editors that save by renaming drop the original watch.
				_ = w.Add(path)
			}
		}
	}()
	return nil
}

// drain swallows events that arrive within settleDelay of each other.
func drain(ctx context.Context, events <-chan fsnotify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
		case <-time.After(settleDelay):
			return
		}
	}
}
