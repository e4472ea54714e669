package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/pedigree/pkg/core"
)

// DebounceInterval coalesces bursts of filesystem events (editors often
// write a file in several steps).
var DebounceInterval = 50 * time.Millisecond

// Watch reports external changes to the document file. Writes made by this
// store are not reported. The channel is closed when ctx ends.
func (s *Store) Watch(ctx context.Context) (<-chan core.Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watching the directory survives the rename done by atomic writes.
	if err := watcher.Add(s.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.Path, err)
	}

	events := make(chan core.Event, 1)
	d := &debouncer{interval: DebounceInterval}
	s.setWatcherActive(true)

	var seq uint64
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(events)
		defer s.setWatcherActive(false)
		defer watcher.Close()
		defer d.stop()

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != s.config.Document {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				s.config.Logger.Debug("event received", "name", ev.Name, "op", ev.Op.String())
				d.trigger(func() {
					data, err := os.ReadFile(s.documentPath())
					if err == nil && s.isOwnWrite(data) {
						return
					}
					seq++
					e := core.NewEvent(core.EventStoreChanged, seq, s.config.Document, nil)
					select {
					case events <- e:
					case <-ctx.Done():
					}
				})

			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.config.Logger.Error("fsnotify error", "error", wErr)
				if s.config.ErrorHandler != nil {
					s.config.ErrorHandler(wErr)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		if s.config.ErrorHandler != nil {
			s.config.ErrorHandler(fmt.Errorf("watcher panic: %w", err))
		} else {
			s.config.Logger.Error("watcher panic", "error", err)
		}
	}))

	return events, nil
}

// debouncer runs the last triggered function once the interval has passed
// without a new trigger. Callbacks never overlap.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	running sync.Mutex
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.running.Lock()
		defer d.running.Unlock()
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// stop cancels the pending callback and waits for a running one.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.running.Lock()
	d.running.Unlock()
}
