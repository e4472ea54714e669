package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/pedigree/pkg/core"
)

// Save serializes the current state and persists it in the background.
//
// At most one save is in flight. A call made while another save is
// outstanding is dropped: it returns (nil, false) and nothing is persisted.
// Otherwise the returned channel yields the persist result and is closed.
func (e *Engine) Save(ctx context.Context) (<-chan error, bool) {
	if !e.saving.CompareAndSwap(false, true) {
		e.record(func(s *Stats) { s.SavesDropped++ }, nil)
		e.logger.Debug("save dropped, another save is in progress")
		return nil, false
	}

	var aux []byte
	if e.cfg.Renderer != nil {
		snap, err := e.cfg.Renderer.Snapshot(ctx)
		if err != nil {
			e.logger.Warn("snapshot failed, saving without image", "error", err)
		} else {
			aux = snap
		}
	}

	text, err := e.serializer.Serialize()
	if err != nil {
		e.saving.Store(false)
		wrapped := fmt.Errorf("%w: %v", core.ErrPersist, err)
		e.record(func(s *Stats) { s.SaveFailures++ }, wrapped)
		e.emit(core.EventSaveFailure, 0, "", wrapped)
		done := make(chan error, 1)
		done <- err
		close(done)
		return done, true
	}

	e.emit(core.EventSaveStart, 0, "", nil)
	e.inflight.Add(1)

	done := make(chan error, 1)
	started := time.Now()
	persistCtx := context.WithoutCancel(ctx)

	// Completion runs once, whether the persist returns or panics.
	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			defer func() {
				done <- err
				close(done)
			}()
			e.complete(err, started)
		})
	}

	lifecycle.Go(persistCtx, func(ctx context.Context) error {
		finish(e.cfg.Store.PersistDocument(ctx, text, aux))
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		finish(fmt.Errorf("store panicked: %w", err))
	}))

	return done, true
}

// SaveAndWait saves and blocks until the persist completes or ctx ends.
func (e *Engine) SaveAndWait(ctx context.Context) error {
	done, ok := e.Save(ctx)
	if !ok {
		return core.ErrSaveInProgress
	}
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrPersist, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete runs the completion steps shared by success and failure.
func (e *Engine) complete(err error, started time.Time) {
	defer e.inflight.Done()

	e.saving.Store(false)
	e.emit(core.EventSaveFinish, 0, "", nil)
	e.runAfterSave()

	if err != nil {
		err = fmt.Errorf("%w: %v", core.ErrPersist, err)
		e.logger.Error("save failed", "error", err, "elapsed", time.Since(started))
		e.record(func(s *Stats) { s.SaveFailures++ }, err)
		e.emit(core.EventSaveFailure, 0, "", err)
		return
	}

	e.cfg.History.MarkSavedCheckpoint()
	now := time.Now()
	e.mu.Lock()
	e.lastSave = &now
	e.stats.Saves++
	e.mu.Unlock()

	e.logger.Info("saved", "elapsed", time.Since(started))
	e.emit(core.EventSaveSuccess, 0, "successfully saved", nil)
}

func (e *Engine) runAfterSave() {
	fn := e.afterSave.Swap(nil)
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("after-save callback panicked", "panic", r)
		}
	}()
	(*fn)()
}
