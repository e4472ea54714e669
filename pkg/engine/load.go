package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/pedigree/pkg/core"
)

type fetchFunc func(ctx context.Context) (string, error)

// Load fetches the current document from the store and applies it.
// A store holding no document triggers the template handler and returns
// core.ErrNoDocument.
func (e *Engine) Load(ctx context.Context) error {
	return e.loadFrom(ctx, "store", e.cfg.Store.FetchDocument, true)
}

// RestoreVersion loads a prior revision. The restored state is not marked as
// saved, since the store's latest revision still differs.
func (e *Engine) RestoreVersion(ctx context.Context, id string) error {
	vs, ok := e.cfg.Store.(core.VersionedStore)
	if !ok {
		return errors.New("store does not keep versions")
	}
	return e.loadFrom(ctx, "version "+id, func(ctx context.Context) (string, error) {
		return vs.FetchVersion(ctx, id)
	}, false)
}

// Versions lists the revisions of a versioned store.
func (e *Engine) Versions(ctx context.Context) ([]core.Version, error) {
	vs, ok := e.cfg.Store.(core.VersionedStore)
	if !ok {
		return nil, errors.New("store does not keep versions")
	}
	return vs.Versions(ctx)
}

// LoadText applies document text supplied by the caller. The text is migrated
// but never marked as saved.
func (e *Engine) LoadText(ctx context.Context, text string, opts LoadOptions) error {
	seq := e.beginLoad("text")
	defer e.loading.Add(-1)

	migrated, err := e.cfg.Migrator.Migrate(text)
	if err != nil {
		return e.failLoad(seq, err)
	}
	cs, err := e.serializer.Deserialize(migrated)
	if err != nil {
		return e.failLoad(seq, err)
	}
	return e.finishLoad(ctx, seq, cs, opts)
}

// Import replaces the graph with a foreign-format payload.
func (e *Engine) Import(ctx context.Context, payload, format string, importOpts core.ImportOptions, opts LoadOptions) error {
	seq := e.beginLoad("import " + format)
	defer e.loading.Add(-1)

	cs, err := e.cfg.Graph.FromImport(payload, format, importOpts)
	if err == nil && cs == nil {
		err = errors.New("importer produced no change set")
	}
	if err != nil {
		return e.failLoad(seq, fmt.Errorf("%w: %v", core.ErrImport, err))
	}
	return e.finishLoad(ctx, seq, cs, opts)
}

func (e *Engine) loadFrom(ctx context.Context, origin string, fetch fetchFunc, fromStore bool) error {
	seq := e.beginLoad(origin)
	defer e.loading.Add(-1)
	log := e.logger.With("load", seq)

	text, err := fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch document: %w", err)
		e.record(func(s *Stats) { s.LoadFailures++ }, err)
		e.emit(core.EventLoadError, seq, "", err)
		e.emit(core.EventLoadFinish, seq, "", nil)
		return err
	}

	if e.stale(seq) {
		log.Info("discarding superseded load", "origin", origin)
		e.emit(core.EventLoadFinish, seq, "superseded", nil)
		return ErrSuperseded
	}

	if strings.TrimSpace(text) == "" {
		log.Info("no document stored", "origin", origin)
		e.emit(core.EventLoadFinish, seq, "no document", nil)
		if e.cfg.Templates != nil {
			if err := e.cfg.Templates.NoDocument(ctx); err != nil {
				return fmt.Errorf("template flow failed: %w", err)
			}
		}
		return core.ErrNoDocument
	}

	migrated, err := e.cfg.Migrator.Migrate(text)
	if err != nil {
		return e.failLoad(seq, err)
	}

	cs, err := e.serializer.Deserialize(migrated)
	if err != nil {
		return e.failLoad(seq, err)
	}

	if err := e.finishLoad(ctx, seq, cs, LoadOptions{CenterOnRoot: e.cfg.CenterOnLoad}); err != nil {
		return err
	}

	if fromStore {
		e.cfg.History.MarkSavedCheckpoint()
	}
	return nil
}

func (e *Engine) beginLoad(origin string) uint64 {
	e.loading.Add(1)
	seq := e.loadSeq.Add(1)
	e.logger.Debug("load started", "load", seq, "origin", origin)
	e.emit(core.EventLoadStart, seq, origin, nil)
	return seq
}

// stale reports whether a newer load started after seq.
func (e *Engine) stale(seq uint64) bool {
	return e.loadSeq.Load() != seq
}

// failLoad clears the graph and view and closes the load with an error.
func (e *Engine) failLoad(seq uint64, err error) error {
	e.logger.Error("load failed", "load", seq, "error", err)
	e.record(func(s *Stats) { s.LoadFailures++ }, err)

	e.emit(core.EventLoadError, seq, "", err)
	e.cfg.Graph.Clear()
	e.cfg.View.Reset()
	e.emit(core.EventGraphClear, seq, "", nil)
	e.emit(core.EventLoadFinish, seq, "", nil)
	return err
}

func (e *Engine) finishLoad(ctx context.Context, seq uint64, cs core.ChangeSet, opts LoadOptions) error {
	var state string
	if !opts.NoUndo {
		e.reconcileProband(ctx, seq)

		text, err := e.serializer.Serialize()
		if err != nil {
			return e.failLoad(seq, err)
		}
		state = text
	}

	if e.cfg.View.ApplyChangeSet(cs) {
		e.cfg.View.AdjustSize()
	}
	if opts.CenterOnRoot {
		e.cfg.View.CenterOn(core.ProbandID)
	}

	if !opts.NoUndo {
		e.cfg.History.PushEntry(nil, nil, state)
	}

	e.record(func(s *Stats) { s.Loads++ }, nil)
	e.logger.Debug("load finished", "load", seq, "changes", cs.Len())
	e.emit(core.EventLoadFinish, seq, "", nil)
	return nil
}

func (e *Engine) reconcileProband(ctx context.Context, seq uint64) {
	if e.cfg.Proband == nil {
		return
	}

	p, err := e.cfg.Proband.Fetch(ctx)
	if err != nil {
		e.logger.Warn("continuing without proband data", "load", seq, "error", err)
		e.emit(core.EventProbandWarning, seq, "patient record unavailable", err)
		return
	}

	if !e.cfg.Proband.ReconcileOrUnknown(e.cfg.Graph, p) {
		e.emit(core.EventProbandWarning, seq,
			"proband gender in the patient record is incompatible with this pedigree, using unknown", nil)
	}
}
