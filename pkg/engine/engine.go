// Package engine orchestrates saving, loading, importing and restoring
// pedigree documents.
//
// The Engine owns no state of its own beyond the save guard: the graph, the
// view and the history are collaborators injected through Config, and every
// step is announced on the event Broker.
package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/document"
	"github.com/aretw0/pedigree/pkg/migrate"
	"github.com/aretw0/pedigree/pkg/proband"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer load started while it was fetching.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Phase is the coarse state of the engine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSaving
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSaving:
		return "saving"
	default:
		return "idle"
	}
}

// Config holds the collaborators of the engine.
type Config struct {
	Graph     core.GraphModel
	View      core.View
	History   core.History
	Store     core.Store
	Proband   *proband.Bridge      // optional
	Migrator  *migrate.Migrator    // defaults to migrate.New()
	Renderer  core.AuxRenderer     // optional
	Templates core.TemplateHandler // optional
	Logger    *slog.Logger

	// CenterOnLoad recenters the view on the proband after store loads.
	CenterOnLoad bool
}

// LoadOptions tune one load or import.
type LoadOptions struct {
	// NoUndo skips proband reconciliation and the history entry.
	NoUndo bool
	// CenterOnRoot recenters the view on the proband.
	CenterOnRoot bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an event observer.
func WithObserver(o core.Observer) Option {
	return func(e *Engine) {
		e.broker.Observe(o)
	}
}

// WithBroker shares an existing broker.
func WithBroker(b *Broker) Option {
	return func(e *Engine) {
		e.broker = b
	}
}

// Engine is the save/load orchestrator.
type Engine struct {
	cfg        Config
	serializer *document.Serializer
	broker     *Broker
	logger     *slog.Logger

	saving    atomic.Bool
	loading   atomic.Int32
	loadSeq   atomic.Uint64
	afterSave atomic.Pointer[func()]
	inflight  sync.WaitGroup

	mu       sync.RWMutex
	stats    Stats
	lastErr  error
	lastSave *time.Time
}

// Stats counts engine outcomes.
type Stats struct {
	Loads        int `json:"loads"`
	LoadFailures int `json:"load_failures"`
	Saves        int `json:"saves"`
	SaveFailures int `json:"save_failures"`
	SavesDropped int `json:"saves_dropped"`
}

// New validates cfg and creates an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	switch {
	case cfg.Graph == nil:
		return nil, errors.New("engine: graph is required")
	case cfg.View == nil:
		return nil, errors.New("engine: view is required")
	case cfg.History == nil:
		return nil, errors.New("engine: history is required")
	case cfg.Store == nil:
		return nil, errors.New("engine: store is required")
	}
	if cfg.Migrator == nil {
		cfg.Migrator = migrate.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		cfg:        cfg,
		serializer: document.New(cfg.Graph, cfg.View),
		broker:     NewBroker(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Events returns the broker used to publish engine events.
func (e *Engine) Events() *Broker {
	return e.broker
}

// Serialize returns the document text of the current state.
func (e *Engine) Serialize() (string, error) {
	return e.serializer.Serialize()
}

// Phase reports what the engine is doing.
func (e *Engine) Phase() Phase {
	switch {
	case e.saving.Load():
		return PhaseSaving
	case e.loading.Load() > 0:
		return PhaseLoading
	default:
		return PhaseIdle
	}
}

// SaveInProgress reports whether a save is outstanding.
func (e *Engine) SaveInProgress() bool {
	return e.saving.Load()
}

// SetAfterSave registers a callback run once when the next save completes.
func (e *Engine) SetAfterSave(fn func()) {
	if fn == nil {
		e.afterSave.Store(nil)
		return
	}
	e.afterSave.Store(&fn)
}

// Wait blocks until every in-flight save has completed.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Stats returns a copy of the outcome counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func (e *Engine) emit(t core.EventType, seq uint64, msg string, err error) {
	e.broker.Publish(core.NewEvent(t, seq, msg, err))
}

func (e *Engine) record(fn func(s *Stats), err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.stats)
	if err != nil {
		e.lastErr = err
	}
}
