package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/pedigree/pkg/adapters/fs"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
	"github.com/aretw0/pedigree/pkg/graph"
	"github.com/aretw0/pedigree/pkg/history"
	"github.com/aretw0/pedigree/pkg/migrate"
	"github.com/aretw0/pedigree/pkg/proband"
	"github.com/aretw0/pedigree/pkg/render"
	"github.com/aretw0/pedigree/pkg/view"
)

// PatientFiles are looked up next to an fs document to provide proband data.
var PatientFiles = []string{"patient.yaml", "patient.yml", "patient.json"}

// DefaultEventBuffer is the subscription capacity used by Session.Subscribe.
const DefaultEventBuffer = 100

// Session is a wired engine together with its collaborators.
type Session struct {
	Engine  *engine.Engine
	Graph   *graph.Model
	View    *view.Workspace
	History *history.Stack
	Store   core.Store
	Source  core.SubjectSource

	buffer int
	logger *slog.Logger
}

// New opens the store and wires an engine around it.
//
//	s, err := platform.New("./P0001", platform.WithVersioning(false))
func New(uri string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := openStore(context.Background(), uri, o)
	if err != nil {
		return nil, err
	}

	source := subjectSource(store, o)

	model := graph.NewModel(graph.Graph{})
	workspace := view.NewWorkspace()
	stack := history.NewStack(0)

	cfg := engine.Config{
		Graph:        model,
		View:         workspace,
		History:      stack,
		Store:        store,
		Migrator:     migrate.New(migrate.WithLogger(o.logger)),
		Templates:    o.templates,
		Logger:       o.logger,
		CenterOnLoad: true,
	}
	if source != nil {
		cfg.Proband = proband.NewBridge(source, o.logger)
	}
	if snapshots, ok := o.config["snapshots"].(bool); !ok || snapshots {
		cfg.Renderer = render.NewRenderer(model)
	}

	var engineOpts []engine.Option
	for _, obs := range o.observers {
		engineOpts = append(engineOpts, engine.WithObserver(obs))
	}

	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return nil, err
	}

	buffer := o.int("event_buffer")
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}

	return &Session{
		Engine:  eng,
		Graph:   model,
		View:    workspace,
		History: stack,
		Store:   store,
		Source:  source,
		buffer:  buffer,
		logger:  o.logger,
	}, nil
}

// subjectSource picks the proband metadata source: an explicit option, the
// record service itself, or a patient file next to an fs document.
func subjectSource(store core.Store, o *options) core.SubjectSource {
	if o.source != nil {
		return o.source
	}
	if src, ok := store.(core.SubjectSource); ok {
		if ttl, ok := o.config["subject_cache"].(time.Duration); ok && ttl > 0 {
			return proband.NewCachedSource(src, o.string("key"), ttl)
		}
		return src
	}
	if fsStore, ok := store.(*fs.Store); ok {
		for _, name := range PatientFiles {
			path := filepath.Join(fsStore.Path, name)
			if _, err := os.Stat(path); err == nil {
				return proband.FileSource{Path: path}
			}
		}
	}
	return nil
}

// Versioned returns the store as a VersionedStore when it keeps revisions.
func (s *Session) Versioned() (core.VersionedStore, bool) {
	vs, ok := s.Store.(core.VersionedStore)
	return vs, ok
}

// Subscribe streams engine events with the configured buffer.
func (s *Session) Subscribe() (<-chan core.Event, func()) {
	return s.Engine.Events().Subscribe(s.buffer)
}

// Close waits for in-flight saves and releases store connections.
func (s *Session) Close() error {
	s.Engine.Wait()
	if c, ok := s.Store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
