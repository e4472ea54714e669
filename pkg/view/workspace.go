// Package view tracks the presentation state of the editor: persisted view
// settings, the set of rendered nodes and the viewport.
package view

import (
	"sync"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
)

// Cell is the screen space reserved for one node.
const Cell = 100

// Viewport is the visible area of the canvas.
type Viewport struct {
	Width    int  `json:"width"`
	Height   int  `json:"height"`
	Centered bool `json:"centered"`
	CenterOn int  `json:"center_on"`
}

// Workspace implements core.View.
type Workspace struct {
	mu       sync.RWMutex
	settings core.Settings
	nodes    map[int]bool
	viewport Viewport
	applied  int
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{nodes: make(map[int]bool)}
}

// GetSettings implements core.View.
func (w *Workspace) GetSettings() core.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings.Clone()
}

// LoadSettings implements core.View.
func (w *Workspace) LoadSettings(s core.Settings) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = s.Clone()
}

// Set changes one setting.
func (w *Workspace) Set(name string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.settings == nil {
		w.settings = core.Settings{}
	}
	w.settings[name] = value
}

// ApplyChangeSet implements core.View.
func (w *Workspace) ApplyChangeSet(cs core.ChangeSet) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applied++

	gcs, ok := cs.(*graph.ChangeSet)
	if !ok {
		return cs != nil && cs.Len() > 0
	}
	for _, id := range gcs.Removed {
		delete(w.nodes, id)
	}
	for _, id := range gcs.Added {
		w.nodes[id] = true
	}
	return gcs.StructureChanged()
}

// Reset implements core.View.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nodes = make(map[int]bool)
	w.viewport = Viewport{}
}

// AdjustSize implements core.View.
func (w *Workspace) AdjustSize() {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.nodes)
	side := 1
	for side*side < n {
		side++
	}
	w.viewport.Width = side * Cell
	w.viewport.Height = side * Cell
}

// CenterOn implements core.View.
func (w *Workspace) CenterOn(nodeID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.viewport.Centered = true
	w.viewport.CenterOn = nodeID
}

// Viewport returns the current viewport.
func (w *Workspace) Viewport() Viewport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.viewport
}

// NodeCount returns how many nodes are rendered.
func (w *Workspace) NodeCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.nodes)
}

// Applied returns how many change sets were applied.
func (w *Workspace) Applied() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.applied
}

var _ core.View = (*Workspace)(nil)
