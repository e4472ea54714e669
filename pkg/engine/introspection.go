package engine

import (
	"time"

	"github.com/aretw0/introspection"
)

// EngineState exposes internal state for observability.
type EngineState struct {
	Phase       string     `json:"phase"`
	Saving      bool       `json:"saving"`
	LoadSeq     uint64     `json:"load_seq"`
	Stats       Stats      `json:"stats"`
	LastSave    *time.Time `json:"last_save,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Subscribers int        `json:"subscribers"`
	StoreType   string     `json:"store_type"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := EngineState{
		Phase:       e.Phase().String(),
		Saving:      e.saving.Load(),
		LoadSeq:     e.loadSeq.Load(),
		Stats:       e.stats,
		LastSave:    e.lastSave,
		Subscribers: e.broker.Subscribers(),
		StoreType:   "store",
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	if comp, ok := e.cfg.Store.(introspection.Component); ok {
		st.StoreType = comp.ComponentType()
	}
	return st
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
