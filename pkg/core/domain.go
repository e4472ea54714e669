// Package core holds the domain types and the ports of the pedigree engine.
//
// Nothing in this package performs I/O. Adapters under pkg/adapters implement
// the storage ports, and pkg/engine orchestrates them.
package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// ProbandID is the node id of the subject of the pedigree.
const ProbandID = 0

// Gender of an individual. Only three values are valid.
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = "U"
)

// ParseGender maps free-form input to a Gender. Anything unrecognized is U.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return GenderMale
	case "f", "female":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Settings is the set of named view options persisted with a document.
type Settings map[string]any

// Clone returns a shallow copy of the settings, or nil for nil input.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Document is the versioned envelope persisted by a Store.
// The graph payload is opaque to everything except the GraphModel.
type Document struct {
	SchemaVersion int             `json:"schemaVersion"`
	Graph         json.RawMessage `json:"graph"`
	Settings      Settings        `json:"settings,omitempty"`
}

// ProbandData is the identifying metadata of the subject (node 0) fetched
// from the external record.
type ProbandData struct {
	FirstName string  `json:"first_name" yaml:"first_name"`
	LastName  string  `json:"last_name" yaml:"last_name"`
	Gender    Gender  `json:"gender" yaml:"gender"`
	BirthDate *string `json:"date_of_birth,omitempty" yaml:"date_of_birth,omitempty"`
	DeathDate *string `json:"date_of_death,omitempty" yaml:"date_of_death,omitempty"`
}

// ChangeSet describes graph mutations produced by parsing and consumed by a View.
// A nil ChangeSet is never a valid parse result.
type ChangeSet interface {
	// Len reports how many nodes the change touches.
	Len() int
}

// ImportOptions carries format-specific import switches.
type ImportOptions map[string]string

// HistoryEntry is one undo/redo step.
type HistoryEntry struct {
	Before ChangeSet
	After  ChangeSet
	State  string
}

// Version identifies one persisted revision in a VersionedStore.
type Version struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Message string    `json:"message,omitempty"`
}

type contextKey string

// ChangeReasonKey is the context key for passing a change reason (commit
// message, version note) to PersistDocument.
const ChangeReasonKey contextKey = "change_reason"

// ChangeReason extracts the change reason from ctx, or returns def.
func ChangeReason(ctx context.Context, def string) string {
	if v, ok := ctx.Value(ChangeReasonKey).(string); ok && v != "" {
		return v
	}
	return def
}

// WithChangeReason returns a copy of ctx carrying reason.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ChangeReasonKey, reason)
}
