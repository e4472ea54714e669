package core

import (
	"context"
	"encoding/json"
)

// GraphModel is the live pedigree graph owned by the editor.
type GraphModel interface {
	// ToDocumentPayload returns the canonical payload of the current graph.
	ToDocumentPayload() (json.RawMessage, error)

	// FromDocumentPayload replaces the graph with the payload contents.
	FromDocumentPayload(payload json.RawMessage) (ChangeSet, error)

	// FromImport replaces the graph with a foreign-format import.
	FromImport(text, format string, opts ImportOptions) (ChangeSet, error)

	// SetProbandIdentity applies subject metadata to node 0.
	// It returns false when the gender conflicts with the graph structure.
	SetProbandIdentity(p ProbandData) bool

	// Clear drops every node.
	Clear()
}

// View is the presentation side of the editor.
type View interface {
	GetSettings() Settings
	LoadSettings(s Settings)

	// ApplyChangeSet reports whether the structure (node set) changed.
	ApplyChangeSet(cs ChangeSet) bool
	AdjustSize()
	CenterOn(nodeID int)

	// Reset forgets every rendered node after the graph was cleared.
	Reset()
}

// History receives undo/redo entries and saved checkpoints.
type History interface {
	PushEntry(before, after ChangeSet, state string)
	MarkSavedCheckpoint()
}

// Store is the authoritative persistence for one pedigree document.
type Store interface {
	// FetchDocument returns the stored text. An empty string means no document.
	FetchDocument(ctx context.Context) (string, error)

	// PersistDocument stores text together with an optional rendered snapshot.
	PersistDocument(ctx context.Context, text string, aux []byte) error
}

// VersionedStore is a Store that keeps prior revisions.
type VersionedStore interface {
	Store

	// Versions lists revisions, newest first.
	Versions(ctx context.Context) ([]Version, error)

	// FetchVersion returns the text of one revision.
	FetchVersion(ctx context.Context, id string) (string, error)
}

// SubjectSource provides the proband metadata from an external record.
type SubjectSource interface {
	FetchSubjectMetadata(ctx context.Context) (ProbandData, error)
}

// AuxRenderer produces an ancillary snapshot (an SVG image) saved with the document.
type AuxRenderer interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// TemplateHandler is invoked when the store holds no document.
type TemplateHandler interface {
	NoDocument(ctx context.Context) error
}

// TemplateHandlerFunc adapts a function to TemplateHandler.
type TemplateHandlerFunc func(ctx context.Context) error

// NoDocument implements TemplateHandler.
func (f TemplateHandlerFunc) NoDocument(ctx context.Context) error { return f(ctx) }
