// Package document converts the live graph and view settings to the persisted
// document text and back.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/migrate"
)

// Serializer reads from and writes to one graph/view pair.
type Serializer struct {
	Graph core.GraphModel
	View  core.View
}

// New creates a Serializer.
func New(graph core.GraphModel, view core.View) *Serializer {
	return &Serializer{Graph: graph, View: view}
}

// Serialize returns the canonical text of the current state.
// Two calls on an unchanged state return identical text.
func (s *Serializer) Serialize() (string, error) {
	payload, err := s.Graph.ToDocumentPayload()
	if err != nil {
		return "", fmt.Errorf("failed to read graph: %w", err)
	}

	doc := core.Document{
		SchemaVersion: migrate.CurrentVersion,
		Graph:         payload,
		Settings:      s.View.GetSettings(),
	}
	return Encode(doc)
}

// Deserialize replaces the graph (and settings, when present) with the
// contents of text, which must already be at the current version.
func (s *Serializer) Deserialize(text string) (core.ChangeSet, error) {
	doc, err := Decode(text)
	if err != nil {
		return nil, err
	}

	cs, err := s.Graph.FromDocumentPayload(doc.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}
	if cs == nil {
		return nil, fmt.Errorf("%w: graph produced no change set", core.ErrMalformedDocument)
	}

	if doc.Settings != nil {
		s.View.LoadSettings(doc.Settings)
	}
	return cs, nil
}

// Encode renders doc as compact JSON with sorted settings keys.
func Encode(doc core.Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses document text and checks the envelope.
// Setting values keep their numeric literals as json.Number.
func Decode(text string) (core.Document, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc core.Document
	if err := dec.Decode(&doc); err != nil {
		return core.Document{}, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return core.Document{}, fmt.Errorf("%w: trailing data after document", core.ErrMalformedDocument)
	}
	if len(doc.Graph) == 0 || bytes.Equal(bytes.TrimSpace(doc.Graph), []byte("null")) {
		return core.Document{}, fmt.Errorf("%w: missing graph", core.ErrMalformedDocument)
	}
	return doc, nil
}
