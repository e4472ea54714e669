package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/pedigree/pkg/core"
)

// Model is the live, concurrency-safe pedigree graph.
type Model struct {
	mu sync.RWMutex
	g  Graph
}

// NewModel returns a model holding a deep copy of g.
func NewModel(g Graph) *Model {
	g = g.Clone()
	g.normalize()
	return &Model{g: g}
}

// Graph returns a deep copy of the current graph.
func (m *Model) Graph() Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.g.Clone()
}

// Replace swaps in g and returns what changed.
func (m *Model) Replace(g Graph) (*ChangeSet, error) {
	g = g.Clone()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	cs := diff(m.g, g)
	m.g = g
	return cs, nil
}

// ToDocumentPayload implements core.GraphModel.
func (m *Model) ToDocumentPayload() (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.g); err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// FromDocumentPayload implements core.GraphModel.
func (m *Model) FromDocumentPayload(payload json.RawMessage) (core.ChangeSet, error) {
	var g Graph
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	cs, err := m.Replace(g)
	if err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return cs, nil
}

// FromImport implements core.GraphModel.
func (m *Model) FromImport(text, format string, opts core.ImportOptions) (core.ChangeSet, error) {
	importer, ok := importers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
	records, err := importer(text)
	if err != nil {
		return nil, err
	}
	g, err := build(records, opts["proband"])
	if err != nil {
		return nil, err
	}
	cs, err := m.Replace(g)
	if err != nil {
		return nil, fmt.Errorf("imported graph is invalid: %w", err)
	}
	return cs, nil
}

// SetProbandIdentity implements core.GraphModel.
// On a gender conflict the names and dates are still applied and the gender
// falls back to unknown.
func (m *Model) SetProbandIdentity(p core.ProbandData) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, person := range m.g.Persons {
		if person.ID == ProbandID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return true
	}

	person := &m.g.Persons[idx]
	person.FirstName = p.FirstName
	person.LastName = p.LastName
	person.BirthDate = deref(p.BirthDate)
	person.DeathDate = deref(p.DeathDate)

	gender := p.Gender
	if gender == "" {
		gender = core.GenderUnknown
	}
	ok := m.g.genderAllowed(ProbandID, gender)
	if !ok {
		gender = core.GenderUnknown
	}
	person.Gender = gender
	return ok
}

// Clear implements core.GraphModel.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.g = Graph{Persons: []Person{}}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ core.GraphModel = (*Model)(nil)
