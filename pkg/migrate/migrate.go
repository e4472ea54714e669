// Package migrate upgrades persisted pedigree documents to the current schema.
//
// Each schema version has exactly one Transform that lifts a document from that
// version to the next. Migrate chains them until the document is current.
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/pedigree/pkg/core"
)

// CurrentVersion is the schema version written by the serializer.
const CurrentVersion = 3

// Transform upgrades a decoded document by one version.
// The input is owned by the transform and may be modified in place.
type Transform func(doc map[string]any) (map[string]any, error)

// Migrator applies the chain of transforms.
type Migrator struct {
	current int
	steps   map[int]Transform
	logger  *slog.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger used to trace applied steps.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// WithSteps replaces the transform chain. current is the resulting version.
func WithSteps(current int, steps map[int]Transform) Option {
	return func(m *Migrator) {
		m.current = current
		m.steps = steps
	}
}

// New returns a Migrator with the built-in chain.
func New(opts ...Option) *Migrator {
	m := &Migrator{
		current: CurrentVersion,
		steps: map[int]Transform{
			1: upgradeV1,
			2: upgradeV2,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the version documents are migrated to.
func (m *Migrator) Current() int {
	return m.current
}

// Migrate returns text upgraded to the current version.
// Text that is already current is returned unchanged.
func (m *Migrator) Migrate(text string) (string, error) {
	doc, err := decode(text)
	if err != nil {
		return "", err
	}

	version, err := m.detect(doc)
	if err != nil {
		return "", err
	}
	if version == m.current {
		return text, nil
	}

	for v := version; v < m.current; v++ {
		step, ok := m.steps[v]
		if !ok {
			return "", fmt.Errorf("%w: no upgrade path from version %d", core.ErrMigration, v)
		}
		next, err := step(doc)
		if err != nil {
			return "", fmt.Errorf("%w: upgrading from version %d: %v", core.ErrMalformedDocument, v, err)
		}
		if m.logger != nil {
			m.logger.Debug("document upgraded", "from", v, "to", v+1)
		}
		doc = next
	}

	return encode(doc)
}

// DetectVersion reports the schema version of text.
func (m *Migrator) DetectVersion(text string) (int, error) {
	doc, err := decode(text)
	if err != nil {
		return 0, err
	}
	return m.detect(doc)
}

func (m *Migrator) detect(doc map[string]any) (int, error) {
	raw, ok := doc["schemaVersion"]
	if !ok {
		raw, ok = doc["version"]
	}
	if !ok {
		return 1, nil
	}

	num, isNum := raw.(json.Number)
	if !isNum {
		return 0, fmt.Errorf("%w: marker %v is not a number", core.ErrMigration, raw)
	}
	v, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: marker %s is not an integer", core.ErrMigration, num)
	}
	if v < 1 || v > int64(m.current) {
		return 0, fmt.Errorf("%w: version %d outside 1..%d", core.ErrMigration, v, m.current)
	}
	return int(v), nil
}

func decode(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", core.ErrMalformedDocument)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", core.ErrMalformedDocument)
	}
	return doc, nil
}

func encode(doc map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode migrated document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
