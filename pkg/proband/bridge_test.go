package proband

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
)

type failingSource struct{}

func (failingSource) FetchSubjectMetadata(context.Context) (core.ProbandData, error) {
	return core.ProbandData{}, errors.New("connection refused")
}

func TestFetch_Defaults(t *testing.T) {
	empty := ""
	b := NewBridge(StaticSource{FirstName: "  Ada ", Gender: "", BirthDate: &empty}, nil)

	p, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "", p.LastName)
	assert.Equal(t, core.GenderUnknown, p.Gender)
	assert.Nil(t, p.BirthDate)
	assert.Nil(t, p.DeathDate)
}

func TestFetch_NoSource(t *testing.T) {
	p, err := NewBridge(nil, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.GenderUnknown, p.Gender)
}

func TestFetch_Failure(t *testing.T) {
	_, err := NewBridge(failingSource{}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, core.ErrProbandFetch)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "patient.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("first_name: Ada\nlast_name: Lovelace\ngender: female\ndate_of_birth: \"1815-12-10\"\n"), 0644))

	jsonPath := filepath.Join(dir, "patient.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"first_name":"Ada","gender":"F"}`), 0644))

	b := NewBridge(FileSource{Path: yamlPath}, nil)
	p, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, core.GenderFemale, p.Gender)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, "1815-12-10", *p.BirthDate)

	p, err = NewBridge(FileSource{Path: jsonPath}, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.GenderFemale, p.Gender)

	_, err = NewBridge(FileSource{Path: filepath.Join(dir, "missing.yaml")}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, core.ErrProbandFetch)
}

func TestReconcileOrUnknown(t *testing.T) {
	g := graph.NewModel(graph.Graph{
		Persons: []graph.Person{
			{ID: 0, Gender: core.GenderUnknown},
			{ID: 1, Gender: core.GenderMale},
		},
		Relationships: []graph.Relationship{{ID: 2, Partners: [2]int{0, 1}}},
	})
	b := NewBridge(nil, nil)

	ok := b.ReconcileOrUnknown(g, core.ProbandData{FirstName: "Sam", Gender: core.GenderMale})
	assert.False(t, ok)

	p, _ := g.Graph().Person(0)
	assert.Equal(t, core.GenderUnknown, p.Gender)
	assert.Equal(t, "Sam", p.FirstName)

	assert.True(t, b.ReconcileOrUnknown(g, core.ProbandData{Gender: core.GenderFemale}))
}
