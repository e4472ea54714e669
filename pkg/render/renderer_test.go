package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
)

func trio() graph.Graph {
	return graph.Graph{
		Persons: []graph.Person{
			{ID: 0, FirstName: "Ada", Gender: core.GenderFemale, Affected: true},
			{ID: 1, FirstName: "George", Gender: core.GenderMale},
			{ID: 2, Gender: core.GenderUnknown},
		},
		Relationships: []graph.Relationship{{ID: 3, Partners: [2]int{1, 2}, Children: []int{0}}},
	}
}

func TestDOT(t *testing.T) {
	dot := DOT(trio())

	assert.Contains(t, dot, `n0 [label="Ada", shape=ellipse, style=filled, fillcolor=grey, penwidth=2];`)
	assert.Contains(t, dot, `n1 [label="George", shape=box];`)
	assert.Contains(t, dot, `n2 [label="#2", shape=diamond];`)
	assert.Contains(t, dot, "n3 -> n0;")
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestRenderer_Snapshot(t *testing.T) {
	r := NewRenderer(graph.NewModel(trio()))

	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `<svg xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, text, `style="display:block; margin: auto; "`)
	assert.Contains(t, text, "George")
}
