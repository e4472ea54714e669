package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
)

const trio = `# family trio
FAM1 dad 0 0 1 1
FAM1 mom 0 0 2 1
FAM1 kid dad mom 2 2
`

func TestImport_PED(t *testing.T) {
	m := NewModel(Graph{})
	cs, err := m.FromImport(trio, FormatPED, core.ImportOptions{"proband": "kid"})
	require.NoError(t, err)
	assert.Equal(t, 4, cs.Len())

	g := m.Graph()
	kid, ok := g.Person(ProbandID)
	require.True(t, ok)
	assert.Equal(t, "kid", kid.External)
	assert.True(t, kid.Affected)
	assert.Equal(t, core.GenderFemale, kid.Gender)

	require.Len(t, g.Relationships, 1)
	assert.Equal(t, [2]int{1, 2}, g.Relationships[0].Partners)
	assert.Equal(t, []int{0}, g.Relationships[0].Children)
}

func TestImport_PEDDefaultsToFirstIndividual(t *testing.T) {
	m := NewModel(Graph{})
	_, err := m.FromImport(trio, FormatLinkage, nil)
	require.NoError(t, err)

	p, _ := m.Graph().Person(ProbandID)
	assert.Equal(t, "dad", p.External)
}

func TestImport_PEDSingleParentGetsPlaceholder(t *testing.T) {
	m := NewModel(Graph{})
	_, err := m.FromImport("F mom 0 0 2\nF kid 0 mom 1\n", FormatPED, core.ImportOptions{"proband": "kid"})
	require.NoError(t, err)

	g := m.Graph()
	require.Len(t, g.Persons, 3)
	require.Len(t, g.Relationships, 1)
	placeholder, ok := g.Person(g.Relationships[0].Partners[0])
	require.True(t, ok)
	assert.Equal(t, core.GenderUnknown, placeholder.Gender)
}

func TestImport_Errors(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		format string
		opts   core.ImportOptions
	}{
		{"unknown format", trio, "gedcom", nil},
		{"empty", "\n# nothing\n", FormatPED, nil},
		{"short row", "F a 0 0\n", FormatPED, nil},
		{"unknown parent", "F a b 0 1\n", FormatPED, nil},
		{"duplicate", "F a 0 0 1\nF a 0 0 1\n", FormatPED, nil},
		{"missing proband", trio, FormatPED, core.ImportOptions{"proband": "ghost"}},
		{"bad json", "{", FormatSimpleJSON, nil},
		{"json without id", `[{"firstName":"x"}]`, FormatSimpleJSON, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewModel(Graph{}).FromImport(tc.text, tc.format, tc.opts)
			require.Error(t, err)
		})
	}
}

func TestImport_SimpleJSON(t *testing.T) {
	text := `[
		{"id": "p1", "firstName": "Ann", "sex": "female", "father": "p2", "mother": "p3", "proband": true},
		{"id": "p2", "firstName": "Bob", "sex": "male"},
		{"id": "p3", "firstName": "Cat", "sex": "F"}
	]`
	m := NewModel(Graph{})
	_, err := m.FromImport(text, FormatSimpleJSON, nil)
	require.NoError(t, err)

	p, _ := m.Graph().Person(ProbandID)
	assert.Equal(t, "Ann", p.FirstName)
	assert.Equal(t, []string{"linkage", "ped", "simpleJSON"}, Formats())
}
