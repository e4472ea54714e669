package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
)

func family() Graph {
	return Graph{
		Persons: []Person{
			{ID: 2, FirstName: "Mary", Gender: core.GenderFemale},
			{ID: 0, FirstName: "Ada", Gender: core.GenderFemale},
			{ID: 1, FirstName: "John", Gender: core.GenderMale},
		},
		Relationships: []Relationship{
			{ID: 3, Partners: [2]int{1, 2}, Children: []int{0}},
		},
	}
}

func TestModel_PayloadRoundTrip(t *testing.T) {
	m := NewModel(family())

	payload, err := m.ToDocumentPayload()
	require.NoError(t, err)

	other := NewModel(Graph{})
	cs, err := other.FromDocumentPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, 4, cs.Len())

	again, err := other.ToDocumentPayload()
	require.NoError(t, err)
	assert.Equal(t, string(payload), string(again))
}

func TestModel_PayloadIsSorted(t *testing.T) {
	payload, err := NewModel(family()).ToDocumentPayload()
	require.NoError(t, err)

	var g Graph
	require.NoError(t, json.Unmarshal(payload, &g))
	assert.Equal(t, 0, g.Persons[0].ID)
	assert.Equal(t, 2, g.Persons[2].ID)
}

func TestModel_FromDocumentPayloadRejectsInvalid(t *testing.T) {
	m := NewModel(family())
	before, _ := m.ToDocumentPayload()

	cases := map[string]string{
		"not json":        `{`,
		"no proband":      `{"persons":[{"id":1}]}`,
		"duplicate":       `{"persons":[{"id":0},{"id":0}]}`,
		"bad partner":     `{"persons":[{"id":0}],"relationships":[{"id":5,"partners":[0,9]}]}`,
		"self partner":    `{"persons":[{"id":0}],"relationships":[{"id":5,"partners":[0,0]}]}`,
		"bad gender":      `{"persons":[{"id":0,"gender":"X"}]}`,
		"orphan relation": `{"persons":[],"relationships":[{"id":5,"partners":[1,2]}]}`,
		"two sets parent": `{"persons":[{"id":0},{"id":1},{"id":2},{"id":3},{"id":4}],"relationships":[{"id":5,"partners":[1,2],"children":[0]},{"id":6,"partners":[3,4],"children":[0]}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.FromDocumentPayload(json.RawMessage(payload))
			require.Error(t, err)
		})
	}

	after, _ := m.ToDocumentPayload()
	assert.Equal(t, string(before), string(after), "failed loads must not touch the model")
}

func TestModel_ChangeSet(t *testing.T) {
	m := NewModel(family())

	g := family()
	g.Persons[1].LastName = "Lovelace"
	g.Persons = append(g.Persons, Person{ID: 4, Gender: core.GenderMale})
	g.Relationships = nil

	csi, err := m.FromDocumentPayload(mustJSON(t, g))
	require.NoError(t, err)
	cs := csi.(*ChangeSet)

	assert.Equal(t, []int{4}, cs.Added)
	assert.Equal(t, []int{3}, cs.Removed)
	assert.Equal(t, []int{0}, cs.Changed)
	assert.True(t, cs.StructureChanged())
}

func TestModel_SetProbandIdentity(t *testing.T) {
	m := NewModel(family())
	birth := "1815-12-10"

	ok := m.SetProbandIdentity(core.ProbandData{FirstName: "Augusta", LastName: "King", Gender: core.GenderFemale, BirthDate: &birth})
	require.True(t, ok)

	p, _ := m.Graph().Person(ProbandID)
	assert.Equal(t, "Augusta King", p.DisplayName())
	assert.Equal(t, birth, p.BirthDate)
	assert.Equal(t, "", p.DeathDate)
}

func TestModel_SetProbandIdentityGenderConflict(t *testing.T) {
	g := family()
	g.Persons = append(g.Persons, Person{ID: 4, Gender: core.GenderMale})
	g.Relationships = append(g.Relationships, Relationship{ID: 5, Partners: [2]int{0, 4}})
	m := NewModel(g)

	ok := m.SetProbandIdentity(core.ProbandData{FirstName: "Al", Gender: core.GenderMale})
	assert.False(t, ok)

	p, _ := m.Graph().Person(ProbandID)
	assert.Equal(t, core.GenderUnknown, p.Gender)
	assert.Equal(t, "Al", p.FirstName)

	assert.True(t, m.SetProbandIdentity(core.ProbandData{Gender: core.GenderFemale}))
}

func TestModel_Clear(t *testing.T) {
	m := NewModel(family())
	m.Clear()

	payload, err := m.ToDocumentPayload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"persons":[]}`, string(payload))
	assert.True(t, m.SetProbandIdentity(core.ProbandData{Gender: core.GenderMale}))
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
