// Package graph is the in-memory pedigree model edited by the user.
//
// A Graph holds persons and the relationships between them. Person 0 is always
// the proband. Model wraps a Graph with locking and implements core.GraphModel.
package graph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/pedigree/pkg/core"
)

// ProbandID is the node id of the proband.
const ProbandID = core.ProbandID

// Person is an individual in the pedigree.
type Person struct {
	ID        int         `json:"id"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	Gender    core.Gender `json:"gender"`
	BirthDate string      `json:"birthDate,omitempty"`
	DeathDate string      `json:"deathDate,omitempty"`
	External  string      `json:"externalId,omitempty"`
	Affected  bool        `json:"affected,omitempty"`
}

// DisplayName joins first and last name.
func (p Person) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Relationship joins two partners and lists their children.
type Relationship struct {
	ID       int    `json:"id"`
	Partners [2]int `json:"partners"`
	Children []int  `json:"children,omitempty"`
}

// Graph is a pedigree. Person and relationship ids share one id space.
type Graph struct {
	Persons       []Person       `json:"persons"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{
		Persons: slices.Clone(g.Persons),
	}
	if g.Relationships != nil {
		out.Relationships = make([]Relationship, len(g.Relationships))
		for i, r := range g.Relationships {
			r.Children = slices.Clone(r.Children)
			out.Relationships[i] = r
		}
	}
	return out
}

// Person returns the person with the given id.
func (g Graph) Person(id int) (Person, bool) {
	for _, p := range g.Persons {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// normalize sorts nodes by id so that encoding is deterministic.
func (g *Graph) normalize() {
	if g.Persons == nil {
		g.Persons = []Person{}
	}
	sort.Slice(g.Persons, func(i, j int) bool { return g.Persons[i].ID < g.Persons[j].ID })
	sort.Slice(g.Relationships, func(i, j int) bool { return g.Relationships[i].ID < g.Relationships[j].ID })
	for i := range g.Persons {
		if g.Persons[i].Gender == "" {
			g.Persons[i].Gender = core.GenderUnknown
		}
	}
	for i := range g.Relationships {
		sort.Ints(g.Relationships[i].Children)
	}
}

// Validate checks referential integrity.
func (g Graph) Validate() error {
	if len(g.Persons) == 0 {
		if len(g.Relationships) > 0 {
			return fmt.Errorf("%d relationships in a graph without persons", len(g.Relationships))
		}
		return nil
	}

	ids := make(map[int]bool, len(g.Persons)+len(g.Relationships))
	for _, p := range g.Persons {
		if p.ID < 0 {
			return fmt.Errorf("person has negative id %d", p.ID)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate node id %d", p.ID)
		}
		switch p.Gender {
		case "", core.GenderMale, core.GenderFemale, core.GenderUnknown:
		default:
			return fmt.Errorf("person %d has invalid gender %q", p.ID, p.Gender)
		}
		ids[p.ID] = true
	}
	if !ids[ProbandID] {
		return fmt.Errorf("proband node %d is missing", ProbandID)
	}

	persons := make(map[int]bool, len(ids))
	for id := range ids {
		persons[id] = true
	}

	hasParents := make(map[int]int)
	for _, r := range g.Relationships {
		if ids[r.ID] {
			return fmt.Errorf("duplicate node id %d", r.ID)
		}
		ids[r.ID] = true

		a, b := r.Partners[0], r.Partners[1]
		if !persons[a] || !persons[b] {
			return fmt.Errorf("relationship %d references unknown partner", r.ID)
		}
		if a == b {
			return fmt.Errorf("relationship %d joins person %d with itself", r.ID, a)
		}
		for _, c := range r.Children {
			if !persons[c] {
				return fmt.Errorf("relationship %d references unknown child %d", r.ID, c)
			}
			if c == a || c == b {
				return fmt.Errorf("relationship %d lists partner %d as child", r.ID, c)
			}
			if prev, ok := hasParents[c]; ok {
				return fmt.Errorf("person %d is a child of relationships %d and %d", c, prev, r.ID)
			}
			hasParents[c] = r.ID
		}
	}
	return nil
}

// partnersOf returns the ids of everyone sharing a relationship with id.
func (g Graph) partnersOf(id int) []int {
	var out []int
	for _, r := range g.Relationships {
		switch id {
		case r.Partners[0]:
			out = append(out, r.Partners[1])
		case r.Partners[1]:
			out = append(out, r.Partners[0])
		}
	}
	return out
}

// genderAllowed reports whether id may take gender g without contradicting
// an explicit gender of one of its partners.
func (g Graph) genderAllowed(id int, gender core.Gender) bool {
	if gender == core.GenderUnknown {
		return true
	}
	for _, partner := range g.partnersOf(id) {
		if p, ok := g.Person(partner); ok && p.Gender == gender {
			return false
		}
	}
	return true
}
