package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/pedigree/pkg/core"
)

// Import formats understood by Model.FromImport.
const (
	FormatPED        = "ped"
	FormatLinkage    = "linkage"
	FormatSimpleJSON = "simpleJSON"
)

type record struct {
	key       string
	father    string
	mother    string
	firstName string
	lastName  string
	gender    core.Gender
	affected  bool
	proband   bool
}

var importers = map[string]func(string) ([]record, error){
	FormatPED:        parsePED,
	FormatLinkage:    parsePED,
	FormatSimpleJSON: parseSimpleJSON,
}

// Formats lists the supported import format names.
func Formats() []string {
	out := make([]string, 0, len(importers))
	for f := range importers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// parsePED reads a LINKAGE/PLINK pedigree file:
// family individual father mother sex [phenotype].
func parsePED(text string) ([]record, error) {
	var out []record
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimSpace(sc.Text())
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		cols := strings.Fields(row)
		if len(cols) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 columns, got %d", line, len(cols))
		}
		r := record{
			key:    cols[1],
			father: missingParent(cols[2]),
			mother: missingParent(cols[3]),
		}
		switch cols[4] {
		case "1":
			r.gender = core.GenderMale
		case "2":
			r.gender = core.GenderFemale
		default:
			r.gender = core.GenderUnknown
		}
		if len(cols) > 5 && cols[5] == "2" {
			r.affected = true
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func missingParent(s string) string {
	if s == "0" || s == "." || s == "-" {
		return ""
	}
	return s
}

type simpleJSONPerson struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Sex       string `json:"sex"`
	Father    string `json:"father"`
	Mother    string `json:"mother"`
	Affected  bool   `json:"affected"`
	Proband   bool   `json:"proband"`
}

func parseSimpleJSON(text string) ([]record, error) {
	var people []simpleJSONPerson
	if err := json.Unmarshal([]byte(text), &people); err != nil {
		return nil, fmt.Errorf("invalid simpleJSON: %w", err)
	}
	out := make([]record, 0, len(people))
	for i, p := range people {
		if p.ID == "" {
			return nil, fmt.Errorf("person %d has no id", i)
		}
		out = append(out, record{
			key:       p.ID,
			father:    p.Father,
			mother:    p.Mother,
			firstName: p.FirstName,
			lastName:  p.LastName,
			gender:    core.ParseGender(p.Sex),
			affected:  p.Affected,
			proband:   p.Proband,
		})
	}
	return out, nil
}

// build turns import records into a graph. The proband is chosen by key, then
// by the record flag, then as the first record.
func build(records []record, probandKey string) (Graph, error) {
	if len(records) == 0 {
		return Graph{}, fmt.Errorf("no individuals found")
	}

	byKey := make(map[string]int, len(records))
	for i, r := range records {
		if _, dup := byKey[r.key]; dup {
			return Graph{}, fmt.Errorf("duplicate individual %q", r.key)
		}
		byKey[r.key] = i
	}

	proband := 0
	switch {
	case probandKey != "":
		idx, ok := byKey[probandKey]
		if !ok {
			return Graph{}, fmt.Errorf("proband %q not found", probandKey)
		}
		proband = idx
	default:
		for i, r := range records {
			if r.proband {
				proband = i
				break
			}
		}
	}

	ids := make(map[string]int, len(records))
	ids[records[proband].key] = ProbandID
	next := 1
	for i, r := range records {
		if i == proband {
			continue
		}
		ids[r.key] = next
		next++
	}

	g := Graph{Persons: make([]Person, 0, len(records))}
	for _, r := range records {
		g.Persons = append(g.Persons, Person{
			ID:        ids[r.key],
			FirstName: r.firstName,
			LastName:  r.lastName,
			Gender:    r.gender,
			External:  r.key,
			Affected:  r.affected,
		})
	}

	type couple struct{ father, mother string }
	rels := make(map[couple]*Relationship)
	var order []couple
	for _, r := range records {
		if r.father == "" && r.mother == "" {
			continue
		}
		c := couple{r.father, r.mother}
		rel, ok := rels[c]
		if !ok {
			partners := [2]int{}
			for i, key := range []string{c.father, c.mother} {
				if key == "" {
					// Placeholder for the unknown parent.
					partners[i] = next
					g.Persons = append(g.Persons, Person{ID: next, Gender: core.GenderUnknown})
					next++
					continue
				}
				id, ok := ids[key]
				if !ok {
					return Graph{}, fmt.Errorf("individual %q references unknown parent %q", r.key, key)
				}
				partners[i] = id
			}
			rel = &Relationship{Partners: partners}
			rels[c] = rel
			order = append(order, c)
		}
		rel.Children = append(rel.Children, ids[r.key])
	}

	for _, c := range order {
		rel := rels[c]
		rel.ID = next
		next++
		g.Relationships = append(g.Relationships, *rel)
	}
	return g, nil
}
