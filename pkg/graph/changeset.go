package graph

import "slices"

// ChangeSet lists the node ids affected by replacing one graph with another.
type ChangeSet struct {
	Added   []int
	Removed []int
	Changed []int
}

// Len implements core.ChangeSet.
func (c *ChangeSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Added) + len(c.Removed) + len(c.Changed)
}

// StructureChanged reports whether nodes were added or removed.
func (c *ChangeSet) StructureChanged() bool {
	return c != nil && len(c.Added)+len(c.Removed) > 0
}

func diff(before, after Graph) *ChangeSet {
	cs := &ChangeSet{}

	oldPersons := make(map[int]Person, len(before.Persons))
	for _, p := range before.Persons {
		oldPersons[p.ID] = p
	}
	oldRels := make(map[int]Relationship, len(before.Relationships))
	for _, r := range before.Relationships {
		oldRels[r.ID] = r
	}

	for _, p := range after.Persons {
		prev, ok := oldPersons[p.ID]
		switch {
		case !ok:
			cs.Added = append(cs.Added, p.ID)
		case prev != p:
			cs.Changed = append(cs.Changed, p.ID)
		}
		delete(oldPersons, p.ID)
	}
	for _, r := range after.Relationships {
		prev, ok := oldRels[r.ID]
		switch {
		case !ok:
			cs.Added = append(cs.Added, r.ID)
		case prev.Partners != r.Partners || !slices.Equal(prev.Children, r.Children):
			cs.Changed = append(cs.Changed, r.ID)
		}
		delete(oldRels, r.ID)
	}

	for id := range oldPersons {
		cs.Removed = append(cs.Removed, id)
	}
	for id := range oldRels {
		cs.Removed = append(cs.Removed, id)
	}

	slices.Sort(cs.Added)
	slices.Sort(cs.Removed)
	slices.Sort(cs.Changed)
	return cs
}
