// Package links keeps child and dependent sets symmetric. Every link mutation
// in the domain goes through Index; nothing else writes either side.
package links

import (
	"fmt"

	"nodestand-backend/domain/core/valueobjects"
)

type set map[valueobjects.NodeID]struct{}

// Change is the symmetric difference produced by a child-set update.
type Change struct {
	Added   []valueobjects.NodeID
	Removed []valueobjects.NodeID
}

// IsEmpty reports whether the update changed nothing.
func (c Change) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Index is an adjacency index over node ids.
type Index struct {
	children   map[valueobjects.NodeID]set
	dependents map[valueobjects.NodeID]set
}

func NewIndex() *Index {
	return &Index{
		children:   make(map[valueobjects.NodeID]set),
		dependents: make(map[valueobjects.NodeID]set),
	}
}

// Children returns the child ids of id in a stable order.
func (ix *Index) Children(id valueobjects.NodeID) []valueobjects.NodeID {
	return sorted(ix.children[id])
}

// Dependents returns the ids of nodes that link to id, in a stable order.
func (ix *Index) Dependents(id valueobjects.NodeID) []valueobjects.NodeID {
	return sorted(ix.dependents[id])
}

func (ix *Index) HasChild(parent, child valueobjects.NodeID) bool {
	_, ok := ix.children[parent][child]
	return ok
}

// SetChildren replaces the child set of parent and updates the dependent set
// of every child that was added or removed.
func (ix *Index) SetChildren(parent valueobjects.NodeID, next []valueobjects.NodeID) Change {
	want := make(set, len(next))
	for _, id := range next {
		want[id] = struct{}{}
	}
	current := ix.children[parent]

	var change Change
	for id := range want {
		if _, ok := current[id]; !ok {
			change.Added = append(change.Added, id)
		}
	}
	for id := range current {
		if _, ok := want[id]; !ok {
			change.Removed = append(change.Removed, id)
		}
	}
	valueobjects.SortNodeIDs(change.Added)
	valueobjects.SortNodeIDs(change.Removed)

	for _, id := range change.Added {
		ix.link(parent, id)
	}
	for _, id := range change.Removed {
		ix.unlink(parent, id)
	}
	return change
}

// Replace swaps existing for replacement in the child set of parent.
func (ix *Index) Replace(parent, existing, replacement valueobjects.NodeID) Change {
	next := make([]valueobjects.NodeID, 0, len(ix.children[parent]))
	for _, id := range ix.Children(parent) {
		if id == existing {
			id = replacement
		}
		next = append(next, id)
	}
	return ix.SetChildren(parent, next)
}

// Record adds known edges of a freshly loaded node without touching edges
// whose other end is already resident in skip. Stores may omit edges but must
// never report false ones, so recording only ever adds.
func (ix *Index) Record(id valueobjects.NodeID, children, dependents []valueobjects.NodeID, skip func(valueobjects.NodeID) bool) {
	for _, child := range children {
		if skip == nil || !skip(child) {
			ix.link(id, child)
		}
	}
	for _, parent := range dependents {
		if skip == nil || !skip(parent) {
			ix.link(parent, id)
		}
	}
}

// Forget removes id from every neighbour on both sides and returns the former
// children and dependents.
func (ix *Index) Forget(id valueobjects.NodeID) (formerChildren, formerDependents []valueobjects.NodeID) {
	formerChildren = ix.Children(id)
	formerDependents = ix.Dependents(id)
	for _, child := range formerChildren {
		ix.unlink(id, child)
	}
	for _, parent := range formerDependents {
		ix.unlink(parent, id)
	}
	delete(ix.children, id)
	delete(ix.dependents, id)
	return formerChildren, formerDependents
}

// Verify checks that both directions agree.
func (ix *Index) Verify() error {
	for parent, kids := range ix.children {
		for child := range kids {
			if _, ok := ix.dependents[child][parent]; !ok {
				return fmt.Errorf("link %s->%s missing from dependents", parent, child)
			}
		}
	}
	for child, parents := range ix.dependents {
		for parent := range parents {
			if _, ok := ix.children[parent][child]; !ok {
				return fmt.Errorf("dependent %s<-%s missing from children", child, parent)
			}
		}
	}
	return nil
}

func (ix *Index) link(parent, child valueobjects.NodeID) {
	if ix.children[parent] == nil {
		ix.children[parent] = make(set)
	}
	if ix.dependents[child] == nil {
		ix.dependents[child] = make(set)
	}
	ix.children[parent][child] = struct{}{}
	ix.dependents[child][parent] = struct{}{}
}

func (ix *Index) unlink(parent, child valueobjects.NodeID) {
	delete(ix.children[parent], child)
	delete(ix.dependents[child], parent)
}

func sorted(s set) []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	valueobjects.SortNodeIDs(ids)
	return ids
}
