package services

import (
	"context"

	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// GraphView is the read surface traversal needs. ArgumentGraph satisfies it;
// Node may load lazily, after which the id's neighbour sets are complete.
type GraphView interface {
	Node(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)
	ChildIDs(id valueobjects.NodeID) []valueobjects.NodeID
	DependentIDs(id valueobjects.NodeID) []valueobjects.NodeID
}

// Edge always points from parent to child, whichever way it was walked.
type Edge struct {
	Parent valueobjects.NodeID `json:"parent"`
	Child  valueobjects.NodeID `json:"child"`
}

// Subgraph is a set of nodes and the edges between them, rooted at one node.
type Subgraph struct {
	RootID       valueobjects.NodeID   `json:"rootId"`
	RootStableID valueobjects.StableID `json:"rootStableId"`
	Nodes        []*entities.Node      `json:"-"`
	Edges        []Edge                `json:"edges"`

	nodeSeen map[valueobjects.NodeID]bool
	edgeSeen map[Edge]bool
}

func newSubgraph(root *entities.Node) *Subgraph {
	return &Subgraph{
		RootID:       root.ID(),
		RootStableID: root.StableID(),
		nodeSeen:     make(map[valueobjects.NodeID]bool),
		edgeSeen:     make(map[Edge]bool),
	}
}

func (s *Subgraph) addNode(n *entities.Node) bool {
	if s.nodeSeen[n.ID()] {
		return false
	}
	s.nodeSeen[n.ID()] = true
	s.Nodes = append(s.Nodes, n)
	return true
}

func (s *Subgraph) addEdge(e Edge) {
	if s.edgeSeen[e] {
		return
	}
	s.edgeSeen[e] = true
	s.Edges = append(s.Edges, e)
}

// Contains reports whether id was collected.
func (s *Subgraph) Contains(id valueobjects.NodeID) bool {
	return s.nodeSeen[id]
}

// NodeIDs lists collected ids in visitation order.
func (s *Subgraph) NodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ids = append(ids, n.ID())
	}
	return ids
}

// TraversalService walks the argument graph with visited-set guarded worklists.
type TraversalService struct{}

func NewTraversalService() *TraversalService {
	return &TraversalService{}
}

// Descending collects root and everything reachable through child links.
func (t *TraversalService) Descending(ctx context.Context, view GraphView, rootID valueobjects.NodeID) (*Subgraph, error) {
	root, err := view.Node(ctx, rootID)
	if err != nil {
		return nil, err
	}
	sub := newSubgraph(root)
	if err := t.walk(ctx, view, sub, root, false); err != nil {
		return nil, err
	}
	return sub, nil
}

// Ascending collects root and everything that depends on it.
func (t *TraversalService) Ascending(ctx context.Context, view GraphView, rootID valueobjects.NodeID) (*Subgraph, error) {
	root, err := view.Node(ctx, rootID)
	if err != nil {
		return nil, err
	}
	sub := newSubgraph(root)
	if err := t.walk(ctx, view, sub, root, true); err != nil {
		return nil, err
	}
	return sub, nil
}

// Full is the union of the descending and ascending walks from root.
func (t *TraversalService) Full(ctx context.Context, view GraphView, rootID valueobjects.NodeID) (*Subgraph, error) {
	root, err := view.Node(ctx, rootID)
	if err != nil {
		return nil, err
	}
	sub := newSubgraph(root)
	if err := t.walk(ctx, view, sub, root, false); err != nil {
		return nil, err
	}
	// the root is already collected; the ascending walk must still expand it
	if err := t.walk(ctx, view, sub, root, true); err != nil {
		return nil, err
	}
	return sub, nil
}

func (t *TraversalService) walk(ctx context.Context, view GraphView, sub *Subgraph, root *entities.Node, ascending bool) error {
	sub.addNode(root)
	expanded := map[valueobjects.NodeID]bool{}
	stack := []valueobjects.NodeID{root.ID()}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if expanded[id] {
			continue
		}
		expanded[id] = true

		next := view.ChildIDs(id)
		if ascending {
			next = view.DependentIDs(id)
		}
		for i := len(next) - 1; i >= 0; i-- {
			neighbour, err := view.Node(ctx, next[i])
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					continue
				}
				return err
			}
			if ascending {
				sub.addEdge(Edge{Parent: neighbour.ID(), Child: id})
			} else {
				sub.addEdge(Edge{Parent: id, Child: neighbour.ID()})
			}
			sub.addNode(neighbour)
			if !expanded[neighbour.ID()] {
				stack = append(stack, neighbour.ID())
			}
		}
	}
	return nil
}

// ConnectedDrafts returns the draft frontier around root: every draft node
// reachable from root through child or dependent links without crossing a
// published node. Root is included when it is a draft.
func (t *TraversalService) ConnectedDrafts(ctx context.Context, view GraphView, rootID valueobjects.NodeID) ([]*entities.Node, error) {
	root, err := view.Node(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root.IsFinalized() {
		return nil, nil
	}

	visited := map[valueobjects.NodeID]bool{rootID: true}
	frontier := []*entities.Node{root}
	stack := []valueobjects.NodeID{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		neighbours := append(view.ChildIDs(id), view.DependentIDs(id)...)
		for _, nid := range neighbours {
			if visited[nid] {
				continue
			}
			visited[nid] = true
			n, err := view.Node(ctx, nid)
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			if n.IsFinalized() {
				continue
			}
			frontier = append(frontier, n)
			stack = append(stack, nid)
		}
	}
	return frontier, nil
}
