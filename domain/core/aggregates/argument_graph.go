package aggregates

import (
	"context"

	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/domain/events"
	"nodestand-backend/domain/links"
	pkgerrors "nodestand-backend/pkg/errors"
)

// NodeRecord is what a store returns for one node: the node with its body and
// the ids of its neighbours.
type NodeRecord struct {
	Node               *entities.Node
	Children           []valueobjects.NodeID
	Dependents         []valueobjects.NodeID
	SubsequentVersions []valueobjects.NodeID
}

// Loader fetches a single node record. It returns ErrNodeNotFound when absent.
type Loader interface {
	LoadNode(ctx context.Context, id valueobjects.NodeID) (*NodeRecord, error)
}

// LinkChange describes the child links of a node being written: the full
// current set plus the difference against what the store last held. Created
// is set on the first write of a node.
type LinkChange struct {
	Children []valueobjects.NodeID
	Added    []valueobjects.NodeID
	Removed  []valueobjects.NodeID
	Created  bool
}

// Writer receives the changes of a graph on Flush.
type Writer interface {
	SaveNode(ctx context.Context, node *entities.Node, links LinkChange) error
	DeleteNode(ctx context.Context, node *entities.Node, links LinkChange) error
	DeleteBody(ctx context.Context, body *entities.Body) error
}

// ArgumentGraph is the working set of one unit of work. Nodes are loaded
// lazily through the Loader and every link mutation goes through the link
// index, so child and dependent sets stay symmetric.
type ArgumentGraph struct {
	loader Loader
	links  *links.Index

	nodes      map[valueobjects.NodeID]*entities.Node
	order      []valueobjects.NodeID
	stored     map[valueobjects.NodeID][]valueobjects.NodeID
	subsequent map[valueobjects.NodeID][]valueobjects.NodeID
	created    map[valueobjects.NodeID]bool

	dirty      map[valueobjects.NodeID]bool
	dirtyOrder []valueobjects.NodeID
	deleted    map[valueobjects.NodeID]*entities.Node
	deleteSeq  []valueobjects.NodeID

	events []events.DomainEvent
}

// NewArgumentGraph creates an empty working set backed by loader.
func NewArgumentGraph(loader Loader) *ArgumentGraph {
	return &ArgumentGraph{
		loader:     loader,
		links:      links.NewIndex(),
		nodes:      make(map[valueobjects.NodeID]*entities.Node),
		stored:     make(map[valueobjects.NodeID][]valueobjects.NodeID),
		subsequent: make(map[valueobjects.NodeID][]valueobjects.NodeID),
		created:    make(map[valueobjects.NodeID]bool),
		dirty:      make(map[valueobjects.NodeID]bool),
		deleted:    make(map[valueobjects.NodeID]*entities.Node),
	}
}

// Add places a node that does not exist in the store yet.
func (g *ArgumentGraph) Add(node *entities.Node) error {
	id := node.ID()
	if _, ok := g.nodes[id]; ok {
		return pkgerrors.InvalidInput("id", "node already present in graph")
	}
	g.nodes[id] = node
	g.order = append(g.order, id)
	g.stored[id] = nil
	g.created[id] = true
	if prev, ok := node.PreviousVersion(); ok {
		g.subsequent[prev] = append(g.subsequent[prev], id)
	}
	g.MarkDirty(id)
	return nil
}

// Adopt makes a record resident. Records for nodes already resident are ignored.
func (g *ArgumentGraph) Adopt(rec *NodeRecord) *entities.Node {
	id := rec.Node.ID()
	if n, ok := g.nodes[id]; ok {
		return n
	}
	g.nodes[id] = rec.Node
	g.order = append(g.order, id)
	g.links.Record(id, rec.Children, rec.Dependents, g.isKnown)
	g.stored[id] = append([]valueobjects.NodeID(nil), rec.Children...)
	if len(rec.SubsequentVersions) > 0 {
		g.subsequent[id] = append(g.subsequent[id], rec.SubsequentVersions...)
	}
	return rec.Node
}

func (g *ArgumentGraph) isKnown(id valueobjects.NodeID) bool {
	if _, ok := g.nodes[id]; ok {
		return true
	}
	_, ok := g.deleted[id]
	return ok
}

// Node returns a resident node, loading it on first access.
func (g *ArgumentGraph) Node(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	if n, ok := g.nodes[id]; ok {
		return n, nil
	}
	if _, ok := g.deleted[id]; ok {
		return nil, pkgerrors.NodeNotFound(id.String())
	}
	rec, err := g.loader.LoadNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.Adopt(rec), nil
}

// Load materializes id and its neighbourhood breadth-first up to depth hops.
// A negative depth loads the whole connected component.
func (g *ArgumentGraph) Load(ctx context.Context, id valueobjects.NodeID, depth int) (*entities.Node, error) {
	root, err := g.Node(ctx, id)
	if err != nil {
		return nil, err
	}

	type item struct {
		id    valueobjects.NodeID
		depth int
	}
	visited := map[valueobjects.NodeID]bool{id: true}
	queue := []item{{id, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth >= 0 && cur.depth >= depth {
			continue
		}
		neighbours := append(g.ChildIDs(cur.id), g.DependentIDs(cur.id)...)
		for _, next := range neighbours {
			if visited[next] {
				continue
			}
			visited[next] = true
			if _, err := g.Node(ctx, next); err != nil {
				if pkgerrors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			queue = append(queue, item{next, cur.depth + 1})
		}
	}
	return root, nil
}

// Has reports whether id is resident.
func (g *ArgumentGraph) Has(id valueobjects.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns resident nodes in the order they became resident.
func (g *ArgumentGraph) Nodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(g.nodes))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *ArgumentGraph) ChildIDs(id valueobjects.NodeID) []valueobjects.NodeID {
	return g.links.Children(id)
}

func (g *ArgumentGraph) DependentIDs(id valueobjects.NodeID) []valueobjects.NodeID {
	return g.links.Dependents(id)
}

// SubsequentVersions lists the known successors of id in its lineage.
func (g *ArgumentGraph) SubsequentVersions(id valueobjects.NodeID) []valueobjects.NodeID {
	return append([]valueobjects.NodeID(nil), g.subsequent[id]...)
}

// Children loads and returns the children of id.
func (g *ArgumentGraph) Children(ctx context.Context, id valueobjects.NodeID) ([]*entities.Node, error) {
	return g.resolve(ctx, g.ChildIDs(id))
}

// Dependents loads and returns the nodes that link to id.
func (g *ArgumentGraph) Dependents(ctx context.Context, id valueobjects.NodeID) ([]*entities.Node, error) {
	return g.resolve(ctx, g.DependentIDs(id))
}

func (g *ArgumentGraph) resolve(ctx context.Context, ids []valueobjects.NodeID) ([]*entities.Node, error) {
	out := make([]*entities.Node, 0, len(ids))
	for _, id := range ids {
		n, err := g.Node(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// SetChildren replaces the child links of parent after checking the type
// rules for every target.
func (g *ArgumentGraph) SetChildren(ctx context.Context, parentID valueobjects.NodeID, childIDs []valueobjects.NodeID) (links.Change, error) {
	parent, err := g.Node(ctx, parentID)
	if err != nil {
		return links.Change{}, err
	}

	seen := make(map[valueobjects.NodeID]bool, len(childIDs))
	unique := make([]valueobjects.NodeID, 0, len(childIDs))
	for _, id := range childIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if limit := parent.Type().MaxChildren(); limit >= 0 && len(unique) > limit {
		return links.Change{}, pkgerrors.InvalidInput("links",
			"too many links for a "+parent.Type().String())
	}
	for _, id := range unique {
		if err := g.checkLink(ctx, parent, id); err != nil {
			return links.Change{}, err
		}
	}

	change := g.links.SetChildren(parentID, unique)
	if !change.IsEmpty() {
		g.MarkDirty(parentID)
	}
	return change, nil
}

// RepointChild swaps existing for replacement in the child slots of parent.
func (g *ArgumentGraph) RepointChild(ctx context.Context, parentID, existingID, replacementID valueobjects.NodeID) (links.Change, error) {
	parent, err := g.Node(ctx, parentID)
	if err != nil {
		return links.Change{}, err
	}
	if !g.links.HasChild(parentID, existingID) {
		return links.Change{}, pkgerrors.InvalidInput("existingChild", "node is not a child of the parent")
	}
	if err := g.checkLink(ctx, parent, replacementID); err != nil {
		return links.Change{}, err
	}
	change := g.links.Replace(parentID, existingID, replacementID)
	if !change.IsEmpty() {
		g.MarkDirty(parentID)
	}
	return change, nil
}

func (g *ArgumentGraph) checkLink(ctx context.Context, parent *entities.Node, childID valueobjects.NodeID) error {
	if childID == parent.ID() {
		return pkgerrors.InvalidInput("links", "a node cannot link to itself")
	}
	child, err := g.Node(ctx, childID)
	if err != nil {
		return err
	}
	return parent.Type().CanLinkTo(child.Type())
}

// Remove deletes a node and its body from the working set and scrubs it from
// every neighbour. Dependents are loaded so their child sets are rewritten.
func (g *ArgumentGraph) Remove(ctx context.Context, id valueobjects.NodeID) error {
	node, err := g.Node(ctx, id)
	if err != nil {
		return err
	}
	if _, err := g.Dependents(ctx, id); err != nil {
		return err
	}

	_, formerDependents := g.links.Forget(id)
	for _, parent := range formerDependents {
		g.MarkDirty(parent)
	}

	delete(g.nodes, id)
	delete(g.dirty, id)
	g.deleted[id] = node
	g.deleteSeq = append(g.deleteSeq, id)
	if prev, ok := node.PreviousVersion(); ok {
		g.subsequent[prev] = without(g.subsequent[prev], id)
	}
	return nil
}

// MarkDirty schedules id to be written on the next Flush.
func (g *ArgumentGraph) MarkDirty(id valueobjects.NodeID) {
	if g.dirty[id] {
		return
	}
	g.dirty[id] = true
	g.dirtyOrder = append(g.dirtyOrder, id)
}

// IsDirty reports whether id has pending writes.
func (g *ArgumentGraph) IsDirty(id valueobjects.NodeID) bool {
	return g.dirty[id]
}

// Flush hands every pending save and delete to w.
func (g *ArgumentGraph) Flush(ctx context.Context, w Writer) error {
	for _, id := range g.dirtyOrder {
		if !g.dirty[id] {
			continue
		}
		node := g.nodes[id]
		current := g.links.Children(id)
		added, removed := diff(g.stored[id], current)
		change := LinkChange{Children: current, Added: added, Removed: removed, Created: g.created[id]}
		if err := w.SaveNode(ctx, node, change); err != nil {
			return err
		}
	}
	for _, id := range g.deleteSeq {
		node := g.deleted[id]
		if err := w.DeleteNode(ctx, node, LinkChange{Removed: g.stored[id]}); err != nil {
			return err
		}
		if err := w.DeleteBody(ctx, node.Body()); err != nil {
			return err
		}
	}

	for _, id := range g.dirtyOrder {
		if g.dirty[id] {
			g.stored[id] = g.links.Children(id)
		}
	}
	for _, id := range g.deleteSeq {
		delete(g.stored, id)
	}
	g.created = make(map[valueobjects.NodeID]bool)
	g.dirty = make(map[valueobjects.NodeID]bool)
	g.dirtyOrder = nil
	g.deleteSeq = nil
	return nil
}

// Verify checks link symmetry of the resident graph.
func (g *ArgumentGraph) Verify() error {
	return g.links.Verify()
}

// RecordEvent queues a domain event for publication after commit.
func (g *ArgumentGraph) RecordEvent(e events.DomainEvent) {
	g.events = append(g.events, e)
}

// GetUncommittedEvents returns events recorded since the last commit.
func (g *ArgumentGraph) GetUncommittedEvents() []events.DomainEvent {
	return append([]events.DomainEvent(nil), g.events...)
}

// MarkEventsAsCommitted clears the event queue.
func (g *ArgumentGraph) MarkEventsAsCommitted() {
	g.events = nil
}

func diff(before, after []valueobjects.NodeID) (added, removed []valueobjects.NodeID) {
	old := make(map[valueobjects.NodeID]bool, len(before))
	for _, id := range before {
		old[id] = true
	}
	cur := make(map[valueobjects.NodeID]bool, len(after))
	for _, id := range after {
		cur[id] = true
		if !old[id] {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !cur[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func without(ids []valueobjects.NodeID, drop valueobjects.NodeID) []valueobjects.NodeID {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
