// Package versioning implements the draft and publish lifecycle of argument
// nodes: copy-on-write drafts, in-place edits of private bodies and the
// all-or-nothing publication of a connected draft frontier.
package versioning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/domain/events"
	"nodestand-backend/domain/services"
	pkgerrors "nodestand-backend/pkg/errors"
)

// Sequencer hands out build versions. Each call returns a number greater than
// any it returned before.
type Sequencer interface {
	NextBuildVersion(ctx context.Context) (int, error)
}

// PublishResult describes one publish call.
type PublishResult struct {
	Root         *entities.Node
	BuildVersion int
	Published    []*entities.Node
	Graph        *services.Subgraph
}

// Engine applies lifecycle rules to nodes of an ArgumentGraph. It never talks
// to a store directly; the caller flushes the graph inside its unit of work.
type Engine struct {
	traversal *services.TraversalService
	logger    *zap.Logger
}

func NewEngine(traversal *services.TraversalService, logger *zap.Logger) *Engine {
	return &Engine{traversal: traversal, logger: logger}
}

// CheckEditRules rejects edits to bodies that may not be edited in place.
func (e *Engine) CheckEditRules(node *entities.Node) error {
	if !node.Body().IsEditable() {
		return pkgerrors.WithNode(pkgerrors.ErrNotEditable, node.ID().String())
	}
	if node.IsFinalized() {
		return pkgerrors.WithNode(pkgerrors.ErrMustDraftFirst, node.ID().String())
	}
	return nil
}

// Create starts a new lineage and links it to the given children.
func (e *Engine) Create(ctx context.Context, g *aggregates.ArgumentGraph, kind entities.Kind, content entities.Content, authorID string, children []valueobjects.NodeID) (*entities.Node, error) {
	body, err := entities.NewBody(kind, content, authorID)
	if err != nil {
		return nil, err
	}
	node, err := entities.NewNode(body)
	if err != nil {
		return nil, err
	}
	if err := g.Add(node); err != nil {
		return nil, err
	}
	if _, err := g.SetChildren(ctx, node.ID(), children); err != nil {
		return nil, err
	}

	g.RecordEvent(events.NewNodeCreated(node.ID(), node.StableID(), kind.String(), authorID, time.Now()))
	e.logger.Debug("Node created",
		zap.String("nodeID", node.ID().String()),
		zap.String("type", kind.String()),
		zap.Int("children", len(children)),
	)
	return node, nil
}

// MakeDraft starts the next version of a published node. The draft inherits
// the child links of the node it supersedes.
func (e *Engine) MakeDraft(ctx context.Context, g *aggregates.ArgumentGraph, authorID string, nodeID valueobjects.NodeID) (*entities.Node, error) {
	node, err := g.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !node.Body().IsEditable() {
		return nil, pkgerrors.WithNode(pkgerrors.ErrNotEditable, nodeID.String())
	}

	draft, err := node.CreateNewDraft(authorID)
	if err != nil {
		return nil, err
	}
	if err := g.Add(draft); err != nil {
		return nil, err
	}
	if _, err := g.SetChildren(ctx, draft.ID(), g.ChildIDs(nodeID)); err != nil {
		return nil, fmt.Errorf("failed to carry links onto draft: %w", err)
	}

	g.RecordEvent(events.NewDraftCreated(draft.ID(), nodeID, draft.StableID(), authorID, time.Now()))
	e.logger.Debug("Draft created",
		zap.String("nodeID", nodeID.String()),
		zap.String("draftID", draft.ID().String()),
	)
	return draft, nil
}

// Edit copies the content of holder onto the node and replaces its child
// links. Interpretations take at most one child and sources none.
func (e *Engine) Edit(ctx context.Context, g *aggregates.ArgumentGraph, authorID string, nodeID valueobjects.NodeID, holder *entities.Node, children []valueobjects.NodeID) (*entities.Node, error) {
	node, err := g.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.Type() != holder.Type() {
		return nil, pkgerrors.InvalidInput("type",
			fmt.Sprintf("node %s is a %s, not a %s", nodeID, node.Type(), holder.Type()))
	}
	if err := e.CheckEditRules(node); err != nil {
		return nil, err
	}
	if !node.ShouldEditInPlace() {
		// a draft node still holding a public body gets its own copy first
		if _, err := node.CreateDraftBody(authorID, true); err != nil {
			return nil, err
		}
	}

	if err := holder.CopyContentTo(node); err != nil {
		return nil, err
	}
	change, err := g.SetChildren(ctx, nodeID, children)
	if err != nil {
		return nil, err
	}
	g.MarkDirty(nodeID)

	g.RecordEvent(events.NewNodeEdited(nodeID, node.StableID(), change.Added, change.Removed, time.Now()))
	return node, nil
}

// AdoptChild points a draft parent at replacement in the slot held by existing.
// Used to pull a child's new draft into the parent's draft so both publish together.
func (e *Engine) AdoptChild(ctx context.Context, g *aggregates.ArgumentGraph, parentID, existingID, replacementID valueobjects.NodeID) error {
	parent, err := g.Node(ctx, parentID)
	if err != nil {
		return err
	}
	if err := e.CheckEditRules(parent); err != nil {
		return err
	}
	change, err := g.RepointChild(ctx, parentID, existingID, replacementID)
	if err != nil {
		return err
	}
	g.RecordEvent(events.NewNodeEdited(parentID, parent.StableID(), change.Added, change.Removed, time.Now()))
	return nil
}

// Publish finalizes the connected draft frontier around nodeID with a single
// build version and returns the subgraph around the published node.
func (e *Engine) Publish(ctx context.Context, g *aggregates.ArgumentGraph, nodeID valueobjects.NodeID, seq Sequencer) (*PublishResult, error) {
	root, err := g.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if root.IsFinalized() {
		return nil, pkgerrors.WithNode(pkgerrors.ErrAlreadyPublished, nodeID.String())
	}

	frontier, err := e.traversal.ConnectedDrafts(ctx, g, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect draft frontier: %w", err)
	}

	version, err := seq.NextBuildVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate build version: %w", err)
	}

	ids := make([]valueobjects.NodeID, 0, len(frontier))
	for _, n := range frontier {
		if err := n.Finalize(version); err != nil {
			return nil, err
		}
		g.MarkDirty(n.ID())
		ids = append(ids, n.ID())
	}

	graph, err := e.traversal.Full(ctx, g, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to build published graph: %w", err)
	}

	g.RecordEvent(events.NewNodesPublished(nodeID, root.StableID(), version, ids, time.Now()))
	e.logger.Info("Draft frontier published",
		zap.String("nodeID", nodeID.String()),
		zap.Int("buildVersion", version),
		zap.Int("frontierSize", len(frontier)),
	)
	return &PublishResult{Root: root, BuildVersion: version, Published: frontier, Graph: graph}, nil
}

// Discard deletes a draft and its body and scrubs it from its neighbours.
func (e *Engine) Discard(ctx context.Context, g *aggregates.ArgumentGraph, nodeID valueobjects.NodeID) error {
	node, err := g.Node(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.IsFinalized() {
		return pkgerrors.WithNode(pkgerrors.ErrAlreadyPublished, nodeID.String())
	}
	if err := g.Remove(ctx, nodeID); err != nil {
		return err
	}
	g.RecordEvent(events.NewDraftDiscarded(nodeID, node.StableID(), time.Now()))
	return nil
}
