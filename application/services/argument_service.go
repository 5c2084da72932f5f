package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	domainservices "nodestand-backend/domain/services"
	"nodestand-backend/domain/versioning"
	"nodestand-backend/pkg/observability"
)

const tracerName = "nodestand/argument"

// AssertionInput carries the editable fields of an assertion.
type AssertionInput struct {
	Title     string
	Qualifier string
	Body      string
	Links     []valueobjects.NodeID
}

// InterpretationInput carries the editable fields of an interpretation.
type InterpretationInput struct {
	Title     string
	Qualifier string
	Body      string
	SourceID  *valueobjects.NodeID
}

// SourceInput carries the editable fields of a source.
type SourceInput struct {
	Title     string
	Qualifier string
	URL       string
}

// NodeDetail is a node with its neighbourhood as seen after an operation.
type NodeDetail struct {
	Node               *entities.Node
	Children           []valueobjects.NodeID
	Dependents         []valueobjects.NodeID
	SubsequentVersions []valueobjects.NodeID
	Citations          []entities.Citation
}

// DraftResult is returned by MakeDraft.
type DraftResult struct {
	Draft *NodeDetail
	Graph *domainservices.Subgraph
}

// ArgumentService is the entry point for every argument graph operation.
// Each mutating call runs in its own unit of work.
type ArgumentService struct {
	store     ports.GraphStore
	authors   ports.AuthorResolver
	engine    *versioning.Engine
	traversal *domainservices.TraversalService
	events    ports.EventPublisher
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewArgumentService creates the argument service. events may be nil.
func NewArgumentService(
	store ports.GraphStore,
	authors ports.AuthorResolver,
	engine *versioning.Engine,
	traversal *domainservices.TraversalService,
	events ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *ArgumentService {
	return &ArgumentService{
		store:     store,
		authors:   authors,
		engine:    engine,
		traversal: traversal,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateAssertion starts a new assertion lineage as a draft.
func (s *ArgumentService) CreateAssertion(ctx context.Context, userID, authorID string, in AssertionInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, Text: in.Body}
	return s.create(ctx, "create_assertion", userID, authorID, entities.KindAssertion, content, in.Links)
}

// CreateInterpretation starts a new interpretation lineage, optionally citing a source.
func (s *ArgumentService) CreateInterpretation(ctx context.Context, userID, authorID string, in InterpretationInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, Text: in.Body}
	return s.create(ctx, "create_interpretation", userID, authorID, entities.KindInterpretation, content, sourceLinks(in.SourceID))
}

// CreateSource starts a new source lineage.
func (s *ArgumentService) CreateSource(ctx context.Context, userID, authorID string, in SourceInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, URL: in.URL}
	return s.create(ctx, "create_source", userID, authorID, entities.KindSource, content, nil)
}

func (s *ArgumentService) create(ctx context.Context, operation, userID, authorID string, kind entities.Kind, content entities.Content, links []valueobjects.NodeID) (*NodeDetail, error) {
	author, err := s.authors.ResolveAuthor(ctx, userID, authorID)
	if err != nil {
		return nil, err
	}

	var detail *NodeDetail
	err = s.execute(ctx, operation, userID, func(ctx context.Context, _ ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		node, err := s.engine.Create(ctx, g, kind, content, author.StableID, links)
		if err != nil {
			return err
		}
		detail = detailOf(g, node)
		return nil
	})
	return detail, err
}

// EditAssertion edits a draft assertion in place and replaces its links.
func (s *ArgumentService) EditAssertion(ctx context.Context, userID string, nodeID valueobjects.NodeID, in AssertionInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, Text: in.Body}
	return s.edit(ctx, "edit_assertion", userID, nodeID, entities.KindAssertion, content, in.Links)
}

// EditInterpretation edits a draft interpretation in place and sets its source.
func (s *ArgumentService) EditInterpretation(ctx context.Context, userID string, nodeID valueobjects.NodeID, in InterpretationInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, Text: in.Body}
	return s.edit(ctx, "edit_interpretation", userID, nodeID, entities.KindInterpretation, content, sourceLinks(in.SourceID))
}

// EditSource edits a draft source in place.
func (s *ArgumentService) EditSource(ctx context.Context, userID string, nodeID valueobjects.NodeID, in SourceInput) (*NodeDetail, error) {
	content := entities.Content{Title: in.Title, Qualifier: in.Qualifier, URL: in.URL}
	return s.edit(ctx, "edit_source", userID, nodeID, entities.KindSource, content, nil)
}

func (s *ArgumentService) edit(ctx context.Context, operation, userID string, nodeID valueobjects.NodeID, kind entities.Kind, content entities.Content, links []valueobjects.NodeID) (*NodeDetail, error) {
	holder, err := entities.NewEditHolder(kind, content)
	if err != nil {
		return nil, err
	}

	var detail *NodeDetail
	err = s.execute(ctx, operation, userID, func(ctx context.Context, _ ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		node, err := g.Node(ctx, nodeID)
		if err != nil {
			return err
		}
		author, err := s.requireAuthorship(ctx, userID, node)
		if err != nil {
			return err
		}
		node, err = s.engine.Edit(ctx, g, author.StableID, nodeID, holder, links)
		if err != nil {
			return err
		}
		detail = detailOf(g, node)
		return nil
	})
	return detail, err
}

// MakeDraft starts a new draft of a published node under authorID.
func (s *ArgumentService) MakeDraft(ctx context.Context, userID, authorID string, nodeID valueobjects.NodeID) (*DraftResult, error) {
	author, err := s.authors.ResolveAuthor(ctx, userID, authorID)
	if err != nil {
		return nil, err
	}

	var result *DraftResult
	err = s.execute(ctx, "make_draft", userID, func(ctx context.Context, _ ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		draft, err := s.engine.MakeDraft(ctx, g, author.StableID, nodeID)
		if err != nil {
			return err
		}
		graph, err := s.traversal.Full(ctx, g, draft.ID())
		if err != nil {
			return err
		}
		result = &DraftResult{Draft: detailOf(g, draft), Graph: graph}
		return nil
	})
	return result, err
}

// AdoptDraftChild points a draft parent at a replacement child, typically the
// new draft of one of its current children.
func (s *ArgumentService) AdoptDraftChild(ctx context.Context, userID string, parentID, existingChildID, replacementID valueobjects.NodeID) (*NodeDetail, error) {
	var detail *NodeDetail
	err := s.execute(ctx, "adopt_draft_child", userID, func(ctx context.Context, _ ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		parent, err := g.Node(ctx, parentID)
		if err != nil {
			return err
		}
		if _, err := s.requireAuthorship(ctx, userID, parent); err != nil {
			return err
		}
		if err := s.engine.AdoptChild(ctx, g, parentID, existingChildID, replacementID); err != nil {
			return err
		}
		detail = detailOf(g, parent)
		return nil
	})
	return detail, err
}

// Publish finalizes the node together with every draft connected to it.
func (s *ArgumentService) Publish(ctx context.Context, userID string, nodeID valueobjects.NodeID) (*versioning.PublishResult, error) {
	var result *versioning.PublishResult
	err := s.execute(ctx, "publish", userID, func(ctx context.Context, uow ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		node, err := g.Node(ctx, nodeID)
		if err != nil {
			return err
		}
		if _, err := s.requireAuthorship(ctx, userID, node); err != nil {
			return err
		}
		result, err = s.engine.Publish(ctx, g, nodeID, uow)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObservePublish(len(result.Published))
	return result, nil
}

// DiscardDraft deletes a draft and its body.
func (s *ArgumentService) DiscardDraft(ctx context.Context, userID string, nodeID valueobjects.NodeID) error {
	err := s.execute(ctx, "discard_draft", userID, func(ctx context.Context, _ ports.UnitOfWork, g *aggregates.ArgumentGraph) error {
		node, err := g.Node(ctx, nodeID)
		if err != nil {
			return err
		}
		if _, err := s.requireAuthorship(ctx, userID, node); err != nil {
			return err
		}
		return s.engine.Discard(ctx, g, nodeID)
	})
	if err == nil {
		s.metrics.DraftsDiscarded.Inc()
	}
	return err
}

// requireAuthorship checks that userID owns the author of node's body.
func (s *ArgumentService) requireAuthorship(ctx context.Context, userID string, node *entities.Node) (*entities.Author, error) {
	return s.authors.ResolveAuthor(ctx, userID, node.Body().AuthorID())
}

// execute runs fn inside a unit of work. The graph is flushed and committed
// only when fn succeeds; otherwise the unit of work is rolled back.
func (s *ArgumentService) execute(
	ctx context.Context,
	operation string,
	userID string,
	fn func(ctx context.Context, uow ports.UnitOfWork, g *aggregates.ArgumentGraph) error,
) (err error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, tracerName, "ArgumentService."+operation,
		attribute.String("user.id", userID))
	defer func() {
		s.metrics.ObserveOperation(operation, started, err)
		observability.EndSpan(span, err)
		if err != nil {
			s.logger.Warn("Argument operation failed",
				zap.String("operation", operation),
				zap.String("userID", userID),
				zap.Error(err),
			)
		}
	}()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := uow.Rollback(ctx); rbErr != nil {
				s.logger.Error("Failed to roll back unit of work",
					zap.String("operation", operation),
					zap.Error(rbErr),
				)
			}
		}
	}()

	g := aggregates.NewArgumentGraph(uow)
	if err = fn(ctx, uow, g); err != nil {
		return err
	}
	if err = g.Verify(); err != nil {
		return fmt.Errorf("link index inconsistent after %s: %w", operation, err)
	}
	if err = g.Flush(ctx, uow); err != nil {
		return fmt.Errorf("failed to stage %s: %w", operation, err)
	}
	if err = uow.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", operation, err)
	}

	s.logger.Debug("Argument operation committed",
		zap.String("operation", operation),
		zap.String("userID", userID),
		zap.Duration("duration", time.Since(started)),
	)
	s.publishEvents(ctx, g)
	return nil
}

// publishEvents forwards committed domain events. Delivery failures are logged;
// the operation has already committed.
func (s *ArgumentService) publishEvents(ctx context.Context, g *aggregates.ArgumentGraph) {
	pending := g.GetUncommittedEvents()
	g.MarkEventsAsCommitted()
	if s.events == nil || len(pending) == 0 {
		return
	}
	if err := s.events.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
	}
}

func detailOf(g *aggregates.ArgumentGraph, node *entities.Node) *NodeDetail {
	return &NodeDetail{
		Node:               node,
		Children:           g.ChildIDs(node.ID()),
		Dependents:         g.DependentIDs(node.ID()),
		SubsequentVersions: g.SubsequentVersions(node.ID()),
		Citations:          node.Body().Citations(),
	}
}

func detailOfRecord(rec *aggregates.NodeRecord) *NodeDetail {
	return &NodeDetail{
		Node:               rec.Node,
		Children:           rec.Children,
		Dependents:         rec.Dependents,
		SubsequentVersions: rec.SubsequentVersions,
		Citations:          rec.Node.Body().Citations(),
	}
}

func sourceLinks(sourceID *valueobjects.NodeID) []valueobjects.NodeID {
	if sourceID == nil || sourceID.IsZero() {
		return nil
	}
	return []valueobjects.NodeID{*sourceID}
}
