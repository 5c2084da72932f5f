package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	domainservices "nodestand-backend/domain/services"
	pkgerrors "nodestand-backend/pkg/errors"
	"nodestand-backend/pkg/observability"
)

// query runs a read-only operation against the store without a unit of work.
func (s *ArgumentService) query(ctx context.Context, operation string, fn func(ctx context.Context) error) (err error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, tracerName, "ArgumentService."+operation,
		attribute.Bool("readonly", true))
	defer func() {
		s.metrics.ObserveOperation(operation, started, err)
		observability.EndSpan(span, err)
	}()
	return fn(ctx)
}

// GetGraph returns the full subgraph around the current version of a lineage.
func (s *ArgumentService) GetGraph(ctx context.Context, stableID valueobjects.StableID) (*domainservices.Subgraph, error) {
	var graph *domainservices.Subgraph
	err := s.query(ctx, "get_graph", func(ctx context.Context) error {
		rec, err := s.store.LoadNodeByStableID(ctx, stableID)
		if err != nil {
			return err
		}
		g := aggregates.NewArgumentGraph(s.store)
		root := g.Adopt(rec)
		graph, err = s.traversal.Full(ctx, g, root.ID())
		return err
	})
	return graph, err
}

// GetFullDetail returns a node with its neighbours, lineage successors and citations.
func (s *ArgumentService) GetFullDetail(ctx context.Context, nodeID valueobjects.NodeID) (*NodeDetail, error) {
	var detail *NodeDetail
	err := s.query(ctx, "get_full_detail", func(ctx context.Context) error {
		g := aggregates.NewArgumentGraph(s.store)
		node, err := g.Load(ctx, nodeID, 1)
		if err != nil {
			return err
		}
		detail = detailOf(g, node)
		return nil
	})
	return detail, err
}

// GetEditHistory lists every version of a lineage, newest first. Drafts come
// before published versions.
func (s *ArgumentService) GetEditHistory(ctx context.Context, stableID valueobjects.StableID) ([]*NodeDetail, error) {
	var history []*NodeDetail
	err := s.query(ctx, "get_edit_history", func(ctx context.Context) error {
		records, err := s.store.QueryNodes(ctx, ports.NodeFilter{StableIDPrefix: stableID.String()})
		if err != nil {
			return err
		}
		lineage := make([]*aggregates.NodeRecord, 0, len(records))
		for _, rec := range records {
			if rec.Node.StableID() == stableID {
				lineage = append(lineage, rec)
			}
		}
		sort.SliceStable(lineage, func(i, j int) bool {
			a, b := lineage[i].Node, lineage[j].Node
			if a.IsFinalized() != b.IsFinalized() {
				return !a.IsFinalized()
			}
			if a.BuildVersion() != b.BuildVersion() {
				return a.BuildVersion() > b.BuildVersion()
			}
			return a.CreatedAt().After(b.CreatedAt())
		})
		history = details(lineage)
		return nil
	})
	return history, err
}

// GetNodesInMajorVersion lists published nodes whose body belongs to the major version.
func (s *ArgumentService) GetNodesInMajorVersion(ctx context.Context, majorVersion valueobjects.StableID) ([]*NodeDetail, error) {
	return s.list(ctx, "get_nodes_in_major_version", ports.NodeFilter{
		MajorVersion: majorVersion,
		Status:       ports.StatusPublished,
	})
}

// GetRootNodes lists published nodes that nothing links to.
func (s *ArgumentService) GetRootNodes(ctx context.Context) ([]*NodeDetail, error) {
	return s.list(ctx, "get_root_nodes", ports.NodeFilter{RootsOnly: true, Status: ports.StatusPublished})
}

// ListNodes lists every published node.
func (s *ArgumentService) ListNodes(ctx context.Context, limit int) ([]*NodeDetail, error) {
	return s.list(ctx, "list_nodes", ports.NodeFilter{Status: ports.StatusPublished, Limit: limit})
}

// GetNodesPublishedByAuthor lists published nodes written by authorID.
func (s *ArgumentService) GetNodesPublishedByAuthor(ctx context.Context, authorID string) ([]*NodeDetail, error) {
	return s.list(ctx, "get_nodes_published_by_author", ports.NodeFilter{
		AuthorIDs: []string{authorID},
		Status:    ports.StatusPublished,
	})
}

// GetDraftNodes lists the drafts of an author the user owns.
func (s *ArgumentService) GetDraftNodes(ctx context.Context, userID, authorID string) ([]*NodeDetail, error) {
	author, err := s.authors.ResolveAuthor(ctx, userID, authorID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "get_draft_nodes", ports.NodeFilter{
		AuthorIDs: []string{author.StableID},
		Status:    ports.StatusDraft,
	})
}

// GetConsumerNodes lists the nodes that link to nodeID. Drafts are included
// only when the viewing user owns their author.
func (s *ArgumentService) GetConsumerNodes(ctx context.Context, userID string, nodeID valueobjects.NodeID) ([]*NodeDetail, error) {
	own, err := s.viewerAuthors(ctx, userID)
	if err != nil {
		return nil, err
	}

	var consumers []*NodeDetail
	err = s.query(ctx, "get_consumer_nodes", func(ctx context.Context) error {
		g := aggregates.NewArgumentGraph(s.store)
		if _, err := g.Node(ctx, nodeID); err != nil {
			return err
		}
		dependents, err := g.Dependents(ctx, nodeID)
		if err != nil {
			return err
		}
		for _, n := range dependents {
			if n.IsFinalized() || own[n.Body().AuthorID()] {
				consumers = append(consumers, detailOf(g, n))
			}
		}
		return nil
	})
	return consumers, err
}

// Search finds bodies of the given kinds whose title contains text, keeping
// the first body of each major version in store order. No kinds, no results.
func (s *ArgumentService) Search(ctx context.Context, userID, text string, kinds []entities.Kind) ([]*entities.Body, error) {
	if len(kinds) == 0 {
		return []*entities.Body{}, nil
	}
	own, err := s.viewerAuthors(ctx, userID)
	if err != nil {
		return nil, err
	}
	viewer := make([]string, 0, len(own))
	for id := range own {
		viewer = append(viewer, id)
	}
	sort.Strings(viewer)

	var results []*entities.Body
	err = s.query(ctx, "search", func(ctx context.Context) error {
		bodies, err := s.store.QueryBodies(ctx, ports.BodyFilter{
			TitleContains:   text,
			Kinds:           kinds,
			ViewerAuthorIDs: viewer,
		})
		if err != nil {
			return err
		}
		results = DedupByMajorVersion(FilterKinds(bodies, kinds))
		return nil
	})
	return results, err
}

func (s *ArgumentService) list(ctx context.Context, operation string, filter ports.NodeFilter) ([]*NodeDetail, error) {
	var out []*NodeDetail
	err := s.query(ctx, operation, func(ctx context.Context) error {
		records, err := s.store.QueryNodes(ctx, filter)
		if err != nil {
			return err
		}
		out = details(records)
		return nil
	})
	return out, err
}

// viewerAuthors returns the authors owned by userID. Unknown or anonymous
// users own none.
func (s *ArgumentService) viewerAuthors(ctx context.Context, userID string) (map[string]bool, error) {
	own := map[string]bool{}
	if userID == "" {
		return own, nil
	}
	authors, err := s.authors.AuthorsOf(ctx, userID)
	if pkgerrors.IsNotFound(err) {
		return own, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authors of %s: %w", userID, err)
	}
	for _, a := range authors {
		own[a.StableID] = true
	}
	return own, nil
}

func details(records []*aggregates.NodeRecord) []*NodeDetail {
	out := make([]*NodeDetail, 0, len(records))
	for _, rec := range records {
		out = append(out, detailOfRecord(rec))
	}
	return out
}
