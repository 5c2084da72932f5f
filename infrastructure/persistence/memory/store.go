// Package memory is a process-local graph store. It backs development runs
// and every service-level test.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

type nodeRow struct {
	id              valueobjects.NodeID
	stableID        valueobjects.StableID
	buildVersion    int
	bodyID          valueobjects.BodyID
	previousVersion valueobjects.NodeID
	children        []valueobjects.NodeID
	createdAt       time.Time
	updatedAt       time.Time
}

type bodyRow struct {
	id           valueobjects.BodyID
	kind         entities.Kind
	content      entities.Content
	authorID     string
	majorVersion entities.MajorVersion
	public       bool
	createdAt    time.Time
}

// Store keeps rows by value; every read rebuilds fresh entities so callers
// never share state with the store.
type Store struct {
	mu        sync.RWMutex
	nodes     map[valueobjects.NodeID]nodeRow
	nodeOrder []valueobjects.NodeID
	bodies    map[valueobjects.BodyID]bodyRow
	bodyOrder []valueobjects.BodyID
	nextBuild int
	failNext  error
	logger    *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		nodes:  make(map[valueobjects.NodeID]nodeRow),
		bodies: make(map[valueobjects.BodyID]bodyRow),
		logger: logger,
	}
}

// FailNextCommit makes the next Commit fail with err and apply nothing.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// NodeCount returns the number of stored nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// BodyCount returns the number of stored bodies.
func (s *Store) BodyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// Begin starts a unit of work.
func (s *Store) Begin(_ context.Context) (ports.UnitOfWork, error) {
	return &unitOfWork{store: s}, nil
}

// LoadNode implements ports.GraphReader.
func (s *Store) LoadNode(_ context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.nodes[id]
	if !ok {
		return nil, pkgerrors.NodeNotFound(id.String())
	}
	return s.record(row)
}

// LoadNodeByStableID implements ports.GraphReader.
func (s *Store) LoadNodeByStableID(_ context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *nodeRow
	for _, id := range s.nodeOrder {
		row, ok := s.nodes[id]
		if !ok || row.stableID != stableID {
			continue
		}
		if best == nil || newer(row, *best) {
			r := row
			best = &r
		}
	}
	if best == nil {
		return nil, pkgerrors.NodeNotFound(stableID.String())
	}
	return s.record(*best)
}

// newer prefers published over draft, then the higher build version, then
// the later creation time.
func newer(a, b nodeRow) bool {
	aPub, bPub := a.buildVersion >= 0, b.buildVersion >= 0
	if aPub != bPub {
		return aPub
	}
	if a.buildVersion != b.buildVersion {
		return a.buildVersion > b.buildVersion
	}
	return a.createdAt.After(b.createdAt)
}

// QueryNodes implements ports.GraphReader.
func (s *Store) QueryNodes(_ context.Context, filter ports.NodeFilter) ([]*aggregates.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dependents := s.dependentIndex()
	authors := toSet(filter.AuthorIDs)

	var out []*aggregates.NodeRecord
	for _, id := range s.nodeOrder {
		row, ok := s.nodes[id]
		if !ok {
			continue
		}
		body := s.bodies[row.bodyID]
		switch {
		case filter.StableIDPrefix != "" && !strings.HasPrefix(row.stableID.String(), filter.StableIDPrefix):
			continue
		case len(authors) > 0 && !authors[body.authorID]:
			continue
		case filter.Status == ports.StatusDraft && row.buildVersion >= 0:
			continue
		case filter.Status == ports.StatusPublished && row.buildVersion < 0:
			continue
		case filter.RootsOnly && len(dependents[id]) > 0:
			continue
		case !filter.MajorVersion.IsZero() && body.majorVersion.StableID != filter.MajorVersion:
			continue
		}
		rec, err := s.record(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// QueryBodies implements ports.GraphReader.
func (s *Store) QueryBodies(_ context.Context, filter ports.BodyFilter) ([]*entities.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(filter.TitleContains)
	viewer := toSet(filter.ViewerAuthorIDs)
	kinds := make(map[entities.Kind]bool, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds[k] = true
	}

	var out []*entities.Body
	for _, id := range s.bodyOrder {
		row, ok := s.bodies[id]
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(row.content.Title), needle) {
			continue
		}
		if len(kinds) > 0 && !kinds[row.kind] {
			continue
		}
		if !row.public && !viewer[row.authorID] {
			continue
		}
		out = append(out, row.toBody())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// record must be called with the read lock held.
func (s *Store) record(row nodeRow) (*aggregates.NodeRecord, error) {
	body, ok := s.bodies[row.bodyID]
	if !ok {
		return nil, pkgerrors.ResourceNotFound("body", row.bodyID.String())
	}
	node, err := entities.ReconstructNode(row.id, row.stableID, row.buildVersion, body.toBody(),
		row.previousVersion, row.createdAt, row.updatedAt)
	if err != nil {
		return nil, err
	}

	rec := &aggregates.NodeRecord{
		Node:     node,
		Children: append([]valueobjects.NodeID(nil), row.children...),
	}
	for _, id := range s.nodeOrder {
		other, ok := s.nodes[id]
		if !ok {
			continue
		}
		for _, c := range other.children {
			if c == row.id {
				rec.Dependents = append(rec.Dependents, other.id)
			}
		}
		if other.previousVersion == row.id {
			rec.SubsequentVersions = append(rec.SubsequentVersions, other.id)
		}
	}
	return rec, nil
}

func (s *Store) dependentIndex() map[valueobjects.NodeID][]valueobjects.NodeID {
	idx := make(map[valueobjects.NodeID][]valueobjects.NodeID)
	for _, row := range s.nodes {
		for _, c := range row.children {
			idx[c] = append(idx[c], row.id)
		}
	}
	return idx
}

func (b bodyRow) toBody() *entities.Body {
	return entities.ReconstructBody(b.id, b.kind, b.content, b.authorID, b.majorVersion, b.public, b.createdAt)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
