package memory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

var errUnitOfWorkClosed = errors.New("unit of work already completed")

// unitOfWork stages row writes and applies them under the store lock on Commit.
// Reads see committed state only.
type unitOfWork struct {
	store *Store
	ops   []func(s *Store)
	done  bool
}

func (u *unitOfWork) LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	return u.store.LoadNode(ctx, id)
}

func (u *unitOfWork) LoadNodeByStableID(ctx context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error) {
	return u.store.LoadNodeByStableID(ctx, stableID)
}

func (u *unitOfWork) QueryNodes(ctx context.Context, filter ports.NodeFilter) ([]*aggregates.NodeRecord, error) {
	return u.store.QueryNodes(ctx, filter)
}

func (u *unitOfWork) QueryBodies(ctx context.Context, filter ports.BodyFilter) ([]*entities.Body, error) {
	return u.store.QueryBodies(ctx, filter)
}

// SaveNode stages the node row, its body row and its child list.
func (u *unitOfWork) SaveNode(_ context.Context, node *entities.Node, links aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	prev, _ := node.PreviousVersion()
	row := nodeRow{
		id:              node.ID(),
		stableID:        node.StableID(),
		buildVersion:    node.BuildVersion(),
		bodyID:          node.Body().ID(),
		previousVersion: prev,
		children:        append([]valueobjects.NodeID(nil), links.Children...),
		createdAt:       node.CreatedAt(),
		updatedAt:       node.UpdatedAt(),
	}
	b := node.Body()
	body := bodyRow{
		id:           b.ID(),
		kind:         b.Kind(),
		content:      b.Content(),
		authorID:     b.AuthorID(),
		majorVersion: b.MajorVersion(),
		public:       b.IsPublic(),
		createdAt:    b.CreatedAt(),
	}
	u.ops = append(u.ops, func(s *Store) {
		if old, ok := s.nodes[row.id]; ok && old.bodyID != row.bodyID {
			// the node switched bodies; the replaced one is only kept if public
			if ob, ok := s.bodies[old.bodyID]; ok && !ob.public {
				delete(s.bodies, old.bodyID)
			}
		}
		if _, ok := s.nodes[row.id]; !ok {
			s.nodeOrder = append(s.nodeOrder, row.id)
		}
		s.nodes[row.id] = row
		if _, ok := s.bodies[body.id]; !ok {
			s.bodyOrder = append(s.bodyOrder, body.id)
		}
		s.bodies[body.id] = body
	})
	return nil
}

// DeleteNode stages removal of the node row. Dependent links are derived from
// child lists, so nothing else needs scrubbing here.
func (u *unitOfWork) DeleteNode(_ context.Context, node *entities.Node, _ aggregates.LinkChange) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	id := node.ID()
	u.ops = append(u.ops, func(s *Store) {
		delete(s.nodes, id)
	})
	return nil
}

func (u *unitOfWork) DeleteBody(_ context.Context, body *entities.Body) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	id := body.ID()
	u.ops = append(u.ops, func(s *Store) {
		delete(s.bodies, id)
	})
	return nil
}

// NextBuildVersion allocates immediately. Versions burned by a rolled back
// unit of work are never reused.
func (u *unitOfWork) NextBuildVersion(_ context.Context) (int, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	v := u.store.nextBuild
	u.store.nextBuild++
	return v, nil
}

func (u *unitOfWork) Commit(_ context.Context) error {
	if u.done {
		return errUnitOfWorkClosed
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return pkgerrors.ErrTransactionFailed.Clone().WithCause(err)
	}
	for _, op := range u.ops {
		op(s)
	}
	s.logger.Debug("Memory unit of work committed", zap.Int("operations", len(u.ops)))
	u.ops = nil
	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	u.done = true
	u.ops = nil
	return nil
}
