package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/application/ports"
	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

func newNode(t *testing.T, kind entities.Kind, title, author string) *entities.Node {
	t.Helper()
	content := entities.Content{Title: title, Text: "text"}
	if kind == entities.KindSource {
		content = entities.Content{Title: title, URL: "https://example.org/" + title}
	}
	body, err := entities.NewBody(kind, content, author)
	require.NoError(t, err)
	n, err := entities.NewNode(body)
	require.NoError(t, err)
	return n
}

func save(t *testing.T, s *Store, nodes map[*entities.Node][]valueobjects.NodeID) {
	t.Helper()
	ctx := context.Background()
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	for n, children := range nodes {
		require.NoError(t, uow.SaveNode(ctx, n, aggregates.LinkChange{Children: children}))
	}
	require.NoError(t, uow.Commit(ctx))
}

func TestStore_SaveAndLoadDerivesNeighbours(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	src := newNode(t, entities.KindSource, "src", "a1")
	interp := newNode(t, entities.KindInterpretation, "interp", "a1")
	save(t, s, map[*entities.Node][]valueobjects.NodeID{
		src:    nil,
		interp: {src.ID()},
	})

	rec, err := s.LoadNode(ctx, src.ID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{interp.ID()}, rec.Dependents)
	assert.Empty(t, rec.Children)
	assert.Equal(t, "src", rec.Node.Body().Title())

	rec, err = s.LoadNode(ctx, interp.ID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{src.ID()}, rec.Children)

	_, err = s.LoadNode(ctx, valueobjects.NewNodeID())
	assert.True(t, errors.Is(err, pkgerrors.ErrNodeNotFound))
}

func TestStore_RecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	n := newNode(t, entities.KindAssertion, "before", "a1")
	save(t, s, map[*entities.Node][]valueobjects.NodeID{n: nil})

	require.NoError(t, n.UpdateContent(entities.Content{Title: "after", Text: "x"}))

	rec, err := s.LoadNode(ctx, n.ID())
	require.NoError(t, err)
	assert.Equal(t, "before", rec.Node.Body().Title())
}

func TestStore_FailNextCommitAppliesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	s.FailNextCommit(errors.New("disk full"))

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	n := newNode(t, entities.KindAssertion, "lost", "a1")
	require.NoError(t, uow.SaveNode(ctx, n, aggregates.LinkChange{}))

	err = uow.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrTransactionFailed))
	assert.Equal(t, 0, s.NodeCount())
	assert.Equal(t, 0, s.BodyCount())

	// the failure is consumed
	save(t, s, map[*entities.Node][]valueobjects.NodeID{n: nil})
	assert.Equal(t, 1, s.NodeCount())
}

func TestStore_RollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.SaveNode(ctx, newNode(t, entities.KindAssertion, "x", "a1"), aggregates.LinkChange{}))
	require.NoError(t, uow.Rollback(ctx))
	assert.Error(t, uow.Commit(ctx))
	assert.Equal(t, 0, s.NodeCount())
}

func TestStore_DeleteNodeAndBody(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	parent := newNode(t, entities.KindAssertion, "p", "a1")
	child := newNode(t, entities.KindAssertion, "c", "a1")
	save(t, s, map[*entities.Node][]valueobjects.NodeID{parent: {child.ID()}, child: nil})

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.SaveNode(ctx, parent, aggregates.LinkChange{Removed: []valueobjects.NodeID{child.ID()}}))
	require.NoError(t, uow.DeleteNode(ctx, child, aggregates.LinkChange{}))
	require.NoError(t, uow.DeleteBody(ctx, child.Body()))
	require.NoError(t, uow.Commit(ctx))

	assert.Equal(t, 1, s.NodeCount())
	assert.Equal(t, 1, s.BodyCount())
	rec, err := s.LoadNode(ctx, parent.ID())
	require.NoError(t, err)
	assert.Empty(t, rec.Children)
}

func TestStore_BuildVersionsIncrease(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	first, err := uow.NextBuildVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(ctx))

	uow, err = s.Begin(ctx)
	require.NoError(t, err)
	second, err := uow.NextBuildVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestStore_LoadNodeByStableIDPrefersPublished(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	published := newNode(t, entities.KindAssertion, "v1", "a1")
	require.NoError(t, published.Finalize(3))
	draft, err := published.CreateNewDraft("a1")
	require.NoError(t, err)
	save(t, s, map[*entities.Node][]valueobjects.NodeID{published: nil, draft: nil})

	rec, err := s.LoadNodeByStableID(ctx, published.StableID())
	require.NoError(t, err)
	assert.Equal(t, published.ID(), rec.Node.ID())
	assert.Equal(t, []valueobjects.NodeID{draft.ID()}, rec.SubsequentVersions)

	lone := newNode(t, entities.KindAssertion, "draft only", "a1")
	save(t, s, map[*entities.Node][]valueobjects.NodeID{lone: nil})
	rec, err = s.LoadNodeByStableID(ctx, lone.StableID())
	require.NoError(t, err)
	assert.Equal(t, lone.ID(), rec.Node.ID())

	_, err = s.LoadNodeByStableID(ctx, valueobjects.NewStableID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_QueryNodes(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	root := newNode(t, entities.KindAssertion, "root", "a1")
	leaf := newNode(t, entities.KindAssertion, "leaf", "a2")
	draft := newNode(t, entities.KindAssertion, "draft", "a1")
	require.NoError(t, root.Finalize(1))
	require.NoError(t, leaf.Finalize(1))
	save(t, s, map[*entities.Node][]valueobjects.NodeID{root: {leaf.ID()}, leaf: nil, draft: nil})

	roots, err := s.QueryNodes(ctx, ports.NodeFilter{RootsOnly: true, Status: ports.StatusPublished})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID(), roots[0].Node.ID())

	drafts, err := s.QueryNodes(ctx, ports.NodeFilter{Status: ports.StatusDraft, AuthorIDs: []string{"a1"}})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID(), drafts[0].Node.ID())

	byAuthor, err := s.QueryNodes(ctx, ports.NodeFilter{AuthorIDs: []string{"a2"}})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, leaf.ID(), byAuthor[0].Node.ID())

	major, err := s.QueryNodes(ctx, ports.NodeFilter{MajorVersion: leaf.Body().MajorVersion().StableID})
	require.NoError(t, err)
	require.Len(t, major, 1)

	limited, err := s.QueryNodes(ctx, ports.NodeFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_QueryBodiesVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewStore(zap.NewNop())
	public := newNode(t, entities.KindAssertion, "Climate Claim", "a1")
	require.NoError(t, public.Finalize(0))
	private := newNode(t, entities.KindAssertion, "climate draft", "a2")
	other := newNode(t, entities.KindSource, "Climate Report", "a1")
	require.NoError(t, other.Finalize(0))
	save(t, s, map[*entities.Node][]valueobjects.NodeID{public: nil, private: nil, other: nil})

	anon, err := s.QueryBodies(ctx, ports.BodyFilter{TitleContains: "CLIMATE"})
	require.NoError(t, err)
	assert.Len(t, anon, 2)

	owner, err := s.QueryBodies(ctx, ports.BodyFilter{TitleContains: "climate", ViewerAuthorIDs: []string{"a2"}})
	require.NoError(t, err)
	assert.Len(t, owner, 3)

	sources, err := s.QueryBodies(ctx, ports.BodyFilter{TitleContains: "climate", Kinds: []entities.Kind{entities.KindSource}})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Climate Report", sources[0].Title())
}
