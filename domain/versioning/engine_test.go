package versioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/domain/services"
	pkgerrors "nodestand-backend/pkg/errors"
)

type counter struct{ next int }

func (c *counter) NextBuildVersion(context.Context) (int, error) {
	v := c.next
	c.next++
	return v, nil
}

type failingSequencer struct{}

func (failingSequencer) NextBuildVersion(context.Context) (int, error) {
	return 0, errors.New("sequence unavailable")
}

type emptyLoader struct{}

func (emptyLoader) LoadNode(_ context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error) {
	return nil, pkgerrors.NodeNotFound(id.String())
}

type fixture struct {
	ctx    context.Context
	engine *Engine
	graph  *aggregates.ArgumentGraph
	seq    *counter
}

func newFixture() *fixture {
	return &fixture{
		ctx:    context.Background(),
		engine: NewEngine(services.NewTraversalService(), zap.NewNop()),
		graph:  aggregates.NewArgumentGraph(emptyLoader{}),
		seq:    &counter{},
	}
}

func (f *fixture) create(t *testing.T, kind entities.Kind, title string, children ...valueobjects.NodeID) *entities.Node {
	t.Helper()
	content := entities.Content{Title: title, Text: "text"}
	if kind == entities.KindSource {
		content.URL = "http://example.com"
	}
	n, err := f.engine.Create(f.ctx, f.graph, kind, content, "author-1", children)
	require.NoError(t, err)
	return n
}

// triple builds A -> I -> S, all drafts.
func (f *fixture) triple(t *testing.T) (a, i, s *entities.Node) {
	s = f.create(t, entities.KindSource, "S")
	i = f.create(t, entities.KindInterpretation, "I", s.ID())
	a = f.create(t, entities.KindAssertion, "A", i.ID())
	return a, i, s
}

func TestEngine_CreateRejectsAssertionToSource(t *testing.T) {
	f := newFixture()
	s := f.create(t, entities.KindSource, "S")
	_, err := f.engine.Create(f.ctx, f.graph, entities.KindAssertion, entities.Content{Title: "A"}, "author-1", []valueobjects.NodeID{s.ID()})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidLinkType))
}

func TestEngine_PublishWholeFrontier(t *testing.T) {
	f := newFixture()
	a, i, s := f.triple(t)

	result, err := f.engine.Publish(f.ctx, f.graph, a.ID(), f.seq)
	require.NoError(t, err)

	assert.Len(t, result.Published, 3)
	for _, n := range []*entities.Node{a, i, s} {
		assert.Equal(t, result.BuildVersion, n.BuildVersion())
		assert.True(t, n.Body().IsPublic())
		assert.True(t, f.graph.IsDirty(n.ID()))
	}
	assert.ElementsMatch(t, []valueobjects.NodeID{a.ID(), i.ID(), s.ID()}, result.Graph.NodeIDs())
	assert.Len(t, result.Graph.Edges, 2)

	_, err = f.engine.Publish(f.ctx, f.graph, a.ID(), f.seq)
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyPublished))
	require.NoError(t, f.graph.Verify())
}

func TestEngine_PublishFromChildPublishesParents(t *testing.T) {
	f := newFixture()
	a, i, s := f.triple(t)

	_, err := f.engine.Publish(f.ctx, f.graph, s.ID(), f.seq)
	require.NoError(t, err)
	assert.True(t, a.IsFinalized(), "a published child must not be referenced by a draft parent")
	assert.True(t, i.IsFinalized())
}

func TestEngine_PublishFailureLeavesDrafts(t *testing.T) {
	f := newFixture()
	a, i, s := f.triple(t)

	_, err := f.engine.Publish(f.ctx, f.graph, a.ID(), failingSequencer{})
	require.Error(t, err)
	for _, n := range []*entities.Node{a, i, s} {
		assert.False(t, n.IsFinalized())
	}
}

func TestEngine_DraftEditLifecycle(t *testing.T) {
	f := newFixture()
	a, i, _ := f.triple(t)
	_, err := f.engine.Publish(f.ctx, f.graph, a.ID(), f.seq)
	require.NoError(t, err)

	holder, err := entities.NewEditHolder(entities.KindAssertion, entities.Content{Title: "A2", Qualifier: "QA"})
	require.NoError(t, err)

	_, err = f.engine.Edit(f.ctx, f.graph, "author-1", a.ID(), holder, []valueobjects.NodeID{i.ID()})
	assert.True(t, errors.Is(err, pkgerrors.ErrMustDraftFirst))
	assert.Equal(t, "A", a.Body().Title())

	draft, err := f.engine.MakeDraft(f.ctx, f.graph, "author-1", a.ID())
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{i.ID()}, f.graph.ChildIDs(draft.ID()), "draft inherits links")
	assert.ElementsMatch(t, []valueobjects.NodeID{a.ID(), draft.ID()}, f.graph.DependentIDs(i.ID()))
	assert.Equal(t, []valueobjects.NodeID{draft.ID()}, f.graph.SubsequentVersions(a.ID()))

	nodesBefore := len(f.graph.Nodes())
	edited, err := f.engine.Edit(f.ctx, f.graph, "author-1", draft.ID(), holder, nil)
	require.NoError(t, err)
	assert.Same(t, draft, edited)
	assert.Equal(t, nodesBefore, len(f.graph.Nodes()), "editing a draft happens in place")
	assert.Equal(t, "A2", draft.Body().Title())
	assert.Empty(t, f.graph.ChildIDs(draft.ID()))

	_, err = f.engine.MakeDraft(f.ctx, f.graph, "author-1", draft.ID())
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyADraft))

	result, err := f.engine.Publish(f.ctx, f.graph, draft.ID(), f.seq)
	require.NoError(t, err)
	assert.Greater(t, draft.BuildVersion(), a.BuildVersion())
	assert.Equal(t, a.StableID(), draft.StableID())
	assert.Len(t, result.Published, 1)
}

func TestEngine_MakeDraftTwiceCreatesIndependentDrafts(t *testing.T) {
	f := newFixture()
	s := f.create(t, entities.KindSource, "S")
	_, err := f.engine.Publish(f.ctx, f.graph, s.ID(), f.seq)
	require.NoError(t, err)

	first, err := f.engine.MakeDraft(f.ctx, f.graph, "author-1", s.ID())
	require.NoError(t, err)
	second, err := f.engine.MakeDraft(f.ctx, f.graph, "author-1", s.ID())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestEngine_Discard(t *testing.T) {
	f := newFixture()
	c := f.create(t, entities.KindInterpretation, "C")
	_, err := f.engine.Publish(f.ctx, f.graph, c.ID(), f.seq)
	require.NoError(t, err)

	draft := f.create(t, entities.KindAssertion, "D", c.ID())
	require.NoError(t, f.engine.Discard(f.ctx, f.graph, draft.ID()))

	assert.Empty(t, f.graph.DependentIDs(c.ID()))
	assert.False(t, f.graph.Has(draft.ID()))
	assert.Equal(t, 0, c.BuildVersion())

	err = f.engine.Discard(f.ctx, f.graph, c.ID())
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyPublished))
}

func TestEngine_AdoptChild(t *testing.T) {
	f := newFixture()
	a, i, _ := f.triple(t)
	_, err := f.engine.Publish(f.ctx, f.graph, a.ID(), f.seq)
	require.NoError(t, err)

	parentDraft, err := f.engine.MakeDraft(f.ctx, f.graph, "author-1", a.ID())
	require.NoError(t, err)
	childDraft, err := f.engine.MakeDraft(f.ctx, f.graph, "author-1", i.ID())
	require.NoError(t, err)

	err = f.engine.AdoptChild(f.ctx, f.graph, a.ID(), i.ID(), childDraft.ID())
	assert.True(t, errors.Is(err, pkgerrors.ErrMustDraftFirst))

	require.NoError(t, f.engine.AdoptChild(f.ctx, f.graph, parentDraft.ID(), i.ID(), childDraft.ID()))

	result, err := f.engine.Publish(f.ctx, f.graph, parentDraft.ID(), f.seq)
	require.NoError(t, err)
	assert.Len(t, result.Published, 2)
	assert.True(t, childDraft.IsFinalized())
	require.NoError(t, f.graph.Verify())
}
