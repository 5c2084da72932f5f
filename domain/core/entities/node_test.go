package entities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "nodestand-backend/pkg/errors"
)

func newAssertion(t *testing.T) *Node {
	t.Helper()
	body, err := NewBody(KindAssertion, Content{Title: "Tables are useful", Text: "Hello"}, "author-1")
	require.NoError(t, err)
	node, err := NewNode(body)
	require.NoError(t, err)
	return node
}

func TestNewNode_StartsAsDraft(t *testing.T) {
	node := newAssertion(t)

	assert.Equal(t, DraftBuildVersion, node.BuildVersion())
	assert.False(t, node.IsFinalized())
	assert.True(t, node.ShouldEditInPlace())
	assert.False(t, node.StableID().IsZero())
	_, hasPrevious := node.PreviousVersion()
	assert.False(t, hasPrevious)
	assert.Equal(t, KindAssertion, node.Type())
}

func TestNode_InstallBodyRejectedAfterFinalize(t *testing.T) {
	node := newAssertion(t)
	fresh, err := node.CreateDraftBody("author-1", true)
	require.NoError(t, err)
	assert.Same(t, fresh, node.Body())

	require.NoError(t, node.Finalize(3))
	assert.True(t, node.Body().IsPublic())

	other, err := NewBody(KindAssertion, Content{Title: "x"}, "author-1")
	require.NoError(t, err)
	err = node.InstallBody(other)
	assert.True(t, errors.Is(err, pkgerrors.ErrCannotInstallBody))

	_, err = node.CreateDraftBody("author-1", true)
	assert.True(t, errors.Is(err, pkgerrors.ErrCannotInstallBody))
}

func TestNode_CreateNewDraft(t *testing.T) {
	node := newAssertion(t)

	_, err := node.CreateNewDraft("author-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyADraft), "private body must not be re-drafted")

	require.NoError(t, node.Finalize(0))

	first, err := node.CreateNewDraft("author-2")
	require.NoError(t, err)
	second, err := node.CreateNewDraft("author-2")
	require.NoError(t, err)

	for _, draft := range []*Node{first, second} {
		prev, ok := draft.PreviousVersion()
		require.True(t, ok)
		assert.Equal(t, node.ID(), prev)
		assert.Equal(t, node.StableID(), draft.StableID())
		assert.Equal(t, DraftBuildVersion, draft.BuildVersion())
		assert.False(t, draft.Body().IsPublic())
		assert.NotEqual(t, node.Body().ID(), draft.Body().ID())
		assert.Equal(t, node.Body().MajorVersion(), draft.Body().MajorVersion())
		assert.Equal(t, "author-2", draft.Body().AuthorID())
	}
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestNode_UpdateContent(t *testing.T) {
	node := newAssertion(t)
	require.NoError(t, node.UpdateContent(Content{Title: " New title ", Qualifier: "q", Text: "t", URL: "ignored"}))
	assert.Equal(t, "New title", node.Body().Title())
	assert.Empty(t, node.Body().URL())

	require.NoError(t, node.Finalize(1))
	err := node.UpdateContent(Content{Title: "again"})
	assert.True(t, errors.Is(err, pkgerrors.ErrMustDraftFirst))
	assert.Equal(t, "New title", node.Body().Title())
}

func TestNode_CopyContentTo(t *testing.T) {
	target := newAssertion(t)
	id, stable, version := target.ID(), target.StableID(), target.BuildVersion()

	holder, err := NewEditHolder(KindAssertion, Content{Title: "Edited", Qualifier: "QA", Text: "body"})
	require.NoError(t, err)
	require.NoError(t, holder.CopyContentTo(target))

	assert.Equal(t, "Edited", target.Body().Title())
	assert.Equal(t, "QA", target.Body().Qualifier())
	assert.Equal(t, id, target.ID())
	assert.Equal(t, stable, target.StableID())
	assert.Equal(t, version, target.BuildVersion())

	source, err := NewEditHolder(KindSource, Content{Title: "S", URL: "http://example.com"})
	require.NoError(t, err)
	assert.Error(t, source.CopyContentTo(target))
}

func TestNode_FinalizeTwice(t *testing.T) {
	node := newAssertion(t)
	require.NoError(t, node.Finalize(0))
	assert.True(t, errors.Is(node.Finalize(1), pkgerrors.ErrAlreadyPublished))
	assert.Equal(t, 0, node.BuildVersion())
}
