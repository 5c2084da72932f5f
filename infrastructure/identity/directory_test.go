package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodestand-backend/domain/core/entities"
	pkgerrors "nodestand-backend/pkg/errors"
)

const sampleDirectory = `
users:
  - id: alice
    authors:
      - stableId: alice-main
        displayName: Alice
      - stableId: alice-alt
        displayName: A. Nonymous
  - id: bob
    authors:
      - stableId: bob-main
        displayName: Bob
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDirectory_ResolveAuthor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.yaml")
	writeFile(t, path, sampleDirectory)
	d, err := LoadDirectory(path, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	author, err := d.ResolveAuthor(ctx, "alice", "alice-alt")
	require.NoError(t, err)
	assert.Equal(t, "A. Nonymous", author.DisplayName)

	_, err = d.ResolveAuthor(ctx, "bob", "alice-main")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotAuthorized))

	_, err = d.ResolveAuthor(ctx, "mallory", "alice-main")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotAuthorized))

	_, err = d.ResolveAuthor(ctx, "alice", "ghost")
	assert.True(t, errors.Is(err, pkgerrors.ErrResourceNotFound))

	_, err = d.ResolveAuthor(ctx, "", "alice-main")
	assert.True(t, errors.Is(err, pkgerrors.ErrUnauthenticated))

	authors, err := d.AuthorsOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "alice-alt", authors[0].StableID)
}

func TestDirectory_RejectsSharedAuthors(t *testing.T) {
	_, err := NewDirectory([]entities.User{
		{ID: "a", Authors: []entities.Author{{StableID: "shared"}}},
		{ID: "b", Authors: []entities.Author{{StableID: "shared"}}},
	}, zap.NewNop())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))

	_, err = NewDirectory([]entities.User{{ID: ""}}, zap.NewNop())
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.yaml")
	writeFile(t, path, sampleDirectory)
	d, err := LoadDirectory(path, zap.NewNop())
	require.NoError(t, err)

	w, err := Watch(d, path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, sampleDirectory+`
  - id: carol
    authors:
      - stableId: carol-main
`)

	select {
	case <-w.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("directory was not reloaded")
	}

	_, err = d.ResolveAuthor(context.Background(), "carol", "carol-main")
	assert.NoError(t, err)
	assert.Len(t, d.Users(), 3)
}

func TestWatcher_KeepsTableOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.yaml")
	writeFile(t, path, sampleDirectory)
	d, err := LoadDirectory(path, zap.NewNop())
	require.NoError(t, err)

	w, err := Watch(d, path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, "users: [: broken")
	time.Sleep(3 * reloadDebounce)

	_, err = d.ResolveAuthor(context.Background(), "alice", "alice-main")
	assert.NoError(t, err)
}
