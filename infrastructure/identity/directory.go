// Package identity maps user accounts to the authors they may write as.
package identity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"nodestand-backend/domain/core/entities"
	pkgerrors "nodestand-backend/pkg/errors"
)

type directoryFile struct {
	Users []entities.User `yaml:"users"`
}

// Directory is an in-memory user/author table. It implements ports.AuthorResolver.
type Directory struct {
	mu      sync.RWMutex
	users   map[string]*entities.User
	authors map[string]entities.Author
	logger  *zap.Logger
}

// NewDirectory builds a directory from a fixed user list.
func NewDirectory(users []entities.User, logger *zap.Logger) (*Directory, error) {
	d := &Directory{logger: logger}
	if err := d.Replace(users); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDirectory reads a YAML user file.
func LoadDirectory(path string, logger *zap.Logger) (*Directory, error) {
	users, err := readUsers(path)
	if err != nil {
		return nil, err
	}
	return NewDirectory(users, logger)
}

func readUsers(path string) ([]entities.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read author directory %s: %w", path, err)
	}
	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse author directory %s: %w", path, err)
	}
	return file.Users, nil
}

// Replace swaps the whole table. An author may belong to only one user.
func (d *Directory) Replace(users []entities.User) error {
	byUser := make(map[string]*entities.User, len(users))
	byAuthor := make(map[string]entities.Author)
	owner := make(map[string]string)

	for i := range users {
		u := users[i]
		if u.ID == "" {
			return pkgerrors.InvalidInput("id", "user id is required")
		}
		if _, dup := byUser[u.ID]; dup {
			return pkgerrors.InvalidInput("id", fmt.Sprintf("duplicate user %q", u.ID))
		}
		for _, a := range u.Authors {
			if a.StableID == "" {
				return pkgerrors.InvalidInput("stableId", fmt.Sprintf("author of user %q has no stable id", u.ID))
			}
			if prev, taken := owner[a.StableID]; taken {
				return pkgerrors.InvalidInput("stableId",
					fmt.Sprintf("author %q claimed by both %q and %q", a.StableID, prev, u.ID))
			}
			owner[a.StableID] = u.ID
			byAuthor[a.StableID] = a
		}
		byUser[u.ID] = &u
	}

	d.mu.Lock()
	d.users = byUser
	d.authors = byAuthor
	d.mu.Unlock()
	return nil
}

// ResolveAuthor implements ports.AuthorResolver.
func (d *Directory) ResolveAuthor(_ context.Context, userID, authorStableID string) (*entities.Author, error) {
	if userID == "" {
		return nil, pkgerrors.ErrUnauthenticated.Clone()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	author, ok := d.authors[authorStableID]
	if !ok {
		return nil, pkgerrors.ResourceNotFound("author", authorStableID)
	}
	user, ok := d.users[userID]
	if !ok || !user.Owns(authorStableID) {
		return nil, pkgerrors.NotAuthorized(userID, authorStableID)
	}
	return &author, nil
}

// AuthorsOf implements ports.AuthorResolver.
func (d *Directory) AuthorsOf(_ context.Context, userID string) ([]entities.Author, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return nil, pkgerrors.ResourceNotFound("user", userID)
	}
	out := append([]entities.Author(nil), user.Authors...)
	sort.Slice(out, func(i, j int) bool { return out[i].StableID < out[j].StableID })
	return out, nil
}

// Users returns a snapshot of every user, sorted by id.
func (d *Directory) Users() []entities.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]entities.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
