package ports

import (
	"context"

	"nodestand-backend/domain/core/aggregates"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/domain/events"
)

// NodeStatus filters nodes by lifecycle state.
type NodeStatus string

const (
	StatusAny       NodeStatus = ""
	StatusDraft     NodeStatus = "draft"
	StatusPublished NodeStatus = "published"
)

// NodeFilter selects nodes for the pattern queries. Empty fields do not filter.
type NodeFilter struct {
	// StableIDPrefix matches lineages whose stable id starts with the prefix.
	StableIDPrefix string
	// AuthorIDs matches nodes whose body was written by one of these authors.
	AuthorIDs []string
	Status    NodeStatus
	// RootsOnly keeps nodes nothing links to.
	RootsOnly    bool
	MajorVersion valueobjects.StableID
	Limit        int
}

// BodyFilter selects bodies for title search.
type BodyFilter struct {
	TitleContains string
	Kinds         []entities.Kind
	// ViewerAuthorIDs makes the viewer's own private bodies visible.
	ViewerAuthorIDs []string
	Limit           int
}

// GraphReader is the read side of the graph store.
type GraphReader interface {
	// LoadNode returns one node with its neighbour ids, or ErrNodeNotFound.
	LoadNode(ctx context.Context, id valueobjects.NodeID) (*aggregates.NodeRecord, error)

	// LoadNodeByStableID returns the newest published version of a lineage,
	// falling back to its newest draft.
	LoadNodeByStableID(ctx context.Context, stableID valueobjects.StableID) (*aggregates.NodeRecord, error)

	// QueryNodes returns matching nodes in store order.
	QueryNodes(ctx context.Context, filter NodeFilter) ([]*aggregates.NodeRecord, error)

	// QueryBodies performs a case-insensitive title substring search.
	QueryBodies(ctx context.Context, filter BodyFilter) ([]*entities.Body, error)
}

// UnitOfWork stages the writes of one operation and applies them atomically.
type UnitOfWork interface {
	GraphReader
	aggregates.Writer

	// NextBuildVersion allocates a build version for a publish.
	NextBuildVersion(ctx context.Context) (int, error)

	// Commit applies every staged write or none of them.
	Commit(ctx context.Context) error

	// Rollback discards staged writes. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// GraphStore is the durable argument graph.
type GraphStore interface {
	GraphReader

	// Begin starts a unit of work.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// AuthorResolver answers whether a user may act as an author.
type AuthorResolver interface {
	// ResolveAuthor fails with ErrNotAuthorized when the user does not own the
	// author and ErrResourceNotFound when either is unknown.
	ResolveAuthor(ctx context.Context, userID, authorStableID string) (*entities.Author, error)

	// AuthorsOf lists the authors a user owns.
	AuthorsOf(ctx context.Context, userID string) ([]entities.Author, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
