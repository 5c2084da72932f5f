package entities

import (
	"time"

	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

// DraftBuildVersion marks a node that has not been published.
const DraftBuildVersion = -1

// Node is one version of an argument node. Child and dependent links are not
// stored here; they live in the link index of the owning ArgumentGraph.
type Node struct {
	id              valueobjects.NodeID
	stableID        valueobjects.StableID
	kind            Kind
	buildVersion    int
	body            *Body
	previousVersion valueobjects.NodeID
	createdAt       time.Time
	updatedAt       time.Time
}

// NewNode starts a new lineage with a draft node owning body.
func NewNode(body *Body) (*Node, error) {
	if body == nil {
		return nil, pkgerrors.InvalidInput("body", "body is required")
	}
	now := time.Now()
	return &Node{
		id:           valueobjects.NewNodeID(),
		stableID:     valueobjects.NewStableID(),
		kind:         body.Kind(),
		buildVersion: DraftBuildVersion,
		body:         body,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// NewEditHolder builds a transient node that carries user edits destined for
// another node via CopyContentTo. It is never saved.
func NewEditHolder(kind Kind, content Content) (*Node, error) {
	content, err := normalizeContent(kind, content)
	if err != nil {
		return nil, err
	}
	return &Node{
		kind:         kind,
		buildVersion: DraftBuildVersion,
		body:         &Body{kind: kind, content: content},
	}, nil
}

// ReconstructNode rebuilds a node from stored data.
func ReconstructNode(
	id valueobjects.NodeID,
	stableID valueobjects.StableID,
	buildVersion int,
	body *Body,
	previousVersion valueobjects.NodeID,
	createdAt, updatedAt time.Time,
) (*Node, error) {
	if id.IsZero() || stableID.IsZero() {
		return nil, pkgerrors.InvalidInput("id", "node and stable ids are required")
	}
	if body == nil {
		return nil, pkgerrors.InvalidInput("body", "body is required")
	}
	if buildVersion < DraftBuildVersion {
		return nil, pkgerrors.InvalidInput("buildVersion", "build version out of range")
	}
	return &Node{
		id:              id,
		stableID:        stableID,
		kind:            body.Kind(),
		buildVersion:    buildVersion,
		body:            body,
		previousVersion: previousVersion,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}, nil
}

func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

func (n *Node) StableID() valueobjects.StableID {
	return n.stableID
}

// Type returns the node variant.
func (n *Node) Type() Kind {
	return n.kind
}

func (n *Node) BuildVersion() int {
	return n.buildVersion
}

func (n *Node) Body() *Body {
	return n.body
}

// PreviousVersion returns the node this one supersedes, if any.
func (n *Node) PreviousVersion() (valueobjects.NodeID, bool) {
	return n.previousVersion, !n.previousVersion.IsZero()
}

func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// IsFinalized is true once a build version has been assigned.
func (n *Node) IsFinalized() bool {
	return n.buildVersion >= 0
}

// ShouldEditInPlace is true while the body is still private.
func (n *Node) ShouldEditInPlace() bool {
	return !n.body.IsPublic()
}

// InstallBody replaces the current body. Finalized nodes are frozen.
func (n *Node) InstallBody(fresh *Body) error {
	if n.IsFinalized() {
		return pkgerrors.WithNode(pkgerrors.ErrCannotInstallBody, n.id.String())
	}
	if fresh == nil || fresh.Kind() != n.kind {
		return pkgerrors.InvalidInput("body", "body kind does not match node")
	}
	n.body = fresh
	n.touch()
	return nil
}

// CreateDraftBody copies the current body for authorID. With install set the
// copy replaces the current body, which is only legal before publishing.
func (n *Node) CreateDraftBody(authorID string, install bool) (*Body, error) {
	fresh := n.body.draftCopy(authorID)
	if install {
		if err := n.InstallBody(fresh); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

// CreateNewDraft starts the next version of this lineage.
func (n *Node) CreateNewDraft(authorID string) (*Node, error) {
	if !n.body.IsPublic() {
		return nil, pkgerrors.WithNode(pkgerrors.ErrAlreadyADraft, n.id.String())
	}
	now := time.Now()
	return &Node{
		id:              valueobjects.NewNodeID(),
		stableID:        n.stableID,
		kind:            n.kind,
		buildVersion:    DraftBuildVersion,
		body:            n.body.draftCopy(authorID),
		previousVersion: n.id,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// UpdateContent edits the body in place. Public bodies are immutable.
func (n *Node) UpdateContent(c Content) error {
	if err := n.body.setContent(c); err != nil {
		return err
	}
	n.touch()
	return nil
}

// CopyContentTo transfers the user-editable fields to target. Identity,
// version and lineage stay with target.
func (n *Node) CopyContentTo(target *Node) error {
	if target.kind != n.kind {
		return pkgerrors.InvalidInput("type", "cannot copy content between node types")
	}
	return target.UpdateContent(n.body.Content())
}

// Finalize assigns the build version and makes the body public.
func (n *Node) Finalize(buildVersion int) error {
	if n.IsFinalized() {
		return pkgerrors.WithNode(pkgerrors.ErrAlreadyPublished, n.id.String())
	}
	if buildVersion < 0 {
		return pkgerrors.InvalidInput("buildVersion", "build version must not be negative")
	}
	n.buildVersion = buildVersion
	n.body.public = true
	n.touch()
	return nil
}

func (n *Node) touch() {
	n.updatedAt = time.Now()
}
