package handlers

import (
	"time"

	"nodestand-backend/application/services"
	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	domainservices "nodestand-backend/domain/services"
	"nodestand-backend/domain/versioning"
)

// CreateAssertionRequest is the body of POST /assertions.
type CreateAssertionRequest struct {
	AuthorID  string   `json:"authorId" validate:"required"`
	Title     string   `json:"title" validate:"required,max=140"`
	Qualifier string   `json:"qualifier,omitempty" validate:"max=140"`
	Body      string   `json:"body,omitempty" validate:"max=20000"`
	Links     []string `json:"links,omitempty" validate:"dive,uuid"`
}

// CreateInterpretationRequest is the body of POST /interpretations.
type CreateInterpretationRequest struct {
	AuthorID  string  `json:"authorId" validate:"required"`
	Title     string  `json:"title" validate:"required,max=140"`
	Qualifier string  `json:"qualifier,omitempty" validate:"max=140"`
	Body      string  `json:"body,omitempty" validate:"max=20000"`
	SourceID  *string `json:"sourceId,omitempty" validate:"omitempty,uuid"`
}

// CreateSourceRequest is the body of POST /sources.
type CreateSourceRequest struct {
	AuthorID  string `json:"authorId" validate:"required"`
	Title     string `json:"title" validate:"required,max=140"`
	Qualifier string `json:"qualifier,omitempty" validate:"max=140"`
	URL       string `json:"url" validate:"required,url"`
}

type EditAssertionRequest struct {
	Title     string   `json:"title" validate:"required,max=140"`
	Qualifier string   `json:"qualifier,omitempty" validate:"max=140"`
	Body      string   `json:"body,omitempty" validate:"max=20000"`
	Links     []string `json:"links,omitempty" validate:"dive,uuid"`
}

type EditInterpretationRequest struct {
	Title     string  `json:"title" validate:"required,max=140"`
	Qualifier string  `json:"qualifier,omitempty" validate:"max=140"`
	Body      string  `json:"body,omitempty" validate:"max=20000"`
	SourceID  *string `json:"sourceId,omitempty" validate:"omitempty,uuid"`
}

type EditSourceRequest struct {
	Title     string `json:"title" validate:"required,max=140"`
	Qualifier string `json:"qualifier,omitempty" validate:"max=140"`
	URL       string `json:"url" validate:"required,url"`
}

type MakeDraftRequest struct {
	AuthorID string `json:"authorId" validate:"required"`
}

type AdoptChildRequest struct {
	ExistingChildID string `json:"existingChildId" validate:"required,uuid"`
	ReplacementID   string `json:"replacementId" validate:"required,uuid"`
}

// NodeResponse is the wire form of a node and its body.
type NodeResponse struct {
	ID              string       `json:"id"`
	StableID        string       `json:"stableId"`
	Type            string       `json:"type"`
	BuildVersion    int          `json:"buildVersion"`
	Published       bool         `json:"published"`
	PreviousVersion string       `json:"previousVersion,omitempty"`
	Body            BodyResponse `json:"body"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

type BodyResponse struct {
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	Title        string                `json:"title"`
	Qualifier    string                `json:"qualifier,omitempty"`
	Body         string                `json:"body,omitempty"`
	URL          string                `json:"url,omitempty"`
	AuthorID     string                `json:"authorId"`
	MajorVersion entities.MajorVersion `json:"majorVersion"`
	Public       bool                  `json:"public"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// NodeDetailResponse adds the neighbourhood of a node.
type NodeDetailResponse struct {
	NodeResponse
	Children           []valueobjects.NodeID `json:"children"`
	Dependents         []valueobjects.NodeID `json:"dependents"`
	SubsequentVersions []valueobjects.NodeID `json:"subsequentVersions"`
	Citations          []entities.Citation   `json:"citations,omitempty"`
}

type GraphResponse struct {
	RootID       valueobjects.NodeID   `json:"rootId"`
	RootStableID valueobjects.StableID `json:"rootStableId"`
	Nodes        []NodeResponse        `json:"nodes"`
	Edges        []domainservices.Edge `json:"edges"`
}

type DraftResponse struct {
	Draft NodeDetailResponse `json:"draft"`
	Graph GraphResponse      `json:"graph"`
}

type PublishResponse struct {
	RootID       valueobjects.NodeID   `json:"rootId"`
	BuildVersion int                   `json:"buildVersion"`
	Published    []valueobjects.NodeID `json:"published"`
	Graph        GraphResponse         `json:"graph"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

func toBodyResponse(b *entities.Body) BodyResponse {
	return BodyResponse{
		ID:           b.ID().String(),
		Type:         b.Kind().String(),
		Title:        b.Title(),
		Qualifier:    b.Qualifier(),
		Body:         b.Text(),
		URL:          b.URL(),
		AuthorID:     b.AuthorID(),
		MajorVersion: b.MajorVersion(),
		Public:       b.IsPublic(),
		CreatedAt:    b.CreatedAt(),
	}
}

func toNodeResponse(n *entities.Node) NodeResponse {
	resp := NodeResponse{
		ID:           n.ID().String(),
		StableID:     n.StableID().String(),
		Type:         n.Type().String(),
		BuildVersion: n.BuildVersion(),
		Published:    n.IsFinalized(),
		Body:         toBodyResponse(n.Body()),
		CreatedAt:    n.CreatedAt(),
		UpdatedAt:    n.UpdatedAt(),
	}
	if prev, ok := n.PreviousVersion(); ok {
		resp.PreviousVersion = prev.String()
	}
	return resp
}

func nonNil(ids []valueobjects.NodeID) []valueobjects.NodeID {
	if ids == nil {
		return []valueobjects.NodeID{}
	}
	return ids
}

func toDetailResponse(d *services.NodeDetail) NodeDetailResponse {
	return NodeDetailResponse{
		NodeResponse:       toNodeResponse(d.Node),
		Children:           nonNil(d.Children),
		Dependents:         nonNil(d.Dependents),
		SubsequentVersions: nonNil(d.SubsequentVersions),
		Citations:          d.Citations,
	}
}

func toDetailResponses(details []*services.NodeDetail) []NodeDetailResponse {
	out := make([]NodeDetailResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toDetailResponse(d))
	}
	return out
}

func toGraphResponse(g *domainservices.Subgraph) GraphResponse {
	nodes := make([]NodeResponse, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, toNodeResponse(n))
	}
	edges := g.Edges
	if edges == nil {
		edges = []domainservices.Edge{}
	}
	return GraphResponse{RootID: g.RootID, RootStableID: g.RootStableID, Nodes: nodes, Edges: edges}
}

func toPublishResponse(r *versioning.PublishResult) PublishResponse {
	ids := make([]valueobjects.NodeID, 0, len(r.Published))
	for _, n := range r.Published {
		ids = append(ids, n.ID())
	}
	return PublishResponse{
		RootID:       r.Root.ID(),
		BuildVersion: r.BuildVersion,
		Published:    ids,
		Graph:        toGraphResponse(r.Graph),
	}
}
