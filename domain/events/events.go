package events

import (
	"time"

	"nodestand-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

const (
	TypeNodeCreated    = "argument.node_created"
	TypeNodeEdited     = "argument.node_edited"
	TypeDraftCreated   = "argument.draft_created"
	TypeNodesPublished = "argument.nodes_published"
	TypeDraftDiscarded = "argument.draft_discarded"
)

// NodeCreated is raised when a new lineage starts.
type NodeCreated struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	StableID valueobjects.StableID `json:"stable_id"`
	Type     string                `json:"type"`
	AuthorID string                `json:"author_id"`
}

func NewNodeCreated(nodeID valueobjects.NodeID, stableID valueobjects.StableID, kind, authorID string, at time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: BaseEvent{AggregateID: stableID.String(), EventType: TypeNodeCreated, Timestamp: at},
		NodeID:    nodeID,
		StableID:  stableID,
		Type:      kind,
		AuthorID:  authorID,
	}
}

// NodeEdited is raised when a draft's content or links change.
type NodeEdited struct {
	BaseEvent
	NodeID       valueobjects.NodeID   `json:"node_id"`
	LinksAdded   []valueobjects.NodeID `json:"links_added,omitempty"`
	LinksRemoved []valueobjects.NodeID `json:"links_removed,omitempty"`
}

func NewNodeEdited(nodeID valueobjects.NodeID, stableID valueobjects.StableID, added, removed []valueobjects.NodeID, at time.Time) NodeEdited {
	return NodeEdited{
		BaseEvent:    BaseEvent{AggregateID: stableID.String(), EventType: TypeNodeEdited, Timestamp: at},
		NodeID:       nodeID,
		LinksAdded:   added,
		LinksRemoved: removed,
	}
}

// DraftCreated is raised when a published node gets a new draft.
type DraftCreated struct {
	BaseEvent
	DraftID         valueobjects.NodeID `json:"draft_id"`
	PreviousVersion valueobjects.NodeID `json:"previous_version"`
	AuthorID        string              `json:"author_id"`
}

func NewDraftCreated(draftID, previous valueobjects.NodeID, stableID valueobjects.StableID, authorID string, at time.Time) DraftCreated {
	return DraftCreated{
		BaseEvent:       BaseEvent{AggregateID: stableID.String(), EventType: TypeDraftCreated, Timestamp: at},
		DraftID:         draftID,
		PreviousVersion: previous,
		AuthorID:        authorID,
	}
}

// NodesPublished is raised once per publish with the whole frontier.
type NodesPublished struct {
	BaseEvent
	RootID       valueobjects.NodeID   `json:"root_id"`
	BuildVersion int                   `json:"build_version"`
	NodeIDs      []valueobjects.NodeID `json:"node_ids"`
}

func NewNodesPublished(rootID valueobjects.NodeID, stableID valueobjects.StableID, buildVersion int, nodeIDs []valueobjects.NodeID, at time.Time) NodesPublished {
	return NodesPublished{
		BaseEvent:    BaseEvent{AggregateID: stableID.String(), EventType: TypeNodesPublished, Timestamp: at},
		RootID:       rootID,
		BuildVersion: buildVersion,
		NodeIDs:      nodeIDs,
	}
}

// DraftDiscarded is raised when a draft and its body are deleted.
type DraftDiscarded struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

func NewDraftDiscarded(nodeID valueobjects.NodeID, stableID valueobjects.StableID, at time.Time) DraftDiscarded {
	return DraftDiscarded{
		BaseEvent: BaseEvent{AggregateID: stableID.String(), EventType: TypeDraftDiscarded, Timestamp: at},
		NodeID:    nodeID,
	}
}
