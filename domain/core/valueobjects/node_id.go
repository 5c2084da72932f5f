package valueobjects

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// NodeID identifies one version of an argument node.
// Every draft and every published version carries its own NodeID; the
// lineage they share is identified by a StableID.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	if !isValidUUID(id) {
		return NodeID{}, errors.New("node ID must be a valid UUID")
	}
	return NodeID{value: id}, nil
}

// MustNodeID is NewNodeIDFromString for ids that were produced by this package.
func MustNodeID(id string) NodeID {
	n, err := NewNodeIDFromString(id)
	if err != nil {
		panic(err)
	}
	return n
}

func (id NodeID) String() string {
	return id.value
}

func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	parsed, err := NewNodeIDFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SortNodeIDs orders ids lexically so that set iteration is deterministic.
func SortNodeIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].value < ids[j].value })
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
