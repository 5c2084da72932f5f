package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// StableID is shared by every version in a lineage. Major versions carry one
// too, and inline citations reference it.
type StableID struct {
	value string
}

func NewStableID() StableID {
	return StableID{value: uuid.New().String()}
}

func NewStableIDFromString(id string) (StableID, error) {
	if id == "" {
		return StableID{}, errors.New("stable ID cannot be empty")
	}
	if !isValidUUID(id) {
		return StableID{}, errors.New("stable ID must be a valid UUID")
	}
	return StableID{value: id}, nil
}

func (id StableID) String() string {
	return id.value
}

func (id StableID) Equals(other StableID) bool {
	return id.value == other.value
}

func (id StableID) IsZero() bool {
	return id.value == ""
}

func (id StableID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

func (id *StableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("StableID must be a string")
	}
	parsed, err := NewStableIDFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
