package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// BodyID identifies a content body. Bodies are never shared between nodes.
type BodyID struct {
	value string
}

func NewBodyID() BodyID {
	return BodyID{value: uuid.New().String()}
}

func NewBodyIDFromString(id string) (BodyID, error) {
	if id == "" {
		return BodyID{}, errors.New("body ID cannot be empty")
	}
	if !isValidUUID(id) {
		return BodyID{}, errors.New("body ID must be a valid UUID")
	}
	return BodyID{value: id}, nil
}

func (id BodyID) String() string {
	return id.value
}

func (id BodyID) IsZero() bool {
	return id.value == ""
}

func (id BodyID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}
