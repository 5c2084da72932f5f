package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeIDFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", "3f2b8e0c-6a4d-4c3b-9a55-0d3c1f0e9b21", false},
		{"empty", "", true},
		{"not a uuid", "node-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewNodeIDFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestNodeID_JSON(t *testing.T) {
	id := NewNodeID()
	data, err := json.Marshal(struct {
		ID NodeID `json:"id"`
	}{id})
	require.NoError(t, err)

	var out struct {
		ID NodeID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, id.Equals(out.ID))

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &out))
}

func TestSortNodeIDs(t *testing.T) {
	a := MustNodeID("00000000-0000-4000-8000-000000000001")
	b := MustNodeID("00000000-0000-4000-8000-000000000002")
	ids := []NodeID{b, a}
	SortNodeIDs(ids)
	assert.Equal(t, []NodeID{a, b}, ids)
}
