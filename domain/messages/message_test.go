package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		in   any
		ok   bool
		typ  string
	}{
		{"bytes", []byte(`{"type":"node_clicked","node_id":"n1"}`), true, TypeNodeClicked},
		{"string", `{"type":"sync"}`, true, TypeSync},
		{"raw", json.RawMessage(`{"type":"edge_deleted"}`), true, TypeEdgeDeleted},
		{"map", map[string]any{"type": "node_moved"}, true, TypeNodeMoved},
		{"array", `[1,2]`, false, ""},
		{"not json", "hello", false, ""},
		{"no type", `{"node_id":"n1"}`, false, ""},
		{"numeric type", `{"type":3}`, false, ""},
		{"null", `null`, false, ""},
		{"int", 42, false, ""},
		{"nil", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := From(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.typ, msg.Type())
			}
		})
	}
}

func TestAccessors(t *testing.T) {
	msg, ok := Parse([]byte(`{"type":"node_deleted","node_ids":["a",1,"b"],"node_id":"c","position":{"x":1,"y":2}}`))
	require.True(t, ok)

	assert.Equal(t, []string{"a", "b"}, msg.Strings("node_ids"))
	id, ok := msg.String("node_id")
	assert.True(t, ok)
	assert.Equal(t, "c", id)

	pos, ok := msg.Map("position")
	assert.True(t, ok)
	assert.Equal(t, json.Number("1"), pos["x"])
	assert.False(t, msg.Has("edge"))

	var target struct {
		X float64 `json:"x"`
	}
	require.NoError(t, msg.Decode("position", &target))
	assert.Equal(t, 1.0, target.X)
}
