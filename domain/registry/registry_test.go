package registry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

type task struct {
	schema.Parameterized
	Title    string `json:"title"`
	Priority int    `json:"priority" validate:"oneof=1 2 3"`
	Note     string `json:"_note"`
}

type weight struct{}

func (weight) JSONSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"w": map[string]any{"type": "number"}}}
}

func TestShorthandParamClassWrapsToDescriptor(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.SetNodeTypes(map[string]any{"task": task{}}))

	d, ok := r.NodeType("task")
	require.True(t, ok)
	assert.Equal(t, "task", d.TypeName())
	assert.Equal(t, "task", d.Label())
	assert.Equal(t, []string{}, d.Inputs())
	assert.ElementsMatch(t, []string{"title", "priority"}, d.Schema().PropertyNames())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, d.Schema().Property("priority")["enum"])
}

func TestRawDescriptorPassedThrough(t *testing.T) {
	raw := map[string]any{
		"type":   "task",
		"label":  "Task",
		"schema": map[string]any{"type": "object", "properties": map[string]any{"x": map[string]any{"type": "integer"}}},
	}
	r := New(nil)
	require.NoError(t, r.SetNodeTypes(map[string]any{"task": raw}))

	d, _ := r.NodeType("task")
	assert.Equal(t, Descriptor(raw), d)
	assert.Equal(t, reflect.ValueOf(raw).Pointer(), reflect.ValueOf(d).Pointer())
	assert.Equal(t, []string{"x"}, r.Schema("task", false).PropertyNames())
}

func TestDescriberAndModel(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.SetNodeTypes(map[string]any{
		"job": NodeType{Type: "job", Label: "Job", Schema: task{}, Inputs: []string{"in"}, PanePolicy: "new"},
	}))
	require.NoError(t, r.SetEdgeTypes(map[string]any{
		"weighted": weight{},
		"plain":    EdgeType{Type: "plain"},
	}))

	d, _ := r.NodeType("job")
	assert.Equal(t, "Job", d.Label())
	assert.Equal(t, []string{"in"}, d.Inputs())
	assert.Equal(t, "new", d["pane_policy"])

	assert.Equal(t, []string{"w"}, r.Schema("weighted", true).PropertyNames())
	assert.Nil(t, r.Schema("plain", true))
	assert.Nil(t, r.Schema("weighted", false))
}

func TestSchemaAbsentType(t *testing.T) {
	r := New(nil)
	assert.Nil(t, r.Schema("nope", false))
	assert.Nil(t, r.Schema("nope", true))
}

func TestUnsupportedSpecKeepsPreviousMapping(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.SetNodeTypes(map[string]any{"task": task{}}))

	tests := []struct {
		name string
		spec any
	}{
		{"int", 42},
		{"string", "task"},
		{"plain struct", struct{ A int }{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetNodeTypes(map[string]any{"task": task{}, "bad": tt.spec})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsUnsupportedSpec(err))
			_, ok := r.NodeType("bad")
			assert.False(t, ok)
			_, ok = r.NodeType("task")
			assert.True(t, ok)
		})
	}
}

func TestSchemaErrorSurfacesAtAssignment(t *testing.T) {
	r := New(nil)
	err := r.SetNodeTypes(map[string]any{"job": NodeType{Type: "job", Schema: 12}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsSchema(err))
}

func TestSetTypesIsIdempotent(t *testing.T) {
	r := New(nil)
	var notified []string
	r.Watch(func(kind string) { notified = append(notified, kind) })

	specs := map[string]any{"task": task{}}
	require.NoError(t, r.SetNodeTypes(specs))
	first, _ := r.NodeType("task")

	// Re-setting the coerced mapping, or an equal one, changes nothing.
	current := map[string]any{}
	for k, v := range r.NodeTypes() {
		current[k] = v
	}
	require.NoError(t, r.SetNodeTypes(current))
	require.NoError(t, r.SetNodeTypes(specs))

	again, _ := r.NodeType("task")
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(again).Pointer())
	assert.Equal(t, []string{NodeTypes}, notified)

	require.NoError(t, r.SetEdgeTypes(map[string]any{"plain": EdgeType{Type: "plain"}}))
	assert.Equal(t, []string{NodeTypes, EdgeTypes}, notified)
}
