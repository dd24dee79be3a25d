package editors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

type trackedEditor struct {
	id     string
	by     string
	closed int
}

func (e *trackedEditor) View() any    { return e.by + ":" + e.id }
func (e *trackedEditor) Close() error { e.closed++; return nil }

type trackingFactory struct {
	name    string
	created []*trackedEditor
}

func (f *trackingFactory) New(_ map[string]any, _ schema.Schema, t Target) (Editor, error) {
	e := &trackedEditor{id: t.ID, by: f.name}
	f.created = append(f.created, e)
	return e, nil
}

var taskSchema = schema.Schema{
	"type": "object",
	"properties": map[string]any{
		"title":    map[string]any{"type": "string", "title": "Title"},
		"status":   map[string]any{"type": "string", "enum": []any{"todo", "done"}},
		"count":    map[string]any{"type": "integer", "minimum": 0.0, "maximum": 10.0},
		"ratio":    map[string]any{"type": "number"},
		"done":     map[string]any{"type": "boolean", "default": false},
		"color":    map[string]any{"type": "string", "format": "color"},
		"tags":     map[string]any{"type": "array"},
		"readonly": map[string]any{"type": "string", "readOnly": true},
	},
}

func lookup(name string) schema.Schema {
	if name == "task" {
		return taskSchema
	}
	return nil
}

func items(ids ...string) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id, Type: "task", Data: map[string]any{}}
	}
	return out
}

func TestEditorIdentityStability(t *testing.T) {
	r := NewResolver(NodeKind, lookup, nil, nil)
	require.True(t, r.Sync(items("n1", "n2")))
	first, ok := r.Editor("n1")
	require.True(t, ok)

	// Same id list: nothing is rebuilt.
	assert.False(t, r.Sync(items("n1", "n2")))
	again, _ := r.Editor("n1")
	assert.Same(t, first.(*SchemaEditor), again.(*SchemaEditor))

	// A new id only builds the new editor.
	require.True(t, r.Sync(items("n1", "n2", "n3")))
	again, _ = r.Editor("n1")
	assert.Same(t, first.(*SchemaEditor), again.(*SchemaEditor))
}

func fieldValue(t *testing.T, e Editor, name string) any {
	t.Helper()
	form, ok := e.View().(Form)
	require.True(t, ok)
	for _, f := range form.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("no field %q", name)
	return nil
}

func TestKeptEditorsSeeCommittedData(t *testing.T) {
	patched := 0
	r := NewResolver(NodeKind, lookup, func(string, map[string]any) error { patched++; return nil }, nil)
	next := []Item{
		{ID: "n1", Type: "task", Data: map[string]any{}},
		{ID: "n2", Type: "note", Data: map[string]any{"x": 1}},
	}
	require.True(t, r.Sync(next))
	form, _ := r.Editor("n1")
	raw, _ := r.Editor("n2")
	require.IsType(t, &SchemaEditor{}, form)
	require.IsType(t, &JSONEditor{}, raw)

	next[0].Data = map[string]any{"count": 8}
	next[1].Data = map[string]any{"x": 2}
	assert.False(t, r.Sync(next))

	again, _ := r.Editor("n1")
	assert.Same(t, form, again)
	assert.Equal(t, 8, fieldValue(t, again, "count"))
	assert.Equal(t, map[string]any{"x": 2}, fieldValue(t, raw, "data"))

	// A new id rebuilds nothing else and still refreshes the kept editors.
	next[0].Data = map[string]any{"count": 9}
	require.True(t, r.Sync(append(next, Item{ID: "n3", Type: "task"})))
	again, _ = r.Editor("n1")
	assert.Same(t, form, again)
	assert.Equal(t, 9, fieldValue(t, again, "count"))
	assert.Zero(t, patched)
}

func TestPrecedence(t *testing.T) {
	override := &trackingFactory{name: "override"}
	def := &trackingFactory{name: "default"}

	r := NewResolver(NodeKind, lookup, nil, nil)
	r.SetRegistry(map[string]Factory{"special": override})
	r.SetDefault(def)
	r.Sync([]Item{{ID: "a", Type: "special"}, {ID: "b", Type: "task"}})

	a, _ := r.Editor("a")
	b, _ := r.Editor("b")
	assert.Equal(t, "override:a", a.View())
	assert.Equal(t, "default:b", b.View())

	r.SetDefault(nil)
	r.Sync([]Item{{ID: "a", Type: "special"}, {ID: "b", Type: "task"}, {ID: "c", Type: "untyped"}})
	b, _ = r.Editor("b")
	c, _ := r.Editor("c")
	assert.IsType(t, &SchemaEditor{}, b)
	assert.IsType(t, &JSONEditor{}, c)
}

func TestConfigChangeRecreatesAndClosesOnce(t *testing.T) {
	f := &trackingFactory{name: "f"}
	r := NewResolver(NodeKind, lookup, nil, nil)
	r.SetDefault(f)
	r.Sync(items("n1", "n2"))
	require.Len(t, f.created, 2)

	require.NoError(t, r.SetMode(ModeSide))
	assert.True(t, r.Sync(items("n1", "n2")))
	require.Len(t, f.created, 4)
	assert.Equal(t, 1, f.created[0].closed)
	assert.Equal(t, 1, f.created[1].closed)
	assert.Equal(t, 0, f.created[2].closed)

	// Same mode again is not a change.
	require.NoError(t, r.SetMode(ModeSide))
	assert.False(t, r.Sync(items("n1", "n2")))
}

func TestRemovedEditorsAreClosed(t *testing.T) {
	f := &trackingFactory{name: "f"}
	r := NewResolver(EdgeKind, nil, nil, nil)
	r.SetDefault(f)
	r.Sync(items("e1", "e2"))
	r.Sync(items("e2"))

	assert.Equal(t, 1, f.created[0].closed)
	assert.Equal(t, 0, f.created[1].closed)
	_, ok := r.Editor("e1")
	assert.False(t, ok)
	assert.Equal(t, []any{"f:e2"}, r.Views())

	r.Close()
	assert.Equal(t, 1, f.created[1].closed)
}

func TestFactoryErrorFallsBack(t *testing.T) {
	r := NewResolver(NodeKind, lookup, nil, nil)
	r.SetDefault(FactoryFunc(func(map[string]any, schema.Schema, Target) (any, error) {
		return nil, errors.New("broken")
	}))
	r.Sync(items("n1"))
	e, ok := r.Editor("n1")
	require.True(t, ok)
	assert.IsType(t, &SchemaEditor{}, e)
}

func TestFactoryFuncWrapsRenderable(t *testing.T) {
	var got Target
	r := NewResolver(NodeKind, lookup, nil, nil)
	r.SetRegistry(map[string]Factory{"task": FactoryFunc(func(data map[string]any, s schema.Schema, tgt Target) (any, error) {
		got = tgt
		assert.NotNil(t, s)
		return "rendered", nil
	})})
	r.Sync(items("n1"))

	e, _ := r.Editor("n1")
	assert.Equal(t, "rendered", e.View())
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "task", got.Type)
	assert.Equal(t, NodeKind, got.Kind)
}

func TestOnPatchIsBoundToID(t *testing.T) {
	var calls []string
	r := NewResolver(NodeKind, lookup, func(id string, patch map[string]any) error {
		calls = append(calls, id)
		return nil
	}, nil)
	r.Sync(items("n1", "n2"))

	e, _ := r.Editor("n2")
	require.NoError(t, e.(Patcher).Apply(map[string]any{"title": "x"}))
	require.NoError(t, e.(Patcher).Apply(map[string]any{"count": 2}))
	assert.Equal(t, []string{"n2", "n2"}, calls)

	form := e.View().(Form)
	for _, f := range form.Fields {
		if f.Name == "title" {
			assert.Equal(t, "x", f.Value)
		}
	}
}

func TestApplyFailureKeepsEditorState(t *testing.T) {
	ed := NewSchemaEditor(map[string]any{"count": 1}, taskSchema, Target{
		ID: "n1",
		OnPatch: func(map[string]any) error {
			return pkgerrors.NewSchemaValidationError("count", "expected integer")
		},
	})
	err := ed.Apply(map[string]any{"count": "x"})
	require.Error(t, err)
	assert.Equal(t, 1, ed.data["count"])
}

func TestSchemaFormWidgets(t *testing.T) {
	form := NewSchemaEditor(map[string]any{"title": "hello"}, taskSchema, Target{ID: "n1", Type: "task", Kind: NodeKind}).Form()
	byName := map[string]Field{}
	for _, f := range form.Fields {
		byName[f.Name] = f
	}

	tests := []struct {
		field  string
		widget string
	}{
		{"status", WidgetSelect},
		{"count", WidgetIntSlider},
		{"ratio", WidgetFloatInput},
		{"done", WidgetCheckbox},
		{"color", WidgetColorPicker},
		{"tags", WidgetJSON},
		{"title", WidgetTextInput},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.widget, byName[tt.field].Widget)
		})
	}

	assert.Equal(t, "hello", byName["title"].Value)
	assert.Equal(t, "Title", byName["title"].Title)
	assert.Equal(t, false, byName["done"].Value)
	assert.Equal(t, []any{"todo", "done"}, byName["status"].Options)
	assert.True(t, byName["readonly"].Disabled)
	assert.Equal(t, "color", form.Fields[0].Name)
}

func TestJSONEditorView(t *testing.T) {
	ed := NewJSONEditor(nil, Target{ID: "e1", Kind: EdgeKind})
	form := ed.View().(Form)
	require.Len(t, form.Fields, 1)
	assert.Equal(t, WidgetJSON, form.Fields[0].Widget)
	assert.Equal(t, map[string]any{}, form.Fields[0].Value)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeToolbar, m)

	_, err = ParseMode("floating")
	assert.True(t, pkgerrors.IsValidation(err))
}
