package editors

import (
	"maps"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
)

// Widgets a form field can ask the canvas for.
const (
	WidgetSelect      = "select"
	WidgetCheckbox    = "checkbox"
	WidgetIntInput    = "int_input"
	WidgetIntSlider   = "int_slider"
	WidgetFloatInput  = "float_input"
	WidgetFloatSlider = "float_slider"
	WidgetTextInput   = "text_input"
	WidgetColorPicker = "color_picker"
	WidgetDatePicker  = "date_picker"
	WidgetJSON        = "json"
)

// Field is one input of a generated form.
type Field struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Widget      string   `json:"widget"`
	Value       any      `json:"value"`
	Options     []any    `json:"options,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Description string   `json:"description,omitempty"`
	Disabled    bool     `json:"disabled,omitempty"`
}

// Form is the renderable of the built-in editors.
type Form struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"kind"`
	Type   string  `json:"type"`
	Fields []Field `json:"fields"`
}

// Builtin is the fallback factory: a schema form when a schema exists, the
// raw JSON editor otherwise.
type Builtin struct{}

// New implements Factory.
func (Builtin) New(data map[string]any, s schema.Schema, t Target) (Editor, error) {
	if s == nil {
		return NewJSONEditor(data, t), nil
	}
	return NewSchemaEditor(data, s, t), nil
}

// SchemaEditor renders one field per schema property.
type SchemaEditor struct {
	target Target
	schema schema.Schema
	data   map[string]any
}

// NewSchemaEditor creates a schema form editor
func NewSchemaEditor(data map[string]any, s schema.Schema, t Target) *SchemaEditor {
	return &SchemaEditor{target: t, schema: s, data: maps.Clone(data)}
}

// View returns the current Form.
func (e *SchemaEditor) View() any { return e.Form() }

// Form builds the fields from the schema, sorted by property name.
func (e *SchemaEditor) Form() Form {
	form := Form{ID: e.target.ID, Kind: e.target.Kind, Type: e.target.Type, Fields: []Field{}}
	for _, name := range e.schema.PropertyNames() {
		prop := e.schema.Property(name)
		value, ok := e.data[name]
		if !ok {
			value = prop["default"]
		}
		form.Fields = append(form.Fields, fieldFor(name, prop, value))
	}
	return form
}

// Apply records patch locally, then forwards it.
func (e *SchemaEditor) Apply(patch map[string]any) error {
	if e.target.OnPatch != nil {
		if err := e.target.OnPatch(patch); err != nil {
			return err
		}
	}
	if e.data == nil {
		e.data = map[string]any{}
	}
	maps.Copy(e.data, patch)
	return nil
}

// Refresh replaces the local field state with the committed data.
func (e *SchemaEditor) Refresh(data map[string]any) { e.data = maps.Clone(data) }

func (e *SchemaEditor) Close() error { return nil }

// JSONEditor edits the data as one raw JSON value.
type JSONEditor struct {
	target Target
	data   map[string]any
}

// NewJSONEditor creates a raw data editor
func NewJSONEditor(data map[string]any, t Target) *JSONEditor {
	return &JSONEditor{target: t, data: maps.Clone(data)}
}

func (e *JSONEditor) View() any {
	value := e.data
	if value == nil {
		value = map[string]any{}
	}
	return Form{
		ID:     e.target.ID,
		Kind:   e.target.Kind,
		Type:   e.target.Type,
		Fields: []Field{{Name: "data", Title: "Data", Widget: WidgetJSON, Value: value}},
	}
}

// Apply records patch locally, then forwards it.
func (e *JSONEditor) Apply(patch map[string]any) error {
	if e.target.OnPatch != nil {
		if err := e.target.OnPatch(patch); err != nil {
			return err
		}
	}
	if e.data == nil {
		e.data = map[string]any{}
	}
	maps.Copy(e.data, patch)
	return nil
}

func (e *JSONEditor) Refresh(data map[string]any) { e.data = maps.Clone(data) }

func (e *JSONEditor) Close() error { return nil }

func fieldFor(name string, prop map[string]any, value any) Field {
	f := Field{Name: name, Title: name, Value: value, Widget: WidgetJSON}
	if title, ok := prop["title"].(string); ok && title != "" {
		f.Title = title
	}
	if desc, ok := prop["description"].(string); ok {
		f.Description = desc
	}
	if ro, ok := prop["readOnly"].(bool); ok {
		f.Disabled = ro
	}
	f.Min = number(prop["minimum"])
	f.Max = number(prop["maximum"])

	if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 {
		f.Widget = WidgetSelect
		f.Options = enum
		return f
	}

	format, _ := prop["format"].(string)
	switch prop["type"] {
	case "boolean":
		f.Widget = WidgetCheckbox
	case "integer":
		f.Widget = WidgetIntInput
		if f.Min != nil && f.Max != nil {
			f.Widget = WidgetIntSlider
		}
	case "number":
		f.Widget = WidgetFloatInput
		if f.Min != nil && f.Max != nil {
			f.Widget = WidgetFloatSlider
		}
	case "string":
		switch format {
		case "color":
			f.Widget = WidgetColorPicker
		case "date", "date-time":
			f.Widget = WidgetDatePicker
		default:
			f.Widget = WidgetTextInput
		}
	}
	return f
}

func number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
