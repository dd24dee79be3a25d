package registry

import (
	"github.com/panel-extensions/panel-reactflow/domain/schema"
)

// Descriptor is the serializable definition of a node or edge type:
// type, label, schema, inputs, outputs and pane_policy.
type Descriptor map[string]any

// Describer is implemented by values that serialize themselves to a Descriptor.
type Describer interface {
	Descriptor() (Descriptor, error)
}

func (d Descriptor) TypeName() string { return d.str("type") }
func (d Descriptor) Label() string    { return d.str("label") }

// Schema returns the descriptor's normalized schema, nil when it has none.
func (d Descriptor) Schema() schema.Schema {
	switch s := d["schema"].(type) {
	case schema.Schema:
		return s
	case map[string]any:
		return schema.Schema(s)
	}
	return nil
}

func (d Descriptor) Inputs() []string  { return d.strs("inputs") }
func (d Descriptor) Outputs() []string { return d.strs("outputs") }

func (d Descriptor) str(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Descriptor) strs(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// NodeType declares a node type. Schema is any source schema.Normalize accepts.
type NodeType struct {
	Type       string
	Label      string
	Schema     any
	Inputs     []string
	Outputs    []string
	PanePolicy string
}

// Descriptor implements Describer.
func (t NodeType) Descriptor() (Descriptor, error) {
	s, err := schema.Normalize(t.Schema)
	if err != nil {
		return nil, err
	}
	d := Descriptor{
		"type":    t.Type,
		"label":   orDefault(t.Label, t.Type),
		"schema":  s,
		"inputs":  nonNil(t.Inputs),
		"outputs": nonNil(t.Outputs),
	}
	if t.PanePolicy != "" {
		d["pane_policy"] = t.PanePolicy
	}
	return d, nil
}

// EdgeType declares an edge type.
type EdgeType struct {
	Type   string
	Label  string
	Schema any
}

// Descriptor implements Describer.
func (t EdgeType) Descriptor() (Descriptor, error) {
	s, err := schema.Normalize(t.Schema)
	if err != nil {
		return nil, err
	}
	return Descriptor{
		"type":   t.Type,
		"label":  orDefault(t.Label, t.Type),
		"schema": s,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
