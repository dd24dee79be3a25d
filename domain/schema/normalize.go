package schema

import (
	"fmt"
	"reflect"

	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Parameterized is the base every declarative parameter struct embeds. Its
// own fields never become schema properties.
type Parameterized struct {
	Name string `json:"name,omitempty"`
}

func (Parameterized) isParameterized() {}

// ParamName returns the name set on the embedded base.
func (p Parameterized) ParamName() string { return p.Name }

// Model is implemented by data models that produce their own JSON Schema.
type Model interface {
	JSONSchema() map[string]any
}

// Tag kinds for Tagged sources.
const (
	KindJSONSchema = "jsonschema"
	KindParam      = "param"
	KindModel      = "model"
	KindPydantic   = "pydantic"
)

// Tagged names the kind of its Value explicitly.
type Tagged struct {
	Kind  string
	Value any
}

// JSONSchemaOf, ParamOf and ModelOf build tagged sources.
func JSONSchemaOf(v map[string]any) Tagged { return Tagged{Kind: KindJSONSchema, Value: v} }
func ParamOf(v any) Tagged                 { return Tagged{Kind: KindParam, Value: v} }
func ModelOf(v any) Tagged                 { return Tagged{Kind: KindModel, Value: v} }

type paramMarker interface{ isParameterized() }

var (
	paramMarkerType = reflect.TypeOf((*paramMarker)(nil)).Elem()
	modelType       = reflect.TypeOf((*Model)(nil)).Elem()
	baseType        = reflect.TypeOf(Parameterized{})
)

// Normalize converts a schema source into a Schema.
//
// Accepted sources: nil, a Schema or map (returned as-is), a struct embedding
// Parameterized (value, pointer or reflect.Type), a Model (value, pointer or
// reflect.Type) and a Tagged wrapper around any of these.
func Normalize(source any) (Schema, error) {
	switch s := source.(type) {
	case nil:
		return nil, nil
	case Schema:
		return s, nil
	case map[string]any:
		return Schema(s), nil
	case Tagged:
		return normalizeTagged(s)
	case *Tagged:
		if s == nil {
			return nil, nil
		}
		return normalizeTagged(*s)
	}

	if IsParameterized(source) {
		return paramSchema(source), nil
	}
	if m, ok := asModel(source); ok {
		return Schema(m.JSONSchema()), nil
	}
	return nil, cannotNormalize(source)
}

func normalizeTagged(t Tagged) (Schema, error) {
	switch t.Kind {
	case KindJSONSchema:
		switch v := t.Value.(type) {
		case nil:
			return nil, nil
		case Schema:
			return v, nil
		case map[string]any:
			return Schema(v), nil
		}
	case KindParam:
		if IsParameterized(t.Value) {
			return paramSchema(t.Value), nil
		}
	case KindModel, KindPydantic:
		if m, ok := asModel(t.Value); ok {
			return Schema(m.JSONSchema()), nil
		}
	default:
		return nil, pkgerrors.NewSchemaError(fmt.Sprintf("unknown schema kind %q", t.Kind))
	}
	return nil, pkgerrors.NewSchemaError(fmt.Sprintf("schema kind %q does not match value %T", t.Kind, t.Value))
}

// IsParameterized reports whether v is, or points to, a struct embedding Parameterized.
// A reflect.Type is checked as the type it describes.
func IsParameterized(v any) bool {
	t := typeOf(v)
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.Implements(paramMarkerType)
}

// IsModel reports whether v, or the type v describes, implements Model.
func IsModel(v any) bool {
	_, ok := asModel(v)
	return ok
}

func asModel(v any) (Model, bool) {
	if v == nil {
		return nil, false
	}
	if t, ok := v.(reflect.Type); ok {
		base := t
		for base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		ptr := reflect.New(base)
		if m, ok := ptr.Interface().(Model); ok {
			return m, true
		}
		if base.Implements(modelType) {
			return ptr.Elem().Interface().(Model), true
		}
		return nil, false
	}
	m, ok := v.(Model)
	return m, ok
}

func typeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	if t, ok := v.(reflect.Type); ok {
		return t
	}
	return reflect.TypeOf(v)
}

func cannotNormalize(source any) error {
	return pkgerrors.NewSchemaError(fmt.Sprintf("cannot normalize schema: %#v", source))
}
