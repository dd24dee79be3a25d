package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Output is one computed result of a stage. A later stage with an input
// field of the same name receives the value.
type Output struct {
	Name    string
	Compute func() (any, error)
}

// Outputter is implemented by stages that produce outputs.
type Outputter interface {
	Outputs() []Output
}

// Viewer is implemented by stages that render their own node view.
type Viewer interface {
	View() any
}

type named interface {
	ParamName() string
}

// stage is one instantiated pipeline step.
type stage struct {
	name    string
	value   reflect.Value // the struct the pointer points at
	ptr     any
	fields  map[string]schema.Field
	order   []string
	outputs []Output
}

func newStage(v any) (*stage, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("stage must be a pointer to a struct, got %T", v))
	}
	if !schema.IsParameterized(v) {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("stage %T does not embed schema.Parameterized", v))
	}

	s := &stage{value: rv.Elem(), ptr: v, fields: map[string]schema.Field{}}
	if n, ok := v.(named); ok && n.ParamName() != "" {
		s.name = n.ParamName()
	} else {
		s.name = rv.Elem().Type().Name()
	}
	for _, f := range schema.Fields(v) {
		s.fields[f.Name] = f
		s.order = append(s.order, f.Name)
	}
	if o, ok := v.(Outputter); ok {
		s.outputs = o.Outputs()
	}
	return s, nil
}

func (s *stage) hasInput(name string) bool {
	_, ok := s.fields[name]
	return ok
}

func (s *stage) get(name string) any {
	f := s.fields[name]
	return s.value.FieldByIndex(f.Index).Interface()
}

// params returns the current parameter values keyed by property name.
func (s *stage) params() map[string]any {
	out := make(map[string]any, len(s.order))
	for _, name := range s.order {
		out[name] = s.get(name)
	}
	return out
}

// set assigns value to the named field, converting numbers and falling
// back to a JSON round trip for anything else.
func (s *stage) set(name string, value any) error {
	f, ok := s.fields[name]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("parameter '%s' on stage '%s'", name, s.name))
	}
	fv := s.value.FieldByIndex(f.Index)
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
		return nil
	case isNumber(rv.Kind()) && isNumber(fv.Kind()):
		n, err := convertNumber(rv, fv.Type())
		if err != nil {
			return pkgerrors.NewValidationError(fmt.Sprintf("cannot assign %v to %s.%s: %v", value, s.name, name, err))
		}
		fv.Set(n)
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("cannot assign %s.%s", s.name, name)).WithCause(err)
	}
	ptr := reflect.New(fv.Type())
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("cannot assign %T to %s.%s", value, s.name, name))
	}
	fv.Set(ptr.Elem())
	return nil
}

func (s *stage) output(name string) (Output, bool) {
	for _, o := range s.outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// convertNumber converts rv to t without losing the value: fractions are
// not truncated into integers, negatives never wrap into unsigned fields
// and out-of-range values are rejected.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case isInt(t.Kind()):
		var n int64
		switch {
		case isFloat(rv.Kind()):
			f := rv.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
				return out, fmt.Errorf("%v is not an integer in range", f)
			}
			n = int64(f)
		case isUint(rv.Kind()):
			if rv.Uint() > math.MaxInt64 {
				return out, fmt.Errorf("%d overflows %s", rv.Uint(), t)
			}
			n = int64(rv.Uint())
		default:
			n = rv.Int()
		}
		if out.OverflowInt(n) {
			return out, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetInt(n)
	case isUint(t.Kind()):
		var n uint64
		switch {
		case isFloat(rv.Kind()):
			f := rv.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxUint64 {
				return out, fmt.Errorf("%v is not a non-negative integer in range", f)
			}
			n = uint64(f)
		case isUint(rv.Kind()):
			n = rv.Uint()
		default:
			if rv.Int() < 0 {
				return out, fmt.Errorf("%d is negative", rv.Int())
			}
			n = uint64(rv.Int())
		}
		if out.OverflowUint(n) {
			return out, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetUint(n)
	default:
		f := rv.Convert(reflect.TypeOf(float64(0))).Float()
		if out.OverflowFloat(f) {
			return out, fmt.Errorf("%v overflows %s", f, t)
		}
		out.SetFloat(f)
	}
	return out, nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
