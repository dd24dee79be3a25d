package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Field describes one schema-visible field of a parameterized struct.
type Field struct {
	Name    string // property name
	GoName  string
	Index   []int
	Type    reflect.Type
	Title   string
	Doc     string
	Enum    []any
	Minimum *float64
	Maximum *float64
	// ReadOnly fields carry a `param:"readonly"` tag.
	ReadOnly bool
}

var timeType = reflect.TypeOf(time.Time{})

// Fields lists the properties of a parameterized struct: exported fields,
// excluding the Parameterized base, `json:"-"` fields and names starting with "_".
func Fields(v any) []Field {
	t := typeOf(v)
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []Field
	collectFields(t, nil, &out)
	return out
}

func collectFields(t reflect.Type, prefix []int, out *[]Field) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous {
			ft := sf.Type
			if ft == baseType {
				continue
			}
			if ft.Kind() == reflect.Struct && sf.Tag.Get("json") == "" {
				collectFields(ft, index, out)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		name, skip := propertyName(sf)
		if skip || strings.HasPrefix(name, "_") {
			continue
		}

		f := Field{
			Name:     name,
			GoName:   sf.Name,
			Index:    index,
			Type:     sf.Type,
			Title:    sf.Tag.Get("title"),
			Doc:      sf.Tag.Get("doc"),
			ReadOnly: hasParamFlag(sf.Tag.Get("param"), "readonly"),
		}
		if f.Title == "" {
			f.Title = humanize(name)
		}
		applyValidateTag(&f, sf.Tag.Get("validate"))
		*out = append(*out, f)
	}
}

func propertyName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name := strings.SplitN(tag, ",", 2)[0]; name != "" {
		return name, false
	}
	return snakeCase(sf.Name), false
}

func hasParamFlag(tag, flag string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == flag {
			return true
		}
	}
	return false
}

// applyValidateTag reads oneof, min and max from validator/v10 style tags.
func applyValidateTag(f *Field, tag string) {
	if tag == "" {
		return
	}
	ft := f.Type
	for ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	kind := ft.Kind()
	for _, rule := range strings.Split(tag, ",") {
		key, param, _ := strings.Cut(rule, "=")
		switch key {
		case "oneof":
			for _, opt := range splitOneOf(param) {
				f.Enum = append(f.Enum, enumValue(kind, opt))
			}
		case "min", "gte":
			if isNumeric(kind) {
				if v, err := strconv.ParseFloat(param, 64); err == nil {
					f.Minimum = &v
				}
			}
		case "max", "lte":
			if isNumeric(kind) {
				if v, err := strconv.ParseFloat(param, 64); err == nil {
					f.Maximum = &v
				}
			}
		}
	}
}

// splitOneOf splits a oneof parameter on spaces, honouring 'quoted values'.
func splitOneOf(param string) []string {
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range param {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ' ' && !quoted:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func enumValue(kind reflect.Kind, s string) any {
	switch {
	case isInteger(kind):
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	case kind == reflect.Float32 || kind == reflect.Float64:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return s
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

// paramSchema builds the object schema of a parameterized struct. Defaults
// are read from the fields when a value rather than a type is given.
func paramSchema(source any) Schema {
	t := typeOf(source)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var rv reflect.Value
	if _, isType := source.(reflect.Type); !isType {
		rv = reflect.ValueOf(source)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				rv = reflect.Value{}
				break
			}
			rv = rv.Elem()
		}
	}

	props := make(map[string]any)
	for _, f := range Fields(t) {
		prop := typeSchema(f.Type)
		prop["title"] = f.Title
		if f.Doc != "" {
			prop["description"] = f.Doc
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Minimum != nil {
			prop["minimum"] = *f.Minimum
		}
		if f.Maximum != nil {
			prop["maximum"] = *f.Maximum
		}
		if f.ReadOnly {
			prop["readOnly"] = true
		}
		if rv.IsValid() {
			if fv, ok := fieldByIndex(rv, f.Index); ok {
				prop["default"] = fv.Interface()
			}
		}
		props[f.Name] = prop
	}

	return Schema{
		"type":       "object",
		"title":      t.Name(),
		"properties": props,
	}
}

func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	fv, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, false
	}
	if (fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface) && fv.IsNil() {
		return reflect.Value{}, false
	}
	return fv, true
}

func typeSchema(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return map[string]any{"type": "string", "format": "date-time"}
	}
	switch k := t.Kind(); {
	case k == reflect.String:
		return map[string]any{"type": "string"}
	case k == reflect.Bool:
		return map[string]any{"type": "boolean"}
	case isInteger(k):
		return map[string]any{"type": "integer"}
	case k == reflect.Float32 || k == reflect.Float64:
		return map[string]any{"type": "number"}
	case k == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return map[string]any{"type": "string", "contentEncoding": "base64"}
	case k == reflect.Slice || k == reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case k == reflect.Map || k == reflect.Struct:
		return map[string]any{"type": "object"}
	}
	return map[string]any{}
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func humanize(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	if len(words) == 0 {
		return name
	}
	r := []rune(words[0])
	r[0] = unicode.ToUpper(r[0])
	words[0] = string(r)
	return strings.Join(words, " ")
}
