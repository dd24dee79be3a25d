package schema

import "sort"

// Schema is a normalized JSON-Schema object with a top-level "properties"
// mapping. A nil Schema means the data has no schema and is edited generically.
type Schema map[string]any

// Properties returns the property schemas keyed by name.
func (s Schema) Properties() map[string]any {
	if s == nil {
		return nil
	}
	switch p := s["properties"].(type) {
	case map[string]any:
		return p
	case Schema:
		return p
	}
	return nil
}

// Property returns the schema of one property.
func (s Schema) Property(name string) map[string]any {
	switch p := s.Properties()[name].(type) {
	case map[string]any:
		return p
	case Schema:
		return p
	}
	return nil
}

// PropertyNames returns property names sorted.
func (s Schema) PropertyNames() []string {
	props := s.Properties()
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Required returns the names listed under "required".
func (s Schema) Required() []string {
	switch r := s["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if name, ok := v.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}
