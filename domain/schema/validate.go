package schema

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Validator checks data against normalized schemas. Compiled schemas are
// cached by content, so reloading the same types reuses one entry.
type Validator struct {
	mu    sync.Mutex
	cache map[[sha256.Size]byte]*jsonschema.Schema
}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{cache: make(map[[sha256.Size]byte]*jsonschema.Schema)}
}

// Retain drops every cached schema that is not in keep.
func (v *Validator) Retain(keep ...Schema) {
	live := make(map[[sha256.Size]byte]bool, len(keep))
	for _, s := range keep {
		if raw, err := json.Marshal(s); err == nil {
			live[sha256.Sum256(raw)] = true
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for key := range v.cache {
		if !live[key] {
			delete(v.cache, key)
		}
	}
}

// Validate returns a SchemaValidationError naming the dotted path of the
// first failing property. A nil schema accepts everything.
func (v *Validator) Validate(s Schema, data map[string]any) error {
	if s == nil {
		return nil
	}
	sch, err := v.compile(s)
	if err != nil {
		return err
	}

	doc, err := toJSONValue(data)
	if err != nil {
		return pkgerrors.NewSchemaValidationError("", fmt.Sprintf("data is not JSON serializable: %v", err))
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			leaf := firstLeaf(verr)
			return pkgerrors.NewSchemaValidationError(dottedPath(leaf.InstanceLocation), leaf.Message)
		}
		return pkgerrors.NewSchemaValidationError("", err.Error())
	}
	return nil
}

func (v *Validator) compile(s Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, pkgerrors.NewSchemaError(fmt.Sprintf("schema is not JSON serializable: %v", err))
	}
	key := sha256.Sum256(raw)

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.cache[key]; ok {
		return sch, nil
	}
	const url = "mem://type-schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, pkgerrors.NewSchemaError(fmt.Sprintf("invalid schema: %v", err))
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, pkgerrors.NewSchemaError(fmt.Sprintf("invalid schema: %v", err))
	}
	v.cache[key] = sch
	return sch, nil
}

func toJSONValue(data map[string]any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// firstLeaf descends through the causes in instance location order; the
// library builds them from map iteration.
func firstLeaf(e *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(e.Causes) > 0 {
		e = slices.MinFunc(e.Causes, func(a, b *jsonschema.ValidationError) int {
			if c := cmp.Compare(a.InstanceLocation, b.InstanceLocation); c != 0 {
				return c
			}
			return cmp.Compare(a.KeywordLocation, b.KeywordLocation)
		})
	}
	return e
}

// dottedPath turns a JSON pointer such as "/items/0/name" into "items.0.name".
func dottedPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
