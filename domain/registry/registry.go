package registry

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Kinds of type mapping a watcher is told about.
const (
	NodeTypes = "node_types"
	EdgeTypes = "edge_types"
)

// WatchFunc is called with NodeTypes or EdgeTypes after that mapping changed.
type WatchFunc func(kind string)

// TypeRegistry holds node and edge type descriptors keyed by type name.
type TypeRegistry struct {
	nodeTypes map[string]Descriptor
	edgeTypes map[string]Descriptor
	watchers  []WatchFunc
	logger    *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *TypeRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeRegistry{
		nodeTypes: map[string]Descriptor{},
		edgeTypes: map[string]Descriptor{},
		logger:    logger,
	}
}

// Watch registers fn for mapping changes.
func (r *TypeRegistry) Watch(fn WatchFunc) {
	r.watchers = append(r.watchers, fn)
}

// SetNodeTypes replaces the node type mapping. Values may be a Describer, a
// Descriptor or raw map (kept as-is), or a parameterized struct or model
// (wrapped into a descriptor). The previous mapping is kept on error.
func (r *TypeRegistry) SetNodeTypes(specs map[string]any) error {
	coerced, err := coerceAll("node", specs)
	if err != nil {
		return err
	}
	if sameTypes(r.nodeTypes, coerced) {
		return nil
	}
	r.nodeTypes = coerced
	r.logger.Debug("Node types updated", zap.Int("count", len(coerced)))
	r.notify(NodeTypes)
	return nil
}

// SetEdgeTypes replaces the edge type mapping.
func (r *TypeRegistry) SetEdgeTypes(specs map[string]any) error {
	coerced, err := coerceAll("edge", specs)
	if err != nil {
		return err
	}
	if sameTypes(r.edgeTypes, coerced) {
		return nil
	}
	r.edgeTypes = coerced
	r.logger.Debug("Edge types updated", zap.Int("count", len(coerced)))
	r.notify(EdgeTypes)
	return nil
}

// NodeType returns the descriptor registered for name.
func (r *TypeRegistry) NodeType(name string) (Descriptor, bool) {
	d, ok := r.nodeTypes[name]
	return d, ok
}

// EdgeType returns the descriptor registered for name.
func (r *TypeRegistry) EdgeType(name string) (Descriptor, bool) {
	d, ok := r.edgeTypes[name]
	return d, ok
}

// NodeTypes returns the current node type mapping. Callers must not mutate it.
func (r *TypeRegistry) NodeTypes() map[string]Descriptor { return r.nodeTypes }

// EdgeTypes returns the current edge type mapping. Callers must not mutate it.
func (r *TypeRegistry) EdgeTypes() map[string]Descriptor { return r.edgeTypes }

// Schema returns the normalized schema of a type. Unknown types and types
// without a schema give nil; untyped data is legal.
func (r *TypeRegistry) Schema(typeName string, isEdge bool) schema.Schema {
	types := r.nodeTypes
	if isEdge {
		types = r.edgeTypes
	}
	d, ok := types[typeName]
	if !ok {
		return nil
	}
	return d.Schema()
}

func (r *TypeRegistry) notify(kind string) {
	for _, fn := range r.watchers {
		fn(kind)
	}
}

func coerceAll(kind string, specs map[string]any) (map[string]Descriptor, error) {
	out := make(map[string]Descriptor, len(specs))
	for key, spec := range specs {
		d, err := coerce(kind, key, spec)
		if err != nil {
			return nil, err
		}
		out[key] = d
	}
	return out, nil
}

func coerce(kind, key string, spec any) (Descriptor, error) {
	switch s := spec.(type) {
	case Descriptor:
		return s, nil
	case map[string]any:
		return Descriptor(s), nil
	case Describer:
		return s.Descriptor()
	}

	if schema.IsParameterized(spec) || schema.IsModel(spec) {
		s, err := schema.Normalize(spec)
		if err != nil {
			return nil, err
		}
		d := Descriptor{"type": key, "label": key, "schema": s}
		if kind == "node" {
			d["inputs"] = []string{}
			d["outputs"] = []string{}
		}
		return d, nil
	}
	return nil, pkgerrors.NewUnsupportedSpecError(kind, key, spec)
}

// sameTypes reports whether next holds the same descriptors as current,
// either by identity or by value.
func sameTypes(current, next map[string]Descriptor) bool {
	if len(current) != len(next) {
		return false
	}
	for k, d := range next {
		cur, ok := current[k]
		if !ok {
			return false
		}
		if reflect.ValueOf(cur).Pointer() == reflect.ValueOf(d).Pointer() {
			continue
		}
		if !reflect.DeepEqual(cur, d) {
			return false
		}
	}
	return true
}
