package editors

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Mode is where the canvas shows editors.
type Mode string

const (
	ModeToolbar Mode = "toolbar"
	ModeNode    Mode = "node"
	ModeSide    Mode = "side"
)

// ParseMode validates an editor mode. An empty string means toolbar.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeToolbar, nil
	case ModeToolbar, ModeNode, ModeSide:
		return m, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("invalid editor mode %q: expected toolbar, node or side", s))
}

// Item is the part of a node or edge the resolver needs.
type Item struct {
	ID   string
	Type string
	Data map[string]any
}

// SchemaLookup returns the schema of a type, or nil.
type SchemaLookup func(typeName string) schema.Schema

// PatchFunc commits a data patch for id.
type PatchFunc func(id string, patch map[string]any) error

// Resolver keeps one editor per node or edge id. Editors survive unrelated
// graph changes and are only rebuilt when their id appears or the editor
// configuration changes.
type Resolver struct {
	kind     Kind
	registry map[string]Factory
	def      Factory
	mode     Mode
	fallback Factory

	schemas SchemaLookup
	patch   PatchFunc
	logger  *zap.Logger

	ids     []string
	editors map[string]Editor
	dirty   bool
}

// NewResolver creates a resolver for kind.
func NewResolver(kind Kind, schemas SchemaLookup, patch PatchFunc, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		kind:     kind,
		registry: map[string]Factory{},
		mode:     ModeToolbar,
		fallback: Builtin{},
		schemas:  schemas,
		patch:    patch,
		logger:   logger.With(zap.String("editor_kind", string(kind))),
		editors:  map[string]Editor{},
	}
}

// SetRegistry sets the per-type editor overrides.
func (r *Resolver) SetRegistry(registry map[string]Factory) {
	r.registry = cloneRegistry(registry)
	r.dirty = true
}

// SetDefault sets the editor used for types without an override. nil
// restores the built-in editor.
func (r *Resolver) SetDefault(f Factory) {
	r.def = f
	r.dirty = true
}

// SetMode changes the editor mode.
func (r *Resolver) SetMode(m Mode) error {
	m, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	if m != r.mode {
		r.mode = m
		r.dirty = true
	}
	return nil
}

// Invalidate forces every editor to be rebuilt on the next Sync, used when
// type schemas change.
func (r *Resolver) Invalidate() { r.dirty = true }

func (r *Resolver) Mode() Mode { return r.mode }

// Sync brings the editor set in line with items and reports whether
// anything was rebuilt. With an unchanged id list and configuration no
// editor is rebuilt; kept editors only see the current data.
func (r *Resolver) Sync(items []Item) bool {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if !r.dirty && slices.Equal(ids, r.ids) {
		for _, it := range items {
			refresh(r.editors[it.ID], it.Data)
		}
		return false
	}
	configChanged := r.dirty

	next := make(map[string]Editor, len(items))
	kept := make(map[string]bool, len(items))
	for _, it := range items {
		if _, dup := next[it.ID]; dup {
			continue
		}
		if existing, ok := r.editors[it.ID]; ok && !configChanged {
			refresh(existing, it.Data)
			next[it.ID] = existing
			kept[it.ID] = true
			continue
		}
		next[it.ID] = r.create(it)
	}

	for id, old := range r.editors {
		if kept[id] {
			continue
		}
		if err := old.Close(); err != nil {
			r.logger.Warn("Editor close failed", zap.String("id", id), zap.Error(err))
		}
	}

	r.editors = next
	r.ids = ids
	r.dirty = false
	return true
}

// Editor returns the live editor for id.
func (r *Resolver) Editor(id string) (Editor, bool) {
	e, ok := r.editors[id]
	return e, ok
}

// Views returns each editor's renderable in item order.
func (r *Resolver) Views() []any {
	views := make([]any, 0, len(r.ids))
	seen := make(map[string]bool, len(r.ids))
	for _, id := range r.ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := r.editors[id]; ok {
			views = append(views, e.View())
		}
	}
	return views
}

// Close tears down every editor.
func (r *Resolver) Close() {
	for id, e := range r.editors {
		if err := e.Close(); err != nil {
			r.logger.Warn("Editor close failed", zap.String("id", id), zap.Error(err))
		}
	}
	r.editors = map[string]Editor{}
	r.ids = nil
}

// Factory returns the factory that applies to typeName: the per-type
// override, then the default, then the built-in editor.
func (r *Resolver) Factory(typeName string) Factory {
	if f, ok := r.registry[typeName]; ok && f != nil {
		return f
	}
	if r.def != nil {
		return r.def
	}
	return r.fallback
}

func (r *Resolver) create(it Item) Editor {
	var s schema.Schema
	if r.schemas != nil {
		s = r.schemas(it.Type)
	}
	id := it.ID
	target := Target{
		ID:   id,
		Type: it.Type,
		Kind: r.kind,
		OnPatch: func(patch map[string]any) error {
			if r.patch == nil {
				return nil
			}
			return r.patch(id, patch)
		},
	}

	factory := r.Factory(it.Type)
	e, err := factory.New(it.Data, s, target)
	if err == nil && e != nil {
		return e
	}
	r.logger.Warn("Editor factory failed, using built-in editor",
		zap.String("id", id),
		zap.String("type", it.Type),
		zap.Error(err),
	)
	if e, err = r.fallback.New(it.Data, s, target); err == nil && e != nil {
		return e
	}
	return NewJSONEditor(it.Data, target)
}

func refresh(e Editor, data map[string]any) {
	if rf, ok := e.(Refresher); ok {
		rf.Refresh(data)
	}
}

func cloneRegistry(in map[string]Factory) map[string]Factory {
	out := make(map[string]Factory, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
