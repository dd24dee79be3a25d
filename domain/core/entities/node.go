package entities

import (
	"maps"

	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
)

// DefaultNodeType is assigned to nodes added without a type.
const DefaultNodeType = "panel"

// Node is a canvas node. View is an attached renderable that is kept in
// memory next to the node and never serialized with it.
type Node struct {
	ID          string                 `json:"id" validate:"required"`
	Position    *valueobjects.Position `json:"position" validate:"required"`
	Type        string                 `json:"type,omitempty"`
	Label       string                 `json:"label,omitempty"`
	Data        map[string]any         `json:"data" validate:"required"`
	Selected    bool                   `json:"selected"`
	Draggable   *bool                  `json:"draggable,omitempty"`
	Connectable *bool                  `json:"connectable,omitempty"`
	Deletable   *bool                  `json:"deletable,omitempty"`
	Style       map[string]any         `json:"style,omitempty"`
	ClassName   string                 `json:"className,omitempty"`

	View any `json:"-"`
}

// WithDefaults fills the type, data and position a new node starts with.
func (n Node) WithDefaults() Node {
	if n.Type == "" {
		n.Type = DefaultNodeType
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	if n.Position == nil {
		n.Position = valueobjects.Origin()
	}
	return n
}

// Clone returns a copy that shares no maps with n. Values inside Data are
// copied shallowly.
func (n Node) Clone() Node {
	c := n
	c.Data = maps.Clone(n.Data)
	c.Style = maps.Clone(n.Style)
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	return c
}

// Payload is the node as events and the canvas see it, without the view.
func (n Node) Payload() Node {
	c := n.Clone()
	c.View = nil
	return c
}

// HasView reports whether a renderable is attached.
func (n Node) HasView() bool {
	return n.View != nil
}

func (n Node) IsDraggable() bool   { return flag(n.Draggable) }
func (n Node) IsConnectable() bool { return flag(n.Connectable) }
func (n Node) IsDeletable() bool   { return flag(n.Deletable) }

// Bool returns a pointer for the optional node flags.
func Bool(v bool) *bool { return &v }

func flag(b *bool) bool {
	return b == nil || *b
}
