package entities

import (
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
)

// Edge connects two node handles.
type Edge struct {
	ID           string         `json:"id" validate:"required"`
	Source       string         `json:"source" validate:"required"`
	Target       string         `json:"target" validate:"required"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Label        string         `json:"label,omitempty"`
	Type         string         `json:"type,omitempty"`
	Selected     bool           `json:"selected"`
	Data         map[string]any `json:"data"`
	Style        map[string]any `json:"style,omitempty"`
	MarkerEnd    map[string]any `json:"markerEnd,omitempty"`
}

// WithDefaults assigns a generated id when none is set and an empty data map.
func (e Edge) WithDefaults() Edge {
	if e.ID == "" {
		e.ID = NewEdgeID(e.Source, e.Target)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e
}

// Clone returns a copy that shares no maps with e.
func (e Edge) Clone() Edge {
	c := e
	c.Data = maps.Clone(e.Data)
	c.Style = maps.Clone(e.Style)
	c.MarkerEnd = maps.Clone(e.MarkerEnd)
	return c
}

// Touches reports whether the edge starts or ends at nodeID.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// NewEdgeID builds "{source}->{target}-{suffix}" with an 8 character random suffix.
func NewEdgeID(source, target string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s->%s-%s", source, target, suffix)
}
