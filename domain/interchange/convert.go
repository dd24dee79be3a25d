package interchange

import (
	"fmt"
	"maps"

	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
)

// Attribute keys that map to node and edge fields rather than data.
const (
	AttrPosition     = "position"
	AttrType         = "type"
	AttrLabel        = "label"
	AttrData         = "data"
	AttrSourceHandle = "sourceHandle"
	AttrTargetHandle = "targetHandle"
)

var (
	nodeAttrs = []string{AttrPosition, AttrType, AttrLabel, AttrData}
	edgeAttrs = []string{AttrLabel, AttrType, AttrSourceHandle, AttrTargetHandle, AttrData}
)

// ToGraphModel exports nodes and edges. Node attributes are the data plus
// position, type and label; edge attributes are the data plus label, type
// and handles. The edge key is the edge id. Data keys that collide with
// those attributes are nested under "data" so an import restores them.
func ToGraphModel(nodes []entities.Node, edges []entities.Edge, multigraph bool) *DiGraph {
	g := NewDiGraph(multigraph)
	for _, n := range nodes {
		attrs := dataAttrs(n.Data, nodeAttrs)
		if n.Position != nil {
			attrs[AttrPosition] = map[string]any{"x": n.Position.X, "y": n.Position.Y}
		}
		attrs[AttrType] = n.Type
		if n.Label != "" {
			attrs[AttrLabel] = n.Label
		}
		g.AddNode(n.ID, attrs)
	}
	for _, e := range edges {
		attrs := dataAttrs(e.Data, edgeAttrs)
		if e.Label != "" {
			attrs[AttrLabel] = e.Label
		}
		if e.Type != "" {
			attrs[AttrType] = e.Type
		}
		if e.SourceHandle != "" {
			attrs[AttrSourceHandle] = e.SourceHandle
		}
		if e.TargetHandle != "" {
			attrs[AttrTargetHandle] = e.TargetHandle
		}
		g.AddEdge(e.Source, e.Target, e.ID, attrs)
	}
	return g
}

// ImportOptions controls FromGraphModel.
type ImportOptions struct {
	// NodeType is used for nodes without a "type" attribute.
	NodeType string
	// DefaultPosition is used for nodes without a readable position.
	DefaultPosition valueobjects.Position
}

// FromGraphModel imports a generic graph. An embedded "data" mapping is
// merged with the remaining attributes, and the attributes win on collision.
// Handles become edge fields again; an edge without key gets the id
// "{source}->{target}".
func FromGraphModel(g *DiGraph, opts ImportOptions) ([]entities.Node, []entities.Edge) {
	if opts.NodeType == "" {
		opts.NodeType = entities.DefaultNodeType
	}

	nodes := make([]entities.Node, 0, len(g.NodeList))
	for _, gn := range g.NodeList {
		attrs := cloneAttrs(gn.Attrs)
		pos, ok := valueobjects.ParsePosition(pop(attrs, AttrPosition))
		if !ok {
			p := opts.DefaultPosition
			pos = &p
		}
		n := entities.Node{
			ID:       gn.ID,
			Position: pos,
			Type:     stringAttr(pop(attrs, AttrType), opts.NodeType),
			Label:    stringAttr(pop(attrs, AttrLabel), ""),
		}
		n.Data = mergeData(attrs)
		nodes = append(nodes, n)
	}

	edges := make([]entities.Edge, 0, len(g.EdgeList))
	for _, ge := range g.EdgeList {
		attrs := cloneAttrs(ge.Attrs)
		e := entities.Edge{
			ID:           ge.Key,
			Source:       ge.Source,
			Target:       ge.Target,
			Label:        stringAttr(pop(attrs, AttrLabel), ""),
			Type:         stringAttr(pop(attrs, AttrType), ""),
			SourceHandle: stringAttr(pop(attrs, AttrSourceHandle), ""),
			TargetHandle: stringAttr(pop(attrs, AttrTargetHandle), ""),
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s->%s", ge.Source, ge.Target)
		}
		e.Data = mergeData(attrs)
		edges = append(edges, e)
	}
	return nodes, edges
}

func dataAttrs(data map[string]any, reserved []string) map[string]any {
	attrs := cloneAttrs(data)
	var nested map[string]any
	for _, key := range reserved {
		if v, ok := attrs[key]; ok {
			if nested == nil {
				nested = map[string]any{}
			}
			nested[key] = v
			delete(attrs, key)
		}
	}
	if nested != nil {
		attrs[AttrData] = nested
	}
	return attrs
}

func mergeData(attrs map[string]any) map[string]any {
	data := map[string]any{}
	if embedded, ok := pop(attrs, AttrData).(map[string]any); ok {
		maps.Copy(data, embedded)
	}
	maps.Copy(data, attrs)
	return data
}

func pop(m map[string]any, key string) any {
	v, ok := m[key]
	if ok {
		delete(m, key)
	}
	return v
}

func stringAttr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
