package flow

import (
	"github.com/panel-extensions/panel-reactflow/application/editors"
	"github.com/panel-extensions/panel-reactflow/application/protocol"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	"github.com/panel-extensions/panel-reactflow/domain/registry"
)

// State is the serialized graph with its type descriptors.
type State struct {
	Nodes      []entities.Node                `json:"nodes"`
	Edges      []entities.Edge                `json:"edges"`
	Views      []any                          `json:"views"`
	Selection  valueobjects.Selection         `json:"selection"`
	NodeTypes  map[string]registry.Descriptor `json:"node_types"`
	EdgeTypes  map[string]registry.Descriptor `json:"edge_types"`
	EditorMode editors.Mode                   `json:"editor_mode"`
	Version    uint64                         `json:"version"`
}

// State returns the graph the way the canvas sees it.
func (f *Flow) State() State {
	return State{
		Nodes:      protocol.SerializeNodes(f.store.Nodes()),
		Edges:      f.store.Edges(),
		Views:      protocol.RenderViews(f.store.Views()),
		Selection:  f.store.Selection(),
		NodeTypes:  f.types.NodeTypes(),
		EdgeTypes:  f.types.EdgeTypes(),
		EditorMode: f.EditorMode(),
		Version:    f.store.Version(),
	}
}

// Restore replaces nodes and edges with a saved state. Views of nodes that
// still exist are kept.
func (f *Flow) Restore(s State) {
	nodes := make([]entities.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		n = n.Clone()
		delete(n.Data, protocol.ViewIndexKey)
		if cur, ok := f.store.Node(n.ID); ok && cur.HasView() {
			n.View = cur.View
		}
		nodes[i] = n
	}
	edges := s.Edges
	if edges == nil {
		edges = []entities.Edge{}
	}
	f.store.Replace(nodes, edges)
}
