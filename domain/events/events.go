package events

import (
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
)

// Event types. Every payload carries its type under "type".
const (
	NodeAdded        = "node_added"
	NodeDeleted      = "node_deleted"
	NodeMoved        = "node_moved"
	NodeClicked      = "node_clicked"
	NodeDataChanged  = "node_data_changed"
	EdgeAdded        = "edge_added"
	EdgeDeleted      = "edge_deleted"
	EdgeDataChanged  = "edge_data_changed"
	SelectionChanged = "selection_changed"
	Sync             = "sync"
	ToolbarOpened    = "toolbar_opened"

	// Wildcard subscribes to every event.
	Wildcard = "*"
)

// All lists the event types the graph emits, in a stable order.
var All = []string{
	NodeAdded, NodeDeleted, NodeMoved, NodeClicked, NodeDataChanged,
	EdgeAdded, EdgeDeleted, EdgeDataChanged, SelectionChanged, Sync, ToolbarOpened,
}

// Payload is the body handed to event handlers.
type Payload map[string]any

// Type returns the event type.
func (p Payload) Type() string {
	s, _ := p["type"].(string)
	return s
}

func NewNodeAdded(node entities.Node) Payload {
	return Payload{"type": NodeAdded, "node": node.Payload()}
}

func NewNodeDeleted(nodeID string, deletedEdges []string) Payload {
	if deletedEdges == nil {
		deletedEdges = []string{}
	}
	return Payload{"type": NodeDeleted, "node_id": nodeID, "deleted_edges": deletedEdges}
}

func NewNodeMoved(nodeID string, pos valueobjects.Position) Payload {
	return Payload{"type": NodeMoved, "node_id": nodeID, "position": pos}
}

func NewNodeDataChanged(nodeID string, patch map[string]any) Payload {
	return Payload{"type": NodeDataChanged, "node_id": nodeID, "patch": patch}
}

func NewEdgeAdded(edge entities.Edge) Payload {
	return Payload{"type": EdgeAdded, "edge": edge.Clone()}
}

func NewEdgeDeleted(edgeID string) Payload {
	return Payload{"type": EdgeDeleted, "edge_id": edgeID}
}

func NewEdgeDataChanged(edgeID string, patch map[string]any) Payload {
	return Payload{"type": EdgeDataChanged, "edge_id": edgeID, "patch": patch}
}

func NewSelectionChanged(sel valueobjects.Selection) Payload {
	return Payload{"type": SelectionChanged, "nodes": sel.Nodes, "edges": sel.Edges}
}
