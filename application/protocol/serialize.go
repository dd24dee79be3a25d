package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

// ViewIndexKey is the data key that points a node at its view in the
// side-list.
const ViewIndexKey = "view_idx"

// SerializeNodes strips views and numbers the nodes that had one. Indexes
// count only nodes with a view, so they stay contiguous from 0 and match
// GraphStore.Views.
func SerializeNodes(nodes []entities.Node) []entities.Node {
	out := make([]entities.Node, 0, len(nodes))
	idx := 0
	for _, n := range nodes {
		c := n.Clone()
		if c.Data == nil {
			c.Data = map[string]any{}
		}
		delete(c.Data, ViewIndexKey)
		if n.HasView() {
			c.Data[ViewIndexKey] = idx
			idx++
		}
		c.View = nil
		out = append(out, c)
	}
	return out
}

// RenderViews turns renderables into JSON-encodable values. Values that do
// not encode are sent as their string form.
func RenderViews(views []any) []any {
	out := make([]any, 0, len(views))
	for _, v := range views {
		if _, err := json.Marshal(v); err != nil {
			out = append(out, fmt.Sprint(v))
			continue
		}
		out = append(out, v)
	}
	return out
}

// StateMessage is the full graph as the canvas receives it.
func StateMessage(s *store.GraphStore) messages.Message {
	return messages.Message{
		"type":      messages.TypeSync,
		"nodes":     SerializeNodes(s.Nodes()),
		"edges":     s.Edges(),
		"views":     RenderViews(s.Views()),
		"selection": s.Selection(),
		"version":   s.Version(),
	}
}
