package valueobjects

import "slices"

// Selection is the derived set of selected node and edge ids, in graph order.
type Selection struct {
	Nodes []string `json:"nodes"`
	Edges []string `json:"edges"`
}

// EmptySelection returns a selection with non-nil empty lists.
func EmptySelection() Selection {
	return Selection{Nodes: []string{}, Edges: []string{}}
}

// Equal compares both id lists in order.
func (s Selection) Equal(other Selection) bool {
	return slices.Equal(s.Nodes, other.Nodes) && slices.Equal(s.Edges, other.Edges)
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Edges) == 0
}
