package interchange

import "maps"

// DiGraph is a generic directed graph with attribute maps on nodes and
// edges. In a multigraph parallel edges are told apart by their key.
type DiGraph struct {
	Multigraph bool        `json:"multigraph"`
	NodeList   []GraphNode `json:"nodes"`
	EdgeList   []GraphEdge `json:"edges"`
}

// GraphNode is a node id with its attributes.
type GraphNode struct {
	ID    string         `json:"id"`
	Attrs map[string]any `json:"attrs"`
}

// GraphEdge is a directed edge with an optional key and its attributes.
type GraphEdge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Key    string         `json:"key,omitempty"`
	Attrs  map[string]any `json:"attrs"`
}

// NewDiGraph creates an empty graph.
func NewDiGraph(multigraph bool) *DiGraph {
	return &DiGraph{Multigraph: multigraph, NodeList: []GraphNode{}, EdgeList: []GraphEdge{}}
}

// AddNode adds a node or merges attrs into an existing one.
func (g *DiGraph) AddNode(id string, attrs map[string]any) {
	for i := range g.NodeList {
		if g.NodeList[i].ID == id {
			if g.NodeList[i].Attrs == nil {
				g.NodeList[i].Attrs = map[string]any{}
			}
			maps.Copy(g.NodeList[i].Attrs, attrs)
			return
		}
	}
	g.NodeList = append(g.NodeList, GraphNode{ID: id, Attrs: cloneAttrs(attrs)})
}

// AddEdge adds an edge, creating missing endpoints. Outside a multigraph a
// second source/target pair updates the existing edge; in a multigraph the
// key identifies the edge.
func (g *DiGraph) AddEdge(source, target, key string, attrs map[string]any) {
	g.ensureNode(source)
	g.ensureNode(target)
	for i := range g.EdgeList {
		e := &g.EdgeList[i]
		if e.Source != source || e.Target != target {
			continue
		}
		if g.Multigraph && e.Key != key {
			continue
		}
		if e.Attrs == nil {
			e.Attrs = map[string]any{}
		}
		maps.Copy(e.Attrs, attrs)
		e.Key = key
		return
	}
	g.EdgeList = append(g.EdgeList, GraphEdge{Source: source, Target: target, Key: key, Attrs: cloneAttrs(attrs)})
}

// HasNode reports whether id is in the graph.
func (g *DiGraph) HasNode(id string) bool {
	for _, n := range g.NodeList {
		if n.ID == id {
			return true
		}
	}
	return false
}

// NumberOfNodes and NumberOfEdges return the graph size.
func (g *DiGraph) NumberOfNodes() int { return len(g.NodeList) }
func (g *DiGraph) NumberOfEdges() int { return len(g.EdgeList) }

func (g *DiGraph) ensureNode(id string) {
	if !g.HasNode(id) {
		g.NodeList = append(g.NodeList, GraphNode{ID: id, Attrs: map[string]any{}})
	}
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return maps.Clone(attrs)
}
