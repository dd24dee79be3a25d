package interchange

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
)

func sampleGraph() ([]entities.Node, []entities.Edge) {
	nodes := []entities.Node{
		{ID: "a", Position: valueobjects.NewPosition(0, 10), Type: "task", Label: "A", Data: map[string]any{"count": 1}},
		{ID: "b", Position: valueobjects.NewPosition(350, 10), Type: "panel", Data: map[string]any{}},
	}
	edges := []entities.Edge{
		{ID: "e1", Source: "a", Target: "b", SourceHandle: "out", TargetHandle: "in", Label: "flows", Type: "pipe", Data: map[string]any{"w": 2}},
		{ID: "e2", Source: "a", Target: "b", Data: map[string]any{}},
	}
	return nodes, edges
}

func TestRoundTripMultigraph(t *testing.T) {
	nodes, edges := sampleGraph()
	g := ToGraphModel(nodes, edges, true)
	require.Equal(t, 2, g.NumberOfEdges())

	gotNodes, gotEdges := FromGraphModel(g, ImportOptions{})
	assert.Empty(t, cmp.Diff(nodes, gotNodes))
	assert.Empty(t, cmp.Diff(edges, gotEdges))
}

func TestDataKeysNamedLikeAttributesSurvive(t *testing.T) {
	nodes := []entities.Node{{
		ID:       "a",
		Position: valueobjects.NewPosition(1, 2),
		Type:     "task",
		Data: map[string]any{
			"label":    "in-data",
			"type":     "kind-x",
			"position": "left",
			"data":     map[string]any{"inner": true},
			"count":    3,
		},
	}}
	edges := []entities.Edge{{
		ID: "e1", Source: "a", Target: "a", Label: "self",
		Data: map[string]any{"sourceHandle": "h", "label": "data-label"},
	}}

	g := ToGraphModel(nodes, edges, true)
	assert.Equal(t, 3, g.NodeList[0].Attrs["count"])
	assert.Equal(t, "task", g.NodeList[0].Attrs["type"])

	gotNodes, gotEdges := FromGraphModel(g, ImportOptions{})
	assert.Empty(t, cmp.Diff(nodes, gotNodes))
	assert.Empty(t, cmp.Diff(edges, gotEdges))
}

func TestHandlesStayEdgeLevel(t *testing.T) {
	nodes, edges := sampleGraph()
	_, got := FromGraphModel(ToGraphModel(nodes, edges, true), ImportOptions{})

	assert.Equal(t, "out", got[0].SourceHandle)
	assert.Equal(t, "in", got[0].TargetHandle)
	assert.NotContains(t, got[0].Data, "sourceHandle")
	assert.NotContains(t, got[0].Data, "targetHandle")
	assert.Equal(t, "", got[1].SourceHandle)
}

func TestDiGraphCollapsesParallelEdges(t *testing.T) {
	nodes, edges := sampleGraph()
	g := ToGraphModel(nodes, edges, false)
	assert.Equal(t, 1, g.NumberOfEdges())
	assert.Equal(t, "e2", g.EdgeList[0].Key)
}

func TestImportMergesEmbeddedData(t *testing.T) {
	g := NewDiGraph(false)
	g.AddNode("n1", map[string]any{
		"data":     map[string]any{"a": 1, "b": "embedded"},
		"b":        "sibling",
		"position": []any{3, 4},
	})
	g.AddNode("n2", map[string]any{"position": [2]float64{5, 6}})
	g.AddEdge("n1", "n2", "", map[string]any{"data": map[string]any{"w": 1}, "label": "x"})

	nodes, edges := FromGraphModel(g, ImportOptions{NodeType: "custom"})
	require.Len(t, nodes, 2)

	assert.Equal(t, map[string]any{"a": 1, "b": "sibling"}, nodes[0].Data)
	assert.True(t, nodes[0].Position.Equal(valueobjects.NewPosition(3, 4)))
	assert.Equal(t, "custom", nodes[0].Type)
	assert.True(t, nodes[1].Position.Equal(valueobjects.NewPosition(5, 6)))

	require.Len(t, edges, 1)
	assert.Equal(t, "n1->n2", edges[0].ID)
	assert.Equal(t, "x", edges[0].Label)
	assert.Equal(t, map[string]any{"w": 1}, edges[0].Data)
}

func TestImportDefaults(t *testing.T) {
	g := NewDiGraph(false)
	g.AddEdge("x", "y", "k", nil)

	nodes, _ := FromGraphModel(g, ImportOptions{DefaultPosition: valueobjects.Position{X: 7}})
	require.Len(t, nodes, 2)
	assert.Equal(t, entities.DefaultNodeType, nodes[0].Type)
	assert.Equal(t, 7.0, nodes[0].Position.X)
	assert.Equal(t, map[string]any{}, nodes[1].Data)
}

func TestExportDoesNotAliasData(t *testing.T) {
	nodes, edges := sampleGraph()
	g := ToGraphModel(nodes, edges, true)
	g.NodeList[0].Attrs["count"] = 99
	assert.Equal(t, 1, nodes[0].Data["count"])
}
