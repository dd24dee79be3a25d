package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/pipeline"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	"github.com/panel-extensions/panel-reactflow/domain/registry"
)

// GraphDefinition is the YAML description of a graph and its types.
type GraphDefinition struct {
	EditorMode      string             `yaml:"editor_mode"`
	ValidateOnAdd   bool               `yaml:"validate_on_add"`
	ValidateOnPatch bool               `yaml:"validate_on_patch"`
	NodeTypes       map[string]TypeDef `yaml:"node_types"`
	EdgeTypes       map[string]TypeDef `yaml:"edge_types"`
	Nodes           []NodeDef          `yaml:"nodes"`
	Edges           []EdgeDef          `yaml:"edges"`
}

// TypeDef declares a node or edge type.
type TypeDef struct {
	Label      string         `yaml:"label"`
	Schema     map[string]any `yaml:"schema"`
	Inputs     []string       `yaml:"inputs"`
	Outputs    []string       `yaml:"outputs"`
	PanePolicy string         `yaml:"pane_policy"`
}

type PositionDef struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type NodeDef struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	Label     string         `yaml:"label"`
	Position  *PositionDef   `yaml:"position"`
	Data      map[string]any `yaml:"data"`
	ClassName string         `yaml:"class_name"`
}

type EdgeDef struct {
	ID           string         `yaml:"id"`
	Source       string         `yaml:"source"`
	Target       string         `yaml:"target"`
	SourceHandle string         `yaml:"source_handle"`
	TargetHandle string         `yaml:"target_handle"`
	Label        string         `yaml:"label"`
	Type         string         `yaml:"type"`
	Data         map[string]any `yaml:"data"`
}

// LoadGraphFile reads and parses a graph definition.
func LoadGraphFile(path string) (*GraphDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return ParseGraphDefinition(raw)
}

// ParseGraphDefinition parses YAML bytes.
func ParseGraphDefinition(raw []byte) (*GraphDefinition, error) {
	var def GraphDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}
	return &def, nil
}

// NodeTypeSpecs returns the node types in the form the registry accepts.
func (d *GraphDefinition) NodeTypeSpecs() map[string]any {
	out := make(map[string]any, len(d.NodeTypes))
	for name, t := range d.NodeTypes {
		nt := registry.NodeType{Type: name, Label: t.Label, Inputs: t.Inputs, Outputs: t.Outputs, PanePolicy: t.PanePolicy}
		if t.Schema != nil {
			nt.Schema = t.Schema
		}
		out[name] = nt
	}
	return out
}

func (d *GraphDefinition) EdgeTypeSpecs() map[string]any {
	out := make(map[string]any, len(d.EdgeTypes))
	for name, t := range d.EdgeTypes {
		et := registry.EdgeType{Type: name, Label: t.Label}
		if t.Schema != nil {
			et.Schema = t.Schema
		}
		out[name] = et
	}
	return out
}

// Unplaced lists the ids of nodes without a position.
func (d *GraphDefinition) Unplaced() []string {
	var ids []string
	for _, n := range d.Nodes {
		if n.Position == nil {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Layout computes positions for every node from the edges, left to right.
func (d *GraphDefinition) Layout() map[string]valueobjects.Position {
	names := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		names[i] = n.ID
	}
	links := make([]pipeline.Link, len(d.Edges))
	for i, e := range d.Edges {
		links[i] = pipeline.Link{Source: e.Source, Target: e.Target}
	}
	return pipeline.ComputePositions(names, links, pipeline.DefaultSpacing)
}

// Entities converts the definition into nodes and edges. Nodes without a
// position are placed by Layout.
func (d *GraphDefinition) Entities() ([]entities.Node, []entities.Edge) {
	var layout map[string]valueobjects.Position
	if len(d.Unplaced()) > 0 {
		layout = d.Layout()
	}

	nodes := make([]entities.Node, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		node := entities.Node{ID: n.ID, Type: n.Type, Label: n.Label, Data: n.Data, ClassName: n.ClassName}
		if n.Position != nil {
			node.Position = valueobjects.NewPosition(n.Position.X, n.Position.Y)
		} else {
			pos := layout[n.ID]
			node.Position = &pos
		}
		nodes = append(nodes, node)
	}

	edges := make([]entities.Edge, 0, len(d.Edges))
	for _, e := range d.Edges {
		edges = append(edges, entities.Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			Label:        e.Label,
			Type:         e.Type,
			Data:         e.Data,
		})
	}
	return nodes, edges
}

// FlowOptions turns the definition into Flow options. The graph content is
// loaded as given; use Build to add it through validation.
func (d *GraphDefinition) FlowOptions() []flow.Option {
	nodes, edges := d.Entities()
	return []flow.Option{
		flow.WithNodeTypes(d.NodeTypeSpecs()),
		flow.WithEdgeTypes(d.EdgeTypeSpecs()),
		flow.WithEditorMode(d.EditorMode),
		flow.WithValidateOnAdd(d.ValidateOnAdd),
		flow.WithValidateOnPatch(d.ValidateOnPatch),
		flow.WithNodes(nodes),
		flow.WithEdges(edges),
	}
}

// Build creates a Flow and adds every node and edge through the store, so
// validation runs on each. The first failure is returned.
func (d *GraphDefinition) Build(opts ...flow.Option) (*flow.Flow, error) {
	base := append([]flow.Option{
		flow.WithNodeTypes(d.NodeTypeSpecs()),
		flow.WithEdgeTypes(d.EdgeTypeSpecs()),
		flow.WithEditorMode(d.EditorMode),
		flow.WithValidateOnAdd(d.ValidateOnAdd),
		flow.WithValidateOnPatch(d.ValidateOnPatch),
	}, opts...)
	f, err := flow.New(base...)
	if err != nil {
		return nil, err
	}
	nodes, edges := d.Entities()
	for _, n := range nodes {
		if err := f.AddNode(n, nil); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		if _, err := f.AddEdge(e); err != nil {
			return nil, fmt.Errorf("edge %q: %w", e.ID, err)
		}
	}
	return f, nil
}
