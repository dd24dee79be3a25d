// Package flow wires the type registry, graph store, editor resolvers and
// sync protocol into one editable graph.
package flow

import (
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/editors"
	"github.com/panel-extensions/panel-reactflow/application/protocol"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	"github.com/panel-extensions/panel-reactflow/domain/interchange"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/registry"
	"github.com/panel-extensions/panel-reactflow/domain/schema"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

// Flow is a graph editor session. Like the store underneath it, a Flow is
// not safe for concurrent use.
type Flow struct {
	logger   *zap.Logger
	types    *registry.TypeRegistry
	store    *store.GraphStore
	protocol *protocol.Protocol
	sender   store.Sender

	validator *schema.Validator

	nodeEditors *editors.Resolver
	edgeEditors *editors.Resolver
}

// New builds a Flow. Type mappings and the editor mode are checked here;
// the initial nodes and edges are taken as given.
func New(opts ...Option) (*Flow, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	f := &Flow{logger: o.logger, sender: o.sender}

	f.types = registry.New(o.logger)
	if err := f.types.SetNodeTypes(o.nodeTypes); err != nil {
		return nil, err
	}
	if err := f.types.SetEdgeTypes(o.edgeTypes); err != nil {
		return nil, err
	}

	f.validator = schema.NewValidator()
	f.store = store.New(f.types, events.NewBus(o.logger),
		store.WithLogger(o.logger),
		store.WithValidator(f.validator),
		store.WithValidateOnAdd(o.validateOnAdd),
		store.WithValidateOnPatch(o.validateOnPatch),
		store.WithSender(o.sender),
	)

	f.nodeEditors = editors.NewResolver(editors.NodeKind,
		func(t string) schema.Schema { return f.types.Schema(t, false) },
		f.store.PatchNodeData, o.logger)
	f.edgeEditors = editors.NewResolver(editors.EdgeKind,
		func(t string) schema.Schema { return f.types.Schema(t, true) },
		f.store.PatchEdgeData, o.logger)
	f.nodeEditors.SetRegistry(o.nodeEditors)
	f.edgeEditors.SetRegistry(o.edgeEditors)
	f.nodeEditors.SetDefault(o.defaultNodeEditor)
	f.edgeEditors.SetDefault(o.defaultEdgeEditor)
	mode, err := editors.ParseMode(o.editorMode)
	if err != nil {
		return nil, err
	}
	_ = f.nodeEditors.SetMode(mode)
	_ = f.edgeEditors.SetMode(mode)

	f.store.Watch([]string{store.FieldNodes}, func(store.Change) { f.syncNodeEditors() })
	f.store.Watch([]string{store.FieldEdges}, func(store.Change) { f.syncEdgeEditors() })
	f.types.Watch(f.typesChanged)

	f.protocol = protocol.New(f.store,
		protocol.WithSender(o.sender),
		protocol.WithEditors(f.editor),
		protocol.WithLogger(o.logger),
	)

	nodes := attachViews(o.nodes, o.views)
	if nodes == nil && o.edges == nil {
		f.syncNodeEditors()
		f.syncEdgeEditors()
	} else {
		f.store.WithCause(store.CauseSync, func() { f.store.Replace(nodes, o.edges) })
		if nodes == nil {
			f.syncNodeEditors()
		}
		if o.edges == nil {
			f.syncEdgeEditors()
		}
	}
	return f, nil
}

// FromGraphModel builds a Flow from an interchange graph.
func FromGraphModel(g *interchange.DiGraph, imp interchange.ImportOptions, opts ...Option) (*Flow, error) {
	nodes, edges := interchange.FromGraphModel(g, imp)
	return New(append(opts, WithNodes(nodes), WithEdges(edges))...)
}

func attachViews(nodes []entities.Node, views map[string]any) []entities.Node {
	if len(views) == 0 || nodes == nil {
		return nodes
	}
	out := make([]entities.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
		if v, ok := views[n.ID]; ok {
			out[i].View = v
		}
	}
	return out
}

// Store exposes the underlying graph store.
func (f *Flow) Store() *store.GraphStore { return f.store }

// Types exposes the type registry.
func (f *Flow) Types() *registry.TypeRegistry { return f.types }

// Nodes returns the current node snapshot. Callers must not mutate it.
func (f *Flow) Nodes() []entities.Node            { return f.store.Nodes() }
func (f *Flow) Edges() []entities.Edge            { return f.store.Edges() }
func (f *Flow) Selection() valueobjects.Selection { return f.store.Selection() }
func (f *Flow) Version() uint64                   { return f.store.Version() }

func (f *Flow) Node(id string) (entities.Node, bool) { return f.store.Node(id) }
func (f *Flow) Edge(id string) (entities.Edge, bool) { return f.store.Edge(id) }

func (f *Flow) AddNode(node entities.Node, view any) error { return f.store.AddNode(node, view) }

func (f *Flow) AddEdge(edge entities.Edge) (entities.Edge, error) { return f.store.AddEdge(edge) }

func (f *Flow) RemoveNode(id string) []string { return f.store.RemoveNode(id) }
func (f *Flow) RemoveEdge(id string) bool     { return f.store.RemoveEdge(id) }

func (f *Flow) PatchNodeData(id string, patch map[string]any) error {
	return f.store.PatchNodeData(id, patch)
}

func (f *Flow) PatchEdgeData(id string, patch map[string]any) error {
	return f.store.PatchEdgeData(id, patch)
}

func (f *Flow) SetNodes(nodes []entities.Node) { f.store.SetNodes(nodes) }
func (f *Flow) SetEdges(edges []entities.Edge) { f.store.SetEdges(edges) }

// On subscribes to an event type, or to every event with events.Wildcard.
func (f *Flow) On(eventType string, handler events.Handler) {
	f.store.Events().On(eventType, handler)
}

// HandleMessage applies one inbound canvas message.
func (f *Flow) HandleMessage(raw any) bool { return f.protocol.Handle(raw) }

// Push sends the full state to the canvas.
func (f *Flow) Push() { f.protocol.Push() }

// SetSender replaces the outbound channel for both patches and state.
func (f *Flow) SetSender(s store.Sender) {
	f.sender = s
	f.store.SetSender(s)
	f.protocol.SetSender(s)
}

// SetValidation toggles schema validation of adds and patches.
func (f *Flow) SetValidation(onAdd, onPatch bool) { f.store.SetValidation(onAdd, onPatch) }

func (f *Flow) SetNodeTypes(types map[string]any) error { return f.types.SetNodeTypes(types) }
func (f *Flow) SetEdgeTypes(types map[string]any) error { return f.types.SetEdgeTypes(types) }

func (f *Flow) SetNodeEditors(registry map[string]editors.Factory) {
	f.nodeEditors.SetRegistry(registry)
	f.syncNodeEditors()
}

func (f *Flow) SetEdgeEditors(registry map[string]editors.Factory) {
	f.edgeEditors.SetRegistry(registry)
	f.syncEdgeEditors()
}

func (f *Flow) SetDefaultNodeEditor(factory editors.Factory) {
	f.nodeEditors.SetDefault(factory)
	f.syncNodeEditors()
}

func (f *Flow) SetDefaultEdgeEditor(factory editors.Factory) {
	f.edgeEditors.SetDefault(factory)
	f.syncEdgeEditors()
}

// SetEditorMode switches where editors are shown and rebuilds them.
func (f *Flow) SetEditorMode(mode string) error {
	m, err := editors.ParseMode(mode)
	if err != nil {
		return err
	}
	_ = f.nodeEditors.SetMode(m)
	_ = f.edgeEditors.SetMode(m)
	f.syncNodeEditors()
	f.syncEdgeEditors()
	return nil
}

func (f *Flow) EditorMode() editors.Mode { return f.nodeEditors.Mode() }

// NodeEditor returns the live editor of a node.
func (f *Flow) NodeEditor(id string) (editors.Editor, bool) { return f.nodeEditors.Editor(id) }

// EdgeEditor returns the live editor of an edge.
func (f *Flow) EdgeEditor(id string) (editors.Editor, bool) { return f.edgeEditors.Editor(id) }

// NodeEditorViews returns the node editor renderables in node order.
func (f *Flow) NodeEditorViews() []any { return f.nodeEditors.Views() }

func (f *Flow) EdgeEditorViews() []any { return f.edgeEditors.Views() }

// ToGraphModel exports the graph.
func (f *Flow) ToGraphModel(multigraph bool) *interchange.DiGraph {
	return interchange.ToGraphModel(f.store.Nodes(), f.store.Edges(), multigraph)
}

// Close tears down every editor.
func (f *Flow) Close() {
	f.nodeEditors.Close()
	f.edgeEditors.Close()
}

func (f *Flow) editor(kind editors.Kind, id string) (editors.Editor, bool) {
	if kind == editors.EdgeKind {
		return f.edgeEditors.Editor(id)
	}
	return f.nodeEditors.Editor(id)
}

func (f *Flow) syncNodeEditors() {
	nodes := f.store.Nodes()
	items := make([]editors.Item, len(nodes))
	for i, n := range nodes {
		items[i] = editors.Item{ID: n.ID, Type: n.Type, Data: n.Data}
	}
	if f.nodeEditors.Sync(items) {
		f.logger.Debug("Node editors rebuilt", zap.Int("count", len(items)))
	}
}

func (f *Flow) syncEdgeEditors() {
	edges := f.store.Edges()
	items := make([]editors.Item, len(edges))
	for i, e := range edges {
		items[i] = editors.Item{ID: e.ID, Type: e.Type, Data: e.Data}
	}
	if f.edgeEditors.Sync(items) {
		f.logger.Debug("Edge editors rebuilt", zap.Int("count", len(items)))
	}
}

// typesChanged rebuilds editors against the new schemas and tells the
// canvas about the new descriptors.
func (f *Flow) typesChanged(kind string) {
	f.validator.Retain(f.typeSchemas()...)
	if kind == registry.EdgeTypes {
		f.edgeEditors.Invalidate()
		f.syncEdgeEditors()
	} else {
		f.nodeEditors.Invalidate()
		f.syncNodeEditors()
	}
	f.protocol.Send(f.typesMessage())
}

func (f *Flow) typeSchemas() []schema.Schema {
	var out []schema.Schema
	for _, types := range []map[string]registry.Descriptor{f.types.NodeTypes(), f.types.EdgeTypes()} {
		for _, d := range types {
			if s := d.Schema(); s != nil {
				out = append(out, s)
			}
		}
	}
	return out
}

func (f *Flow) typesMessage() messages.Message {
	return messages.Message{
		"type":       messages.TypeTypes,
		"node_types": f.types.NodeTypes(),
		"edge_types": f.types.EdgeTypes(),
	}
}
