package store

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/schema"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// SchemaSource resolves a type name to its schema.
type SchemaSource interface {
	Schema(typeName string, isEdge bool) schema.Schema
}

// Sender delivers outbound messages to the canvas. Send must not block.
type Sender interface {
	Send(msg messages.Message)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(messages.Message)

func (f SenderFunc) Send(msg messages.Message) { f(msg) }

// GraphStore owns the canonical nodes and edges. It is not safe for
// concurrent use; callers serialize access.
//
// Nodes and edges are never mutated in place: every mutation assigns a new
// slice, bumps the version and notifies watchers.
type GraphStore struct {
	nodes     []entities.Node
	edges     []entities.Edge
	selection valueobjects.Selection
	views     []any
	version   uint64
	cause     Cause

	types     SchemaSource
	validator *schema.Validator
	bus       *events.Bus
	sender    Sender
	logger    *zap.Logger

	validateOnAdd   bool
	validateOnPatch bool

	watchers    []watcher
	nextWatcher int
}

// Option configures a GraphStore.
type Option func(*GraphStore)

func WithValidateOnAdd(v bool) Option   { return func(s *GraphStore) { s.validateOnAdd = v } }
func WithValidateOnPatch(v bool) Option { return func(s *GraphStore) { s.validateOnPatch = v } }
func WithSender(sender Sender) Option   { return func(s *GraphStore) { s.sender = sender } }
func WithLogger(l *zap.Logger) Option   { return func(s *GraphStore) { s.logger = l } }
func WithValidator(v *schema.Validator) Option {
	return func(s *GraphStore) { s.validator = v }
}

// New creates an empty store. types may be nil when no type has a schema.
func New(types SchemaSource, bus *events.Bus, opts ...Option) *GraphStore {
	s := &GraphStore{
		nodes:     []entities.Node{},
		edges:     []entities.Edge{},
		selection: valueobjects.EmptySelection(),
		views:     []any{},
		cause:     CauseLocal,
		types:     types,
		bus:       bus,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.bus == nil {
		s.bus = events.NewBus(s.logger)
	}
	if s.validator == nil {
		s.validator = schema.NewValidator()
	}

	s.Watch([]string{FieldNodes, FieldEdges}, s.deriveSelection)
	s.Watch([]string{FieldNodes}, s.collectViews)
	return s
}

// SetSender replaces the outbound channel.
func (s *GraphStore) SetSender(sender Sender) { s.sender = sender }

// SetValidation toggles validate-on-add and validate-on-patch.
func (s *GraphStore) SetValidation(onAdd, onPatch bool) {
	s.validateOnAdd = onAdd
	s.validateOnPatch = onPatch
}

func (s *GraphStore) Nodes() []entities.Node            { return s.nodes }
func (s *GraphStore) Edges() []entities.Edge            { return s.edges }
func (s *GraphStore) Selection() valueobjects.Selection { return s.selection }
func (s *GraphStore) Version() uint64                   { return s.version }
func (s *GraphStore) Events() *events.Bus               { return s.bus }

// Views returns the renderables attached to nodes, in node order. A node's
// view_idx indexes into this list.
func (s *GraphStore) Views() []any { return s.views }

// Node returns the node with id.
func (s *GraphStore) Node(id string) (entities.Node, bool) {
	if i := s.nodeIndex(id); i >= 0 {
		return s.nodes[i], true
	}
	return entities.Node{}, false
}

// Edge returns the edge with id.
func (s *GraphStore) Edge(id string) (entities.Edge, bool) {
	if i := s.edgeIndex(id); i >= 0 {
		return s.edges[i], true
	}
	return entities.Edge{}, false
}

// AddNode fills defaults, validates and appends node. A non-nil view is
// attached to the node in memory.
func (s *GraphStore) AddNode(node entities.Node, view any) error {
	node = node.Clone().WithDefaults()
	if view != nil {
		node.View = view
	}
	if err := entities.ValidateNode(node); err != nil {
		return err
	}
	if s.nodeIndex(node.ID) >= 0 {
		return pkgerrors.NewValidationError(fmt.Sprintf("node '%s' already exists", node.ID))
	}
	if s.validateOnAdd {
		if err := s.validator.Validate(s.schemaFor(node.Type, false), node.Data); err != nil {
			return err
		}
	}

	s.commit(append(slices.Clone(s.nodes), node), nil)
	s.bus.Emit(events.NodeAdded, events.NewNodeAdded(node))
	return nil
}

// AddEdge assigns an id when missing, validates and appends edge.
func (s *GraphStore) AddEdge(edge entities.Edge) (entities.Edge, error) {
	edge = edge.Clone().WithDefaults()
	if err := entities.ValidateEdge(edge); err != nil {
		return entities.Edge{}, err
	}
	if s.edgeIndex(edge.ID) >= 0 {
		return entities.Edge{}, pkgerrors.NewValidationError(fmt.Sprintf("edge '%s' already exists", edge.ID))
	}
	if s.validateOnAdd {
		if err := s.validator.Validate(s.schemaFor(edge.Type, true), edge.Data); err != nil {
			return entities.Edge{}, err
		}
	}

	s.commit(nil, append(slices.Clone(s.edges), edge))
	s.bus.Emit(events.EdgeAdded, events.NewEdgeAdded(edge))
	return edge, nil
}

// RemoveNode removes a node and every edge touching it. It returns the ids
// of the removed edges; an unknown id is a no-op.
func (s *GraphStore) RemoveNode(id string) []string {
	idx := s.nodeIndex(id)
	if idx < 0 {
		return nil
	}
	nodes := slices.Delete(slices.Clone(s.nodes), idx, idx+1)

	edges := make([]entities.Edge, 0, len(s.edges))
	deleted := []string{}
	for _, e := range s.edges {
		if e.Touches(id) {
			deleted = append(deleted, e.ID)
			continue
		}
		edges = append(edges, e)
	}
	if len(deleted) == 0 {
		edges = nil
	}

	s.commit(nodes, edges)
	s.logger.Debug("Node removed", zap.String("node_id", id), zap.Strings("deleted_edges", deleted))
	s.bus.Emit(events.NodeDeleted, events.NewNodeDeleted(id, deleted))
	return deleted
}

// RemoveEdge removes an edge. Removing an unknown id does nothing.
func (s *GraphStore) RemoveEdge(id string) bool {
	idx := s.edgeIndex(id)
	if idx < 0 {
		return false
	}
	s.commit(nil, slices.Delete(slices.Clone(s.edges), idx, idx+1))
	s.bus.Emit(events.EdgeDeleted, events.NewEdgeDeleted(id))
	return true
}

// PatchNodeData shallow-merges patch into the node's data. When the merged
// data fails validation nothing is applied and nothing is sent.
func (s *GraphStore) PatchNodeData(id string, patch map[string]any) error {
	idx := s.nodeIndex(id)
	if idx < 0 {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node '%s'", id))
	}
	node := s.nodes[idx]
	merged := merge(node.Data, patch)
	if s.validateOnPatch {
		if err := s.validator.Validate(s.schemaFor(node.Type, false), merged); err != nil {
			return err
		}
	}

	nodes := slices.Clone(s.nodes)
	nodes[idx].Data = merged
	patch = maps.Clone(patch)
	s.WithCause(CausePatch, func() { s.commit(nodes, nil) })

	s.send(messages.Message{"type": messages.TypePatchNodeData, "node_id": id, "patch": patch})
	s.bus.Emit(events.NodeDataChanged, events.NewNodeDataChanged(id, patch))
	return nil
}

// PatchEdgeData shallow-merges patch into the edge's data.
func (s *GraphStore) PatchEdgeData(id string, patch map[string]any) error {
	idx := s.edgeIndex(id)
	if idx < 0 {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("edge '%s'", id))
	}
	edge := s.edges[idx]
	merged := merge(edge.Data, patch)
	if s.validateOnPatch {
		if err := s.validator.Validate(s.schemaFor(edge.Type, true), merged); err != nil {
			return err
		}
	}

	edges := slices.Clone(s.edges)
	edges[idx].Data = merged
	patch = maps.Clone(patch)
	s.WithCause(CausePatch, func() { s.commit(nil, edges) })

	s.send(messages.Message{"type": messages.TypePatchEdgeData, "edge_id": id, "patch": patch})
	s.bus.Emit(events.EdgeDataChanged, events.NewEdgeDataChanged(id, patch))
	return nil
}

// SetNodes replaces all nodes. No validation runs; this is the path for
// wholesale state from the canvas or a snapshot.
func (s *GraphStore) SetNodes(nodes []entities.Node) {
	s.Replace(nodes, nil)
}

// SetEdges replaces all edges.
func (s *GraphStore) SetEdges(edges []entities.Edge) {
	s.Replace(nil, edges)
}

// Replace swaps nodes and edges in one step. A nil slice keeps that field.
func (s *GraphStore) Replace(nodes []entities.Node, edges []entities.Edge) {
	if nodes != nil {
		nodes = slices.Clone(nodes)
		for i := range nodes {
			nodes[i] = nodes[i].WithDefaults()
		}
	}
	if edges != nil {
		edges = slices.Clone(edges)
		for i := range edges {
			edges[i] = edges[i].WithDefaults()
		}
	}
	s.commit(nodes, edges)
}

// MoveNode sets a node's position. It reports whether the node exists.
func (s *GraphStore) MoveNode(id string, pos valueobjects.Position) bool {
	idx := s.nodeIndex(id)
	if idx < 0 {
		return false
	}
	nodes := slices.Clone(s.nodes)
	nodes[idx].Position = &pos
	s.commit(nodes, nil)
	return true
}

// ApplySelection sets every node and edge's selected flag from the id lists
// and returns the derived selection.
func (s *GraphStore) ApplySelection(nodeIDs, edgeIDs []string) valueobjects.Selection {
	nodes := slices.Clone(s.nodes)
	for i := range nodes {
		nodes[i].Selected = slices.Contains(nodeIDs, nodes[i].ID)
	}
	edges := slices.Clone(s.edges)
	for i := range edges {
		edges[i].Selected = slices.Contains(edgeIDs, edges[i].ID)
	}
	s.commit(nodes, edges)
	return s.selection
}

// commit assigns the non-nil slices, then notifies watchers once per field.
func (s *GraphStore) commit(nodes []entities.Node, edges []entities.Edge) {
	if nodes == nil && edges == nil {
		return
	}
	var changes []Change
	s.version++
	if nodes != nil {
		old := s.nodes
		s.nodes = nodes
		changes = append(changes, Change{Name: FieldNodes, Old: old, New: nodes, Cause: s.cause, Version: s.version})
	}
	if edges != nil {
		old := s.edges
		s.edges = edges
		changes = append(changes, Change{Name: FieldEdges, Old: old, New: edges, Cause: s.cause, Version: s.version})
	}
	for _, c := range changes {
		s.notify(c)
	}
}

// deriveSelection keeps selection in line with the selected flags. The
// canvas reported selection_changed itself when the cause is inbound, so the
// event is left to the protocol then.
func (s *GraphStore) deriveSelection(c Change) {
	sel := valueobjects.EmptySelection()
	for _, n := range s.nodes {
		if n.Selected {
			sel.Nodes = append(sel.Nodes, n.ID)
		}
	}
	for _, e := range s.edges {
		if e.Selected {
			sel.Edges = append(sel.Edges, e.ID)
		}
	}
	if sel.Equal(s.selection) {
		return
	}

	old := s.selection
	s.selection = sel
	s.notify(Change{Name: FieldSelection, Old: old, New: sel, Cause: c.Cause, Version: s.version})
	if c.Cause != CauseSelection {
		s.bus.Emit(events.SelectionChanged, events.NewSelectionChanged(sel))
	}
}

func (s *GraphStore) collectViews(Change) {
	views := make([]any, 0, len(s.views))
	for _, n := range s.nodes {
		if n.HasView() {
			views = append(views, n.View)
		}
	}
	s.views = views
}

func (s *GraphStore) schemaFor(typeName string, isEdge bool) schema.Schema {
	if s.types == nil {
		return nil
	}
	return s.types.Schema(typeName, isEdge)
}

func (s *GraphStore) send(msg messages.Message) {
	if s.sender != nil {
		s.sender.Send(msg)
	}
}

func (s *GraphStore) nodeIndex(id string) int {
	return slices.IndexFunc(s.nodes, func(n entities.Node) bool { return n.ID == id })
}

func (s *GraphStore) edgeIndex(id string) int {
	return slices.IndexFunc(s.edges, func(e entities.Edge) bool { return e.ID == id })
}

func merge(data, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(data)+len(patch))
	maps.Copy(merged, data)
	maps.Copy(merged, patch)
	return merged
}
