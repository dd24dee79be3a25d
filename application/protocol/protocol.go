package protocol

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/editors"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

// EditorLookup finds the live editor of a node or edge.
type EditorLookup func(kind editors.Kind, id string) (editors.Editor, bool)

// Observer is told the outcome of every inbound message.
type Observer interface {
	MessageHandled(msgType string, applied bool)
}

type handlerFunc func(msg messages.Message) bool

// Protocol applies canvas messages to the store and mirrors store changes
// back to the canvas. Messages are handled independently; anything that is
// malformed or unknown is dropped.
type Protocol struct {
	store    *store.GraphStore
	bus      *events.Bus
	sender   store.Sender
	editors  EditorLookup
	observer Observer
	logger   *zap.Logger

	handlers   map[string]handlerFunc
	lastPushed uint64
}

// Option configures a Protocol.
type Option func(*Protocol)

func WithSender(s store.Sender) Option  { return func(p *Protocol) { p.sender = s } }
func WithEditors(l EditorLookup) Option { return func(p *Protocol) { p.editors = l } }
func WithObserver(o Observer) Option    { return func(p *Protocol) { p.observer = o } }
func WithLogger(l *zap.Logger) Option   { return func(p *Protocol) { p.logger = l } }

// New creates a protocol bound to st and starts mirroring its changes.
func New(st *store.GraphStore, opts ...Option) *Protocol {
	p := &Protocol{store: st, bus: st.Events()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.handlers = map[string]handlerFunc{
		messages.TypeSync:             p.handleSync,
		messages.TypeNodeMoved:        p.handleNodeMoved,
		messages.TypeSelectionChanged: p.handleSelectionChanged,
		messages.TypeEdgeAdded:        p.handleEdgeAdded,
		messages.TypeNodeDeleted:      p.handleNodeDeleted,
		messages.TypeEdgeDeleted:      p.handleEdgeDeleted,
		messages.TypeNodeClicked:      p.notifyWithNode,
		messages.TypeToolbarOpened:    p.notifyWithNode,
		messages.TypeEditorPatch:      p.handleEditorPatch,
	}
	st.Watch([]string{store.FieldNodes, store.FieldEdges}, p.mirror)
	return p
}

// SetSender replaces the outbound channel.
func (p *Protocol) SetSender(s store.Sender) { p.sender = s }

// Handle applies one inbound message and reports whether it was applied.
// raw may be bytes, a string, a json.RawMessage or a decoded object.
func (p *Protocol) Handle(raw any) bool {
	msg, ok := messages.From(raw)
	if !ok {
		p.logger.Debug("Dropping malformed message")
		return false
	}
	handler, ok := p.handlers[msg.Type()]
	if !ok {
		p.logger.Debug("Ignoring unknown message", zap.String("type", msg.Type()))
		p.observe(msg.Type(), false)
		return false
	}
	applied := handler(msg)
	p.observe(msg.Type(), applied)
	return applied
}

// Push sends the current state to the canvas.
func (p *Protocol) Push() {
	if p.sender == nil {
		return
	}
	p.lastPushed = p.store.Version()
	p.sender.Send(StateMessage(p.store))
}

// Send forwards an arbitrary outbound message.
func (p *Protocol) Send(msg messages.Message) {
	if p.sender != nil {
		p.sender.Send(msg)
	}
}

// mirror pushes state after local changes. Echoes of canvas messages and
// data patches are skipped; patches travel as their own message.
func (p *Protocol) mirror(c store.Change) {
	if p.sender == nil || c.Cause.Echo() || c.Cause == store.CausePatch {
		return
	}
	if c.Version == p.lastPushed {
		return
	}
	p.Push()
}

func (p *Protocol) handleSync(msg messages.Message) bool {
	var nodes []entities.Node
	var edges []entities.Edge
	if msg.Has("nodes") {
		if err := msg.Decode("nodes", &nodes); err != nil {
			p.logger.Debug("Dropping sync with bad nodes", zap.Error(err))
			return false
		}
		nodes = p.reattachViews(nodes)
	}
	if msg.Has("edges") {
		if err := msg.Decode("edges", &edges); err != nil {
			p.logger.Debug("Dropping sync with bad edges", zap.Error(err))
			return false
		}
	}

	p.store.WithCause(store.CauseSync, func() { p.store.Replace(nodes, edges) })
	p.bus.Emit(events.Sync, payload(msg))
	return true
}

// reattachViews keeps views with their node ids; the canvas only knows
// view_idx, which is regenerated on the way out.
func (p *Protocol) reattachViews(nodes []entities.Node) []entities.Node {
	if nodes == nil {
		nodes = []entities.Node{}
	}
	for i := range nodes {
		delete(nodes[i].Data, ViewIndexKey)
		if cur, ok := p.store.Node(nodes[i].ID); ok && cur.HasView() {
			nodes[i].View = cur.View
		}
	}
	return nodes
}

func (p *Protocol) handleNodeMoved(msg messages.Message) bool {
	id, ok := msg.String("node_id")
	if !ok || !msg.Has("position") {
		return false
	}
	pos, ok := valueobjects.ParsePosition(msg["position"])
	if !ok {
		return false
	}
	p.store.WithCause(store.CauseMove, func() { p.store.MoveNode(id, *pos) })
	p.bus.Emit(events.NodeMoved, events.NewNodeMoved(id, *pos))
	return true
}

func (p *Protocol) handleSelectionChanged(msg messages.Message) bool {
	var sel valueobjects.Selection
	p.store.WithCause(store.CauseSelection, func() {
		sel = p.store.ApplySelection(msg.Strings("nodes"), msg.Strings("edges"))
	})
	p.bus.Emit(events.SelectionChanged, events.NewSelectionChanged(sel))
	return true
}

func (p *Protocol) handleEdgeAdded(msg messages.Message) bool {
	if !msg.Has("edge") {
		return false
	}
	var edge entities.Edge
	if err := msg.Decode("edge", &edge); err != nil {
		p.logger.Debug("Dropping edge_added with bad edge", zap.Error(err))
		return false
	}
	if _, err := p.store.AddEdge(edge); err != nil {
		p.logger.Warn("Rejected edge from canvas", zap.String("edge_id", edge.ID), zap.Error(err))
		p.Push()
		return false
	}
	return true
}

func (p *Protocol) handleNodeDeleted(msg messages.Message) bool {
	ids := idSet(msg, "node_ids", "node_id")
	if len(ids) == 0 {
		return false
	}
	p.store.WithCause(store.CauseDelete, func() {
		for _, id := range ids {
			p.store.RemoveNode(id)
		}
	})
	return true
}

func (p *Protocol) handleEdgeDeleted(msg messages.Message) bool {
	ids := idSet(msg, "edge_ids", "edge_id")
	if len(ids) == 0 {
		return false
	}
	p.store.WithCause(store.CauseDelete, func() {
		for _, id := range ids {
			p.store.RemoveEdge(id)
		}
	})
	return true
}

func (p *Protocol) notifyWithNode(msg messages.Message) bool {
	if !msg.Has("node_id") {
		return false
	}
	p.bus.Emit(msg.Type(), payload(msg))
	return true
}

// handleEditorPatch routes a form edit made on the canvas through the live
// editor so its local state follows, or straight to the store.
func (p *Protocol) handleEditorPatch(msg messages.Message) bool {
	id, ok := msg.String("id")
	patch, okPatch := msg.Map("patch")
	if !ok || !okPatch {
		return false
	}
	kind := editors.NodeKind
	if k, _ := msg.String("kind"); k == string(editors.EdgeKind) {
		kind = editors.EdgeKind
	}

	var err error
	if ed, found := p.editor(kind, id); found {
		if patcher, isPatcher := ed.(editors.Patcher); isPatcher {
			err = patcher.Apply(patch)
		} else {
			err = p.patchStore(kind, id, patch)
		}
	} else {
		err = p.patchStore(kind, id, patch)
	}
	if err != nil {
		p.logger.Warn("Rejected editor patch", zap.String("id", id), zap.Error(err))
		// Put the canvas back on the canonical data.
		p.Push()
		return false
	}
	return true
}

func (p *Protocol) editor(kind editors.Kind, id string) (editors.Editor, bool) {
	if p.editors == nil {
		return nil, false
	}
	return p.editors(kind, id)
}

func (p *Protocol) patchStore(kind editors.Kind, id string, patch map[string]any) error {
	if kind == editors.EdgeKind {
		return p.store.PatchEdgeData(id, patch)
	}
	return p.store.PatchNodeData(id, patch)
}

func (p *Protocol) observe(msgType string, applied bool) {
	if p.observer != nil {
		p.observer.MessageHandled(msgType, applied)
	}
}

// idSet merges a list field and a single id field, dropping duplicates and
// keeping first-seen order.
func idSet(msg messages.Message, listKey, singleKey string) []string {
	ids := slices.Clone(msg.Strings(listKey))
	if id, ok := msg.String(singleKey); ok {
		ids = append(ids, id)
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func payload(msg messages.Message) events.Payload {
	return events.Payload(maps.Clone(msg))
}
