package flow

import (
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/editors"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

type options struct {
	logger *zap.Logger

	nodes []entities.Node
	edges []entities.Edge
	views map[string]any

	nodeTypes map[string]any
	edgeTypes map[string]any

	nodeEditors       map[string]editors.Factory
	edgeEditors       map[string]editors.Factory
	defaultNodeEditor editors.Factory
	defaultEdgeEditor editors.Factory
	editorMode        string

	validateOnAdd   bool
	validateOnPatch bool
	sender          store.Sender
}

// Option configures a Flow.
type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithNodes sets the initial nodes. They are not validated.
func WithNodes(nodes []entities.Node) Option { return func(o *options) { o.nodes = nodes } }

func WithEdges(edges []entities.Edge) Option { return func(o *options) { o.edges = edges } }

// WithViews attaches renderables to the initial nodes by node id.
func WithViews(views map[string]any) Option { return func(o *options) { o.views = views } }

func WithNodeTypes(types map[string]any) Option { return func(o *options) { o.nodeTypes = types } }
func WithEdgeTypes(types map[string]any) Option { return func(o *options) { o.edgeTypes = types } }

func WithNodeEditors(f map[string]editors.Factory) Option {
	return func(o *options) { o.nodeEditors = f }
}

func WithEdgeEditors(f map[string]editors.Factory) Option {
	return func(o *options) { o.edgeEditors = f }
}

func WithDefaultNodeEditor(f editors.Factory) Option {
	return func(o *options) { o.defaultNodeEditor = f }
}

func WithDefaultEdgeEditor(f editors.Factory) Option {
	return func(o *options) { o.defaultEdgeEditor = f }
}

// WithEditorMode sets toolbar, node or side.
func WithEditorMode(mode string) Option { return func(o *options) { o.editorMode = mode } }

func WithValidateOnAdd(v bool) Option   { return func(o *options) { o.validateOnAdd = v } }
func WithValidateOnPatch(v bool) Option { return func(o *options) { o.validateOnPatch = v } }

// WithSender sets the outbound channel to the canvas.
func WithSender(s store.Sender) Option { return func(o *options) { o.sender = s } }
