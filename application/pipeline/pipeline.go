// Package pipeline builds a read-mostly data-flow graph from parameter
// structs. Outputs of one stage feed the same-named inputs of later stages;
// parameters nobody feeds get input nodes of their own.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	"github.com/panel-extensions/panel-reactflow/domain/registry"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Node types and class names of pipeline nodes.
const (
	StageNodeType  = "stage"
	InputNodeType  = "input"
	StageClassName = "rf-stage"
	InputClassName = "rf-auto-input"
)

type options struct {
	graph      map[string][]string
	autoInputs bool
	spacing    Spacing
	flowOpts   []flow.Option
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithGraph wires stages explicitly: source stage name to target stage
// names. Outputs are still matched to inputs by name.
func WithGraph(g map[string][]string) Option { return func(o *options) { o.graph = g } }

// WithAutoInputs toggles input nodes for unfed parameters. On by default.
func WithAutoInputs(v bool) Option { return func(o *options) { o.autoInputs = v } }

func WithSpacing(s Spacing) Option { return func(o *options) { o.spacing = s } }

// WithFlowOptions forwards options to the underlying Flow.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(o *options) { o.flowOpts = append(o.flowOpts, opts...) }
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// Pipeline owns its stages and the Flow that shows them.
type Pipeline struct {
	stages   map[string]*stage
	order    []string // stage names in topological order
	names    []string // stage names as given
	links    []Link   // stage-to-stage links
	inputs   map[string]inputRef
	flow     *flow.Flow
	validate *validator.Validate
	logger   *zap.Logger
	applying bool
}

type inputRef struct {
	stage string
	param string
}

// New builds a pipeline from stage pointers. Each stage is a pointer to a
// struct embedding schema.Parameterized; its name is the Parameterized name
// or, when empty, the struct type name.
func New(stages []any, opts ...Option) (*Pipeline, error) {
	o := &options{autoInputs: true, spacing: DefaultSpacing}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	p := &Pipeline{
		stages:   map[string]*stage{},
		inputs:   map[string]inputRef{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   o.logger,
	}
	for _, v := range stages {
		s, err := newStage(v)
		if err != nil {
			return nil, err
		}
		if _, dup := p.stages[s.name]; dup {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("duplicate stage name '%s'", s.name))
		}
		p.stages[s.name] = s
		p.names = append(p.names, s.name)
	}

	var err error
	if o.graph == nil {
		p.links = p.inferLinks()
	} else if p.links, err = p.explicitLinks(o.graph); err != nil {
		return nil, err
	}
	if p.order, err = topoSort(p.names, p.links); err != nil {
		return nil, err
	}

	allNames := append([]string(nil), p.names...)
	allLinks := append([]Link(nil), p.links...)
	if o.autoInputs {
		for _, in := range p.unfed() {
			id := in.stage + ":" + in.param
			p.inputs[id] = in
			allNames = append(allNames, id)
			allLinks = append(allLinks, Link{Source: id, Target: in.stage, Param: in.param})
		}
	}

	positions := ComputePositions(allNames, allLinks, o.spacing)
	nodes := make([]entities.Node, 0, len(allNames))
	views := map[string]any{}
	for _, name := range allNames {
		pos := positions[name]
		n := entities.Node{ID: name, Position: &pos}
		if in, ok := p.inputs[name]; ok {
			n.Type = InputNodeType
			n.Label = title(in.param)
			n.ClassName = InputClassName
			n.Data = map[string]any{"param": in.param, "value": p.stages[in.stage].get(in.param)}
		} else {
			s := p.stages[name]
			n.Type = StageNodeType
			n.Label = name
			n.ClassName = StageClassName
			n.Data = s.params()
			if v, ok := s.ptr.(Viewer); ok {
				views[name] = v.View()
			}
		}
		nodes = append(nodes, n)
	}

	flowOpts := append([]flow.Option{
		flow.WithLogger(o.logger),
		flow.WithNodes(nodes),
		flow.WithEdges(buildEdges(allLinks)),
		flow.WithViews(views),
		flow.WithNodeTypes(map[string]any{
			StageNodeType: registry.NodeType{Type: StageNodeType, Label: "Stage"},
			InputNodeType: registry.NodeType{Type: InputNodeType, Label: "Input", Outputs: []string{"value"}},
		}),
	}, o.flowOpts...)
	if p.flow, err = flow.New(flowOpts...); err != nil {
		return nil, err
	}
	p.flow.On(events.NodeDataChanged, p.inputChanged)

	if err := p.Run(); err != nil {
		p.logger.Warn("Initial pipeline run failed", zap.Error(err))
	}
	return p, nil
}

// Flow returns the graph the pipeline is shown in.
func (p *Pipeline) Flow() *flow.Flow { return p.flow }

// Links returns the stage-to-stage links.
func (p *Pipeline) Links() []Link { return p.links }

// Order returns stage names in execution order.
func (p *Pipeline) Order() []string { return p.order }

// inferLinks matches every output to same-named inputs of later stages.
func (p *Pipeline) inferLinks() []Link {
	var links []Link
	for i, src := range p.names {
		for _, out := range p.stages[src].outputs {
			for _, tgt := range p.names[i+1:] {
				if p.stages[tgt].hasInput(out.Name) {
					links = append(links, Link{Source: src, Target: tgt, Param: out.Name})
				}
			}
		}
	}
	return links
}

func (p *Pipeline) explicitLinks(graph map[string][]string) ([]Link, error) {
	var links []Link
	// Iterate in stage order so edge ids are stable.
	for _, src := range p.names {
		targets, ok := graph[src]
		if !ok {
			continue
		}
		for _, tgt := range targets {
			t, ok := p.stages[tgt]
			if !ok {
				return nil, pkgerrors.NewValidationError(fmt.Sprintf("graph references unknown stage '%s'", tgt))
			}
			for _, out := range p.stages[src].outputs {
				if t.hasInput(out.Name) {
					links = append(links, Link{Source: src, Target: tgt, Param: out.Name})
				}
			}
		}
	}
	for src := range graph {
		if _, ok := p.stages[src]; !ok {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("graph references unknown stage '%s'", src))
		}
	}
	return links, nil
}

// unfed lists stage parameters no link feeds, in stage and field order.
func (p *Pipeline) unfed() []inputRef {
	fed := map[inputRef]bool{}
	for _, l := range p.links {
		fed[inputRef{stage: l.Target, param: l.Param}] = true
	}
	var out []inputRef
	for _, name := range p.names {
		for _, param := range p.stages[name].order {
			ref := inputRef{stage: name, param: param}
			if !fed[ref] {
				out = append(out, ref)
			}
		}
	}
	return out
}

// buildEdges gives each distinct link an edge e1..eN labelled with the
// parameter it feeds.
func buildEdges(links []Link) []entities.Edge {
	edges := make([]entities.Edge, 0, len(links))
	seen := map[Link]bool{}
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		edges = append(edges, entities.Edge{
			ID:        fmt.Sprintf("e%d", len(edges)+1),
			Source:    l.Source,
			Target:    l.Target,
			Label:     l.Param,
			MarkerEnd: map[string]any{"type": "arrowclosed"},
			Data:      map[string]any{},
		})
	}
	return edges
}

// topoSort orders stages so every link source comes before its target.
func topoSort(names []string, links []Link) ([]string, error) {
	indeg := make(map[string]int, len(names))
	next := map[string][]string{}
	seen := map[[2]string]bool{}
	for _, l := range links {
		key := [2]string{l.Source, l.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		next[l.Source] = append(next[l.Source], l.Target)
		indeg[l.Target]++
	}

	var queue, order []string
	for _, n := range names {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, t := range next[cur] {
			indeg[t]--
			if indeg[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	if len(order) != len(names) {
		var stuck []string
		for _, n := range names {
			if indeg[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, pkgerrors.NewValidationError("pipeline graph has a cycle").
			WithDetails(map[string]any{"stages": stuck})
	}
	return order, nil
}

func title(param string) string {
	words := strings.Fields(strings.ReplaceAll(param, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
