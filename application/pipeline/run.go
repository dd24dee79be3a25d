package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/domain/events"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// OutputsKey holds a stage node's computed outputs in its data.
const OutputsKey = "outputs"

// Run computes every stage in order.
func (p *Pipeline) Run() error {
	return p.run(p.order)
}

// RunFrom recomputes name and every stage downstream of it.
func (p *Pipeline) RunFrom(name string) error {
	if _, ok := p.stages[name]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("stage '%s'", name))
	}
	reach := map[string]bool{name: true}
	var affected []string
	for _, s := range p.order {
		if !reach[s] {
			continue
		}
		affected = append(affected, s)
		for _, l := range p.links {
			if l.Source == s {
				reach[l.Target] = true
			}
		}
	}
	return p.run(affected)
}

// run computes the outputs of each stage, pushes them into the linked
// inputs downstream and writes parameters and outputs back to the nodes.
// A failing output is logged and leaves its targets unchanged; the first
// such error is returned once every stage ran.
func (p *Pipeline) run(names []string) error {
	var errs []error
	for _, name := range names {
		s := p.stages[name]
		results := make(map[string]any, len(s.outputs))
		for _, out := range s.outputs {
			v, err := out.Compute()
			if err != nil {
				p.logger.Warn("Stage output failed",
					zap.String("stage", name),
					zap.String("output", out.Name),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s.%s: %w", name, out.Name, err))
				continue
			}
			results[out.Name] = v
		}

		for _, l := range p.links {
			if l.Source != name {
				continue
			}
			v, ok := results[l.Param]
			if !ok {
				continue
			}
			if err := p.stages[l.Target].set(l.Param, v); err != nil {
				p.logger.Warn("Output does not fit input",
					zap.String("source", l.Source),
					zap.String("target", l.Target),
					zap.String("param", l.Param),
					zap.Error(err),
				)
			}
		}

		data := s.params()
		data[OutputsKey] = results
		p.applying = true
		err := p.flow.PatchNodeData(name, data)
		p.applying = false
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetInput assigns a stage parameter, validates the stage and re-runs it
// and everything downstream. An invalid value leaves the stage unchanged.
func (p *Pipeline) SetInput(stageName, param string, value any) error {
	s, ok := p.stages[stageName]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("stage '%s'", stageName))
	}
	if !s.hasInput(param) {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("parameter '%s' on stage '%s'", param, stageName))
	}

	old := s.get(param)
	if err := s.set(param, value); err != nil {
		return err
	}
	if err := p.validateStage(s); err != nil {
		_ = s.set(param, old)
		return err
	}

	id := stageName + ":" + param
	if _, ok := p.inputs[id]; ok {
		p.applying = true
		err := p.flow.PatchNodeData(id, map[string]any{"value": s.get(param)})
		p.applying = false
		if err != nil {
			return err
		}
	}
	return p.RunFrom(stageName)
}

func (p *Pipeline) validateStage(s *stage) error {
	err := p.validate.Struct(s.ptr)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return pkgerrors.NewValidationError(
			fmt.Sprintf("invalid value for %s.%s: failed '%s'", s.name, fe.Field(), fe.Tag()),
		).WithDetails(map[string]any{"stage": s.name, "field": fe.Field(), "rule": fe.Tag()})
	}
	return pkgerrors.NewValidationError(err.Error())
}

// inputChanged applies value edits made on input nodes, for instance
// through their editors on the canvas. A rejected value is written back.
func (p *Pipeline) inputChanged(e events.Payload) {
	if p.applying {
		return
	}
	id, _ := e["node_id"].(string)
	ref, ok := p.inputs[id]
	if !ok {
		return
	}
	patch, _ := e["patch"].(map[string]any)
	value, ok := patch["value"]
	if !ok {
		return
	}
	s := p.stages[ref.stage]
	if reflect.DeepEqual(value, s.get(ref.param)) {
		return
	}

	if err := p.SetInput(ref.stage, ref.param, value); err != nil {
		p.logger.Info("Rejected input value", zap.String("input", id), zap.Error(err))
		p.applying = true
		_ = p.flow.PatchNodeData(id, map[string]any{"value": s.get(ref.param)})
		p.applying = false
	}
}

// Inputs returns the input node ids with their current values.
func (p *Pipeline) Inputs() map[string]any {
	out := make(map[string]any, len(p.inputs))
	for id, ref := range p.inputs {
		out[id] = p.stages[ref.stage].get(ref.param)
	}
	return out
}

// Params returns a copy of a stage's parameter values.
func (p *Pipeline) Params(stageName string) (map[string]any, bool) {
	s, ok := p.stages[stageName]
	if !ok {
		return nil, false
	}
	return maps.Clone(s.params()), true
}
