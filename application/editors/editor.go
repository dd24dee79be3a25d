package editors

import (
	"io"

	"github.com/panel-extensions/panel-reactflow/domain/schema"
)

// Kind says whether an editor edits a node or an edge.
type Kind string

const (
	NodeKind Kind = "node"
	EdgeKind Kind = "edge"
)

// Target identifies what an editor edits. OnPatch commits a partial data
// update; each call is one patch cycle on the store.
type Target struct {
	ID      string
	Type    string
	Kind    Kind
	OnPatch func(patch map[string]any) error
}

// Editor is a live editor instance. View returns the renderable; Close
// releases whatever the editor holds and is called exactly once.
type Editor interface {
	View() any
	Close() error
}

// Patcher is implemented by editors that keep local field state. Apply
// updates that state and forwards the patch through OnPatch.
type Patcher interface {
	Apply(patch map[string]any) error
}

// Refresher is implemented by editors that mirror the item's data. The
// resolver calls Refresh with the committed data after every graph change
// that keeps the editor alive. Refresh must not call OnPatch.
type Refresher interface {
	Refresh(data map[string]any)
}

// Factory creates editors.
type Factory interface {
	New(data map[string]any, s schema.Schema, t Target) (Editor, error)
}

// FactoryFunc adapts a function returning any renderable to Factory. If
// the renderable is itself an Editor it is used directly.
type FactoryFunc func(data map[string]any, s schema.Schema, t Target) (any, error)

// New implements Factory.
func (f FactoryFunc) New(data map[string]any, s schema.Schema, t Target) (Editor, error) {
	v, err := f(data, s, t)
	if err != nil {
		return nil, err
	}
	if e, ok := v.(Editor); ok {
		return e, nil
	}
	return &viewEditor{view: v}, nil
}

type viewEditor struct {
	view any
}

func (e *viewEditor) View() any { return e.view }

func (e *viewEditor) Close() error {
	if c, ok := e.view.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
