package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/panel-extensions/panel-reactflow/application/editors"
	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/protocol"
	"github.com/panel-extensions/panel-reactflow/domain/registry"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// TypesResponse lists the normalized type descriptors.
type TypesResponse struct {
	NodeTypes map[string]registry.Descriptor `json:"node_types"`
	EdgeTypes map[string]registry.Descriptor `json:"edge_types"`
}

// GetTypes handles GET /types.
func (h *Handler) GetTypes(w http.ResponseWriter, r *http.Request) {
	var resp TypesResponse
	err := h.do(r, "get_types", func(f *flow.Flow) error {
		resp.NodeTypes = f.Types().NodeTypes()
		resp.EdgeTypes = f.Types().EdgeTypes()
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// PutNodeTypes handles PUT /types/nodes.
func (h *Handler) PutNodeTypes(w http.ResponseWriter, r *http.Request) {
	h.putTypes(w, r, "set_node_types", (*flow.Flow).SetNodeTypes)
}

// PutEdgeTypes handles PUT /types/edges.
func (h *Handler) PutEdgeTypes(w http.ResponseWriter, r *http.Request) {
	h.putTypes(w, r, "set_edge_types", (*flow.Flow).SetEdgeTypes)
}

func (h *Handler) putTypes(w http.ResponseWriter, r *http.Request, name string, set func(*flow.Flow, map[string]any) error) {
	var specs map[string]any
	if err := decode(r, &specs); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	err := h.do(r, name, func(f *flow.Flow) error { return set(f, specs) })
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.GetTypes(w, r)
}

// GetNodeEditor handles GET /editors/nodes/{id}.
func (h *Handler) GetNodeEditor(w http.ResponseWriter, r *http.Request) {
	h.getEditor(w, r, editors.NodeKind)
}

// GetEdgeEditor handles GET /editors/edges/{id}.
func (h *Handler) GetEdgeEditor(w http.ResponseWriter, r *http.Request) {
	h.getEditor(w, r, editors.EdgeKind)
}

func (h *Handler) getEditor(w http.ResponseWriter, r *http.Request, kind editors.Kind) {
	id := chi.URLParam(r, "id")
	var view any
	err := h.do(r, "get_editor", func(f *flow.Flow) error {
		lookup := f.NodeEditor
		if kind == editors.EdgeKind {
			lookup = f.EdgeEditor
		}
		ed, ok := lookup(id)
		if !ok {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("%s editor '%s'", kind, id))
		}
		view = protocol.RenderViews([]any{ed.View()})[0]
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"id": id, "kind": kind, "view": view})
}
