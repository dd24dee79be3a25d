package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// AddNode handles POST /nodes.
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var node entities.Node
	if err := decode(r, &node); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if node.ID == "" {
		h.errs.Handle(w, r, pkgerrors.NewMissingFieldError("id", "node"))
		return
	}
	var created entities.Node
	err := h.do(r, "add_node", func(f *flow.Flow) error {
		if err := f.AddNode(node, nil); err != nil {
			return err
		}
		created, _ = f.Node(node.ID)
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// RemoveNode handles DELETE /nodes/{id}. Removing an unknown node succeeds
// with no deleted edges.
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var deleted []string
	err := h.do(r, "remove_node", func(f *flow.Flow) error {
		deleted = f.RemoveNode(id)
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if deleted == nil {
		deleted = []string{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"node_id": id, "deleted_edges": deleted})
}

// PatchNodeData handles PATCH /nodes/{id}/data.
func (h *Handler) PatchNodeData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch map[string]any
	if err := decode(r, &patch); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	var node entities.Node
	err := h.do(r, "patch_node_data", func(f *flow.Flow) error {
		if err := f.PatchNodeData(id, patch); err != nil {
			return err
		}
		node, _ = f.Node(id)
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}
