package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// AddEdge handles POST /edges. The id is generated when omitted.
func (h *Handler) AddEdge(w http.ResponseWriter, r *http.Request) {
	var edge entities.Edge
	if err := decode(r, &edge); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	var created entities.Edge
	err := h.do(r, "add_edge", func(f *flow.Flow) error {
		var err error
		created, err = f.AddEdge(edge)
		return err
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// RemoveEdge handles DELETE /edges/{id}.
func (h *Handler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.do(r, "remove_edge", func(f *flow.Flow) error {
		if !f.RemoveEdge(id) {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("edge '%s'", id))
		}
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchEdgeData handles PATCH /edges/{id}/data.
func (h *Handler) PatchEdgeData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch map[string]any
	if err := decode(r, &patch); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	var edge entities.Edge
	err := h.do(r, "patch_edge_data", func(f *flow.Flow) error {
		if err := f.PatchEdgeData(id, patch); err != nil {
			return err
		}
		edge, _ = f.Edge(id)
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, edge)
}
