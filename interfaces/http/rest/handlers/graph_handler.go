package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/domain/interchange"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// maxMessageBytes bounds POST /messages bodies.
const maxMessageBytes = 4 << 20

// GetGraph handles GET /graph.
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	var state flow.State
	err := h.do(r, "get_graph", func(f *flow.Flow) error {
		state = f.State()
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// GetGraphModel handles GET /graph/model?multigraph=.
func (h *Handler) GetGraphModel(w http.ResponseWriter, r *http.Request) {
	multigraph := false
	if v := r.URL.Query().Get("multigraph"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.errs.Handle(w, r, pkgerrors.NewValidationError("multigraph must be a boolean"))
			return
		}
		multigraph = b
	}
	var g *interchange.DiGraph
	err := h.do(r, "get_graph_model", func(f *flow.Flow) error {
		g = f.ToGraphModel(multigraph)
		return nil
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, g)
}

// PostMessage handles POST /messages: one inbound canvas message.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		h.errs.Handle(w, r, pkgerrors.NewValidationError("failed to read body").WithCause(err))
		return
	}
	applied, err := h.graph.ApplyMessage(r.Context(), raw)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"applied": applied})
}
