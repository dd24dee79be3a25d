// Package handlers implements the REST endpoints of one graph.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
	"github.com/panel-extensions/panel-reactflow/pkg/observability"
)

// Graph is the part of the graph service the handlers call.
type Graph interface {
	GraphID() string
	Do(ctx context.Context, name string, fn func(f *flow.Flow) error) error
	ApplyMessage(ctx context.Context, raw []byte) (bool, error)
}

// Handler serves every graph route.
type Handler struct {
	graph  Graph
	errs   *pkgerrors.ErrorHandler
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewHandler creates a handler. tracer may be nil.
func NewHandler(graph Graph, errs *pkgerrors.ErrorHandler, tracer *observability.Tracer, logger *zap.Logger) *Handler {
	return &Handler{graph: graph, errs: errs, tracer: tracer, logger: logger}
}

// do runs fn on the graph loop inside a trace subsegment.
func (h *Handler) do(r *http.Request, name string, fn func(f *flow.Flow) error) error {
	return h.tracer.Trace(r.Context(), name, func(ctx context.Context) error {
		h.tracer.Annotate(ctx, "graph_id", h.graph.GraphID())
		return h.graph.Do(ctx, name, fn)
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
