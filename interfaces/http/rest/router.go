// Package rest exposes a graph over HTTP.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/interfaces/http/rest/handlers"
	"github.com/panel-extensions/panel-reactflow/interfaces/http/rest/middleware"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
	"github.com/panel-extensions/panel-reactflow/pkg/observability"
)

// Router builds the HTTP handler of one graph.
type Router struct {
	graph          handlers.Graph
	validator      *auth.Validator
	tracer         *observability.Tracer
	allowedOrigins []string
	debug          bool
	logger         *zap.Logger

	// WebSocket, when set, is mounted at /ws.
	WebSocket http.Handler
}

// NewRouter creates a router. validator and tracer may be nil.
func NewRouter(graph handlers.Graph, validator *auth.Validator, tracer *observability.Tracer, allowedOrigins []string, debug bool, logger *zap.Logger) *Router {
	return &Router{
		graph:          graph,
		validator:      validator,
		tracer:         tracer,
		allowedOrigins: allowedOrigins,
		debug:          debug,
		logger:         logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.debug)
	h := handlers.NewHandler(rt.graph, errs, rt.tracer, rt.logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))

	origins := rt.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.WebSocket != nil {
		router.Handle("/ws", rt.WebSocket)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.graph.GraphID(), errs, rt.logger))

		r.Get("/graph", h.GetGraph)
		r.Get("/graph/model", h.GetGraphModel)
		r.Post("/messages", h.PostMessage)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", h.AddNode)
			r.Delete("/{id}", h.RemoveNode)
			r.Patch("/{id}/data", h.PatchNodeData)
		})
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", h.AddEdge)
			r.Delete("/{id}", h.RemoveEdge)
			r.Patch("/{id}/data", h.PatchEdgeData)
		})
		r.Route("/types", func(r chi.Router) {
			r.Get("/", h.GetTypes)
			r.Put("/nodes", h.PutNodeTypes)
			r.Put("/edges", h.PutEdgeTypes)
		})
		r.Get("/editors/nodes/{id}", h.GetNodeEditor)
		r.Get("/editors/edges/{id}", h.GetEdgeEditor)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "graph_id": rt.graph.GraphID()})
}
