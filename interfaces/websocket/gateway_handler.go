package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/application/protocol"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

// API Gateway WebSocket route keys.
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDefault    = "$default"
)

// GatewayGraph is the part of the graph service the API Gateway routes
// drive. Messages are applied synchronously because the Lambda may freeze
// as soon as the handler returns.
type GatewayGraph interface {
	GraphID() string
	Do(ctx context.Context, name string, fn func(f *flow.Flow) error) error
	ApplyMessage(ctx context.Context, raw []byte) (bool, error)
}

// GatewayHandler serves the $connect, $disconnect and $default routes of an
// API Gateway WebSocket API. API Gateway cannot post to a connection while
// $connect runs, so clients ask for the initial state with request_state.
type GatewayHandler struct {
	graph       GatewayGraph
	broadcaster *Broadcaster
	connections ports.ConnectionRepository
	validator   *auth.Validator
	logger      *zap.Logger
}

// NewGatewayHandler creates a handler. validator may be nil.
func NewGatewayHandler(graph GatewayGraph, broadcaster *Broadcaster, connections ports.ConnectionRepository, validator *auth.Validator, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{
		graph:       graph,
		broadcaster: broadcaster,
		connections: connections,
		validator:   validator,
		logger:      logger,
	}
}

// Handle routes one API Gateway WebSocket event.
func (h *GatewayHandler) Handle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	logger := h.logger.With(
		zap.String("connectionID", connID),
		zap.String("route", req.RequestContext.RouteKey),
	)

	switch req.RequestContext.RouteKey {
	case RouteConnect:
		return h.connect(ctx, req, logger)
	case RouteDisconnect:
		if err := h.connections.Remove(ctx, connID); err != nil {
			logger.Warn("Failed to remove connection", zap.Error(err))
		}
		return respond(http.StatusOK, ""), nil
	default:
		return h.message(ctx, connID, []byte(req.Body), logger), nil
	}
}

func (h *GatewayHandler) connect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest, logger *zap.Logger) (events.APIGatewayProxyResponse, error) {
	userID, err := h.authenticate(req)
	if err != nil {
		logger.Warn("WebSocket authentication failed", zap.Error(err))
		return respond(http.StatusUnauthorized, `{"error":"unauthorized"}`), nil
	}
	err = h.connections.Add(ctx, ports.Connection{
		ID:          req.RequestContext.ConnectionID,
		GraphID:     h.graph.GraphID(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to store connection", zap.Error(err))
		return respond(http.StatusInternalServerError, `{"error":"internal server error"}`), nil
	}
	logger.Info("Connection established", zap.String("userID", userID))
	return respond(http.StatusOK, ""), nil
}

func (h *GatewayHandler) message(ctx context.Context, connID string, raw []byte, logger *zap.Logger) events.APIGatewayProxyResponse {
	msg, ok := messages.Parse(raw)
	if ok {
		switch msg.Type() {
		case TypePong:
			return respond(http.StatusOK, "")
		case TypeRequestState:
			err := h.graph.Do(ctx, "send_state", func(f *flow.Flow) error {
				return h.broadcaster.SendTo(ctx, connID, protocol.StateMessage(f.Store()))
			})
			if err != nil {
				logger.Error("Failed to send state", zap.Error(err))
				return respond(http.StatusInternalServerError, "")
			}
			return respond(http.StatusOK, "")
		}
	}
	applied, err := h.graph.ApplyMessage(ctx, raw)
	if err != nil {
		logger.Error("Failed to apply message", zap.Error(err))
		return respond(http.StatusInternalServerError, "")
	}
	if !applied {
		logger.Debug("Message ignored")
	}
	return respond(http.StatusOK, "")
}

func (h *GatewayHandler) authenticate(req events.APIGatewayWebsocketProxyRequest) (string, error) {
	if h.validator == nil {
		return "anonymous", nil
	}
	token := req.QueryStringParameters["token"]
	if token == "" {
		token = req.Headers["Authorization"]
	}
	if token == "" {
		token = req.Headers["authorization"]
	}
	claims, err := h.validator.Validate(token)
	if err != nil {
		return "", err
	}
	if !claims.CanAccess(h.graph.GraphID()) {
		return "", auth.ErrInvalidClaims
	}
	return claims.UserID, nil
}

func respond(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: body}
}
