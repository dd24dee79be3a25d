package websocket

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/application/protocol"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

// Transport-level message types. They never reach the graph.
const (
	TypePong         = "pong"
	TypeRequestState = "request_state"
)

// Graph is the part of the graph service the transport drives.
type Graph interface {
	GraphID() string
	Do(ctx context.Context, name string, fn func(f *flow.Flow) error) error
	HandleMessage(ctx context.Context, raw []byte) error
}

// ServerConfig holds WebSocket server configuration.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists accepted Origin headers; empty or "*" allows all.
	AllowedOrigins []string
	MaxConnections int
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxConnections:  1000,
	}
}

// Server upgrades HTTP requests into canvas connections of one graph.
type Server struct {
	graph       Graph
	hub         *Hub
	validator   *auth.Validator
	connections ports.ConnectionRepository
	upgrader    websocket.Upgrader
	cfg         ServerConfig
	logger      *zap.Logger
}

// NewServer creates a server. validator and connections may be nil; without
// a validator every client is anonymous.
func NewServer(graph Graph, hub *Hub, validator *auth.Validator, connections ports.ConnectionRepository, cfg ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		graph:       graph,
		hub:         hub,
		validator:   validator,
		connections: connections,
		cfg:         cfg,
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// ServeHTTP handles WebSocket upgrade requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if s.cfg.MaxConnections > 0 && s.hub.ConnectionCount() >= s.cfg.MaxConnections {
		s.logger.Warn("Connection limit reached", zap.Int("limit", s.cfg.MaxConnections))
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	// The request context ends with the handler, so pumps get their own.
	ctx, cancel := context.WithCancel(context.Background())
	client := newClient(userID, s.hub, conn, s.logger)
	client.onMessage = s.handle
	s.hub.register(client)
	s.track(ctx, client)

	go client.writePump()
	go func() {
		defer cancel()
		defer s.untrack(client)
		client.readPump(ctx)
	}()

	s.sendState(ctx, client)
	s.logger.Info("New WebSocket connection established",
		zap.String("userID", userID),
		zap.String("connectionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// handle routes one inbound frame.
func (s *Server) handle(ctx context.Context, c *Client, raw []byte) {
	if msg, ok := messages.Parse(raw); ok && msg.Type() == TypeRequestState {
		s.sendState(ctx, c)
		return
	}
	if err := s.graph.HandleMessage(ctx, raw); err != nil {
		c.logger.Debug("Message not queued", zap.Error(err))
	}
}

// sendState queues the full graph state for one client. It runs on the
// graph loop so the state is ordered with the broadcasts around it.
func (s *Server) sendState(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.graph.Do(ctx, "send_state", func(f *flow.Flow) error {
		s.hub.SendTo(c, protocol.StateMessage(f.Store()))
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to send initial state", zap.Error(err))
	}
}

// authenticate reads the token from the query string or the Authorization header.
func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.validator == nil {
		return "anonymous", nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	claims, err := s.validator.Validate(token)
	if err != nil {
		return "", err
	}
	if !claims.CanAccess(s.graph.GraphID()) {
		return "", auth.ErrInvalidClaims
	}
	return claims.UserID, nil
}

func (s *Server) track(ctx context.Context, c *Client) {
	if s.connections == nil {
		return
	}
	err := s.connections.Add(ctx, ports.Connection{
		ID:          c.ID(),
		GraphID:     s.graph.GraphID(),
		UserID:      c.UserID(),
		ConnectedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Failed to record connection", zap.Error(err))
	}
}

func (s *Server) untrack(c *Client) {
	if s.connections == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.connections.Remove(ctx, c.ID()); err != nil {
		s.logger.Warn("Failed to remove connection", zap.Error(err))
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub { return s.hub }
