package di

import (
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/application/services"
	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
	"github.com/panel-extensions/panel-reactflow/interfaces/websocket"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
	"github.com/panel-extensions/panel-reactflow/pkg/observability"
)

// Container holds all application dependencies of the HTTP server
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Snapshots   ports.SnapshotRepository
	Connections ports.ConnectionRepository
	Publisher   ports.EventPublisher
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	Validator   *auth.Validator
	Definition  *config.GraphDefinition
	Flow        *flow.Flow
	Hub         *websocket.Hub
	Service     *services.GraphService
}

// LambdaContainer holds the dependencies of the Lambda handlers, which
// reach canvas clients through API Gateway instead of a hub.
type LambdaContainer struct {
	Config      *config.Config
	Logger      *zap.Logger
	Snapshots   ports.SnapshotRepository
	Connections ports.ConnectionRepository
	Publisher   ports.EventPublisher
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	Validator   *auth.Validator
	Flow        *flow.Flow
	Broadcaster *websocket.Broadcaster
	Service     *services.GraphService
}
