//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
)

// CoreSet holds the providers shared by every entry point.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStorage,
	ProvideSnapshotRepository,
	ProvideConnectionRepository,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideServiceMetrics,
	ProvideTracer,
	ProvideValidator,
	ProvideGraphDefinition,
	ProvideFlow,
	ProvideGraphService,
)

// ServerSet delivers canvas messages through the in-process hub.
var ServerSet = wire.NewSet(
	CoreSet,
	ProvideHub,
	ProvideHubSender,
	wire.Struct(new(Container), "*"),
)

// LambdaSet delivers canvas messages through API Gateway.
var LambdaSet = wire.NewSet(
	CoreSet,
	ProvideAPIGatewayClient,
	ProvideBroadcaster,
	ProvideBroadcasterSender,
	wire.Struct(new(LambdaContainer), "*"),
)

// InitializeContainer creates a fully wired container for the HTTP server
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil // Wire will replace this
}

// InitializeLambdaContainer creates a fully wired container for the Lambda handlers
func InitializeLambdaContainer(ctx context.Context, cfg *config.Config) (*LambdaContainer, func(), error) {
	wire.Build(LambdaSet)
	return nil, nil, nil // Wire will replace this
}
