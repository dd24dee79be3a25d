// Package main implements the API Gateway WebSocket Lambda. One function
// serves the $connect, $disconnect and $default routes of a graph.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
	"github.com/panel-extensions/panel-reactflow/infrastructure/di"
	"github.com/panel-extensions/panel-reactflow/interfaces/websocket"
)

var (
	container *di.LambdaContainer
	gateway   *websocket.GatewayHandler
)

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WS_ENDPOINT is required")
	}
	cfg.SaveOnEveryChange = true
	cfg.AutosaveInterval = 0

	container, _, err = di.InitializeLambdaContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	if err := container.Service.Load(ctx); err != nil {
		log.Fatalf("Failed to restore graph: %v", err)
	}
	go func() {
		if err := container.Service.Run(ctx); err != nil {
			container.Logger.Error("Graph service stopped", zap.Error(err))
		}
	}()

	gateway = websocket.NewGatewayHandler(container.Service, container.Broadcaster, container.Connections, container.Validator, container.Logger)
	container.Logger.Info("WebSocket handler initialized", zap.String("graph_id", cfg.GraphID))
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := gateway.Handle(ctx, req)
	if flushErr := container.Metrics.Flush(ctx); flushErr != nil {
		container.Logger.Warn("Failed to flush metrics", zap.Error(flushErr))
	}
	return resp, err
}

func main() {
	lambda.Start(handler)
}
