package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

// PostClient is the API Gateway management call the broadcaster needs.
type PostClient interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Broadcaster delivers messages to API Gateway WebSocket connections. The
// connection list lives in a ConnectionRepository because Lambda
// invocations share no memory.
type Broadcaster struct {
	graphID     string
	client      PostClient
	connections ports.ConnectionRepository
	timeout     time.Duration
	logger      *zap.Logger
}

var _ store.Sender = (*Broadcaster)(nil)

func NewBroadcaster(graphID string, client PostClient, connections ports.ConnectionRepository, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		graphID:     graphID,
		client:      client,
		connections: connections,
		timeout:     10 * time.Second,
		logger:      logger,
	}
}

// Send posts msg to every connection of the graph.
func (b *Broadcaster) Send(msg messages.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.Broadcast(ctx, msg); err != nil {
		b.logger.Error("Broadcast failed", zap.Error(err), zap.String("type", msg.Type()))
	}
}

// Broadcast posts msg to every connection of the graph, pruning
// connections API Gateway reports as gone.
func (b *Broadcaster) Broadcast(ctx context.Context, msg messages.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conns, err := b.connections.ListByGraph(ctx, b.graphID)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range conns {
		if err := b.post(ctx, c.ID, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendTo posts msg to a single connection.
func (b *Broadcaster) SendTo(ctx context.Context, connectionID string, msg messages.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.post(ctx, connectionID, data)
}

func (b *Broadcaster) post(ctx context.Context, connectionID string, data []byte) error {
	_, err := b.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err == nil {
		return nil
	}
	if isGone(err) {
		b.logger.Info("Connection is gone, removing", zap.String("connectionID", connectionID))
		if rmErr := b.connections.Remove(ctx, connectionID); rmErr != nil {
			b.logger.Warn("Failed to remove stale connection", zap.Error(rmErr))
		}
		return nil
	}
	return err
}

func isGone(err error) bool {
	var gone *apigwtypes.GoneException
	if errors.As(err, &gone) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "GoneException"
}
