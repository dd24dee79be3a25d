package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/ports"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// GraphIndex is the GSI keyed on GraphID used to list a graph's connections.
const GraphIndex = "GraphIndex"

// ConnectionRepository stores one item per WebSocket connection, keyed by
// ConnectionID.
type ConnectionRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

func NewConnectionRepository(client Client, tableName string, logger *zap.Logger) *ConnectionRepository {
	return &ConnectionRepository{client: client, tableName: tableName, logger: logger}
}

func (r *ConnectionRepository) Add(ctx context.Context, conn ports.Connection) error {
	av, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal connection").WithCause(err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return translate("PutItem", fmt.Sprintf("connection '%s'", conn.ID), err)
	}
	r.logger.Debug("Connection stored",
		zap.String("connectionID", conn.ID),
		zap.String("graphID", conn.GraphID),
	)
	return nil
}

func (r *ConnectionRepository) Remove(ctx context.Context, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"ConnectionID": &types.AttributeValueMemberS{Value: connectionID},
		},
	})
	return translate("DeleteItem", fmt.Sprintf("connection '%s'", connectionID), err)
}

// ListByGraph pages through GraphIndex and returns connections oldest first.
func (r *ConnectionRepository) ListByGraph(ctx context.Context, graphID string) ([]ports.Connection, error) {
	keyCond := expression.Key("GraphID").Equal(expression.Value(graphID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build key condition").WithCause(err)
	}

	var conns []ports.Connection
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(GraphIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, translate("Query", fmt.Sprintf("connections of graph '%s'", graphID), err)
		}
		var page []ports.Connection
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewInternalError("failed to unmarshal connections").WithCause(err)
		}
		conns = append(conns, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].ConnectedAt.Before(conns[j].ConnectedAt)
	})
	return conns, nil
}
