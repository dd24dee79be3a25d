package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

const snapshotSK = "SNAPSHOT"

// SnapshotRepository keeps the latest snapshot of each graph in one item.
type SnapshotRepository struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

func NewSnapshotRepository(client Client, tableName string, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{client: client, tableName: tableName, logger: logger}
}

// snapshotItem is the stored item. The graph state is kept as a JSON string
// because node data holds arbitrary values.
type snapshotItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ports.Snapshot
	State string `dynamodbav:"State"`
}

func graphKey(graphID string) string {
	return fmt.Sprintf("GRAPH#%s", graphID)
}

func (r *SnapshotRepository) key(graphID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: graphKey(graphID)},
		"SK": &types.AttributeValueMemberS{Value: snapshotSK},
	}
}

// Save writes snap unless a newer version is already stored.
func (r *SnapshotRepository) Save(ctx context.Context, snap *ports.Snapshot) error {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode snapshot state").WithCause(err)
	}
	item := snapshotItem{
		PK:         graphKey(snap.GraphID),
		SK:         snapshotSK,
		EntityType: "SNAPSHOT",
		Snapshot:   *snap,
		State:      string(state),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal snapshot").WithCause(err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("Version").LessThanEqual(expression.Value(snap.Version)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build condition").WithCause(err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		r.logger.Error("Failed to save snapshot",
			zap.String("graphID", snap.GraphID),
			zap.Uint64("version", snap.Version),
			zap.Error(err),
		)
		return translate("PutItem", fmt.Sprintf("snapshot for graph '%s'", snap.GraphID), err)
	}

	r.logger.Debug("Snapshot saved",
		zap.String("graphID", snap.GraphID),
		zap.Uint64("version", snap.Version),
		zap.Int("bytes", len(state)),
	)
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context, graphID string) (*ports.Snapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(graphID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translate("GetItem", fmt.Sprintf("snapshot for graph '%s'", graphID), err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("snapshot for graph '%s'", graphID))
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewInternalError("failed to unmarshal snapshot").WithCause(err)
	}
	var state flow.State
	if err := json.Unmarshal([]byte(item.State), &state); err != nil {
		return nil, pkgerrors.NewInternalError("failed to decode snapshot state").WithCause(err)
	}
	snap := item.Snapshot
	snap.State = state
	return &snap, nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, graphID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(graphID),
	})
	return translate("DeleteItem", fmt.Sprintf("snapshot for graph '%s'", graphID), err)
}
