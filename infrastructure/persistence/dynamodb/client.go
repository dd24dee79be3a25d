// Package dynamodb stores graph snapshots and live connections in DynamoDB.
package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"

	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Client is the subset of the DynamoDB API the repositories call.
// *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// translate maps DynamoDB API failures onto application errors.
func translate(operation, resource string, err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ConditionalCheckFailedException":
			return pkgerrors.NewConflictError(resource + " was modified concurrently").
				WithCode(ae.ErrorCode()).
				WithCause(err)
		case "ResourceNotFoundException":
			return pkgerrors.NewNotFoundError(resource).WithCode(ae.ErrorCode()).WithCause(err)
		}
		return pkgerrors.NewDatabaseError(operation, err).WithCode(ae.ErrorCode())
	}
	return pkgerrors.NewDatabaseError(operation, err)
}
