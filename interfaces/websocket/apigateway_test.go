package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/memory"
)

type MockPostClient struct {
	mock.Mock
}

func (m *MockPostClient) PostToConnection(ctx context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	args := m.Called(ctx, aws.ToString(in.ConnectionId))
	return &apigatewaymanagementapi.PostToConnectionOutput{}, args.Error(0)
}

func TestBroadcasterPrunesGoneConnections(t *testing.T) {
	ctx := context.Background()
	conns := memory.NewConnectionRepository()
	for _, id := range []string{"live", "gone"} {
		require.NoError(t, conns.Add(ctx, ports.Connection{ID: id, GraphID: "g1", ConnectedAt: time.Now()}))
	}
	require.NoError(t, conns.Add(ctx, ports.Connection{ID: "elsewhere", GraphID: "g2", ConnectedAt: time.Now()}))

	client := new(MockPostClient)
	client.On("PostToConnection", mock.Anything, "live").Return(nil)
	client.On("PostToConnection", mock.Anything, "gone").Return(&apigwtypes.GoneException{Message: aws.String("gone")})

	b := NewBroadcaster("g1", client, conns, zap.NewNop())
	require.NoError(t, b.Broadcast(ctx, messages.Message{"type": "sync"}))

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "PostToConnection", mock.Anything, "elsewhere")
	left, _ := conns.ListByGraph(ctx, "g1")
	require.Len(t, left, 1)
	assert.Equal(t, "live", left[0].ID)
}

func TestBroadcasterReturnsOtherErrors(t *testing.T) {
	ctx := context.Background()
	conns := memory.NewConnectionRepository()
	require.NoError(t, conns.Add(ctx, ports.Connection{ID: "c1", GraphID: "g1", ConnectedAt: time.Now()}))

	client := new(MockPostClient)
	client.On("PostToConnection", mock.Anything, "c1").Return(errors.New("throttled"))

	err := NewBroadcaster("g1", client, conns, zap.NewNop()).SendTo(ctx, "c1", messages.Message{"type": "sync"})
	assert.EqualError(t, err, "throttled")
	left, _ := conns.ListByGraph(ctx, "g1")
	assert.Len(t, left, 1)
}
