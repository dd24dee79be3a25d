package websocket

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/services"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/memory"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

type gatewayFixture struct {
	handler *GatewayHandler
	svc     *services.GraphService
	client  *MockPostClient
	conns   *memory.ConnectionRepository
}

func newGatewayFixture(t *testing.T, validator *auth.Validator) *gatewayFixture {
	t.Helper()
	logger := zap.NewNop()
	conns := memory.NewConnectionRepository()
	client := new(MockPostClient)
	b := NewBroadcaster("g1", client, conns, logger)

	f, err := flow.New(
		flow.WithNodes([]entities.Node{{ID: "n1"}, {ID: "n2"}}),
		flow.WithSender(b),
	)
	require.NoError(t, err)
	svc := services.NewGraphService(services.Config{GraphID: "g1"}, f, nil, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = svc.Run(ctx); close(done) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &gatewayFixture{
		handler: NewGatewayHandler(svc, b, conns, validator, logger),
		svc:     svc,
		client:  client,
		conns:   conns,
	}
}

func wsEvent(route, connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
		},
	}
}

func TestGatewayConnectAndDisconnect(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	ctx := context.Background()

	resp, err := fx.handler.Handle(ctx, wsEvent(RouteConnect, "c1", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conns, _ := fx.conns.ListByGraph(ctx, "g1")
	require.Len(t, conns, 1)
	assert.Equal(t, "anonymous", conns[0].UserID)

	resp, err = fx.handler.Handle(ctx, wsEvent(RouteDisconnect, "c1", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	conns, _ = fx.conns.ListByGraph(ctx, "g1")
	assert.Empty(t, conns)
}

func TestGatewayConnectAuthentication(t *testing.T) {
	v, err := auth.NewValidator("secret", "panel-reactflow")
	require.NoError(t, err)
	good, err := v.Generate("alice", nil, time.Hour)
	require.NoError(t, err)
	otherGraph, err := v.Generate("bob", []string{"g2"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   map[string]string
		headers map[string]string
		status  int
	}{
		{name: "no token", status: http.StatusUnauthorized},
		{name: "query token", query: map[string]string{"token": good}, status: http.StatusOK},
		{name: "header token", headers: map[string]string{"Authorization": "Bearer " + good}, status: http.StatusOK},
		{name: "garbage", query: map[string]string{"token": "nope"}, status: http.StatusUnauthorized},
		{name: "other graph", query: map[string]string{"token": otherGraph}, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newGatewayFixture(t, v)
			req := wsEvent(RouteConnect, "c1", "")
			req.QueryStringParameters = tt.query
			req.Headers = tt.headers

			resp, err := fx.handler.Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGatewayRequestStatePostsToTheCaller(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	fx.client.On("PostToConnection", mock.Anything, "c1").Return(nil).Once()

	resp, err := fx.handler.Handle(context.Background(), wsEvent(RouteDefault, "c1", `{"type":"request_state"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fx.client.AssertExpectations(t)
}

func TestGatewayAppliesCanvasMessages(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	fx.client.On("PostToConnection", mock.Anything, mock.Anything).Return(nil).Maybe()
	ctx := context.Background()

	resp, err := fx.handler.Handle(ctx, wsEvent(RouteDefault, "c1",
		`{"type":"node_moved","node_id":"n1","position":{"x":5,"y":6}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var x float64
	require.NoError(t, fx.svc.Do(ctx, "read", func(f *flow.Flow) error {
		n, _ := f.Node("n1")
		if n.Position != nil {
			x = n.Position.X
		}
		return nil
	}))
	assert.Equal(t, 5.0, x)

	resp, err = fx.handler.Handle(ctx, wsEvent(RouteDefault, "c1", `{"type":"pong"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
