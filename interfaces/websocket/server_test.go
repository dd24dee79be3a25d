package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/services"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/infrastructure/persistence/memory"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

type fixture struct {
	svc   *services.GraphService
	hub   *Hub
	conns *memory.ConnectionRepository
	srv   *httptest.Server
	url   string
}

func newFixture(t *testing.T, validator *auth.Validator) *fixture {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub("g1", logger)
	f, err := flow.New(
		flow.WithNodes([]entities.Node{{ID: "n1"}, {ID: "n2"}}),
		flow.WithSender(hub),
	)
	require.NoError(t, err)
	svc := services.NewGraphService(services.Config{GraphID: "g1"}, f, nil, nil, nil, logger)
	conns := memory.NewConnectionRepository()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = svc.Run(ctx); done <- struct{}{} }()
	go func() { hub.Run(ctx); done <- struct{}{} }()

	server := NewServer(svc, hub, validator, conns, DefaultServerConfig(), logger)
	srv := httptest.NewServer(server)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		<-done
	})
	return &fixture{
		svc:   svc,
		hub:   hub,
		conns: conns,
		srv:   srv,
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (fx *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fx.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestClientReceivesStateOnConnect(t *testing.T) {
	fx := newFixture(t, nil)
	conn := fx.dial(t, "")

	msg := readMessage(t, conn)
	assert.Equal(t, "sync", msg["type"])
	assert.Len(t, msg["nodes"], 2)

	assert.Eventually(t, func() bool {
		conns, _ := fx.conns.ListByGraph(context.Background(), "g1")
		return len(conns) == 1 && conns[0].UserID == "anonymous"
	}, time.Second, 10*time.Millisecond)
}

func TestInboundMessageReachesGraph(t *testing.T) {
	fx := newFixture(t, nil)
	conn := fx.dial(t, "")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "node_moved",
		"node_id":  "n1",
		"position": map[string]any{"x": 5, "y": 6},
	}))

	assert.Eventually(t, func() bool {
		var x float64
		_ = fx.svc.Do(context.Background(), "read", func(f *flow.Flow) error {
			if n, ok := f.Node("n1"); ok && n.Position != nil {
				x = n.Position.X
			}
			return nil
		})
		return x == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChangesAreBroadcast(t *testing.T) {
	fx := newFixture(t, nil)
	a := fx.dial(t, "")
	b := fx.dial(t, "")
	readMessage(t, a)
	readMessage(t, b)

	require.NoError(t, fx.svc.Do(context.Background(), "add", func(f *flow.Flow) error {
		return f.AddNode(entities.Node{ID: "n3"}, nil)
	}))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "sync", msg["type"])
		assert.Len(t, msg["nodes"], 3)
	}
}

func TestRequestState(t *testing.T) {
	fx := newFixture(t, nil)
	conn := fx.dial(t, "")
	first := readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeRequestState}))
	again := readMessage(t, conn)
	assert.Equal(t, first["version"], again["version"])
}

func TestAuthentication(t *testing.T) {
	v, err := auth.NewValidator("secret", "")
	require.NoError(t, err)
	fx := newFixture(t, v)

	good, err := v.Generate("u1", []string{"g1"}, time.Hour)
	require.NoError(t, err)
	otherGraph, err := v.Generate("u1", []string{"g2"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		query  string
		header http.Header
		ok     bool
	}{
		{name: "no token"},
		{name: "query token", query: "?token=" + good, ok: true},
		{name: "bearer header", header: http.Header{"Authorization": {"Bearer " + good}}, ok: true},
		{name: "other graph", query: "?token=" + otherGraph},
		{name: "garbage", query: "?token=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(fx.url+tt.query, tt.header)
			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			defer conn.Close()
			assert.Equal(t, "sync", readMessage(t, conn)["type"])
		})
	}
}

func TestOriginCheck(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, ServerConfig{AllowedOrigins: []string{"https://app.example"}}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	assert.True(t, s.checkOrigin(req), "no origin header")
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, s.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(req))
}
