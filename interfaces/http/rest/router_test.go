package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/services"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/pkg/auth"
)

var taskType = map[string]any{
	"task": map[string]any{
		"type":  "task",
		"label": "Task",
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":    map[string]any{"type": "string"},
				"priority": map[string]any{"type": "string", "enum": []any{"low", "high"}},
			},
		},
	},
}

func newTestRouter(t *testing.T, validator *auth.Validator) (http.Handler, *services.GraphService) {
	t.Helper()
	f, err := flow.New(
		flow.WithNodeTypes(taskType),
		flow.WithNodes([]entities.Node{
			{ID: "a", Type: "task", Data: map[string]any{"title": "A"}},
			{ID: "b"},
		}),
		flow.WithEdges([]entities.Edge{{ID: "e1", Source: "a", Target: "b"}}),
		flow.WithValidateOnAdd(true),
		flow.WithValidateOnPatch(true),
	)
	require.NoError(t, err)
	svc := services.NewGraphService(services.Config{GraphID: "g1"}, f, nil, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("service did not stop")
		}
	})

	return NewRouter(svc, validator, nil, nil, false, zap.NewNop()).Setup(), svc
}

func call(t *testing.T, h http.Handler, method, path string, body any, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func errorType(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, body := call(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g1", body["graph_id"])
}

func TestGetGraph(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, body := call(t, h, http.MethodGet, "/api/v1/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["nodes"], 2)
	assert.Len(t, body["edges"], 1)
	assert.Contains(t, body["node_types"], "task")
}

func TestGraphModel(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec, body := call(t, h, http.MethodGet, "/api/v1/graph/model?multigraph=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["multigraph"])
	edges := body["edges"].([]any)
	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].(map[string]any)["key"])

	rec, body = call(t, h, http.MethodGet, "/api/v1/graph/model?multigraph=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorType(body))
}

func TestNodeEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantType string
	}{
		{name: "add", method: http.MethodPost, path: "/api/v1/nodes", body: map[string]any{"id": "c", "data": map[string]any{}}, wantCode: http.StatusCreated},
		{name: "add duplicate", method: http.MethodPost, path: "/api/v1/nodes", body: map[string]any{"id": "c"}, wantCode: http.StatusBadRequest, wantType: "VALIDATION"},
		{name: "add without id", method: http.MethodPost, path: "/api/v1/nodes", body: map[string]any{"type": "panel"}, wantCode: http.StatusBadRequest, wantType: "VALIDATION"},
		{name: "add invalid data", method: http.MethodPost, path: "/api/v1/nodes", body: map[string]any{"id": "d", "type": "task", "data": map[string]any{"priority": "urgent"}}, wantCode: http.StatusUnprocessableEntity, wantType: "SCHEMA_VALIDATION"},
		{name: "bad json", method: http.MethodPost, path: "/api/v1/nodes", body: "{", wantCode: http.StatusBadRequest, wantType: "VALIDATION"},
		{name: "patch", method: http.MethodPatch, path: "/api/v1/nodes/a/data", body: map[string]any{"priority": "high"}, wantCode: http.StatusOK},
		{name: "patch invalid", method: http.MethodPatch, path: "/api/v1/nodes/a/data", body: map[string]any{"priority": "urgent"}, wantCode: http.StatusUnprocessableEntity, wantType: "SCHEMA_VALIDATION"},
		{name: "patch unknown", method: http.MethodPatch, path: "/api/v1/nodes/zzz/data", body: map[string]any{}, wantCode: http.StatusNotFound, wantType: "NOT_FOUND"},
		{name: "remove", method: http.MethodDelete, path: "/api/v1/nodes/a", wantCode: http.StatusOK},
		{name: "remove unknown", method: http.MethodDelete, path: "/api/v1/nodes/zzz", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := call(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, errorType(body))
			}
		})
	}
}

func TestRemoveNodeReportsCascade(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec, body := call(t, h, http.MethodDelete, "/api/v1/nodes/b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"e1"}, body["deleted_edges"])
}

func TestEdgeEndpoints(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	rec, body := call(t, h, http.MethodPost, "/api/v1/edges", map[string]any{"source": "b", "target": "a"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := body["id"].(string)
	assert.NotEmpty(t, id)

	rec, body = call(t, h, http.MethodPatch, "/api/v1/edges/"+id+"/data", map[string]any{"weight": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["data"].(map[string]any)["weight"])

	rec, _ = call(t, h, http.MethodDelete, "/api/v1/edges/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, body = call(t, h, http.MethodDelete, "/api/v1/edges/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorType(body))

	rec, _ = call(t, h, http.MethodPost, "/api/v1/edges", map[string]any{"source": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int
	require.NoError(t, svc.Do(context.Background(), "count", func(f *flow.Flow) error {
		count = len(f.Edges())
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestTypesEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec, body := call(t, h, http.MethodGet, "/api/v1/types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["node_types"], "task")

	rec, body = call(t, h, http.MethodPut, "/api/v1/types/edges", map[string]any{
		"link": map[string]any{"type": "link", "label": "Link"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["edge_types"], "link")

	rec, body = call(t, h, http.MethodPut, "/api/v1/types/nodes", map[string]any{"bad": "not a spec"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_SPEC", errorType(body))
}

func TestEditorEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec, body := call(t, h, http.MethodGet, "/api/v1/editors/nodes/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a", body["id"])
	assert.NotNil(t, body["view"])

	rec, _ = call(t, h, http.MethodGet, "/api/v1/editors/edges/e1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = call(t, h, http.MethodGet, "/api/v1/editors/nodes/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorType(body))
}

func TestPostMessage(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	rec, body := call(t, h, http.MethodPost, "/api/v1/messages",
		`{"type":"node_moved","node_id":"a","position":{"x":10,"y":20}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["applied"])

	var x float64
	require.NoError(t, svc.Do(context.Background(), "read", func(f *flow.Flow) error {
		n, _ := f.Node("a")
		x = n.Position.X
		return nil
	}))
	assert.Equal(t, 10.0, x)

	_, body = call(t, h, http.MethodPost, "/api/v1/messages", `{"type":"unknown"}`)
	assert.Equal(t, false, body["applied"])
}

func TestAuthentication(t *testing.T) {
	v, err := auth.NewValidator("secret", "")
	require.NoError(t, err)
	h, _ := newTestRouter(t, v)
	token, err := v.Generate("u1", nil, time.Hour)
	require.NoError(t, err)

	rec, body := call(t, h, http.MethodGet, "/api/v1/graph", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorType(body))

	rec, _ = call(t, h, http.MethodGet, "/api/v1/graph", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = call(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}
