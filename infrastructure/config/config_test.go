package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "toolbar", cfg.EditorMode)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "badger")
	t.Setenv("BADGER_DIR", "/tmp/graphs")
	t.Setenv("AUTOSAVE_INTERVAL", "5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("VALIDATE_ON_ADD", "true")
	t.Setenv("EDITOR_MODE", "side")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageBadger, cfg.StorageBackend)
	assert.Equal(t, 5*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.ValidateOnAdd)
	assert.Equal(t, "side", cfg.EditorMode)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "s3" }, wantErr: "STORAGE_BACKEND"},
		{name: "dynamodb without table", mutate: func(c *Config) { c.StorageBackend = StorageDynamoDB; c.TableName = "" }, wantErr: "TABLE_NAME"},
		{name: "bad editor mode", mutate: func(c *Config) { c.EditorMode = "floating" }, wantErr: "EDITOR_MODE"},
		{name: "watch without file", mutate: func(c *Config) { c.WatchGraphFile = true }, wantErr: "GRAPH_FILE"},
		{name: "production without secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StorageBackend: StorageMemory, TableName: "t", EditorMode: "toolbar", Environment: "development"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

const graphYAML = `
editor_mode: node
validate_on_add: true
node_types:
  task:
    label: Task
    schema:
      type: object
      properties:
        count: {type: integer}
    inputs: [in]
    outputs: [out]
edge_types:
  flow:
    label: Flow
nodes:
  - id: a
    type: task
    position: {x: 10, y: 20}
    data: {count: 1}
  - id: b
    type: task
    data: {count: 2}
edges:
  - id: e1
    source: a
    target: b
    source_handle: out
    type: flow
`

func TestParseGraphDefinition(t *testing.T) {
	def, err := ParseGraphDefinition([]byte(graphYAML))
	require.NoError(t, err)

	assert.Equal(t, "node", def.EditorMode)
	assert.Equal(t, []string{"b"}, def.Unplaced())

	nodes, edges := def.Entities()
	require.Len(t, nodes, 2)
	assert.Equal(t, valueobjects.NewPosition(10, 20), nodes[0].Position)
	assert.Equal(t, valueobjects.NewPosition(350, 0), nodes[1].Position)
	assert.Equal(t, "out", edges[0].SourceHandle)

	f, err := def.Build()
	require.NoError(t, err)
	assert.Len(t, f.Nodes(), 2)
	d, ok := f.Types().NodeType("task")
	require.True(t, ok)
	assert.Equal(t, []string{"count"}, d.Schema().PropertyNames())
	assert.Equal(t, []string{"out"}, d.Outputs())
}

func TestBuildReportsInvalidNode(t *testing.T) {
	def, err := ParseGraphDefinition([]byte(graphYAML))
	require.NoError(t, err)
	def.Nodes[1].Data = map[string]any{"count": "many"}

	_, err = def.Build()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsSchemaValidation(err))
	assert.Contains(t, err.Error(), `node "b"`)
}

func TestGraphFileWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(graphYAML), 0o600))

	w, err := NewGraphFileWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	reloaded := make(chan *GraphDefinition, 4)
	w.OnChange(func(d *GraphDefinition) { reloaded <- d })
	w.Start()
	defer w.Stop()

	updated := graphYAML + "\n# touched\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case def := <-reloaded:
		assert.Contains(t, def.NodeTypes, "task")
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
}
