// Package memory keeps snapshots and connections in process memory. It is
// the default backend for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/panel-extensions/panel-reactflow/application/ports"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// SnapshotRepository stores snapshots as encoded JSON so callers never
// share maps with the stored copy.
type SnapshotRepository struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{items: map[string][]byte{}}
}

func (r *SnapshotRepository) Save(_ context.Context, snap *ports.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode snapshot").WithCause(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[snap.GraphID] = raw
	return nil
}

func (r *SnapshotRepository) Load(_ context.Context, graphID string) (*ports.Snapshot, error) {
	r.mu.RLock()
	raw, ok := r.items[graphID]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("snapshot for graph '%s'", graphID))
	}
	var snap ports.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, pkgerrors.NewInternalError("failed to decode snapshot").WithCause(err)
	}
	return &snap, nil
}

func (r *SnapshotRepository) Delete(_ context.Context, graphID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, graphID)
	return nil
}

// ConnectionRepository tracks live connections.
type ConnectionRepository struct {
	mu    sync.RWMutex
	conns map[string]ports.Connection
}

func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{conns: map[string]ports.Connection{}}
}

func (r *ConnectionRepository) Add(_ context.Context, conn ports.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return nil
}

func (r *ConnectionRepository) Remove(_ context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connectionID)
	return nil
}

// ListByGraph returns the graph's connections, oldest first.
func (r *ConnectionRepository) ListByGraph(_ context.Context, graphID string) ([]ports.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.Connection
	for _, c := range r.conns {
		if c.GraphID == graphID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out, nil
}
