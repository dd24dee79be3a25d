package ports

import (
	"context"
	"time"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/domain/events"
)

// Snapshot is a saved graph state.
type Snapshot struct {
	ID      string     `json:"id" dynamodbav:"SnapshotID"`
	GraphID string     `json:"graph_id" dynamodbav:"GraphID"`
	Version uint64     `json:"version" dynamodbav:"Version"`
	State   flow.State `json:"state" dynamodbav:"-"`
	SavedAt time.Time  `json:"saved_at" dynamodbav:"SavedAt"`
}

// SnapshotRepository persists graph snapshots. Only the latest snapshot of
// a graph is kept.
type SnapshotRepository interface {
	// Save stores snap as the latest state of its graph
	Save(ctx context.Context, snap *Snapshot) error

	// Load returns the latest snapshot, or a NotFound error
	Load(ctx context.Context, graphID string) (*Snapshot, error)

	// Delete removes the graph's snapshot
	Delete(ctx context.Context, graphID string) error
}

// Connection is a live canvas client.
type Connection struct {
	ID          string    `json:"id" dynamodbav:"ConnectionID"`
	GraphID     string    `json:"graph_id" dynamodbav:"GraphID"`
	UserID      string    `json:"user_id,omitempty" dynamodbav:"UserID,omitempty"`
	ConnectedAt time.Time `json:"connected_at" dynamodbav:"ConnectedAt"`
}

// ConnectionRepository tracks which clients watch which graph.
type ConnectionRepository interface {
	Add(ctx context.Context, conn Connection) error
	Remove(ctx context.Context, connectionID string) error
	ListByGraph(ctx context.Context, graphID string) ([]Connection, error)
}

// DomainEvent is a graph event on its way out of the process.
type DomainEvent struct {
	GraphID    string         `json:"graph_id"`
	Type       string         `json:"type"`
	Payload    events.Payload `json:"payload"`
	Version    uint64         `json:"version"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []DomainEvent) error
}

// Metrics records service-level measurements.
type Metrics interface {
	RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error)
	RecordMessage(ctx context.Context, msgType string, applied bool)
}
