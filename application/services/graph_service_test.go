package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/domain/core/entities"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Save(ctx context.Context, snap *ports.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotRepository) Load(ctx context.Context, graphID string) (*ports.Snapshot, error) {
	args := m.Called(ctx, graphID)
	snap, _ := args.Get(0).(*ports.Snapshot)
	return snap, args.Error(1)
}

func (m *MockSnapshotRepository) Delete(ctx context.Context, graphID string) error {
	args := m.Called(ctx, graphID)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, batch []ports.DomainEvent) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordCommandExecution(ctx context.Context, name string, d time.Duration, err error) {
	m.Called(ctx, name, d, err)
}

func (m *MockMetrics) RecordMessage(ctx context.Context, msgType string, applied bool) {
	m.Called(ctx, msgType, applied)
}

func newFlow(t *testing.T) *flow.Flow {
	t.Helper()
	f, err := flow.New(flow.WithNodes([]entities.Node{{ID: "n1"}, {ID: "n2"}}))
	require.NoError(t, err)
	return f
}

// start runs the service and returns a stop func that cancels it and waits.
func start(t *testing.T, s *GraphService) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Run(ctx))
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("service did not stop")
		}
	}
}

func TestDoRunsOnTheLoop(t *testing.T) {
	s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), nil, nil, nil, nil)
	stop := start(t, s)
	defer stop()

	ctx := context.Background()
	require.NoError(t, s.Do(ctx, "add", func(f *flow.Flow) error {
		_, err := f.AddEdge(entities.Edge{Source: "n1", Target: "n2"})
		return err
	}))

	var count int
	require.NoError(t, s.Do(ctx, "count", func(f *flow.Flow) error {
		count = len(f.Edges())
		return nil
	}))
	assert.Equal(t, 1, count)

	err := s.Do(ctx, "fail", func(f *flow.Flow) error { return f.PatchNodeData("ghost", nil) })
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPanickingCommandDoesNotKillTheLoop(t *testing.T) {
	s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), nil, nil, nil, nil)
	stop := start(t, s)
	defer stop()

	err := s.Do(context.Background(), "boom", func(*flow.Flow) error { panic("boom") })
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
	assert.NoError(t, s.Do(context.Background(), "ok", func(*flow.Flow) error { return nil }))
}

func TestSaveOnEveryChange(t *testing.T) {
	repo := &MockSnapshotRepository{}
	repo.On("Save", mock.Anything, mock.MatchedBy(func(snap *ports.Snapshot) bool {
		return snap.GraphID == "g1" && len(snap.State.Edges) == 1
	})).Return(nil).Once()

	s := NewGraphService(Config{GraphID: "g1", SaveOnEveryChange: true}, newFlow(t), repo, nil, nil, nil)
	stop := start(t, s)

	require.NoError(t, s.Do(context.Background(), "add", func(f *flow.Flow) error {
		_, err := f.AddEdge(entities.Edge{Source: "n1", Target: "n2"})
		return err
	}))
	// Reads do not save.
	require.NoError(t, s.Do(context.Background(), "read", func(f *flow.Flow) error { return nil }))
	stop()

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestSaveFailureIsReturned(t *testing.T) {
	repo := &MockSnapshotRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(pkgerrors.NewDatabaseError("save", errors.New("down")))

	s := NewGraphService(Config{GraphID: "g1", SaveOnEveryChange: true}, newFlow(t), repo, nil, nil, nil)
	stop := start(t, s)
	defer stop()

	err := s.Do(context.Background(), "add", func(f *flow.Flow) error {
		return f.AddNode(entities.Node{ID: "n3"}, nil)
	})
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
}

func TestFinalSaveOnShutdown(t *testing.T) {
	repo := &MockSnapshotRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	s := NewGraphService(Config{GraphID: "g1", AutosaveInterval: time.Hour}, newFlow(t), repo, nil, nil, nil)
	stop := start(t, s)
	require.NoError(t, s.Do(context.Background(), "add", func(f *flow.Flow) error {
		return f.AddNode(entities.Node{ID: "n3"}, nil)
	}))
	stop()

	repo.AssertExpectations(t)
}

func TestLoadRestoresSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		snap      *ports.Snapshot
		err       error
		wantNodes int
		wantErr   bool
	}{
		{
			name:      "restores saved state",
			snap:      &ports.Snapshot{ID: "s1", GraphID: "g1", State: flow.State{Nodes: []entities.Node{{ID: "x"}}}},
			wantNodes: 1,
		},
		{name: "missing snapshot keeps configured graph", err: pkgerrors.NewNotFoundError("snapshot"), wantNodes: 2},
		{name: "storage failure", err: errors.New("dynamo down"), wantNodes: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockSnapshotRepository{}
			repo.On("Load", mock.Anything, "g1").Return(tt.snap, tt.err)

			s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), repo, nil, nil, nil)
			err := s.Load(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, s.Flow().Nodes(), tt.wantNodes)
		})
	}
}

func TestSavedVersionsGrowAcrossRestarts(t *testing.T) {
	repo := &MockSnapshotRepository{}
	repo.On("Load", mock.Anything, "g1").Return(&ports.Snapshot{
		ID: "s1", GraphID: "g1", Version: 40,
		State: flow.State{Nodes: []entities.Node{{ID: "x"}}},
	}, nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(snap *ports.Snapshot) bool {
		return snap.Version > 40
	})).Return(nil).Once()

	s := NewGraphService(Config{GraphID: "g1", SaveOnEveryChange: true}, newFlow(t), repo, nil, nil, nil)
	require.NoError(t, s.Load(context.Background()))
	stop := start(t, s)
	defer stop()

	require.NoError(t, s.Do(context.Background(), "add", func(f *flow.Flow) error {
		return f.AddNode(entities.Node{ID: "y"}, nil)
	}))
	repo.AssertExpectations(t)
}

func TestEventsArePublishedInBatches(t *testing.T) {
	pub := &MockEventPublisher{}
	var published []ports.DomainEvent
	pub.On("PublishBatch", mock.Anything, mock.MatchedBy(func(b []ports.DomainEvent) bool {
		return len(b) <= MaxPublishBatch
	})).Run(func(args mock.Arguments) {
		published = append(published, args.Get(1).([]ports.DomainEvent)...)
	}).Return(nil)

	s := NewGraphService(Config{GraphID: "g1", PublishInterval: time.Hour}, newFlow(t), nil, pub, nil, nil)
	stop := start(t, s)
	require.NoError(t, s.Do(context.Background(), "adds", func(f *flow.Flow) error {
		for i := 0; i < 12; i++ {
			if err := f.AddNode(entities.Node{ID: "x" + string(rune('a'+i))}, nil); err != nil {
				return err
			}
		}
		return nil
	}))
	stop()

	require.Len(t, published, 12)
	assert.Equal(t, events.NodeAdded, published[0].Type)
	assert.Equal(t, "g1", published[0].GraphID)
	pub.AssertNumberOfCalls(t, "PublishBatch", 2)
}

func TestHandleMessageRecordsMetrics(t *testing.T) {
	metrics := &MockMetrics{}
	metrics.On("RecordMessage", mock.Anything, "node_deleted", true).Return().Once()
	metrics.On("RecordMessage", mock.Anything, "bogus", false).Return().Once()
	metrics.On("RecordCommandExecution", mock.Anything, mock.Anything, mock.Anything, nil).Return()

	s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), nil, nil, metrics, nil)
	stop := start(t, s)
	defer stop()

	ctx := context.Background()
	require.NoError(t, s.HandleMessage(ctx, []byte(`{"type":"node_deleted","node_id":"n1"}`)))
	require.NoError(t, s.HandleMessage(ctx, []byte(`{"type":"bogus"}`)))

	var nodes int
	require.NoError(t, s.Do(ctx, "count", func(f *flow.Flow) error {
		nodes = len(f.Nodes())
		return nil
	}))
	assert.Equal(t, 1, nodes)
	metrics.AssertExpectations(t)
}

func TestDoHonoursContext(t *testing.T) {
	s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Do(ctx, "never", func(*flow.Flow) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyMessageWaitsForTheResult(t *testing.T) {
	metrics := new(MockMetrics)
	metrics.On("RecordCommandExecution", mock.Anything, "message:node_moved", mock.Anything, nil).Return()
	metrics.On("RecordCommandExecution", mock.Anything, "message:", mock.Anything, nil).Return()
	metrics.On("RecordMessage", mock.Anything, "node_moved", true).Return()
	metrics.On("RecordMessage", mock.Anything, "", false).Return()

	s := NewGraphService(Config{GraphID: "g1"}, newFlow(t), nil, nil, metrics, nil)
	stop := start(t, s)
	defer stop()

	applied, err := s.ApplyMessage(context.Background(), []byte(`{"type":"node_moved","node_id":"n1","position":{"x":3,"y":4}}`))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.ApplyMessage(context.Background(), []byte(`not json`))
	require.NoError(t, err)
	assert.False(t, applied)
	metrics.AssertExpectations(t)
}
