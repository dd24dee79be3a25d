package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/application/flow"
	"github.com/panel-extensions/panel-reactflow/application/ports"
	"github.com/panel-extensions/panel-reactflow/domain/events"
	"github.com/panel-extensions/panel-reactflow/domain/messages"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// MaxPublishBatch is the most events sent in one publish call.
const MaxPublishBatch = 10

// Config tunes a GraphService.
type Config struct {
	GraphID string
	// AutosaveInterval saves a snapshot when the graph changed; 0 disables it.
	AutosaveInterval time.Duration
	// SaveOnEveryChange saves synchronously after each command that changed
	// the graph. Used where the process may stop between requests.
	SaveOnEveryChange bool
	EventBuffer       int
	PublishInterval   time.Duration
}

// GraphService gives a Flow a single owner. The Flow is only touched from
// the Run goroutine; other goroutines submit work through Do and
// HandleMessage.
type GraphService struct {
	cfg       Config
	flow      *flow.Flow
	snapshots ports.SnapshotRepository
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger

	cmds   chan command
	events chan ports.DomainEvent

	// baseVersion carries the restored snapshot's version, so saved
	// versions keep growing across restarts.
	baseVersion  uint64
	savedVersion uint64
	wg           sync.WaitGroup
}

type command struct {
	name   string
	fn     func(f *flow.Flow) error
	result chan error
}

// NewGraphService creates a service around f. snapshots, publisher and
// metrics may be nil.
func NewGraphService(
	cfg Config,
	f *flow.Flow,
	snapshots ports.SnapshotRepository,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = time.Second
	}
	s := &GraphService{
		cfg:       cfg,
		flow:      f,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(zap.String("graph_id", cfg.GraphID)),
		cmds:      make(chan command),
		events:    make(chan ports.DomainEvent, cfg.EventBuffer),
	}
	if publisher != nil {
		f.On(events.Wildcard, s.forward)
	}
	return s
}

// Flow returns the owned flow. Use it only before Run starts or inside Do.
func (s *GraphService) Flow() *flow.Flow { return s.flow }

// GraphID identifies the graph this service owns.
func (s *GraphService) GraphID() string { return s.cfg.GraphID }

// Load restores the latest snapshot, if any. Call it before Run.
func (s *GraphService) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Load(ctx, s.cfg.GraphID)
	if pkgerrors.IsNotFound(err) {
		s.logger.Info("No snapshot found, starting from the configured graph")
		return nil
	}
	if err != nil {
		return err
	}
	s.flow.Restore(snap.State)
	s.baseVersion = snap.Version
	s.savedVersion = s.flow.Version()
	s.logger.Info("Snapshot restored",
		zap.String("snapshot_id", snap.ID),
		zap.Int("nodes", len(snap.State.Nodes)),
		zap.Int("edges", len(snap.State.Edges)),
	)
	return nil
}

// Run executes commands until ctx is cancelled, then saves once more and
// flushes pending events.
func (s *GraphService) Run(ctx context.Context) error {
	if s.publisher != nil {
		s.wg.Add(1)
		go s.publishLoop()
	}

	var tick <-chan time.Time
	if s.cfg.AutosaveInterval > 0 && s.snapshots != nil {
		ticker := time.NewTicker(s.cfg.AutosaveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case cmd := <-s.cmds:
			s.execute(ctx, cmd)
		case <-tick:
			if err := s.saveIfChanged(ctx); err != nil {
				s.logger.Error("Autosave failed", zap.Error(err))
			}
		}
	}
}

func (s *GraphService) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saveIfChanged(ctx); err != nil {
		s.logger.Error("Final save failed", zap.Error(err))
	}
	close(s.events)
	s.wg.Wait()
	s.flow.Close()
}

// Do runs fn on the flow and waits for its result.
func (s *GraphService) Do(ctx context.Context, name string, fn func(f *flow.Flow) error) error {
	cmd := command{name: name, fn: fn, result: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage queues one inbound canvas message without waiting for it
// to be applied.
func (s *GraphService) HandleMessage(ctx context.Context, raw []byte) error {
	msgType := ""
	if msg, ok := messages.Parse(raw); ok {
		msgType = msg.Type()
	}
	cmd := command{name: "message:" + msgType, fn: func(f *flow.Flow) error {
		applied := f.HandleMessage(raw)
		if s.metrics != nil {
			s.metrics.RecordMessage(context.Background(), msgType, applied)
		}
		return nil
	}}
	select {
	case s.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyMessage applies one inbound canvas message and waits, for
// transports that must answer per request. It reports whether the message
// was applied.
func (s *GraphService) ApplyMessage(ctx context.Context, raw []byte) (bool, error) {
	msgType := ""
	if msg, ok := messages.Parse(raw); ok {
		msgType = msg.Type()
	}
	var applied bool
	err := s.Do(ctx, "message:"+msgType, func(f *flow.Flow) error {
		applied = f.HandleMessage(raw)
		return nil
	})
	if err == nil && s.metrics != nil {
		s.metrics.RecordMessage(ctx, msgType, applied)
	}
	return applied, err
}

// ReloadTypes swaps the type mappings, for instance after the graph file
// changed on disk.
func (s *GraphService) ReloadTypes(ctx context.Context, nodeTypes, edgeTypes map[string]any) error {
	return s.Do(ctx, "reload_types", func(f *flow.Flow) error {
		if err := f.SetNodeTypes(nodeTypes); err != nil {
			return err
		}
		return f.SetEdgeTypes(edgeTypes)
	})
}

// Save writes a snapshot now.
func (s *GraphService) Save(ctx context.Context) error {
	return s.Do(ctx, "save", func(*flow.Flow) error { return s.save(ctx) })
}

func (s *GraphService) execute(ctx context.Context, cmd command) {
	start := time.Now()
	before := s.flow.Version()

	err := s.run(cmd)

	if err == nil && s.cfg.SaveOnEveryChange && s.flow.Version() != before {
		err = s.saveIfChanged(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordCommandExecution(ctx, cmd.name, time.Since(start), err)
	}
	if cmd.result != nil {
		cmd.result <- err
	}
}

// run calls the command, turning a panic into an internal error so the
// loop survives a broken handler.
func (s *GraphService) run(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Command panicked", zap.String("command", cmd.name), zap.Any("panic", r))
			err = pkgerrors.NewInternalError("command failed")
		}
	}()
	return cmd.fn(s.flow)
}

func (s *GraphService) saveIfChanged(ctx context.Context) error {
	if s.snapshots == nil || s.flow.Version() == s.savedVersion {
		return nil
	}
	return s.save(ctx)
}

func (s *GraphService) save(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap := &ports.Snapshot{
		ID:      uuid.NewString(),
		GraphID: s.cfg.GraphID,
		Version: s.version(),
		State:   s.flow.State(),
		SavedAt: time.Now().UTC(),
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	s.savedVersion = s.flow.Version()
	s.logger.Debug("Snapshot saved", zap.Uint64("version", snap.Version))
	return nil
}

// version is the graph version as persisted and published.
func (s *GraphService) version() uint64 { return s.baseVersion + s.flow.Version() }

// forward hands an event to the publisher without blocking the loop.
func (s *GraphService) forward(p events.Payload) {
	evt := ports.DomainEvent{
		GraphID:    s.cfg.GraphID,
		Type:       p.Type(),
		Payload:    p,
		Version:    s.version(),
		OccurredAt: time.Now().UTC(),
	}
	select {
	case s.events <- evt:
	default:
		s.logger.Warn("Event buffer full, dropping event", zap.String("event_type", evt.Type))
	}
}

func (s *GraphService) publishLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PublishInterval)
	defer ticker.Stop()

	batch := make([]ports.DomainEvent, 0, MaxPublishBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.publisher.PublishBatch(ctx, batch); err != nil {
			s.logger.Error("Failed to publish events", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]ports.DomainEvent, 0, MaxPublishBatch)
	}

	for {
		select {
		case evt, ok := <-s.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, evt)
			if len(batch) == MaxPublishBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
