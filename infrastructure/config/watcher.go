package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// GraphFileWatcher reloads a graph definition when its file changes.
type GraphFileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	onChange []func(*GraphDefinition)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewGraphFileWatcher watches path and its directory, so editors that save
// by rename are noticed too.
func NewGraphFileWatcher(path string, logger *zap.Logger) (*GraphFileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch graph file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Failed to watch graph file directory", zap.Error(err))
	}
	return &GraphFileWatcher{
		path:     path,
		watcher:  watcher,
		debounce: 100 * time.Millisecond,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// OnChange registers a handler for successfully parsed reloads.
func (w *GraphFileWatcher) OnChange(fn func(*GraphDefinition)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching in a goroutine.
func (w *GraphFileWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Graph file watcher started", zap.String("path", w.path))
}

// Stop ends watching. It is safe to call more than once.
func (w *GraphFileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Graph file watcher stopped")
	})
}

func (w *GraphFileWatcher) watchLoop() {
	var debounceTimer *time.Timer
	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *GraphFileWatcher) reload() {
	def, err := LoadGraphFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload graph file, keeping current types", zap.Error(err))
		return
	}
	w.logger.Info("Graph file reloaded",
		zap.String("path", w.path),
		zap.Int("node_types", len(def.NodeTypes)),
		zap.Int("edge_types", len(def.EdgeTypes)),
	)

	w.mu.Lock()
	handlers := append([]func(*GraphDefinition){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(def)
	}
}
