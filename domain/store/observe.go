package store

// Observable fields of the store.
const (
	FieldNodes     = "nodes"
	FieldEdges     = "edges"
	FieldSelection = "selection"
)

// Cause says what kind of operation produced a change.
type Cause string

const (
	CauseLocal     Cause = "local"
	CausePatch     Cause = "patch"
	CauseSync      Cause = "sync"
	CauseMove      Cause = "node_moved"
	CauseSelection Cause = "selection_changed"
	CauseDelete    Cause = "delete"
)

// Echo reports whether the change mirrors state the canvas already has.
func (c Cause) Echo() bool {
	return c == CauseSync || c == CauseMove || c == CauseSelection
}

// Change is passed to watchers after a field was reassigned.
type Change struct {
	Name    string
	Old     any
	New     any
	Cause   Cause
	Version uint64
}

// WatchFunc observes store changes.
type WatchFunc func(Change)

type watcher struct {
	id     int
	fields map[string]bool
	fn     WatchFunc
}

// Watch calls fn after any of fields changes, in registration order. The
// returned func removes the watcher.
func (s *GraphStore) Watch(fields []string, fn WatchFunc) func() {
	s.nextWatcher++
	w := watcher{id: s.nextWatcher, fields: make(map[string]bool, len(fields)), fn: fn}
	for _, f := range fields {
		w.fields[f] = true
	}
	s.watchers = append(s.watchers, w)

	id := w.id
	return func() {
		for i, cur := range s.watchers {
			if cur.id == id {
				s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}

func (s *GraphStore) notify(c Change) {
	for _, w := range append([]watcher(nil), s.watchers...) {
		if w.fields[c.Name] {
			w.fn(c)
		}
	}
}

// WithCause runs fn with every change it makes attributed to cause.
func (s *GraphStore) WithCause(cause Cause, fn func()) {
	prev := s.cause
	s.cause = cause
	defer func() { s.cause = prev }()
	fn()
}
