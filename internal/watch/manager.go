package watch

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mpratt27/winsight/internal/logging"
	"github.com/mpratt27/winsight/internal/platform"
)

// PidEvent is a window event tagged with the process it came from.
type PidEvent struct {
	PID   int
	Event WindowEvent
}

// Manager multiplexes one WindowWatcher per tracked pid into a single
// stream.
type Manager struct {
	factory platform.ObserverFactory
	events  chan PidEvent
	log     zerolog.Logger

	mu       sync.Mutex
	watchers map[int]*WindowWatcher
	closed   bool

	wg sync.WaitGroup
}

// NewManager returns an empty manager.
func NewManager(factory platform.ObserverFactory) *Manager {
	return &Manager{
		factory:  factory,
		events:   make(chan PidEvent, 256),
		log:      logging.WithComponent("watch-manager"),
		watchers: make(map[int]*WindowWatcher),
	}
}

// Events returns the multiplexed stream. Closed by Close.
func (m *Manager) Events() <-chan PidEvent { return m.events }

// Watch subscribes to pid's window notifications. Idempotent; returns false
// when watcher construction fails (e.g. a hardened process refuses the
// observer), in which case the pid is simply not watched.
func (m *Manager) Watch(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if _, ok := m.watchers[pid]; ok {
		return true
	}

	watcher, err := NewWindowWatcher(m.factory, pid)
	if err != nil {
		m.log.Warn().Int("pid", pid).Err(err).Msg("watcher construction failed")
		return false
	}
	if skipped := watcher.Skipped(); len(skipped) > 0 {
		m.log.Debug().Int("pid", pid).Strs("notifications", skipped).Msg("notifications skipped")
	}

	m.watchers[pid] = watcher
	m.wg.Add(1)
	go m.forward(pid, watcher)
	return true
}

// Unwatch tears down pid's watcher, if any.
func (m *Manager) Unwatch(pid int) {
	m.mu.Lock()
	watcher, ok := m.watchers[pid]
	delete(m.watchers, pid)
	m.mu.Unlock()
	if ok {
		watcher.Close()
	}
}

// Watched reports whether pid currently has a live watcher.
func (m *Manager) Watched(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watchers[pid]
	return ok
}

// WatchedPIDs returns the pids with live watchers.
func (m *Manager) WatchedPIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.watchers))
	for pid := range m.watchers {
		out = append(out, pid)
	}
	return out
}

// Close tears down every watcher and closes the multiplexed stream.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	watchers := make([]*WindowWatcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.watchers = make(map[int]*WindowWatcher)
	m.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
	m.wg.Wait()
	close(m.events)
}

func (m *Manager) forward(pid int, watcher *WindowWatcher) {
	defer m.wg.Done()
	for ev := range watcher.Events() {
		select {
		case m.events <- PidEvent{PID: pid, Event: ev}:
		default:
			m.log.Warn().Int("pid", pid).Str("kind", ev.Kind.String()).Msg("window event dropped, stream full")
		}
	}
}
