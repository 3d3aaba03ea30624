// Package watch holds the engine's two event sources: the workspace process
// watcher and the per-process accessibility watchers, plus the manager that
// multiplexes the latter.
package watch

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mpratt27/winsight/internal/logging"
	"github.com/mpratt27/winsight/internal/model"
	"github.com/mpratt27/winsight/internal/platform"
)

// ProcessEventKind classifies a process-lifecycle event.
type ProcessEventKind int

const (
	ProcessWillLaunch ProcessEventKind = iota
	ProcessLaunched
	ProcessTerminated
	ProcessActivated
	SpaceChanged
)

func (k ProcessEventKind) String() string {
	switch k {
	case ProcessWillLaunch:
		return "will-launch"
	case ProcessLaunched:
		return "launched"
	case ProcessTerminated:
		return "terminated"
	case ProcessActivated:
		return "activated"
	case SpaceChanged:
		return "space-changed"
	default:
		return "unknown"
	}
}

// ProcessEvent is one translated process-lifecycle event. App is unset for
// Terminated (the process record may already be gone) and SpaceChanged.
type ProcessEvent struct {
	Kind ProcessEventKind
	App  model.App
	PID  int
}

// ProcessWatcher translates raw workspace notifications into ProcessEvents.
// Launch and activate notifications for non-regular processes are dropped.
type ProcessWatcher struct {
	workspace platform.Workspace
	events    chan ProcessEvent
	log       zerolog.Logger

	mu        sync.RWMutex
	frontmost model.App

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewProcessWatcher returns an unstarted watcher over workspace.
func NewProcessWatcher(workspace platform.Workspace) *ProcessWatcher {
	w := &ProcessWatcher{
		workspace: workspace,
		events:    make(chan ProcessEvent, 64),
		log:       logging.WithComponent("process-watcher"),
		done:      make(chan struct{}),
	}
	if app, ok := workspace.FrontmostApplication(); ok {
		w.frontmost = app
	}
	return w
}

// Start begins translating notifications. Idempotent.
func (w *ProcessWatcher) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Stop closes the workspace subscription and, once the translation loop
// drains, the event stream.
func (w *ProcessWatcher) Stop() {
	w.stopOnce.Do(func() {
		_ = w.workspace.Close()
		<-w.done
	})
}

// Events returns the translated event stream. Closed by Stop.
func (w *ProcessWatcher) Events() <-chan ProcessEvent { return w.events }

// FrontmostApplication returns the most recently activated application.
func (w *ProcessWatcher) FrontmostApplication() model.App {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frontmost
}

func (w *ProcessWatcher) run() {
	defer close(w.done)
	defer close(w.events)

	for note := range w.workspace.Notifications() {
		ev, ok := w.translate(note)
		if !ok {
			continue
		}
		if ev.Kind == ProcessActivated {
			w.mu.Lock()
			w.frontmost = ev.App
			w.mu.Unlock()
		}
		select {
		case w.events <- ev:
		default:
			w.log.Warn().Str("kind", ev.Kind.String()).Msg("process event dropped, stream full")
		}
	}
}

func (w *ProcessWatcher) translate(note platform.WorkspaceNote) (ProcessEvent, bool) {
	switch note.Kind {
	case platform.NoteAppWillLaunch:
		if !note.App.Regular {
			return ProcessEvent{}, false
		}
		return ProcessEvent{Kind: ProcessWillLaunch, App: note.App, PID: note.App.PID}, true
	case platform.NoteAppDidLaunch:
		if !note.App.Regular {
			return ProcessEvent{}, false
		}
		return ProcessEvent{Kind: ProcessLaunched, App: note.App, PID: note.App.PID}, true
	case platform.NoteAppDidTerminate:
		return ProcessEvent{Kind: ProcessTerminated, PID: note.PID}, true
	case platform.NoteAppDidActivate:
		if !note.App.Regular {
			return ProcessEvent{}, false
		}
		return ProcessEvent{Kind: ProcessActivated, App: note.App, PID: note.App.PID}, true
	case platform.NoteActiveSpaceChanged:
		return ProcessEvent{Kind: SpaceChanged}, true
	default:
		return ProcessEvent{}, false
	}
}
