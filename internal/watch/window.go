package watch

import (
	"fmt"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/platform"
)

// WindowEventKind classifies a per-window accessibility event.
type WindowEventKind int

const (
	WindowCreated WindowEventKind = iota
	WindowDestroyed
	WindowMinimized
	WindowRestored
	AppHidden
	AppRevealed
	WindowFocused
	WindowResized
	WindowMoved
	TitleChanged
	MainWindowChanged
)

func (k WindowEventKind) String() string {
	switch k {
	case WindowCreated:
		return "window-created"
	case WindowDestroyed:
		return "window-destroyed"
	case WindowMinimized:
		return "window-minimized"
	case WindowRestored:
		return "window-restored"
	case AppHidden:
		return "application-hidden"
	case AppRevealed:
		return "application-revealed"
	case WindowFocused:
		return "window-focused"
	case WindowResized:
		return "window-resized"
	case WindowMoved:
		return "window-moved"
	case TitleChanged:
		return "title-changed"
	case MainWindowChanged:
		return "main-window-changed"
	default:
		return "unknown"
	}
}

// WindowEvent is one translated accessibility notification.
type WindowEvent struct {
	Kind    WindowEventKind
	Element ax.Element
}

// notificationKinds maps registered notification names to event kinds.
var notificationKinds = map[string]WindowEventKind{
	platform.NoteWindowCreated:        WindowCreated,
	platform.NoteElementDestroyed:     WindowDestroyed,
	platform.NoteWindowMiniaturized:   WindowMinimized,
	platform.NoteWindowDeminiaturized: WindowRestored,
	platform.NoteAppHidden:            AppHidden,
	platform.NoteAppShown:             AppRevealed,
	platform.NoteFocusedWindowChanged: WindowFocused,
	platform.NoteWindowResized:        WindowResized,
	platform.NoteWindowMoved:          WindowMoved,
	platform.NoteTitleChanged:         TitleChanged,
	platform.NoteMainWindowChanged:    MainWindowChanged,
}

// WindowWatcher is the accessibility subscription for one process.
type WindowWatcher struct {
	pid      int
	observer platform.AXObserver
	events   chan WindowEvent
	done     chan struct{}
}

// NewWindowWatcher registers an observer on pid for the full notification
// set. Construction fails only for fatal registration errors; notifications
// skipped for a tolerable reason are reported by the observer and logged by
// the manager.
func NewWindowWatcher(factory platform.ObserverFactory, pid int) (*WindowWatcher, error) {
	observer, err := factory.NewObserver(pid, platform.ObservedNotifications)
	if err != nil {
		return nil, fmt.Errorf("observer for pid %d: %w", pid, err)
	}

	w := &WindowWatcher{
		pid:      pid,
		observer: observer,
		events:   make(chan WindowEvent, 64),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Events returns the translated event stream. Closed by Close.
func (w *WindowWatcher) Events() <-chan WindowEvent { return w.events }

// Skipped returns the notification names that could not be registered.
func (w *WindowWatcher) Skipped() []string { return w.observer.Skipped() }

// Close tears down the observer and, once the translation loop drains,
// the event stream.
func (w *WindowWatcher) Close() {
	_ = w.observer.Close()
	<-w.done
}

func (w *WindowWatcher) run() {
	defer close(w.done)
	defer close(w.events)

	for note := range w.observer.Events() {
		kind, ok := notificationKinds[note.Notification]
		if !ok {
			continue
		}
		select {
		case w.events <- WindowEvent{Kind: kind, Element: note.Element}:
		default:
		}
	}
}
