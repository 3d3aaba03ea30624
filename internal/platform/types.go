package platform

import (
	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/model"
)

// WorkspaceNoteKind names a raw workspace notification.
type WorkspaceNoteKind int

const (
	NoteAppWillLaunch WorkspaceNoteKind = iota
	NoteAppDidLaunch
	NoteAppDidTerminate
	NoteAppDidActivate
	NoteActiveSpaceChanged
)

// WorkspaceNote is one raw workspace notification. App is unset for
// NoteActiveSpaceChanged; PID is always set for NoteAppDidTerminate even
// when the app record is gone.
type WorkspaceNote struct {
	Kind WorkspaceNoteKind
	App  model.App
	PID  int
}

// Accessibility notification names, as registered with the observer.
const (
	NoteWindowCreated        = "AXWindowCreated"
	NoteElementDestroyed     = "AXUIElementDestroyed"
	NoteWindowMiniaturized   = "AXWindowMiniaturized"
	NoteWindowDeminiaturized = "AXWindowDeminiaturized"
	NoteAppHidden            = "AXApplicationHidden"
	NoteAppShown             = "AXApplicationShown"
	NoteFocusedWindowChanged = "AXFocusedWindowChanged"
	NoteWindowResized        = "AXWindowResized"
	NoteWindowMoved          = "AXWindowMoved"
	NoteTitleChanged         = "AXTitleChanged"
	NoteMainWindowChanged    = "AXMainWindowChanged"
)

// ObservedNotifications is the full registration set for a window watcher.
var ObservedNotifications = []string{
	NoteWindowCreated,
	NoteElementDestroyed,
	NoteWindowMiniaturized,
	NoteWindowDeminiaturized,
	NoteAppHidden,
	NoteAppShown,
	NoteFocusedWindowChanged,
	NoteWindowResized,
	NoteWindowMoved,
	NoteTitleChanged,
	NoteMainWindowChanged,
}

// AXNote is one accessibility notification: which notification fired and the
// element it fired for.
type AXNote struct {
	Notification string
	Element      ax.Element
}
