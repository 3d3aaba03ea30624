package platform

import (
	"context"
	"image"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/model"
)

// Accessibility exposes the accessibility-tree primitives the engine consumes.
type Accessibility interface {
	// AppElement returns the application-level element for pid.
	AppElement(pid int) (ax.Element, error)

	// SystemWide returns the system-wide element.
	SystemWide() ax.Element

	// AppWindows returns the window children of an app element via the
	// standard accessibility query.
	AppWindows(app ax.Element) ([]ax.Element, error)

	// BruteForceWindows constructs window elements from synthetic remote
	// tokens with element ids 0..maxToken-1 and returns those whose subrole
	// is standard-window or dialog. The standard query misses windows of
	// some hardened apps; this is the fallback.
	BruteForceWindows(pid int, maxToken int) []ax.Element
}

// Compositor exposes the compositor window-list primitives.
type Compositor interface {
	// WindowDescriptors returns the compositor's descriptors for pid's
	// windows.
	WindowDescriptors(pid int) ([]model.Descriptor, error)

	// WindowSpaces returns the virtual-desktop ids the window belongs to.
	// Empty means the compositor reported none (common mid space-switch).
	WindowSpaces(id uint32) []int32

	// WindowLevel returns the window's compositor level.
	WindowLevel(id uint32) int32

	// ActiveSpaceIDs returns the set of currently active space ids across
	// all displays.
	ActiveSpaceIDs() map[int32]struct{}

	// ShareableWindows enumerates the shareable on-screen windows via the
	// screen-capture surface. Blocks until the enumeration answers or ctx
	// expires.
	ShareableWindows(ctx context.Context) ([]model.Descriptor, error)
}

// Capturer is the raw screenshot-capture primitive.
type Capturer interface {
	CaptureWindow(ctx context.Context, id uint32) (image.Image, error)
}

// Workspace delivers process-lifecycle and space-change notifications.
type Workspace interface {
	// Notifications returns the raw workspace notification stream. The
	// channel is owned by the bridge and closed on Close.
	Notifications() <-chan WorkspaceNote

	// RunningApplications returns every running application, regular or not.
	RunningApplications() []model.App

	// FrontmostApplication returns the frontmost application, if any.
	FrontmostApplication() (model.App, bool)

	Close() error
}

// ObserverFactory creates per-process accessibility observers.
type ObserverFactory interface {
	// NewObserver registers an observer on pid for the given notification
	// names. Registration of individual notifications may fail with
	// ErrAlreadyRegistered, ErrUnsupported, or ErrNotImplemented; those are
	// non-fatal and reported via the returned observer's Skipped list. Any
	// other registration failure fails construction.
	NewObserver(pid int, notifications []string) (AXObserver, error)
}

// AXObserver is a live per-process accessibility subscription. Its run-loop
// source lives on the bridge's main run loop; events are delivered on the
// Events channel.
type AXObserver interface {
	// Events returns the notification stream. Closed by Close.
	Events() <-chan AXNote

	// Skipped returns the notification names that could not be registered
	// for a non-fatal reason.
	Skipped() []string

	Close() error
}

// Permissions reports the current permission grants.
type Permissions interface {
	ScreenCapture() bool
	Accessibility() bool
}
