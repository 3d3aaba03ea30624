package track

import (
	"image"

	"github.com/mpratt27/winsight/internal/model"
)

// EventKind classifies a cache-change event.
type EventKind int

const (
	// WindowAppeared carries a record newly admitted to the cache.
	WindowAppeared EventKind = iota
	// WindowDisappeared carries the id of a record dropped from the cache.
	WindowDisappeared
	// WindowChanged carries a record whose observable fields changed.
	WindowChanged
	// PreviewCaptured carries a freshly captured preview.
	PreviewCaptured
)

func (k EventKind) String() string {
	switch k {
	case WindowAppeared:
		return "window-appeared"
	case WindowDisappeared:
		return "window-disappeared"
	case WindowChanged:
		return "window-changed"
	case PreviewCaptured:
		return "preview-captured"
	default:
		return "unknown"
	}
}

// Event is one differential change to the window cache.
type Event struct {
	Kind EventKind

	// Record is set for WindowAppeared and WindowChanged.
	Record model.WindowRecord

	// WindowID is set for every kind.
	WindowID uint32

	// Image is set for PreviewCaptured.
	Image image.Image
}
