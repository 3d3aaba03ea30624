package model

import (
	"image"
	"time"

	"github.com/mpratt27/winsight/internal/ax"
)

// WindowRecord is the unit of cache: one top-level window of one regular
// application, as last reconciled from the OS views.
type WindowRecord struct {
	// ID is the 32-bit compositor window identifier, unique within the live
	// system at any instant.
	ID uint32 `json:"id"`

	Title         string `json:"title,omitempty"`
	OwnerBundleID string `json:"bundleId,omitempty"`
	OwnerPID      int    `json:"pid"`
	Bounds        Rect   `json:"bounds"`

	IsMinimized   bool `json:"minimized"`
	IsOwnerHidden bool `json:"ownerHidden"`
	IsVisible     bool `json:"visible"`

	// DesktopSpace is the virtual desktop the window belongs to, nil when
	// the compositor returned no spaces for it.
	DesktopSpace *int32 `json:"space,omitempty"`

	LastInteractionTime time.Time `json:"lastInteraction"`
	CreationTime        time.Time `json:"created"`

	AXHandle          ax.Element `json:"-"`
	AppAXHandle       ax.Element `json:"-"`
	CloseButtonHandle ax.Element `json:"-"`

	CachedPreview    image.Image `json:"-"`
	PreviewTimestamp time.Time   `json:"-"`
}

// SameIdentity reports whether two records name the same cache entry:
// same compositor id, same owner, and handles that the OS considers equal.
// Two records with equal id and pid but unequal handles are distinct: one
// refers to a window object that has been destroyed and replaced.
func (r WindowRecord) SameIdentity(other WindowRecord) bool {
	if r.ID != other.ID || r.OwnerPID != other.OwnerPID {
		return false
	}
	if r.AXHandle == nil || other.AXHandle == nil {
		return r.AXHandle == nil && other.AXHandle == nil
	}
	return r.AXHandle.Equal(other.AXHandle)
}

// App identifies a running application.
type App struct {
	PID      int    `json:"pid"`
	BundleID string `json:"bundleId,omitempty"`
	Name     string `json:"name,omitempty"`
	// Regular is true for regular-activation-policy processes; menu-bar
	// agents and background daemons are not tracked.
	Regular bool `json:"-"`
}

// Descriptor is the compositor's view of one window.
type Descriptor struct {
	ID       uint32  `json:"id"`
	Title    string  `json:"title,omitempty"`
	Bounds   Rect    `json:"bounds"`
	OwnerPID int     `json:"pid"`
	Layer    int32   `json:"layer"`
	Alpha    float64 `json:"alpha"`
	OnScreen bool    `json:"onScreen"`
}
