// Package enumerate holds the pure helpers of window discovery: identity
// resolution between accessibility elements and compositor descriptors,
// discovery criteria, the ghost filter, and element validation.
package enumerate

import (
	"errors"
	"strings"

	"github.com/mpratt27/winsight/internal/ax"
	"github.com/mpratt27/winsight/internal/model"
)

// Discovery thresholds.
const (
	// MinWindowSize is the minimum width and height of a discoverable window.
	MinWindowSize = 100.0
	// MinAlpha is the minimum descriptor alpha; fully transparent overlays
	// sit just below it.
	MinAlpha = 0.01
	// NormalWindowLevel is the compositor level of ordinary app windows.
	NormalWindowLevel = 0
	// GeometryTolerance bounds the per-component distance for the geometry
	// identity tier.
	GeometryTolerance = 2.0
	// WordOverlapThreshold is the minimum word-set overlap for the fuzzy
	// title tier.
	WordOverlapThreshold = 0.9
)

// ResolveWindowID resolves the compositor id for the window element el.
//
// The private bridge call wins when it answers. Otherwise candidates outside
// excluded are tried in three tiers: exact trimmed-title match, geometry
// match within ±2.0, then fuzzy title match. The first candidate passing a
// tier wins that tier; lower tiers are consulted only when higher tiers
// produced no match. Returns 0, false when nothing matches.
func ResolveWindowID(el ax.Element, candidates []model.Descriptor, excluded map[uint32]struct{}) (uint32, bool) {
	if id := el.WindowID(); id != 0 {
		return id, true
	}

	title := ""
	if t, err := el.Title(); err == nil {
		title = t
	}
	var bounds model.Rect
	haveBounds := false
	if x, y, err := el.Position(); err == nil {
		if w, h, err := el.Size(); err == nil {
			bounds = model.Rect{X: x, Y: y, Width: w, Height: h}
			haveBounds = true
		}
	}

	eligible := make([]model.Descriptor, 0, len(candidates))
	for _, cand := range candidates {
		if _, skip := excluded[cand.ID]; skip {
			continue
		}
		eligible = append(eligible, cand)
	}

	trimmed := strings.TrimSpace(title)
	if trimmed != "" {
		for _, cand := range eligible {
			if strings.TrimSpace(cand.Title) == trimmed {
				return cand.ID, true
			}
		}
	}

	if haveBounds {
		for _, cand := range eligible {
			if cand.Bounds.ApproxEqual(bounds, GeometryTolerance) {
				return cand.ID, true
			}
		}
	}

	if title != "" {
		for _, cand := range eligible {
			if cand.Title != "" && FuzzyTitleMatch(title, cand.Title) {
				return cand.ID, true
			}
		}
	}

	return 0, false
}

// FuzzyTitleMatch reports whether two titles plausibly name the same window:
// case-insensitive substring containment in either direction, or a word-set
// overlap of at least 90%. Symmetric by construction.
func FuzzyTitleMatch(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == "" || lb == "" {
		return false
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return true
	}
	return wordOverlap(la, lb) >= WordOverlapThreshold
}

// wordOverlap is the Jaccard overlap of the single-space token sets.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Split(s, " ") {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// DiscoverableElement reports whether el meets the discovery criteria for an
// accessibility window: role is window, subrole (when present) is
// standard-window or dialog, size at least 100×100, finite position.
func DiscoverableElement(el ax.Element) bool {
	role, err := el.Role()
	if err != nil || role != ax.RoleWindow {
		return false
	}
	if sub, err := el.Subrole(); err == nil && sub != "" {
		if sub != ax.SubroleStandardWindow && sub != ax.SubroleDialog {
			return false
		}
	}
	w, h, err := el.Size()
	if err != nil || w < MinWindowSize || h < MinWindowSize {
		return false
	}
	x, y, err := el.Position()
	if err != nil {
		return false
	}
	return (model.Rect{X: x, Y: y}).Finite()
}

// DescriptorQualifies reports whether a compositor descriptor meets the
// discovery criteria: size at least 100×100, alpha above the transparency
// floor, level at or above the normal window level.
func DescriptorQualifies(d model.Descriptor) bool {
	return d.Bounds.Width >= MinWindowSize &&
		d.Bounds.Height >= MinWindowSize &&
		d.Alpha > MinAlpha &&
		d.Layer >= NormalWindowLevel
}

// AcceptWindow applies the ghost filter.
//
// A window that is off screen while on an active space, not minimized, not
// fullscreen, and whose owner is not hidden has no plausible reason to be
// invisible; the compositor is reporting an artifact and it is rejected.
// Otherwise any state that explains the window's presence accepts it.
func AcceptWindow(onScreen, fullscreen, minimized, ownerHidden, onActiveSpace, isMain bool) bool {
	if !onScreen && onActiveSpace && !minimized && !fullscreen && !ownerHidden {
		return false
	}
	return onScreen || fullscreen || minimized || ownerHidden || !onActiveSpace || isMain
}

// RespondsToAttributes is the fast liveness check: a position or size read
// answering "cannot complete" proves the handle dead.
func RespondsToAttributes(el ax.Element) bool {
	_, _, perr := el.Position()
	if errors.Is(perr, ax.ErrCannotComplete) {
		return false
	}
	_, _, serr := el.Size()
	return !errors.Is(serr, ax.ErrCannotComplete)
}

// IsValidElement reports whether el still references a live window.
//
// Fast path: RespondsToAttributes. Slow path: the handle must appear in
// windows, by compositor id or by OS equality. Any other read error is
// treated as still valid, so a transiently unresponsive app never triggers a
// false purge.
func IsValidElement(el ax.Element, windows []ax.Element) bool {
	if !RespondsToAttributes(el) {
		return false
	}
	_, _, perr := el.Position()
	_, _, serr := el.Size()
	if perr != nil || serr != nil {
		return true
	}

	id := el.WindowID()
	for _, w := range windows {
		if id != 0 && w.WindowID() == id {
			return true
		}
		if el.Equal(w) {
			return true
		}
	}
	return false
}
