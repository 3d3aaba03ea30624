package model

import "github.com/mpratt27/winsight/internal/ax"

// WindowSource is the common accessor set over the two discovery views of a
// window: the screen-capture descriptor and the accessibility element.
type WindowSource interface {
	SourceID() uint32
	SourceBounds() Rect
	SourceTitle() (string, bool)
	SourcePID() (int, bool)
	SourceOnScreen() bool
	SourceLayer() int32
}

// DescriptorSource adapts a compositor Descriptor to WindowSource.
type DescriptorSource struct {
	Descriptor
}

func (s DescriptorSource) SourceID() uint32     { return s.ID }
func (s DescriptorSource) SourceBounds() Rect   { return s.Bounds }
func (s DescriptorSource) SourcePID() (int, bool) { return s.OwnerPID, true }
func (s DescriptorSource) SourceOnScreen() bool { return s.OnScreen }
func (s DescriptorSource) SourceLayer() int32   { return s.Layer }

func (s DescriptorSource) SourceTitle() (string, bool) {
	return s.Title, s.Title != ""
}

// ElementSource adapts an accessibility element to WindowSource. The id,
// bounds, and title are read once at construction so later accessor calls
// never touch the (possibly dead) OS handle.
type ElementSource struct {
	Element  ax.Element
	ID       uint32
	Bounds   Rect
	Title    string
	HasTitle bool
	OnScreen bool
	Layer    int32
}

// NewElementSource snapshots el's discovery-relevant attributes. Attribute
// reads that fail leave their zero value; the resolved id is supplied by the
// caller because resolution needs the compositor candidate list.
func NewElementSource(el ax.Element, id uint32, onScreen bool, layer int32) ElementSource {
	s := ElementSource{Element: el, ID: id, OnScreen: onScreen, Layer: layer}
	if x, y, err := el.Position(); err == nil {
		s.Bounds.X, s.Bounds.Y = x, y
	}
	if w, h, err := el.Size(); err == nil {
		s.Bounds.Width, s.Bounds.Height = w, h
	}
	if t, err := el.Title(); err == nil && t != "" {
		s.Title, s.HasTitle = t, true
	}
	return s
}

func (s ElementSource) SourceID() uint32             { return s.ID }
func (s ElementSource) SourceBounds() Rect           { return s.Bounds }
func (s ElementSource) SourceTitle() (string, bool)  { return s.Title, s.HasTitle }
func (s ElementSource) SourcePID() (int, bool)       { return s.Element.Pid(), true }
func (s ElementSource) SourceOnScreen() bool         { return s.OnScreen }
func (s ElementSource) SourceLayer() int32           { return s.Layer }
