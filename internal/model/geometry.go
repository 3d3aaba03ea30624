package model

import "math"

// Rect is a rectangle in global screen coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// ApproxEqual reports whether both position components and both size
// components of r and other are within tol of each other.
func (r Rect) ApproxEqual(other Rect, tol float64) bool {
	return math.Abs(r.X-other.X) <= tol &&
		math.Abs(r.Y-other.Y) <= tol &&
		math.Abs(r.Width-other.Width) <= tol &&
		math.Abs(r.Height-other.Height) <= tol
}

// Finite reports whether the rectangle's position is representable.
// The accessibility layer occasionally hands back NaN or Inf coordinates
// for windows that are mid-teardown.
func (r Rect) Finite() bool {
	return !math.IsNaN(r.X) && !math.IsInf(r.X, 0) &&
		!math.IsNaN(r.Y) && !math.IsInf(r.Y, 0)
}
