// Package core holds the types shared by every layer of the locator engine:
// the error taxonomy, resolution states and element geometry.
package core

// Bounds represents element position and size in CSS pixels. Values keep
// their sub-pixel fraction.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// IsEmpty reports whether the element occupies no area.
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// ElementInfo describes a resolved element for reporting.
type ElementInfo struct {
	Name     string `json:"name"`
	Locator  string `json:"locator"`
	Tag      string `json:"tag,omitempty"`
	Text     string `json:"text,omitempty"`
	Bounds   Bounds `json:"bounds"`
	Visible  bool   `json:"visible"`
	Handle   string `json:"handle,omitempty"`
	ParentOf string `json:"parent,omitempty"`
}
