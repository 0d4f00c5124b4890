package geometry

import (
	"image"
	"math"
)

// Epsilon is the tolerance used for float comparisons of viewport coordinates.
const Epsilon = 1e-6

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Add returns p offset by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width/height pair in float space.
type Size struct {
	Width  float64
	Height float64
}

// IsDegenerate reports whether either dimension is not strictly positive.
func (s Size) IsDegenerate() bool {
	return !(s.Width > 0) || !(s.Height > 0) || math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0)
}

// Ratio returns width/height. Callers must check IsDegenerate first.
func (s Size) Ratio() float64 { return s.Width / s.Height }

// Box represents an axis-aligned rectangle in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// BoxFromCenter builds a box of the given size around c.
func BoxFromCenter(c Point, w, h float64) Box {
	return Box{MinX: c.X - w/2, MinY: c.Y - h/2, MaxX: c.X + w/2, MaxY: c.Y + h/2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Size returns the box dimensions.
func (b Box) Size() Size { return Size{Width: b.Width(), Height: b.Height()} }

// Center returns the box midpoint.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Empty reports whether the box has zero or negative area.
func (b Box) Empty() bool { return !(b.Width() > 0) || !(b.Height() > 0) }

// Translate returns the box shifted by dx, dy.
func (b Box) Translate(dx, dy float64) Box {
	return Box{MinX: b.MinX + dx, MinY: b.MinY + dy, MaxX: b.MaxX + dx, MaxY: b.MaxY + dy}
}

// Contains reports whether o lies inside b, allowing tol slack on each edge.
func (b Box) Contains(o Box, tol float64) bool {
	return o.MinX >= b.MinX-tol && o.MinY >= b.MinY-tol &&
		o.MaxX <= b.MaxX+tol && o.MaxY <= b.MaxY+tol
}

// Corners returns the four corners clockwise from the top-left (y down).
func (b Box) Corners() [4]Point {
	return [4]Point{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
	}
}

// ToRect converts a Box to an image.Rectangle rounded to the nearest pixel and
// clamped to bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Round(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Round(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Round(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Round(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// NearlyEqual compares two floats within Epsilon scaled by magnitude.
func NearlyEqual(a, b float64) bool {
	d := math.Abs(a - b)
	if d <= Epsilon {
		return true
	}
	return d <= Epsilon*math.Max(math.Abs(a), math.Abs(b))
}
