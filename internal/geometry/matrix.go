package geometry

import "math"

// Matrix is a 2D affine transformation in row-major order:
//
//	| a  b  c |
//	| d  e  f |
//
// mapping x' = a*x + b*y + c and y' = d*x + e*y + f. Coordinates are y-down,
// so a positive rotation turns clockwise on screen.
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// Translate creates a translation matrix.
func Translate(x, y float64) Matrix {
	return Matrix{A: 1, C: x, E: 1, F: y}
}

// Scale creates a uniform scaling matrix about the pivot (px, py).
func Scale(s, px, py float64) Matrix {
	return Matrix{A: s, C: px - s*px, E: s, F: py - s*py}
}

// Rotate creates a rotation matrix of deg degrees about the pivot (px, py).
func Rotate(deg, px, py float64) Matrix {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	return Matrix{
		A: cos, B: -sin, C: px - cos*px + sin*py,
		D: sin, E: cos, F: py - sin*px - cos*py,
	}
}

// Multiply returns m * other, i.e. other applied first.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// TransformPoint applies the matrix to p.
func (m Matrix) TransformPoint(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}

// Determinant returns ad - bc of the linear part.
func (m Matrix) Determinant() float64 { return m.A*m.E - m.B*m.D }

// Invert returns the inverse matrix and false when m is singular.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.Determinant()
	if math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return Matrix{}, false
	}
	inv := 1.0 / det
	return Matrix{
		A: m.E * inv,
		B: -m.B * inv,
		C: (m.B*m.F - m.C*m.E) * inv,
		D: -m.D * inv,
		E: m.A * inv,
		F: (m.C*m.D - m.A*m.F) * inv,
	}, true
}

// IsFinite reports whether every component is a finite number.
func (m Matrix) IsFinite() bool {
	for _, v := range [...]float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ScaleFactor returns the uniform scale of a similarity transform.
func (m Matrix) ScaleFactor() float64 { return math.Hypot(m.A, m.D) }

// RotationDegrees returns the rotation of a similarity transform in [0, 360).
func (m Matrix) RotationDegrees() float64 {
	return NormalizeDegrees(math.Atan2(m.D, m.A) * 180 / math.Pi)
}

// Translation returns the (c, f) components.
func (m Matrix) Translation() Point { return Point{X: m.C, Y: m.F} }

// TransformBox maps the corners of b and returns them in order.
func (m Matrix) TransformBox(b Box) [4]Point {
	c := b.Corners()
	for i := range c {
		c[i] = m.TransformPoint(c[i])
	}
	return c
}

// Lerp interpolates the components of m and o by t.
func (m Matrix) Lerp(o Matrix, t float64) Matrix {
	l := func(a, b float64) float64 { return a + (b-a)*t }
	return Matrix{
		A: l(m.A, o.A), B: l(m.B, o.B), C: l(m.C, o.C),
		D: l(m.D, o.D), E: l(m.E, o.E), F: l(m.F, o.F),
	}
}

// NormalizeDegrees maps deg into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// QuarterTurns returns the number of clockwise quarter turns when deg is a
// multiple of 90 within tol, and false otherwise.
func QuarterTurns(deg, tol float64) (int, bool) {
	d := NormalizeDegrees(deg)
	q := math.Round(d / 90)
	if math.Abs(d-q*90) > tol {
		return 0, false
	}
	return int(q) % 4, true
}
