package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixRotateAboutPivot(t *testing.T) {
	m := Rotate(90, 10, 10)
	p := m.TransformPoint(Point{X: 20, Y: 10})
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 20, p.Y, 1e-9, "positive rotation turns clockwise with y down")
	assert.InDelta(t, 90, m.RotationDegrees(), 1e-9)
	assert.InDelta(t, 1, m.ScaleFactor(), 1e-9)
}

func TestMatrixScaleKeepsPivot(t *testing.T) {
	m := Scale(3, 5, 7)
	p := m.TransformPoint(Point{X: 5, Y: 7})
	assert.InDelta(t, 5, p.X, 1e-9)
	assert.InDelta(t, 7, p.Y, 1e-9)
	assert.InDelta(t, 3, m.ScaleFactor(), 1e-9)
}

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := Translate(12, -4).Multiply(Rotate(33, 1, 2)).Multiply(Scale(2.5, 0, 0))
	inv, ok := m.Invert()
	require.True(t, ok)
	p := Point{X: 123.4, Y: -56.7}
	back := inv.TransformPoint(m.TransformPoint(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	_, ok = Matrix{}.Invert()
	assert.False(t, ok)
}

func TestNormalizeDegrees(t *testing.T) {
	cases := map[float64]float64{
		0: 0, 360: 0, -90: 270, 725: 5, -720: 0, 359.5: 359.5,
	}
	for in, want := range cases {
		assert.InDelta(t, want, NormalizeDegrees(in), 1e-9, "in=%v", in)
	}
}

func TestQuarterTurns(t *testing.T) {
	q, ok := QuarterTurns(-90, 1e-3)
	require.True(t, ok)
	assert.Equal(t, 3, q)
	q, ok = QuarterTurns(359.9999, 1e-3)
	require.True(t, ok)
	assert.Equal(t, 0, q)
	_, ok = QuarterTurns(45, 1e-3)
	assert.False(t, ok)
}

func TestBoxHelpers(t *testing.T) {
	b := NewBox(10, 20, 0, 0)
	assert.Equal(t, Box{MinX: 0, MinY: 0, MaxX: 10, MaxY: 20}, b)
	assert.Equal(t, Point{X: 5, Y: 10}, b.Center())
	assert.True(t, b.Contains(NewBox(1, 1, 9, 19), 0))
	assert.False(t, b.Contains(NewBox(-1, 1, 9, 19), 0))
	assert.True(t, NewBox(3, 3, 3, 9).Empty())

	bb := BoundingBox([]Point{{X: 3, Y: -1}, {X: -2, Y: 4}, {X: 1, Y: 1}})
	assert.Equal(t, Box{MinX: -2, MinY: -1, MaxX: 3, MaxY: 4}, bb)

	r := NewBox(-5, 2.4, 120.6, 50).ToRect(image.Rect(0, 0, 100, 100))
	assert.Equal(t, image.Rect(0, 2, 100, 50), r)
}

func TestMatrixIsFinite(t *testing.T) {
	assert.True(t, Rotate(30, 5, 5).IsFinite())
	assert.False(t, Translate(math.NaN(), 0).IsFinite())
	assert.False(t, Scale(math.Inf(1), 0, 0).IsFinite())
}
