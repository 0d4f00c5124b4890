// Package bounds holds the pure fitting math that keeps a transformed image
// covering the crop window.
package bounds

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
)

// ErrDegenerateImage reports an image size with a zero or negative dimension.
var ErrDegenerateImage = errors.New("degenerate image size")

// ErrDegenerateWindow reports a crop window with zero or negative area.
var ErrDegenerateWindow = errors.New("degenerate crop window")

// ErrNonFiniteTransform reports a transform with a NaN or infinite component.
var ErrNonFiniteTransform = errors.New("transform is not finite")

// scaleTolerance is the relative slack under which a scale counts as covering.
const scaleTolerance = 1e-9

// coverTolerance is the absolute slack, in viewport units, for edge checks.
const coverTolerance = 1e-6

// RotatedExtent returns the axis-aligned extent of a w x h rectangle rotated by deg.
func RotatedExtent(size geometry.Size, deg float64) geometry.Size {
	sin, cos := math.Sincos(geometry.NormalizeDegrees(deg) * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	return geometry.Size{
		Width:  size.Width*cos + size.Height*sin,
		Height: size.Width*sin + size.Height*cos,
	}
}

// MinScaleToCover returns the smallest uniform scale at which the image,
// rotated by deg, has a bounding extent covering rect on both axes.
func MinScaleToCover(image geometry.Size, rect geometry.Box, deg float64) (float64, error) {
	if image.IsDegenerate() {
		return 0, fmt.Errorf("%w: %gx%g", ErrDegenerateImage, image.Width, image.Height)
	}
	if rect.Empty() {
		return 0, fmt.Errorf("%w: %gx%g", ErrDegenerateWindow, rect.Width(), rect.Height())
	}
	ext := RotatedExtent(image, deg)
	return math.Max(rect.Width()/ext.Width, rect.Height()/ext.Height), nil
}

// ImageBounds returns the viewport bounding box of the image under m.
func ImageBounds(image geometry.Size, m geometry.Matrix) geometry.Box {
	corners := m.TransformBox(geometry.Box{MaxX: image.Width, MaxY: image.Height})
	return geometry.BoundingBox(corners[:])
}

// TranslationCorrection returns the minimal per-axis shift that closes every
// gap between imageBox and rect. On an axis where the image is narrower than
// the rect no shift can close both gaps, so the centers are aligned instead.
func TranslationCorrection(imageBox, rect geometry.Box) geometry.Point {
	return geometry.Point{
		X: axisCorrection(imageBox.MinX, imageBox.MaxX, rect.MinX, rect.MaxX),
		Y: axisCorrection(imageBox.MinY, imageBox.MaxY, rect.MinY, rect.MaxY),
	}
}

func axisCorrection(imgMin, imgMax, rMin, rMax float64) float64 {
	if imgMax-imgMin < rMax-rMin-coverTolerance {
		return (rMin+rMax)/2 - (imgMin+imgMax)/2
	}
	switch {
	case imgMin > rMin+coverTolerance:
		return rMin - imgMin
	case imgMax < rMax-coverTolerance:
		return rMax - imgMax
	}
	return 0
}

// IsCovering reports whether the image under m covers rect with no gap.
func IsCovering(image geometry.Size, m geometry.Matrix, rect geometry.Box) bool {
	return ImageBounds(image, m).Contains(rect, coverTolerance)
}

// Correction is the settle adjustment for a transform: a scale about Pivot
// followed by a Shift.
type Correction struct {
	Scale float64
	Pivot geometry.Point
	Shift geometry.Point
}

// IsZero reports whether the correction leaves the transform unchanged.
func (c Correction) IsZero() bool {
	return c.Scale == 1 && c.Shift.X == 0 && c.Shift.Y == 0
}

// Apply returns m with the fraction t in [0, 1] of the correction applied.
func (c Correction) Apply(m geometry.Matrix, t float64) geometry.Matrix {
	if t >= 1 {
		t = 1
	}
	if c.Scale != 1 {
		m = geometry.Scale(1+(c.Scale-1)*t, c.Pivot.X, c.Pivot.Y).Multiply(m)
	}
	if c.Shift.X != 0 || c.Shift.Y != 0 {
		m = geometry.Translate(c.Shift.X*t, c.Shift.Y*t).Multiply(m)
	}
	return m
}

// ComputeCorrection returns the minimal correction that makes the image under
// m cover rect: first a scale up about the rect center to the minimum cover
// scale, then a shift that closes the remaining gaps. A covering state yields
// the zero correction.
func ComputeCorrection(image geometry.Size, m geometry.Matrix, rect geometry.Box) (Correction, error) {
	c := Correction{Scale: 1, Pivot: rect.Center()}
	if !m.IsFinite() {
		return c, ErrNonFiniteTransform
	}
	minScale, err := MinScaleToCover(image, rect, m.RotationDegrees())
	if err != nil {
		return c, err
	}
	s := m.ScaleFactor()
	if !(s > 0) {
		return c, fmt.Errorf("%w: transform has zero scale", ErrDegenerateImage)
	}
	if s < minScale*(1-scaleTolerance) {
		c.Scale = minScale / s
	}
	c.Shift = TranslationCorrection(ImageBounds(image, c.Apply(m, 1)), rect)
	return c, nil
}

// Fit returns m with its full correction applied. A state that already covers
// is returned unchanged.
func Fit(image geometry.Size, m geometry.Matrix, rect geometry.Box) (geometry.Matrix, error) {
	c, err := ComputeCorrection(image, m, rect)
	if err != nil {
		return m, err
	}
	return c.Apply(m, 1), nil
}
