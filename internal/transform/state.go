// Package transform holds the display transform applied to the source image.
package transform

import (
	"fmt"

	"github.com/MeKo-Tech/ucrop/internal/bounds"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
)

// State is the current affine transform of an upright image into viewport
// coordinates. It is not safe for concurrent use; all mutations happen on the
// interactive loop.
type State struct {
	image  geometry.Size
	matrix geometry.Matrix
}

// Snapshot is an immutable copy of a State.
type Snapshot struct {
	ImageSize geometry.Size
	Matrix    geometry.Matrix
}

// New returns an identity transform for an upright image of the given size.
func New(image geometry.Size) (*State, error) {
	if image.IsDegenerate() {
		return nil, fmt.Errorf("transform: %w: %gx%g", bounds.ErrDegenerateImage, image.Width, image.Height)
	}
	return &State{image: image, matrix: geometry.Identity()}, nil
}

// ImageSize returns the upright image dimensions.
func (s *State) ImageSize() geometry.Size { return s.image }

// Matrix returns the current transform.
func (s *State) Matrix() geometry.Matrix { return s.matrix }

// SetMatrix replaces the transform.
func (s *State) SetMatrix(m geometry.Matrix) { s.matrix = m }

// Scale returns the current uniform scale.
func (s *State) Scale() float64 { return s.matrix.ScaleFactor() }

// Rotation returns the current rotation in degrees, normalized to [0, 360).
func (s *State) Rotation() float64 { return s.matrix.RotationDegrees() }

// Translation returns where the image origin lands in the viewport.
func (s *State) Translation() geometry.Point { return s.matrix.Translation() }

// PostTranslate shifts the image by (dx, dy) viewport units.
func (s *State) PostTranslate(dx, dy float64) {
	s.matrix = geometry.Translate(dx, dy).Multiply(s.matrix)
}

// PostScale scales the displayed image by factor about viewport point p.
func (s *State) PostScale(factor float64, p geometry.Point) {
	if !(factor > 0) {
		return
	}
	s.matrix = geometry.Scale(factor, p.X, p.Y).Multiply(s.matrix)
}

// PostRotate rotates the displayed image by deg degrees about viewport point p.
func (s *State) PostRotate(deg float64, p geometry.Point) {
	s.matrix = geometry.Rotate(deg, p.X, p.Y).Multiply(s.matrix)
}

// Bounds returns the viewport bounding box of the transformed image.
func (s *State) Bounds() geometry.Box { return bounds.ImageBounds(s.image, s.matrix) }

// Covers reports whether the transformed image covers window.
func (s *State) Covers(window geometry.Box) bool {
	return bounds.IsCovering(s.image, s.matrix, window)
}

// ResetToDefault recomputes the default fit in place: zero rotation, scaled to
// exactly cover window and centered on it.
func (s *State) ResetToDefault(window geometry.Box) error {
	m, err := DefaultFit(s.image, window)
	if err != nil {
		return err
	}
	s.matrix = m
	return nil
}

// DefaultFit returns the transform that ResetToDefault would install.
func DefaultFit(image geometry.Size, window geometry.Box) (geometry.Matrix, error) {
	scale, err := bounds.MinScaleToCover(image, window, 0)
	if err != nil {
		return geometry.Matrix{}, err
	}
	c := window.Center()
	return geometry.Translate(c.X-scale*image.Width/2, c.Y-scale*image.Height/2).
		Multiply(geometry.Scale(scale, 0, 0)), nil
}

// Snapshot returns an immutable copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{ImageSize: s.image, Matrix: s.matrix}
}

// Restore replaces the state with snap.
func (s *State) Restore(snap Snapshot) {
	s.image = snap.ImageSize
	s.matrix = snap.Matrix
}

// Scale returns the uniform scale of the snapshot.
func (s Snapshot) Scale() float64 { return s.Matrix.ScaleFactor() }

// Rotation returns the rotation of the snapshot in [0, 360).
func (s Snapshot) Rotation() float64 { return s.Matrix.RotationDegrees() }

// Translation returns the translate components of the snapshot.
func (s Snapshot) Translation() geometry.Point { return s.Matrix.Translation() }
