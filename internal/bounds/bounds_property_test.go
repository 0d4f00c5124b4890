package bounds

import (
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMinScaleToCover_CoversAndIsMinimal checks coverage at s and loss of
// coverage just below s.
func TestMinScaleToCover_CoversAndIsMinimal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("min scale covers and is minimal", prop.ForAll(
		func(w, h, rw, rh int, deg float64) bool {
			img := geometry.Size{Width: float64(w), Height: float64(h)}
			rect := geometry.NewBox(0, 0, float64(rw), float64(rh))
			s, err := MinScaleToCover(img, rect, deg)
			if err != nil {
				return false
			}
			ext := RotatedExtent(img, deg)
			tol := 1e-9 * (float64(rw) + float64(rh))
			if s*ext.Width < rect.Width()-tol || s*ext.Height < rect.Height()-tol {
				return false
			}
			smaller := s * (1 - 1e-6)
			return smaller*ext.Width < rect.Width() || smaller*ext.Height < rect.Height()
		},
		gen.IntRange(1, 8000),
		gen.IntRange(1, 8000),
		gen.IntRange(1, 2000),
		gen.IntRange(1, 2000),
		gen.Float64Range(0, 360),
	))

	properties.TestingRun(t)
}

// TestFit_Idempotent checks that fitting a fitted state is a no-op.
func TestFit_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("fit twice equals fit once", prop.ForAll(
		func(w, h int, scale, deg, tx, ty float64) bool {
			img := geometry.Size{Width: float64(w), Height: float64(h)}
			rect := geometry.NewBox(100, 150, 400, 350)
			m := geometry.Translate(tx, ty).
				Multiply(geometry.Rotate(deg, 0, 0)).
				Multiply(geometry.Scale(scale, 0, 0))
			once, err := Fit(img, m, rect)
			if err != nil {
				return false
			}
			if !IsCovering(img, once, rect) {
				return false
			}
			twice, err := Fit(img, once, rect)
			if err != nil {
				return false
			}
			return twice == once
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 5000),
		gen.Float64Range(0.01, 4),
		gen.Float64Range(0, 360),
		gen.Float64Range(-2000, 2000),
		gen.Float64Range(-2000, 2000),
	))

	properties.TestingRun(t)
}
