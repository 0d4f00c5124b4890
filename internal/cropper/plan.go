package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/source"
)

// quarterTolerance is how close, in degrees, a rotation must be to a multiple
// of 90 for the exact pixel path.
const quarterTolerance = 1e-3

// plan is the pixel-space layout of a crop.
type plan struct {
	// upright is the crop region in upright source pixels, clamped to the image.
	upright image.Rectangle
	// stored is upright mapped onto the stored pixel grid.
	stored image.Rectangle
	// imageToView maps upright source pixels to viewport coordinates.
	imageToView geometry.Matrix
	scale       float64
	quarter     int
	exact       bool
	// nativeW and nativeH are the output dimensions at source resolution.
	nativeW int
	nativeH int
}

func (r *Request) plan() (plan, error) {
	const op = "plan"
	m := r.transform.Matrix
	if !m.IsFinite() {
		return plan{}, newError(KindGeometry, op, ErrNonFiniteTransform)
	}
	inv, ok := m.Invert()
	if !ok {
		return plan{}, newError(KindGeometry, op, fmt.Errorf("%w: transform is not invertible", ErrDegenerateCrop))
	}
	up := r.source.UprightSize()
	imgBounds := image.Rect(0, 0, int(up.Width), int(up.Height))

	quad := inv.TransformBox(r.window)
	region := geometry.BoundingBox(quad[:]).ToRect(imgBounds)
	if region.Empty() {
		return plan{}, newError(KindGeometry, op, fmt.Errorf("%w: window maps outside the image", ErrDegenerateCrop))
	}

	scale := m.ScaleFactor()
	p := plan{
		upright:     region,
		imageToView: m,
		scale:       scale,
	}
	p.quarter, p.exact = geometry.QuarterTurns(m.RotationDegrees(), quarterTolerance)
	if p.exact {
		p.nativeW, p.nativeH = region.Dx(), region.Dy()
		if p.quarter%2 == 1 {
			p.nativeW, p.nativeH = p.nativeH, p.nativeW
		}
	} else {
		p.nativeW = int(math.Round(r.window.Width() / scale))
		p.nativeH = int(math.Round(r.window.Height() / scale))
	}
	if p.nativeW < 1 || p.nativeH < 1 {
		return plan{}, newError(KindGeometry, op, fmt.Errorf("%w: %dx%d px", ErrDegenerateCrop, p.nativeW, p.nativeH))
	}
	src := r.source
	p.stored = src.Orientation().ToStored(region, src.Width(), src.Height())
	return p, nil
}

// targetSize is the output size after fitting into max, never upscaled.
func targetSize(w, h int, bound MaxSize) (int, int) {
	if !bound.IsSet() || (w <= bound.Width && h <= bound.Height) {
		return w, h
	}
	f := math.Min(float64(bound.Width)/float64(w), float64(bound.Height)/float64(h))
	tw := int(math.Max(1, math.Round(float64(w)*f)))
	th := int(math.Max(1, math.Round(float64(h)*f)))
	return tw, th
}

// Budget bounds the memory a crop may use.
type Budget struct {
	// MaxSourcePixels bounds the decode of the source. JPEG sources are
	// measured at the reduced size they decode at.
	MaxSourcePixels int64
	// MaxBitmapBytes bounds the working bitmap of the crop region.
	MaxBitmapBytes int64
	// MaxSampleSize is the largest power-of-two reduction allowed.
	MaxSampleSize int
}

// DefaultBudget returns the default memory limits.
func DefaultBudget() Budget {
	return Budget{
		MaxSourcePixels: 100_000_000,
		MaxBitmapBytes:  256 << 20,
		MaxSampleSize:   32,
	}
}

func bitmapBytes(r image.Rectangle, sample int) int64 {
	w := int64((r.Dx() + sample - 1) / sample)
	h := int64((r.Dy() + sample - 1) / sample)
	return w * h * 4
}

// chooseSample returns the power-of-two reduction for the working bitmap.
// It prefers the largest reduction that still reaches the target resolution
// and goes further only when the bitmap would not fit the budget otherwise.
// lossy reports whether the result falls short of the target resolution.
func (b Budget) chooseSample(p plan, tw, th int) (sample int, lossy bool, err error) {
	maxSample := b.MaxSampleSize
	if maxSample < 1 {
		maxSample = 1
	}
	keep := 1
	for keep*2 <= maxSample && p.nativeW/(keep*2) >= tw && p.nativeH/(keep*2) >= th {
		keep *= 2
	}
	sample = keep
	for b.MaxBitmapBytes > 0 && bitmapBytes(p.stored, sample) > b.MaxBitmapBytes {
		if sample*2 > maxSample {
			return 0, false, fmt.Errorf("%w: region %dx%d needs %d bytes at 1/%d, budget %d",
				ErrMemoryBudget, p.stored.Dx(), p.stored.Dy(), bitmapBytes(p.stored, sample), sample, b.MaxBitmapBytes)
		}
		sample *= 2
	}
	return sample, sample > keep, nil
}

// fitDecode raises sample until the source decode fits MaxSourcePixels.
// Raising helps only where the decoder itself can reduce, which is JPEG up to
// 1/8; every other format must fit at full size. raised reports whether
// sample had to grow.
func (b Budget) fitDecode(src *source.Handle, sample int) (fitted int, raised bool, err error) {
	limit := b.MaxSourcePixels
	if limit <= 0 {
		return sample, false, nil
	}
	maxSample := max(b.MaxSampleSize, 1)
	for {
		scale := src.DecodeScale(sample)
		w, h := src.DecodeSize(scale)
		if int64(w)*int64(h) <= limit {
			return sample, raised, nil
		}
		if sample*2 > maxSample || src.DecodeScale(sample*2) == scale {
			return 0, false, fmt.Errorf("%w: source %dx%d decodes at %dx%d, exceeds %d pixels",
				ErrMemoryBudget, src.Width(), src.Height(), w, h, limit)
		}
		sample *= 2
		raised = true
	}
}
