package cropper

import (
	"image"
	"math"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_ClampsToImage(t *testing.T) {
	dir := t.TempDir()
	h := pngSource(t, dir, testutil.GradientImage(50, 40))
	// window hangs over the left and top edges
	m := geometry.Translate(10, 10)
	window := geometry.NewBox(0, 0, 30, 30)
	req, err := NewRequest(h, snapshotOf(h, m), window, pngOptions("o.png"))
	require.NoError(t, err)
	p, err := req.plan()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), p.upright)
	assert.True(t, p.exact)
}

func TestChooseSample(t *testing.T) {
	p := plan{stored: image.Rect(0, 0, 4000, 4000), nativeW: 4000, nativeH: 4000}
	b := Budget{MaxSampleSize: 8}

	s, reduced, err := b.chooseSample(p, 4000, 4000)
	require.NoError(t, err)
	assert.Equal(t, 1, s)
	assert.False(t, reduced)

	s, _, err = b.chooseSample(p, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 4, s)

	s, _, err = b.chooseSample(p, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, s, "capped at the maximum sample size")
}

func TestFitDecode(t *testing.T) {
	jpg, err := source.FromBytes("big.jpg", testutil.EncodeJPEG(t, testutil.GradientImage(800, 800), 80))
	require.NoError(t, err)
	png, err := source.FromBytes("big.png", testutil.EncodePNG(t, testutil.GradientImage(800, 800)))
	require.NoError(t, err)

	b := Budget{MaxSourcePixels: 100_000, MaxSampleSize: 8}
	s, raised, err := b.fitDecode(jpg, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, s, "200x200 is the first reduced decode under the limit")
	assert.True(t, raised)

	s, raised, err = b.fitDecode(jpg, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, s)
	assert.False(t, raised)

	_, _, err = b.fitDecode(png, 1)
	assert.ErrorIs(t, err, ErrMemoryBudget)

	_, _, err = Budget{MaxSourcePixels: 100_000, MaxSampleSize: 2}.fitDecode(jpg, 1)
	assert.ErrorIs(t, err, ErrMemoryBudget, "capped by the maximum sample size")

	s, _, err = Budget{MaxSampleSize: 8}.fitDecode(png, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s, "no decode limit")
}

func TestReduceRect(t *testing.T) {
	assert.Equal(t, image.Rect(3, 5, 17, 9), reduceRect(image.Rect(3, 5, 17, 9), 1))
	assert.Equal(t, image.Rect(0, 1, 5, 3), reduceRect(image.Rect(3, 5, 17, 9), 4))
}

func TestTargetSize(t *testing.T) {
	w, h := targetSize(3000, 3000, MaxSize{Width: 1080, Height: 1080})
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1080, h)
	w, h = targetSize(500, 300, MaxSize{Width: 1080, Height: 1080})
	assert.Equal(t, 500, w, "never upscaled")
	assert.Equal(t, 300, h)
	w, h = targetSize(4000, 1000, MaxSize{Width: 1000, Height: 1000})
	assert.Equal(t, 1000, w)
	assert.Equal(t, 250, h)
}

// TestFitMax_BoundsAndRatio checks that fitted output respects the bound and
// keeps the crop's aspect ratio within a pixel of rounding.
func TestFitMax_BoundsAndRatio(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("fit stays within max size and keeps aspect", prop.ForAll(
		func(w, h, mw, mh int) bool {
			img := testutil.CreateTestImage(w, h, testutil.PixelColor(1, 2))
			out := fitMax(img, MaxSize{Width: mw, Height: mh}).Bounds()
			if out.Dx() > mw || out.Dy() > mh {
				return false
			}
			if out.Dx() > w || out.Dy() > h {
				return false
			}
			if w <= mw && h <= mh {
				return out.Dx() == w && out.Dy() == h
			}
			// each side is within one pixel of the exact fit
			want := float64(w) / float64(h)
			lo := float64(out.Dx()-1) / float64(out.Dy()+1)
			hi := math.Inf(1)
			if out.Dy() > 1 {
				hi = float64(out.Dx()+1) / float64(out.Dy()-1)
			}
			return want >= lo && want <= hi
		},
		gen.IntRange(1, 300),
		gen.IntRange(1, 300),
		gen.IntRange(MinResultSize+1, 200),
		gen.IntRange(MinResultSize+1, 200),
	))

	properties.TestingRun(t)
}
