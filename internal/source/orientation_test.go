package source

import (
	"bytes"
	"image"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, img image.Image, f imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, f))
	return buf.Bytes()
}

// TestToStored_CropCommutesWithOrientation checks that cropping the stored
// image at the mapped rectangle and turning it upright equals cropping the
// upright image directly.
func TestToStored_CropCommutesWithOrientation(t *testing.T) {
	raw := testutil.GradientImage(13, 7)
	upRect := image.Rect(2, 1, 6, 5)

	for o := OrientationNormal; o <= OrientationRotate90CCW; o++ {
		upright := o.Apply(raw)
		if o.SwapsAxes() {
			require.Equal(t, image.Rect(0, 0, 7, 13), upright.Bounds(), "orientation %d", o)
		}
		want := imaging.Crop(upright, upRect)

		stored := o.ToStored(upRect, 13, 7)
		got := o.Apply(imaging.Crop(raw, stored))
		assert.True(t, testutil.SamePixels(want, got), "orientation %d", o)
	}
}

func TestOrientationPredicates(t *testing.T) {
	assert.False(t, Orientation(0).Valid())
	assert.False(t, Orientation(9).Valid())
	assert.True(t, OrientationTransverse.Valid())
	assert.False(t, OrientationRotate180.SwapsAxes())
	assert.True(t, OrientationTranspose.SwapsAxes())
}
