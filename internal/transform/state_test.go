package transform

import (
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/bounds"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsDegenerate(t *testing.T) {
	_, err := New(geometry.Size{Width: 0, Height: 10})
	assert.ErrorIs(t, err, bounds.ErrDegenerateImage)
}

func TestResetToDefault_CoversAndCenters(t *testing.T) {
	st, err := New(geometry.Size{Width: 4000, Height: 3000})
	require.NoError(t, err)
	window := geometry.NewBox(50, 100, 350, 400)

	st.PostRotate(37, geometry.Point{X: 10, Y: 10})
	st.PostScale(3, geometry.Point{})
	require.NoError(t, st.ResetToDefault(window))

	assert.InDelta(t, 0, st.Rotation(), 1e-9)
	assert.InDelta(t, 0.1, st.Scale(), 1e-12)
	b := st.Bounds()
	assert.InDelta(t, window.Center().X, b.Center().X, 1e-9)
	assert.InDelta(t, window.Center().Y, b.Center().Y, 1e-9)
	assert.True(t, st.Covers(window))
	assert.InDelta(t, 400, b.Width(), 1e-9)
	assert.InDelta(t, 300, b.Height(), 1e-9)
}

func TestPostOperationsCompose(t *testing.T) {
	st, err := New(geometry.Size{Width: 100, Height: 50})
	require.NoError(t, err)
	st.PostScale(2, geometry.Point{})
	st.PostRotate(-90, geometry.Point{})
	st.PostTranslate(5, 7)

	assert.InDelta(t, 2, st.Scale(), 1e-12)
	assert.InDelta(t, 270, st.Rotation(), 1e-9)
	assert.InDelta(t, 5, st.Translation().X, 1e-9)
	assert.InDelta(t, 7, st.Translation().Y, 1e-9)

	snap := st.Snapshot()
	st.PostTranslate(100, 100)
	st.Restore(snap)
	assert.Equal(t, snap.Matrix, st.Matrix())
	assert.InDelta(t, 2, snap.Scale(), 1e-12)
}

func TestPostScale_IgnoresNonPositive(t *testing.T) {
	st, err := New(geometry.Size{Width: 10, Height: 10})
	require.NoError(t, err)
	st.PostScale(0, geometry.Point{})
	st.PostScale(-2, geometry.Point{})
	assert.Equal(t, geometry.Identity(), st.Matrix())
}
