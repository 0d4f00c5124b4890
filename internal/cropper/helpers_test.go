package cropper

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/MeKo-Tech/ucrop/internal/transform"
	"github.com/stretchr/testify/require"
)

func pngSource(t *testing.T, dir string, img image.Image) *source.Handle {
	t.Helper()
	p := testutil.WriteFile(t, dir, "source.png", testutil.EncodePNG(t, img))
	h, err := source.Open(p)
	require.NoError(t, err)
	return h
}

func defaultSnapshot(t *testing.T, h *source.Handle, window geometry.Box) transform.Snapshot {
	t.Helper()
	st, err := transform.New(h.UprightSize())
	require.NoError(t, err)
	require.NoError(t, st.ResetToDefault(window))
	return st.Snapshot()
}

func snapshotOf(h *source.Handle, m geometry.Matrix) transform.Snapshot {
	return transform.Snapshot{ImageSize: h.UprightSize(), Matrix: m}
}

func pngOptions(path string) Options {
	return Options{Format: FormatPNG, Quality: 100, OutputPath: path}
}
