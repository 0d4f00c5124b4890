package batch

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareConfig crops every file to a centered square.
func squareConfig(t *testing.T) *Config {
	t.Helper()

	cfg := engine.DefaultConfig()
	ratio, err := overlay.Fixed(1, 1)
	require.NoError(t, err)
	cfg.AspectRatio = ratio
	cfg.Gesture.SettleDuration = 0

	return &Config{
		Engine:         cfg,
		Budget:         cropper.DefaultBudget(),
		Output:         cropper.Options{Quality: 90},
		FallbackFormat: cropper.FormatPNG,
		Workers:        2,
	}
}

func TestOutputFormat(t *testing.T) {
	cfg := &Config{}
	f, err := outputFormat("a.jpeg", cfg)
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatJPEG, f)

	_, err = outputFormat("a.bmp", cfg)
	require.ErrorIs(t, err, cropper.ErrFormatRequired)
	assert.Equal(t, cropper.KindInput, cropper.KindOf(err))

	cfg.FallbackFormat = cropper.FormatPNG
	f, err = outputFormat("a.bmp", cfg)
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatPNG, f)

	cfg.Output.Format = cropper.FormatWebP
	f, err = outputFormat("a.jpeg", cfg)
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatWebP, f)
}

func TestOutputPathFor(t *testing.T) {
	input := filepath.Join("in", "holiday.photo.png")

	assert.Equal(t, filepath.Join("in", "holiday.photo-cropped.jpg"),
		outputPathFor(input, cropper.FormatJPEG, &Config{}))
	assert.Equal(t, filepath.Join("out", "holiday.photo_sq.png"),
		outputPathFor(input, cropper.FormatPNG, &Config{OutputDir: "out", Suffix: "_sq"}))
}

func TestCropSingleImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "photo.png")
	testutil.SaveImage(t, testutil.GradientImage(400, 300), input)

	cfg := squareConfig(t)
	item := cropSingleImage(context.Background(), cropper.NewExecutor(cfg.Budget), cfg, input)
	require.NoError(t, item.Err)
	require.NotNil(t, item.Output)
	assert.Equal(t, filepath.Join(dir, "photo-cropped.png"), item.Output.Path)
	assert.Equal(t, 300, item.Output.Width)
	assert.Equal(t, 300, item.Output.Height)
	assert.Positive(t, item.Duration)

	got := testutil.LoadImage(t, item.Output.Path)
	want := testutil.GradientImage(400, 300).SubImage(image.Rect(50, 0, 350, 300))
	assert.True(t, testutil.SamePixels(got, want))
}

func TestCropSingleImage_Canceled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "photo.png")
	testutil.SaveImage(t, testutil.GradientImage(40, 30), input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := squareConfig(t)
	item := cropSingleImage(ctx, cropper.NewExecutor(cfg.Budget), cfg, input)
	require.ErrorIs(t, item.Err, cropper.ErrCanceled)
	assert.Equal(t, cropper.KindCanceled, cropper.KindOf(item.Err))
	assert.Equal(t, []string{"photo.png"}, testutil.ListFiles(t, dir))
}
