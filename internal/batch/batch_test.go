package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch_CropsEveryImage(t *testing.T) {
	dir := t.TempDir()
	testutil.SaveImage(t, testutil.GradientImage(400, 300), filepath.Join(dir, "a.png"))
	testutil.SaveImage(t, testutil.GradientImage(300, 600), filepath.Join(dir, "b.png"))
	testutil.WriteFile(t, dir, "notes.txt", []byte("skip me"))

	cfg := squareConfig(t)
	cfg.OutputDir = filepath.Join(dir, "out")

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Succeeded())
	assert.Equal(t, 0, res.Failed())
	assert.Equal(t, 2, res.WorkerCount)

	assert.Equal(t, filepath.Join(dir, "a.png"), res.Items[0].Input)
	assert.Equal(t, 300, res.Items[0].Output.Width)
	assert.Equal(t, 300, res.Items[1].Output.Width)
	assert.Equal(t, 300, res.Items[1].Output.Height)
	assert.Equal(t, []string{"a-cropped.png", "b-cropped.png"}, testutil.ListFiles(t, cfg.OutputDir))
}

func TestProcessBatch_ReportsFailuresPerFile(t *testing.T) {
	dir := t.TempDir()
	testutil.SaveImage(t, testutil.GradientImage(80, 60), filepath.Join(dir, "a.png"))
	testutil.WriteCorruptPNG(t, dir, "b.png")
	testutil.SaveImage(t, testutil.GradientImage(80, 60), filepath.Join(dir, "c.png"))

	res, err := ProcessBatch(context.Background(), []string{dir}, squareConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded())
	assert.Equal(t, 1, res.Failed())

	require.Error(t, res.Items[1].Err)
	assert.ErrorIs(t, res.Items[1].Err, cropper.ErrDecode)
	assert.ErrorIs(t, res.Err(), cropper.ErrDecode)
	assert.Contains(t, res.Err().Error(), "b.png")
	assert.NotContains(t, testutil.ListFiles(t, dir), "b-cropped.png")
}

func TestProcessBatch_FailFast(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteCorruptPNG(t, dir, "a.png")
	testutil.SaveImage(t, testutil.GradientImage(80, 60), filepath.Join(dir, "b.png"))

	cfg := squareConfig(t)
	cfg.Workers = 1
	cfg.FailFast = true

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Items[0].Err, cropper.ErrDecode)
	assert.ErrorIs(t, res.Items[1].Err, cropper.ErrCanceled)
	assert.Equal(t, []string{"a.png", "b.png"}, testutil.ListFiles(t, dir))
}

func TestProcessBatch_SkipsEarlierCrops(t *testing.T) {
	dir := t.TempDir()
	testutil.SaveImage(t, testutil.GradientImage(80, 60), filepath.Join(dir, "a.png"))

	cfg := squareConfig(t)
	_, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"a-cropped.png", "a.png"}, testutil.ListFiles(t, dir))
}

func TestProcessBatch_NoImages(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "notes.txt", []byte("x"))

	_, err := ProcessBatch(context.Background(), []string{dir}, squareConfig(t))
	require.ErrorIs(t, err, ErrNoImages)
}

func TestProcessBatch_MissingPath(t *testing.T) {
	_, err := ProcessBatch(context.Background(), []string{filepath.Join(t.TempDir(), "gone")}, squareConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover image files")
}
