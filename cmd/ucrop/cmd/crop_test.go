package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGradient(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	return testutil.WriteFile(t, dir, name, testutil.EncodePNG(t, testutil.GradientImage(w, h)))
}

func TestCropCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(cropCmd.Use, "crop"))
	assert.NotEmpty(t, cropCmd.Short)
	for _, name := range []string{"output", "ratio", "rotate", "zoom", "pan-x", "pan-y", "max-width", "max-height", "format", "quality", "viewport", "json"} {
		assert.NotNil(t, cropCmd.Flags().Lookup(name), name)
	}
}

func TestCropCommand_SquareFromLandscape(t *testing.T) {
	dir := t.TempDir()
	in := writeGradient(t, dir, "photo.png", 400, 300)
	out := filepath.Join(dir, "square.png")

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"crop", in, "--ratio", "1:1", "-o", out})
	require.NoError(t, err, output)
	assert.Contains(t, output, "Cropped photo.png (400 x 300)")
	assert.Contains(t, output, "300 x 300 png")

	got := testutil.LoadImage(t, out)
	want := testutil.GradientImage(400, 300).SubImage(image.Rect(50, 0, 350, 300))
	assert.True(t, testutil.SamePixels(want, got))
}

func TestCropCommand_MaxSizeJSON(t *testing.T) {
	dir := t.TempDir()
	in := writeGradient(t, dir, "wide.png", 800, 600)

	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{
		"crop", in, "--ratio", "1:1", "--max-width", "200", "--max-height", "200", "--format", "jpeg", "--json", "--log-level", "error",
	})
	require.NoError(t, err, output)

	var summary cropSummary
	require.NoError(t, json.Unmarshal([]byte(output[strings.Index(output, "{"):]), &summary), output)
	assert.Equal(t, filepath.Join(dir, "wide-cropped.jpg"), summary.Output)
	assert.Equal(t, "jpeg", summary.Format)
	assert.Equal(t, 200, summary.Width)
	assert.Equal(t, 200, summary.Height)
	assert.Equal(t, 2, summary.SampleSize)
	assert.False(t, summary.Reduced)
	assert.True(t, testutil.FileExists(summary.Output))
	assert.Empty(t, summary.Warnings)
}

func TestWriteCropSummary_SampleNote(t *testing.T) {
	src, err := source.FromBytes("photo.png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)

	tests := []struct {
		name    string
		out     cropper.Output
		want    string
		notWant string
	}{
		{"full resolution", cropper.Output{SampleSize: 1}, "", "1/"},
		{"sampled for max size", cropper.Output{SampleSize: 4}, "sampled at 1/4 for the requested size", "memory budget"},
		{"budget reduction", cropper.Output{SampleSize: 8, BudgetReduced: true}, "reduced to 1/8 resolution to fit the memory budget", "requested size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeCropSummary(&buf, src, &tt.out)
			assert.Contains(t, buf.String(), tt.want)
			assert.NotContains(t, buf.String(), tt.notWant)
		})
	}
}

func TestCropCommand_CorruptSource(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteCorruptPNG(t, dir, "broken.png")
	out := filepath.Join(dir, "out.png")

	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"crop", in, "-o", out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be read")
	assert.False(t, testutil.FileExists(out), "no output is written")
	assert.Equal(t, []string{"broken.png"}, testutil.ListFiles(t, dir))
}

func TestCropCommand_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	in := writeGradient(t, dir, "photo.png", 40, 30)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"crop", filepath.Join(dir, "nope.png")}, "could not be read"},
		{"garbage", []string{"crop", testutil.WriteGarbage(t, dir, "notes.txt")}, "not supported"},
		{"bad ratio", []string{"crop", in, "--ratio", "wide"}, "ratio"},
		{"bad viewport", []string{"crop", in, "--viewport", "big"}, "invalid viewport"},
		{"bad format", []string{"crop", in, "--format", "gif"}, "not supported"},
		{"negative zoom", []string{"crop", in, "--zoom", "-2"}, "invalid zoom"},
		{"nan pan", []string{"crop", in, "--pan-x", "NaN"}, "invalid pan-x"},
		{"infinite rotation", []string{"crop", in, "--rotate", "Inf"}, "invalid rotate"},
		{"no args", []string{"crop"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommandAndCaptureOutput(t, rootCmd, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input, format, fallback, want string
	}{
		{"a/photo.jpg", "", "jpeg", "a/photo-cropped.jpg"},
		{"a/photo.jpg", "webp", "jpeg", "a/photo-cropped.webp"},
		{"scan.bmp", "", "png", "scan-cropped.png"},
		{"noext", "", "jpeg", "noext-cropped.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultOutputPath(tt.input, tt.format, tt.fallback), tt.input)
	}
}

func TestParseViewport(t *testing.T) {
	w, h, err := parseViewport("1080x1920")
	require.NoError(t, err)
	assert.InDelta(t, 1080, w, 1e-9)
	assert.InDelta(t, 1920, h, 1e-9)

	for _, bad := range []string{"", "100", "0x10", "ax10", "10x-1"} {
		_, _, err := parseViewport(bad)
		assert.Error(t, err, bad)
	}
}
