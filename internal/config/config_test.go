package config

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, jsonFormat, cfg.LogFormat)
	assert.False(t, cfg.Verbose)

	assert.Equal(t, "none", cfg.Crop.AspectRatio)
	assert.Equal(t, "jpeg", cfg.Crop.Format)
	assert.Equal(t, 90, cfg.Crop.Quality)
	assert.True(t, cfg.Crop.FreestyleEnabled)
	assert.Zero(t, cfg.Crop.MaxResultWidth)
	assert.Equal(t, 500, cfg.Crop.SettleDurationMS)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Memory.MaxBitmapMB)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"aspect ratio", func(c *Config) { c.Crop.AspectRatio = "3:0" }, "crop.aspect_ratio"},
		{"preset", func(c *Config) { c.Crop.AspectPresets = []string{"1:1", "wide"} }, "aspect_presets"},
		{"format", func(c *Config) { c.Crop.Format = "gif" }, "crop.format"},
		{"negative max size", func(c *Config) { c.Crop.MaxResultWidth = -1 }, "max result size"},
		{"fraction zero", func(c *Config) { c.Crop.WindowFraction = 0 }, "window_fraction"},
		{"fraction above one", func(c *Config) { c.Crop.WindowFraction = 1.5 }, "window_fraction"},
		{"scale multiplier", func(c *Config) { c.Crop.MaxScaleMultiplier = 0.5 }, "max_scale_multiplier"},
		{"settle", func(c *Config) { c.Crop.SettleDurationMS = -1 }, "settle_duration_ms"},
		{"viewport", func(c *Config) { c.Viewport.Height = 0 }, "invalid viewport"},
		{"bitmap budget", func(c *Config) { c.Memory.MaxBitmapMB = 0 }, "max_bitmap_mb"},
		{"source budget", func(c *Config) { c.Memory.MaxSourceMegapixels = -3 }, "max_source_megapixels"},
		{"sample size", func(c *Config) { c.Memory.MaxSampleSize = 12 }, "power of two"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"session ttl", func(c *Config) { c.Server.SessionTTLSec = 0 }, "session ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_TolerantFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crop.Quality = 250
	cfg.Crop.MaxResultWidth = 5
	cfg.Crop.MaxResultHeight = 5
	cfg.Crop.Format = ""
	assert.NoError(t, cfg.Validate(), "quality is clamped and a tiny max size only warns")
}

func TestToEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crop.AspectRatio = "16:9"
	cfg.Crop.SettleDurationMS = 250
	cfg.Crop.RotateEnabled = false
	cfg.Crop.WindowFraction = 0.8
	cfg.Viewport.Width = 1920
	cfg.Viewport.Height = 1080

	ec, err := cfg.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, overlay.ModeFixed, ec.AspectRatio.Mode)
	assert.InDelta(t, 16.0/9.0, ec.AspectRatio.Value(), 1e-12)
	assert.Equal(t, 250*time.Millisecond, ec.Gesture.SettleDuration)
	assert.False(t, ec.Gesture.RotateEnabled)
	assert.True(t, ec.Gesture.ScaleEnabled)
	assert.NotNil(t, ec.Gesture.Easing)
	assert.InDelta(t, 0.8, ec.Overlay.Fraction, 1e-12)
	assert.InDelta(t, 1920, ec.Viewport.Width, 0)

	cfg.Crop.AspectRatio = "bogus"
	_, err = cfg.ToEngineConfig()
	assert.ErrorIs(t, err, overlay.ErrInvalidRatio)
}

func TestToBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory = MemoryConfig{MaxBitmapMB: 64, MaxSourceMegapixels: 24, MaxSampleSize: 8}
	assert.Equal(t, cropper.Budget{
		MaxSourcePixels: 24_000_000,
		MaxBitmapBytes:  64 << 20,
		MaxSampleSize:   8,
	}, cfg.ToBudget())
}

func TestCropOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crop.MaxResultWidth = 1080
	cfg.Crop.MaxResultHeight = 720

	opts, err := cfg.CropOptions("out.png", "")
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatPNG, opts.Format, "extension decides over crop.format")
	assert.Equal(t, 90, opts.Quality)
	assert.Equal(t, 1080, opts.MaxWidth)
	assert.Equal(t, "out.png", opts.OutputPath)

	opts, err = cfg.CropOptions("out", "")
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatJPEG, opts.Format)

	opts, err = cfg.CropOptions("out.jpg", "webp")
	require.NoError(t, err)
	assert.Equal(t, cropper.FormatWebP, opts.Format)

	cfg.Crop.Format = ""
	_, err = cfg.CropOptions("out", "")
	assert.ErrorIs(t, err, cropper.ErrFormatRequired)

	_, err = cfg.CropOptions("out.gif", "")
	assert.ErrorIs(t, err, cropper.ErrUnsupportedFormat)
}

func TestPresets(t *testing.T) {
	cfg := DefaultConfig()
	presets, err := cfg.Presets()
	require.NoError(t, err)
	require.Len(t, presets, len(cfg.Crop.AspectPresets))
	assert.Equal(t, overlay.ModeFixed, presets[0].Mode)
	assert.Equal(t, overlay.ModeSource, presets[4].Mode)
	assert.Equal(t, overlay.ModeFreeform, presets[5].Mode)
}
