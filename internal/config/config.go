package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/gesture"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
)

const (
	infoLevel  = "info"
	jsonFormat = "json"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  infoLevel,
		LogFormat: jsonFormat,
		Verbose:   false,
		Crop: CropConfig{
			AspectRatio:        "none",
			AspectPresets:      []string{"1:1", "3:4", "4:3", "16:9", "source", "freeform"},
			FreestyleEnabled:   true,
			Format:             "jpeg",
			Quality:            90,
			WindowFraction:     1,
			MinWindowSize:      64,
			MaxScaleMultiplier: 10,
			SettleDurationMS:   500,
			RotateEnabled:      true,
			ScaleEnabled:       true,
		},
		Viewport: ViewportConfig{
			Width:  1000,
			Height: 1000,
		},
		Memory: MemoryConfig{
			MaxBitmapMB:         256,
			MaxSourceMegapixels: 100,
			MaxSampleSize:       32,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			SessionTTLSec:   600,
		},
	}
}

// Validate validates the configuration and returns any errors. Quality is
// clamped at crop time and a too small max result size only warns, so
// neither is rejected here.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"json", "text"}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if _, err := overlay.ParseAspectRatio(c.Crop.AspectRatio); err != nil {
		return fmt.Errorf("invalid crop.aspect_ratio: %w", err)
	}
	for _, p := range c.Crop.AspectPresets {
		if _, err := overlay.ParseAspectRatio(p); err != nil {
			return fmt.Errorf("invalid crop.aspect_presets entry %q: %w", p, err)
		}
	}
	if c.Crop.Format != "" {
		if _, err := cropper.ParseFormat(c.Crop.Format); err != nil {
			return fmt.Errorf("invalid crop.format: %w", err)
		}
	}
	if c.Crop.MaxResultWidth < 0 || c.Crop.MaxResultHeight < 0 {
		return fmt.Errorf("invalid max result size: %dx%d (must not be negative)", c.Crop.MaxResultWidth, c.Crop.MaxResultHeight)
	}
	if !(c.Crop.WindowFraction > 0) || c.Crop.WindowFraction > 1 {
		return fmt.Errorf("invalid crop.window_fraction: %.2f (must be in (0, 1])", c.Crop.WindowFraction)
	}
	if c.Crop.MinWindowSize < 0 {
		return fmt.Errorf("invalid crop.min_window_size: %.1f (must not be negative)", c.Crop.MinWindowSize)
	}
	if c.Crop.MaxScaleMultiplier < 1 {
		return fmt.Errorf("invalid crop.max_scale_multiplier: %.2f (must be at least 1)", c.Crop.MaxScaleMultiplier)
	}
	if c.Crop.SettleDurationMS < 0 {
		return fmt.Errorf("invalid crop.settle_duration_ms: %d (must not be negative)", c.Crop.SettleDurationMS)
	}

	if !(c.Viewport.Width > 0) || !(c.Viewport.Height > 0) {
		return fmt.Errorf("invalid viewport: %gx%g (must be positive)", c.Viewport.Width, c.Viewport.Height)
	}

	if c.Memory.MaxBitmapMB <= 0 {
		return fmt.Errorf("invalid memory.max_bitmap_mb: %d (must be positive)", c.Memory.MaxBitmapMB)
	}
	if c.Memory.MaxSourceMegapixels <= 0 {
		return fmt.Errorf("invalid memory.max_source_megapixels: %d (must be positive)", c.Memory.MaxSourceMegapixels)
	}
	if s := c.Memory.MaxSampleSize; s < 1 || s&(s-1) != 0 {
		return fmt.Errorf("invalid memory.max_sample_size: %d (must be a power of two)", s)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid requests per minute: %d (must not be negative)", c.Server.RequestsPerMinute)
	}
	if c.Server.SessionTTLSec <= 0 {
		return fmt.Errorf("invalid session ttl: %d (must be positive)", c.Server.SessionTTLSec)
	}

	return nil
}

// ToEngineConfig converts the config to the interactive engine options.
func (c *Config) ToEngineConfig() (engine.Config, error) {
	ratio, err := overlay.ParseAspectRatio(c.Crop.AspectRatio)
	if err != nil {
		return engine.Config{}, err
	}
	g := gesture.DefaultConfig()
	g.RotateEnabled = c.Crop.RotateEnabled
	g.ScaleEnabled = c.Crop.ScaleEnabled
	g.MaxScaleMultiplier = c.Crop.MaxScaleMultiplier
	g.SettleDuration = time.Duration(c.Crop.SettleDurationMS) * time.Millisecond
	return engine.Config{
		Viewport:    geometry.Size{Width: c.Viewport.Width, Height: c.Viewport.Height},
		AspectRatio: ratio,
		Overlay: overlay.Config{
			Fraction:         c.Crop.WindowFraction,
			MinSize:          c.Crop.MinWindowSize,
			FreestyleEnabled: c.Crop.FreestyleEnabled,
		},
		Gesture: g,
	}, nil
}

// ToBudget converts the memory section to executor limits.
func (c *Config) ToBudget() cropper.Budget {
	return cropper.Budget{
		MaxSourcePixels: int64(c.Memory.MaxSourceMegapixels) * 1_000_000,
		MaxBitmapBytes:  int64(c.Memory.MaxBitmapMB) << 20,
		MaxSampleSize:   c.Memory.MaxSampleSize,
	}
}

// CropOptions returns the output options for a crop written to path. An
// explicit format wins; otherwise the file extension decides and the
// configured crop.format covers paths without one.
func (c *Config) CropOptions(path, format string) (cropper.Options, error) {
	var (
		f   cropper.Format
		err error
	)
	switch {
	case format != "":
		f, err = cropper.ParseFormat(format)
	default:
		f, err = cropper.FormatFromPath(path)
		if errors.Is(err, cropper.ErrFormatRequired) && c.Crop.Format != "" {
			f, err = cropper.ParseFormat(c.Crop.Format)
		}
	}
	if err != nil {
		return cropper.Options{}, err
	}
	return cropper.Options{
		Format:     f,
		Quality:    c.Crop.Quality,
		MaxWidth:   c.Crop.MaxResultWidth,
		MaxHeight:  c.Crop.MaxResultHeight,
		OutputPath: path,
	}, nil
}

// Presets returns the parsed aspect ratio presets in configured order.
func (c *Config) Presets() ([]overlay.AspectRatio, error) {
	out := make([]overlay.AspectRatio, 0, len(c.Crop.AspectPresets))
	for _, p := range c.Crop.AspectPresets {
		r, err := overlay.ParseAspectRatio(p)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p, err)
		}
		out = append(out, r)
	}
	return out, nil
}
