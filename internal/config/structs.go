//nolint:lll
package config

// Config represents the complete configuration for the ucrop application.
// It covers the crop, serve and config commands and supports loading from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Crop behaviour and output
	Crop CropConfig `mapstructure:"crop" yaml:"crop" json:"crop"`

	// Viewport the crop window is laid out in
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport" json:"viewport"`

	// Memory budget of the crop executor
	Memory MemoryConfig `mapstructure:"memory" yaml:"memory" json:"memory"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// CropConfig contains crop window, gesture and output settings.
type CropConfig struct {
	AspectRatio      string   `mapstructure:"aspect_ratio" yaml:"aspect_ratio" json:"aspect_ratio"`
	AspectPresets    []string `mapstructure:"aspect_presets" yaml:"aspect_presets" json:"aspect_presets"`
	FreestyleEnabled bool     `mapstructure:"freestyle_enabled" yaml:"freestyle_enabled" json:"freestyle_enabled"`
	MaxResultWidth   int      `mapstructure:"max_result_width" yaml:"max_result_width" json:"max_result_width"`
	MaxResultHeight  int      `mapstructure:"max_result_height" yaml:"max_result_height" json:"max_result_height"`
	Format           string   `mapstructure:"format" yaml:"format" json:"format"`
	Quality          int      `mapstructure:"quality" yaml:"quality" json:"quality"`

	// Window layout
	WindowFraction float64 `mapstructure:"window_fraction" yaml:"window_fraction" json:"window_fraction"`
	MinWindowSize  float64 `mapstructure:"min_window_size" yaml:"min_window_size" json:"min_window_size"`

	// Gestures
	MaxScaleMultiplier float64 `mapstructure:"max_scale_multiplier" yaml:"max_scale_multiplier" json:"max_scale_multiplier"`
	SettleDurationMS   int     `mapstructure:"settle_duration_ms" yaml:"settle_duration_ms" json:"settle_duration_ms"`
	RotateEnabled      bool    `mapstructure:"rotate_enabled" yaml:"rotate_enabled" json:"rotate_enabled"`
	ScaleEnabled       bool    `mapstructure:"scale_enabled" yaml:"scale_enabled" json:"scale_enabled"`
}

// ViewportConfig contains the virtual viewport size.
type ViewportConfig struct {
	Width  float64 `mapstructure:"width" yaml:"width" json:"width"`
	Height float64 `mapstructure:"height" yaml:"height" json:"height"`
}

// MemoryConfig contains crop memory limits.
type MemoryConfig struct {
	MaxBitmapMB         int `mapstructure:"max_bitmap_mb" yaml:"max_bitmap_mb" json:"max_bitmap_mb"`
	MaxSourceMegapixels int `mapstructure:"max_source_megapixels" yaml:"max_source_megapixels" json:"max_source_megapixels"`
	MaxSampleSize       int `mapstructure:"max_sample_size" yaml:"max_sample_size" json:"max_sample_size"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WorkDir         string `mapstructure:"work_dir" yaml:"work_dir" json:"work_dir"`
	SessionTTLSec   int    `mapstructure:"session_ttl_sec" yaml:"session_ttl_sec" json:"session_ttl_sec"`

	// Per-client request limit; zero disables it
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}
