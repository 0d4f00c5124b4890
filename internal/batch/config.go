package batch

import (
	"log/slog"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
)

// DefaultIncludePatterns matches the file types the source package decodes.
var DefaultIncludePatterns = []string{
	"*.jpg", "*.jpeg", "*.png", "*.webp", "*.bmp", "*.tif", "*.tiff", "*.gif",
}

// DefaultSuffix is appended to the input stem to name each crop.
const DefaultSuffix = "-cropped"

// Config holds all configuration for a batch crop.
type Config struct {
	// Engine and Adjust describe the same window and transform for every file.
	Engine engine.Config
	Adjust engine.Adjustments
	Budget cropper.Budget

	// Output is applied to every file. OutputPath is ignored. An unspecified
	// Format keeps each input's own format when it can be encoded and falls
	// back to FallbackFormat otherwise.
	Output         cropper.Options
	FallbackFormat cropper.Format
	OutputDir      string
	Suffix         string

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	Workers  int
	FailFast bool
	Logger   *slog.Logger
}

func (c *Config) suffix() string {
	if c.Suffix == "" {
		return DefaultSuffix
	}
	return c.Suffix
}

func (c *Config) includePatterns() []string {
	if len(c.IncludePatterns) == 0 {
		return DefaultIncludePatterns
	}
	return c.IncludePatterns
}

// excludePatterns also skips earlier crops so a rerun does not crop them again.
func (c *Config) excludePatterns() []string {
	return append(append([]string(nil), c.ExcludePatterns...), "*"+c.suffix()+".*")
}

func (c *Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
