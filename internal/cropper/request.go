package cropper

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/transform"
)

// MinResultSize is the floor both max result dimensions must exceed.
const MinResultSize = 10

// Format is the output encoding.
type Format int

const (
	FormatUnspecified Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatWebPLossless
)

// ParseFormat accepts jpeg, jpg, png, webp and webp-lossless.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "webp-lossless", "webpll":
		return FormatWebPLossless, nil
	case "":
		return FormatUnspecified, ErrFormatRequired
	}
	return FormatUnspecified, fmt.Errorf("%w: output %q", ErrUnsupportedFormat, s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return FormatUnspecified, ErrFormatRequired
	}
	return ParseFormat(ext)
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatWebPLossless:
		return "webp-lossless"
	}
	return "unspecified"
}

// Lossy reports whether quality affects the encoding.
func (f Format) Lossy() bool { return f == FormatJPEG || f == FormatWebP }

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP, FormatWebPLossless:
		return ".webp"
	}
	return ""
}

// MaxSize bounds the output dimensions. The zero value means unbounded.
type MaxSize struct {
	Width  int
	Height int
}

// IsSet reports whether a bound is configured.
func (m MaxSize) IsSet() bool { return m.Width > 0 && m.Height > 0 }

// ParseMaxSize validates a max result size. When either side does not exceed
// MinResultSize the bound is dropped and a warning is returned instead.
func ParseMaxSize(width, height int) (MaxSize, error) {
	if width == 0 && height == 0 {
		return MaxSize{}, nil
	}
	if width <= MinResultSize || height <= MinResultSize {
		return MaxSize{}, fmt.Errorf("%w: %dx%d must exceed %d px on both sides",
			ErrMaxSizeTooSmall, width, height, MinResultSize)
	}
	return MaxSize{Width: width, Height: height}, nil
}

// Options are the caller-chosen output parameters of a crop.
type Options struct {
	Format     Format
	Quality    int
	MaxWidth   int
	MaxHeight  int
	OutputPath string
}

// Request is the immutable input to one crop execution.
type Request struct {
	source     *source.Handle
	transform  transform.Snapshot
	window     geometry.Box
	format     Format
	quality    int
	maxSize    MaxSize
	outputPath string
	warnings   []error
}

// NewRequest validates and snapshots a crop. Input and geometry problems are
// reported here, before any pixel work.
func NewRequest(src *source.Handle, snap transform.Snapshot, window geometry.Box, opts Options) (*Request, error) {
	const op = "request"
	if src == nil {
		return nil, newError(KindInput, op, ErrSourceRequired)
	}
	if opts.Format == FormatUnspecified {
		return nil, newError(KindInput, op, ErrFormatRequired)
	}
	if opts.Format < FormatJPEG || opts.Format > FormatWebPLossless {
		return nil, newError(KindInput, op, fmt.Errorf("%w: output format %d", ErrUnsupportedFormat, opts.Format))
	}
	if opts.OutputPath == "" {
		return nil, newError(KindResource, op, fmt.Errorf("%w: empty output path", ErrOutputUnwritable))
	}
	if window.Empty() {
		return nil, newError(KindGeometry, op, fmt.Errorf("%w: %gx%g", ErrDegenerateWindow, window.Width(), window.Height()))
	}

	req := &Request{
		source:     src,
		transform:  snap,
		window:     window,
		format:     opts.Format,
		quality:    clampQuality(opts.Quality),
		outputPath: opts.OutputPath,
	}
	maxSize, err := ParseMaxSize(opts.MaxWidth, opts.MaxHeight)
	if err != nil {
		req.warnings = append(req.warnings, err)
	}
	req.maxSize = maxSize

	if _, err := req.plan(); err != nil {
		return nil, err
	}
	return req, nil
}

func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}

// Source returns the image being cropped.
func (r *Request) Source() *source.Handle { return r.source }

// Transform returns the transform snapshot.
func (r *Request) Transform() transform.Snapshot { return r.transform }

// Window returns the crop window snapshot.
func (r *Request) Window() geometry.Box { return r.window }

// Format returns the output encoding.
func (r *Request) Format() Format { return r.format }

// Quality returns the clamped quality.
func (r *Request) Quality() int { return r.quality }

// MaxSize returns the effective output bound.
func (r *Request) MaxSize() MaxSize { return r.maxSize }

// OutputPath returns the destination file.
func (r *Request) OutputPath() string { return r.outputPath }

// Warnings returns non-fatal problems found while building the request.
func (r *Request) Warnings() []error { return append([]error(nil), r.warnings...) }
