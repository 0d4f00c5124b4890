// Package source reads the header of and decodes the image being cropped.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/gen2brain/jpegn"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat reports a source no registered decoder recognises.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrDecode reports an unreadable or corrupt source.
	ErrDecode = errors.New("image cannot be decoded")
)

// maxDecodeScale is the largest reduction the JPEG decoder applies in the IDCT.
const maxDecodeScale = 8

// Opener returns a fresh reader over the encoded source bytes.
type Opener func() (io.ReadCloser, error)

// Handle is an inspected, not yet decoded, source image. Width and Height are the
// stored pixel dimensions; Orientation says how to turn them upright.
type Handle struct {
	name        string
	open        Opener
	format      string
	width       int
	height      int
	orientation Orientation
	sizeBytes   int64
}

// Open reads the header of the file at path.
func Open(path string) (*Handle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrDecode, path)
	}
	opener := func() (io.ReadCloser, error) {
		return os.Open(path) //nolint:gosec // G304: reading the user-selected source is expected
	}
	return inspect(filepath.Base(path), opener, fi.Size())
}

// FromBytes reads the header of an in-memory encoded image.
func FromBytes(name string, data []byte) (*Handle, error) {
	opener := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return inspect(name, opener, int64(len(data)))
}

// FromOpener reads the header of a source behind an arbitrary opener.
func FromOpener(name string, open Opener, sizeBytes int64) (*Handle, error) {
	return inspect(name, open, sizeBytes)
}

func inspect(name string, open Opener, size int64) (*Handle, error) {
	r, err := open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	cfg, format, err := image.DecodeConfig(r)
	_ = r.Close()
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s has size %dx%d", ErrDecode, name, cfg.Width, cfg.Height)
	}
	h := &Handle{
		name:        name,
		open:        open,
		format:      format,
		width:       cfg.Width,
		height:      cfg.Height,
		orientation: OrientationNormal,
		sizeBytes:   size,
	}
	if format == "jpeg" || format == "tiff" {
		h.orientation = readOrientation(open)
	}
	return h, nil
}

func readOrientation(open Opener) Orientation {
	r, err := open()
	if err != nil {
		return OrientationNormal
	}
	defer func() { _ = r.Close() }()
	x, err := exif.Decode(r)
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationNormal
	}
	if o := Orientation(v); o.Valid() {
		return o
	}
	return OrientationNormal
}

// Name returns the display name of the source.
func (h *Handle) Name() string { return h.name }

// Format returns the decoder name, e.g. "jpeg".
func (h *Handle) Format() string { return h.format }

// Width returns the stored pixel width.
func (h *Handle) Width() int { return h.width }

// Height returns the stored pixel height.
func (h *Handle) Height() int { return h.height }

// Orientation returns the EXIF orientation hint.
func (h *Handle) Orientation() Orientation { return h.orientation }

// SizeBytes returns the encoded size.
func (h *Handle) SizeBytes() int64 { return h.sizeBytes }

// Pixels returns the stored pixel count.
func (h *Handle) Pixels() int64 { return int64(h.width) * int64(h.height) }

// DecodedBytes estimates the memory a full RGBA decode takes.
func (h *Handle) DecodedBytes() int64 { return h.Pixels() * 4 }

// UprightSize returns the dimensions as displayed, after orientation.
func (h *Handle) UprightSize() geometry.Size {
	if h.orientation.SwapsAxes() {
		return geometry.Size{Width: float64(h.height), Height: float64(h.width)}
	}
	return geometry.Size{Width: float64(h.width), Height: float64(h.height)}
}

// DecodeScale returns the reduction Decode applies for a crop sampled at
// 1/sample. Only JPEG sources decode below full size; for them it is the
// largest power of two not above sample, capped at 8.
func (h *Handle) DecodeScale(sample int) int {
	if h.format != "jpeg" {
		return 1
	}
	scale := 1
	for scale*2 <= sample && scale*2 <= maxDecodeScale {
		scale *= 2
	}
	return scale
}

// DecodeSize returns the pixel dimensions of a decode reduced by scale.
func (h *Handle) DecodeSize(scale int) (int, int) {
	if scale <= 1 {
		return h.width, h.height
	}
	return (h.width + scale - 1) / scale, (h.height + scale - 1) / scale
}

// Decode decodes the stored pixels for a crop sampled at 1/sample, without
// applying orientation. The result is reduced by DecodeScale(sample).
func (h *Handle) Decode(ctx context.Context, sample int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := h.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, h.name, err)
	}
	defer func() { _ = r.Close() }()

	scale := h.DecodeScale(sample)
	var img image.Image
	if scale > 1 {
		img, err = jpegn.Decode(r, &jpegn.Options{ScaleDenom: scale})
	} else {
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, h.name, err)
	}
	w, ht := h.DecodeSize(scale)
	if b := img.Bounds(); b.Dx() != w || b.Dy() != ht {
		return nil, fmt.Errorf("%w: %s decoded as %dx%d at 1/%d, expected %dx%d",
			ErrDecode, h.name, b.Dx(), b.Dy(), scale, w, ht)
	}
	return img, nil
}
