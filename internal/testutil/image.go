package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{40, 30}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{4000, 3000}
)

// PixelColor is the color GradientImage puts at (x, y). Every coordinate
// below 4096x4096 gets a distinct color so crops can be checked pixel by pixel.
func PixelColor(x, y int) color.NRGBA {
	return color.NRGBA{
		R: uint8(x & 0xff),
		G: uint8(y & 0xff),
		B: uint8((x>>8)&0x0f | ((y>>8)&0x0f)<<4),
		A: 255,
	}
}

// GradientImage returns an opaque image whose pixels are PixelColor(x, y).
func GradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, PixelColor(x, y))
		}
	}
	return img
}

// CreateTestImage returns a solid image of the given color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	return imaging.New(width, height, backgroundColor)
}

// EncodePNG returns img encoded as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// EncodeJPEG returns img encoded as JPEG at quality.
func EncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// WithEXIFOrientation inserts a minimal EXIF APP1 segment carrying the
// orientation tag right after the JPEG SOI marker.
func WithEXIFOrientation(t *testing.T, jpegData []byte, orientation int) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(jpegData), 2)
	require.Equal(t, []byte{0xFF, 0xD8}, jpegData[:2], "not a JPEG stream")

	var tiff bytes.Buffer
	le := binary.LittleEndian
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8))
	_ = binary.Write(&tiff, le, uint16(1))      // entry count
	_ = binary.Write(&tiff, le, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, le, uint16(3))      // SHORT
	_ = binary.Write(&tiff, le, uint32(1))
	_ = binary.Write(&tiff, le, uint16(orientation))
	_ = binary.Write(&tiff, le, uint16(0))
	_ = binary.Write(&tiff, le, uint32(0)) // next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))

	out := make([]byte, 0, len(jpegData)+len(seg)+len(payload))
	out = append(out, jpegData[:2]...)
	out = append(out, seg...)
	out = append(out, payload...)
	return append(out, jpegData[2:]...)
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600), "Failed to write %s", path)
	return path
}

// SaveImage encodes img by the extension of path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// WriteCorruptPNG writes a PNG whose header is valid but whose pixel data is
// truncated, so probing succeeds and decoding fails.
func WriteCorruptPNG(t *testing.T, dir, name string) string {
	t.Helper()

	data := EncodePNG(t, GradientImage(64, 64))
	return WriteFile(t, dir, name, data[:len(data)/2])
}

// WriteGarbage writes bytes no decoder recognises.
func WriteGarbage(t *testing.T, dir, name string) string {
	t.Helper()

	return WriteFile(t, dir, name, []byte("definitely not an image, just some bytes"))
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// SamePixels reports whether both images have the same size and identical
// 8-bit colors at every relative coordinate.
func SamePixels(img1, img2 image.Image) bool {
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Dx() != b2.Dx() || b1.Dy() != b2.Dy() {
		return false
	}
	for y := range b1.Dy() {
		for x := range b1.Dx() {
			c1 := color.NRGBAModel.Convert(img1.At(b1.Min.X+x, b1.Min.Y+y)).(color.NRGBA)
			c2 := color.NRGBAModel.Convert(img2.At(b2.Min.X+x, b2.Min.Y+y)).(color.NRGBA)
			if c1 != c2 {
				return false
			}
		}
	}
	return true
}

// CompareImages compares two images and returns true if their mean color
// distance relative to the maximum is within tolerance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Dx() != b2.Dx() || b1.Dy() != b2.Dy() {
		return false
	}

	var totalDiff, pixelCount float64
	for y := range b1.Dy() {
		for x := range b1.Dx() {
			r1, g1, bl1, a1 := img1.At(b1.Min.X+x, b1.Min.Y+y).RGBA()
			r2, g2, bl2, a2 := img2.At(b2.Min.X+x, b2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(bl1) - float64(bl2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (totalDiff/pixelCount)/maxDiff <= tolerance
}

// ReadFile returns the contents of path.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to read %s", path)
	return data
}
