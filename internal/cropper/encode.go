package cropper

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

func encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: float32(quality)})
	case FormatWebPLossless:
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	}
	return fmt.Errorf("%w: output format %s", ErrUnsupportedFormat, f)
}

// writeAtomic writes through a temporary file in the destination directory
// and renames it into place. On any failure or cancellation the temporary
// file is removed and path is left untouched.
func writeAtomic(ctx context.Context, path string, write func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 256<<10)
	if err := write(bw); err != nil {
		return 0, fmt.Errorf("%w: encode: %w", ErrOutputUnwritable, err)
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	fi, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	committed = true
	return fi.Size(), nil
}
