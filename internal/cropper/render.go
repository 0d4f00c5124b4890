package cropper

import (
	"context"
	"image"
	"math"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// extract copies rect out of img reduced by sample, reading nothing outside rect.
func extract(img image.Image, rect image.Rectangle, sample int) *image.NRGBA {
	rect = rect.Intersect(img.Bounds())
	if sample <= 1 {
		return imaging.Crop(img, rect)
	}
	var view image.Image
	if si, ok := img.(subImager); ok {
		view = si.SubImage(rect)
	} else {
		view = imaging.Crop(img, rect)
	}
	w := (rect.Dx() + sample - 1) / sample
	h := (rect.Dy() + sample - 1) / sample
	return imaging.Resize(view, w, h, imaging.Box)
}

// rotateQuarters turns img clockwise by q quarter turns.
func rotateQuarters(img *image.NRGBA, q int) *image.NRGBA {
	switch q % 4 {
	case 1:
		return imaging.Rotate270(img)
	case 2:
		return imaging.Rotate180(img)
	case 3:
		return imaging.Rotate90(img)
	}
	return img
}

// render decodes the source and produces the crop at 1/sample resolution,
// upright and axis-aligned to the window.
func render(ctx context.Context, src *source.Handle, p plan, window geometry.Box, sample int) (image.Image, error) {
	work, err := loadRegion(ctx, src, p.stored, sample)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upright := orient(src.Orientation(), work)
	if p.exact {
		return rotateQuarters(upright, p.quarter), nil
	}
	return resample(upright, p, window, sample), nil
}

// loadRegion decodes the source and keeps only the stored region, so the full
// decode is collectable once it returns. A JPEG may decode already reduced, in
// which case the region is mapped onto the reduced grid and only the rest of
// the sample is applied here.
func loadRegion(ctx context.Context, src *source.Handle, stored image.Rectangle, sample int) (*image.NRGBA, error) {
	decoded, err := src.Decode(ctx, sample)
	if err != nil {
		return nil, err
	}
	scale := src.DecodeScale(sample)
	rect := reduceRect(stored, scale).Add(decoded.Bounds().Min)
	return extract(decoded, rect, sample/scale), nil
}

// reduceRect maps r onto a grid reduced by scale, rounding outwards.
func reduceRect(r image.Rectangle, scale int) image.Rectangle {
	if scale <= 1 {
		return r
	}
	return image.Rect(r.Min.X/scale, r.Min.Y/scale,
		(r.Max.X+scale-1)/scale, (r.Max.Y+scale-1)/scale)
}

func orient(o source.Orientation, img *image.NRGBA) *image.NRGBA {
	out := o.Apply(img)
	if n, ok := out.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(out)
}

// resample renders an arbitrarily rotated window from the upright region
// bitmap. Output pixels the source does not cover stay transparent.
func resample(region *image.NRGBA, p plan, window geometry.Box, sample int) *image.NRGBA {
	cw := int(math.Max(1, math.Round(float64(p.nativeW)/float64(sample))))
	ch := int(math.Max(1, math.Round(float64(p.nativeH)/float64(sample))))

	rb := region.Bounds()
	sx := float64(p.upright.Dx()) / float64(rb.Dx())
	sy := float64(p.upright.Dy()) / float64(rb.Dy())
	kx := window.Width() / float64(cw)
	ky := window.Height() / float64(ch)

	// work pixel -> upright pixel -> viewport -> output pixel
	workToImage := geometry.Matrix{A: sx, C: float64(p.upright.Min.X), E: sy, F: float64(p.upright.Min.Y)}
	viewToOut := geometry.Matrix{A: 1 / kx, C: -window.MinX / kx, E: 1 / ky, F: -window.MinY / ky}
	s2d := viewToOut.Multiply(p.imageToView).Multiply(workToImage)

	dst := image.NewNRGBA(image.Rect(0, 0, cw, ch))
	aff := f64.Aff3{s2d.A, s2d.B, s2d.C, s2d.D, s2d.E, s2d.F}
	draw.CatmullRom.Transform(dst, aff, region, rb, draw.Src, nil)
	return dst
}
