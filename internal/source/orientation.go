package source

import (
	"image"

	"github.com/disintegration/imaging"
)

// Orientation is the EXIF orientation tag value, 1 through 8.
type Orientation int

const (
	OrientationNormal      Orientation = 1
	OrientationFlipH       Orientation = 2
	OrientationRotate180   Orientation = 3
	OrientationFlipV       Orientation = 4
	OrientationTranspose   Orientation = 5
	OrientationRotate90CW  Orientation = 6
	OrientationTransverse  Orientation = 7
	OrientationRotate90CCW Orientation = 8
)

// Valid reports whether o is a defined EXIF orientation.
func (o Orientation) Valid() bool { return o >= OrientationNormal && o <= OrientationRotate90CCW }

// SwapsAxes reports whether turning the stored image upright swaps width and height.
func (o Orientation) SwapsAxes() bool { return o >= OrientationTranspose && o <= OrientationRotate90CCW }

// Apply returns img turned upright.
func (o Orientation) Apply(img image.Image) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90CW:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate90CCW:
		return imaging.Rotate90(img)
	}
	return img
}

// ToStored maps an upright rectangle onto the stored pixel grid of a
// rawW x rawH image with orientation o.
func (o Orientation) ToStored(r image.Rectangle, rawW, rawH int) image.Rectangle {
	a := o.storedPoint(r.Min, rawW, rawH)
	b := o.storedPoint(r.Max, rawW, rawH)
	return image.Rectangle{Min: a, Max: b}.Canon()
}

func (o Orientation) storedPoint(p image.Point, rawW, rawH int) image.Point {
	x, y := p.X, p.Y
	switch o {
	case OrientationFlipH:
		return image.Pt(rawW-x, y)
	case OrientationRotate180:
		return image.Pt(rawW-x, rawH-y)
	case OrientationFlipV:
		return image.Pt(x, rawH-y)
	case OrientationTranspose:
		return image.Pt(y, x)
	case OrientationRotate90CW:
		return image.Pt(y, rawH-x)
	case OrientationTransverse:
		return image.Pt(rawW-y, rawH-x)
	case OrientationRotate90CCW:
		return image.Pt(rawW-y, x)
	}
	return p
}
