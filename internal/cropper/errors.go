package cropper

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/ucrop/internal/bounds"
	"github.com/MeKo-Tech/ucrop/internal/source"
)

// Kind is the category of a crop failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput covers unreadable sources and unsupported formats.
	KindInput
	// KindGeometry covers degenerate windows and crops.
	KindGeometry
	// KindResource covers memory budget and output write failures.
	KindResource
	// KindConcurrency covers a crop requested while another is pending.
	KindConcurrency
	// KindCanceled covers crops cancelled by the caller.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindGeometry:
		return "geometry"
	case KindResource:
		return "resource"
	case KindConcurrency:
		return "concurrency"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

var (
	ErrDecode             = source.ErrDecode
	ErrUnsupportedFormat  = source.ErrUnsupportedFormat
	ErrDegenerateImage    = bounds.ErrDegenerateImage
	ErrDegenerateWindow   = bounds.ErrDegenerateWindow
	ErrNonFiniteTransform = bounds.ErrNonFiniteTransform
	ErrFormatRequired     = errors.New("output format is required")
	ErrSourceRequired     = errors.New("source image is required")
	ErrDegenerateCrop     = errors.New("crop rectangle has no area")
	ErrMemoryBudget       = errors.New("memory budget exceeded at maximum downsampling")
	ErrOutputUnwritable   = errors.New("output cannot be written")
	ErrCropPending        = errors.New("a crop is already pending")
	ErrCanceled           = errors.New("crop canceled")
	// ErrMaxSizeTooSmall is a warning: the max result size was ignored.
	ErrMaxSizeTooSmall = errors.New("max result size too small")
)

// Error is a typed crop failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("crop %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err, inspecting typed errors first and sentinels second.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrDecode), errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrFormatRequired), errors.Is(err, ErrSourceRequired):
		return KindInput
	case errors.Is(err, ErrDegenerateWindow), errors.Is(err, ErrDegenerateCrop), errors.Is(err, ErrDegenerateImage),
		errors.Is(err, ErrNonFiniteTransform):
		return KindGeometry
	case errors.Is(err, ErrMemoryBudget), errors.Is(err, ErrOutputUnwritable):
		return KindResource
	case errors.Is(err, ErrCropPending):
		return KindConcurrency
	}
	return KindUnknown
}

// Message maps err to a human-readable category for presentation.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "The image format is not supported."
	case errors.Is(err, ErrDecode):
		return "The image could not be read. It may be corrupt."
	case errors.Is(err, ErrFormatRequired), errors.Is(err, ErrSourceRequired):
		return "The crop request is incomplete."
	case errors.Is(err, ErrDegenerateWindow), errors.Is(err, ErrDegenerateCrop), errors.Is(err, ErrDegenerateImage):
		return "The selected crop area is empty."
	case errors.Is(err, ErrNonFiniteTransform):
		return "The image position is invalid."
	case errors.Is(err, ErrMemoryBudget):
		return "The image is too large to crop with the available memory."
	case errors.Is(err, ErrOutputUnwritable):
		return "The cropped image could not be saved."
	case errors.Is(err, ErrCropPending):
		return "A crop is already in progress."
	case KindOf(err) == KindCanceled:
		return "The crop was canceled."
	}
	return "The image could not be cropped."
}
