package overlay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how the crop window's proportions are constrained.
type Mode int

const (
	// ModeNone keeps a default unconstrained window that the user cannot resize.
	ModeNone Mode = iota
	// ModeSource locks the window to the upright source image's ratio.
	ModeSource
	// ModeFixed locks the window to Num:Den.
	ModeFixed
	// ModeFreeform lets the user drag the window's edges and corners.
	ModeFreeform
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSource:
		return "source"
	case ModeFixed:
		return "fixed"
	case ModeFreeform:
		return "freeform"
	}
	return "unknown"
}

// ErrInvalidRatio reports a fixed ratio with a non-positive term.
var ErrInvalidRatio = errors.New("invalid aspect ratio")

// AspectRatio is a window constraint mode with its ratio terms for ModeFixed.
type AspectRatio struct {
	Mode Mode
	Num  float64
	Den  float64
}

// None returns the unconstrained mode.
func None() AspectRatio { return AspectRatio{Mode: ModeNone} }

// Source returns the source-ratio mode.
func Source() AspectRatio { return AspectRatio{Mode: ModeSource} }

// Freeform returns the user-resizable mode.
func Freeform() AspectRatio { return AspectRatio{Mode: ModeFreeform} }

// Fixed returns a num:den locked mode.
func Fixed(num, den float64) (AspectRatio, error) {
	if !(num > 0) || !(den > 0) {
		return AspectRatio{}, fmt.Errorf("%w: %g:%g", ErrInvalidRatio, num, den)
	}
	return AspectRatio{Mode: ModeFixed, Num: num, Den: den}, nil
}

// Value returns num/den for ModeFixed and 0 otherwise.
func (a AspectRatio) Value() float64 {
	if a.Mode != ModeFixed || a.Den == 0 {
		return 0
	}
	return a.Num / a.Den
}

func (a AspectRatio) String() string {
	if a.Mode == ModeFixed {
		return strconv.FormatFloat(a.Num, 'f', -1, 64) + ":" + strconv.FormatFloat(a.Den, 'f', -1, 64)
	}
	return a.Mode.String()
}

// ParseAspectRatio parses "none", "source", "freeform" or a ratio written as
// "X:Y", "X/Y" or "XxY".
func ParseAspectRatio(s string) (AspectRatio, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "none", "dynamic":
		return None(), nil
	case "source", "original":
		return Source(), nil
	case "freeform", "free", "freestyle":
		return Freeform(), nil
	}
	sep := strings.IndexAny(v, ":/x")
	if sep <= 0 || sep == len(v)-1 {
		return AspectRatio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(v[:sep]), 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(v[sep+1:]), 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}
	return Fixed(num, den)
}
