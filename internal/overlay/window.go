// Package overlay maintains the crop window in viewport coordinates.
package overlay

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/ucrop/internal/geometry"
)

// ErrDegenerateViewport reports a viewport with a non-positive dimension.
var ErrDegenerateViewport = errors.New("degenerate viewport")

// ErrFreeformDisabled reports a request for freeform mode when it is not permitted.
var ErrFreeformDisabled = errors.New("freeform crop is disabled")

// Config holds the window sizing options.
type Config struct {
	// Fraction of the viewport the default window covers, in (0, 1].
	Fraction float64
	// MinSize is the smallest width or height a freeform drag may produce.
	MinSize float64
	// FreestyleEnabled permits ModeFreeform.
	FreestyleEnabled bool
}

// DefaultConfig returns the default window options.
func DefaultConfig() Config {
	return Config{Fraction: 1, MinSize: 64, FreestyleEnabled: true}
}

// EventKind identifies a window notification.
type EventKind int

const (
	// EventRatioChanged fires when the mode or viewport recomputed the window.
	EventRatioChanged EventKind = iota
	// EventRectUpdated fires when a freeform drag moved the window.
	EventRectUpdated
)

func (k EventKind) String() string {
	if k == EventRectUpdated {
		return "overlay-rect-updated"
	}
	return "crop-bounds-changed"
}

// Event carries the window state at the time of a change.
type Event struct {
	Kind  EventKind
	Rect  geometry.Box
	Ratio AspectRatio
}

// Listener receives window events synchronously.
type Listener func(Event)

// Window is the crop rectangle and its constraint mode. It is not safe for
// concurrent use.
type Window struct {
	cfg       Config
	viewport  geometry.Size
	source    geometry.Size
	ratio     AspectRatio
	rect      geometry.Box
	listeners []Listener
}

// New creates a window for viewport in the given mode. source is the upright
// image size used by ModeSource and may be zero until SetSourceSize is called.
func New(viewport, source geometry.Size, ratio AspectRatio, cfg Config) (*Window, error) {
	if viewport.IsDegenerate() {
		return nil, fmt.Errorf("overlay: %w: %gx%g", ErrDegenerateViewport, viewport.Width, viewport.Height)
	}
	if !(cfg.Fraction > 0) || cfg.Fraction > 1 {
		cfg.Fraction = 1
	}
	if cfg.MinSize < 1 {
		cfg.MinSize = 1
	}
	if err := checkRatio(ratio, cfg); err != nil {
		return nil, err
	}
	w := &Window{cfg: cfg, viewport: viewport, source: source, ratio: ratio}
	w.rect = w.layout(w.viewportCenter())
	return w, nil
}

// Subscribe registers l and returns a function that removes it.
func (w *Window) Subscribe(l Listener) func() {
	w.listeners = append(w.listeners, l)
	idx := len(w.listeners) - 1
	return func() {
		if idx < len(w.listeners) {
			w.listeners[idx] = nil
		}
	}
}

// Rect returns the current window rectangle.
func (w *Window) Rect() geometry.Box { return w.rect }

// AspectRatio returns the current mode.
func (w *Window) AspectRatio() AspectRatio { return w.ratio }

// Viewport returns the viewport size.
func (w *Window) Viewport() geometry.Size { return w.viewport }

// Config returns the window options.
func (w *Window) Config() Config { return w.cfg }

// TargetRatio returns the locked width/height ratio, if any.
func (w *Window) TargetRatio() (float64, bool) {
	switch w.ratio.Mode {
	case ModeFixed:
		return w.ratio.Value(), true
	case ModeSource:
		if !w.source.IsDegenerate() {
			return w.source.Ratio(), true
		}
	}
	return 0, false
}

// SetAspectRatio switches mode and recomputes the rectangle from the viewport
// size about the current center.
func (w *Window) SetAspectRatio(ratio AspectRatio) error {
	if err := checkRatio(ratio, w.cfg); err != nil {
		return err
	}
	w.ratio = ratio
	w.rect = w.layout(w.rect.Center())
	w.emit(EventRatioChanged)
	return nil
}

// SetSourceSize updates the upright image size used by ModeSource.
func (w *Window) SetSourceSize(source geometry.Size) {
	w.source = source
	if w.ratio.Mode == ModeSource {
		w.rect = w.layout(w.rect.Center())
		w.emit(EventRatioChanged)
	}
}

// OnViewportResized recomputes the window for a new viewport. Locked modes
// keep their ratio; none and freeform reset to the default centered window.
func (w *Window) OnViewportResized(viewport geometry.Size) error {
	if viewport.IsDegenerate() {
		return fmt.Errorf("overlay: %w: %gx%g", ErrDegenerateViewport, viewport.Width, viewport.Height)
	}
	w.viewport = viewport
	w.rect = w.layout(w.viewportCenter())
	w.emit(EventRatioChanged)
	return nil
}

func checkRatio(ratio AspectRatio, cfg Config) error {
	switch ratio.Mode {
	case ModeFixed:
		if !(ratio.Num > 0) || !(ratio.Den > 0) {
			return fmt.Errorf("overlay: %w: %g:%g", ErrInvalidRatio, ratio.Num, ratio.Den)
		}
	case ModeFreeform:
		if !cfg.FreestyleEnabled {
			return fmt.Errorf("overlay: %w", ErrFreeformDisabled)
		}
	case ModeNone, ModeSource:
	default:
		return fmt.Errorf("overlay: %w: mode %d", ErrInvalidRatio, ratio.Mode)
	}
	return nil
}

func (w *Window) viewportCenter() geometry.Point {
	return geometry.Point{X: w.viewport.Width / 2, Y: w.viewport.Height / 2}
}

// layout sizes the window inside the viewport fraction around center,
// shifting it back inside the viewport when needed.
func (w *Window) layout(center geometry.Point) geometry.Box {
	availW := w.viewport.Width * w.cfg.Fraction
	availH := w.viewport.Height * w.cfg.Fraction
	width, height := availW, availH
	if r, ok := w.TargetRatio(); ok {
		height = width / r
		if height > availH {
			height = availH
			width = height * r
		}
	}
	b := geometry.BoxFromCenter(center, width, height)
	dx := shiftInside(b.MinX, b.MaxX, 0, w.viewport.Width)
	dy := shiftInside(b.MinY, b.MaxY, 0, w.viewport.Height)
	return b.Translate(dx, dy)
}

func shiftInside(lo, hi, limitLo, limitHi float64) float64 {
	switch {
	case lo < limitLo:
		return limitLo - lo
	case hi > limitHi:
		return limitHi - hi
	}
	return 0
}

func (w *Window) emit(kind EventKind) {
	ev := Event{Kind: kind, Rect: w.rect, Ratio: w.ratio}
	for _, l := range w.listeners {
		if l != nil {
			l(ev)
		}
	}
}
