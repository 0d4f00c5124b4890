// Package gesture drives the display transform from pan, scale and rotate
// input and settles it so the image covers the crop window.
package gesture

import (
	"math"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/bounds"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/transform"
)

// Phase is the controller's interaction state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseSettling
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseSettling:
		return "settling"
	}
	return "idle"
}

// Kind is the gesture in progress while Dragging.
type Kind int

const (
	KindNone Kind = iota
	KindPan
	KindScale
	KindRotate
)

func (k Kind) String() string {
	switch k {
	case KindPan:
		return "pan"
	case KindScale:
		return "scale"
	case KindRotate:
		return "rotate"
	}
	return "none"
}

// Config holds the gesture options.
type Config struct {
	RotateEnabled bool
	ScaleEnabled  bool
	// MaxScaleMultiplier bounds zoom-in at this multiple of the cover scale.
	MaxScaleMultiplier float64
	// SettleDuration is the settle animation length; zero snaps.
	SettleDuration time.Duration
	// Easing maps animation progress in [0, 1] to correction fraction.
	Easing func(float64) float64
}

// DefaultConfig returns the default gesture options.
func DefaultConfig() Config {
	return Config{
		RotateEnabled:      true,
		ScaleEnabled:       true,
		MaxScaleMultiplier: 10,
		SettleDuration:     500 * time.Millisecond,
		Easing:             EaseOutCubic,
	}
}

// EaseOutCubic decelerates towards the end of the animation.
func EaseOutCubic(t float64) float64 {
	t = math.Min(math.Max(t, 0), 1) - 1
	return t*t*t + 1
}

// Event is emitted when the transform has been corrected to cover the window.
type Event struct {
	Transform transform.Snapshot
	Window    geometry.Box
}

// Listener receives bounds-corrected events synchronously.
type Listener func(Event)

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source used to start settle animations.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

type animation struct {
	from       geometry.Matrix
	correction bounds.Correction
	start      time.Time
}

// Controller mutates a transform.State in response to input. It must be used
// from a single goroutine.
type Controller struct {
	cfg       Config
	state     *transform.State
	window    geometry.Box
	phase     Phase
	kind      Kind
	anim      *animation
	now       func() time.Time
	listeners []Listener
}

// New returns an idle controller for state and the current window rectangle.
func New(state *transform.State, window geometry.Box, cfg Config, opts ...Option) *Controller {
	if cfg.MaxScaleMultiplier < 1 {
		cfg.MaxScaleMultiplier = 1
	}
	if cfg.Easing == nil {
		cfg.Easing = EaseOutCubic
	}
	c := &Controller{cfg: cfg, state: state, window: window, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers l for bounds-corrected events.
func (c *Controller) Subscribe(l Listener) { c.listeners = append(c.listeners, l) }

// Phase returns the interaction state.
func (c *Controller) Phase() Phase { return c.phase }

// Kind returns the current gesture kind, KindNone unless Dragging.
func (c *Controller) Kind() Kind { return c.kind }

// Window returns the crop rectangle the controller settles against.
func (c *Controller) Window() geometry.Box { return c.window }

// State returns the controlled transform.
func (c *Controller) State() *transform.State { return c.state }

// Begin starts a gesture of kind, cancelling any settle animation in place.
func (c *Controller) Begin(kind Kind) {
	c.anim = nil
	c.phase = PhaseDragging
	c.kind = kind
}

func (c *Controller) ensureDragging(kind Kind) {
	if c.phase != PhaseDragging || c.kind != kind {
		c.Begin(kind)
	}
}

// Pan moves the image by (dx, dy) without enforcing coverage.
func (c *Controller) Pan(dx, dy float64) {
	if !finite(dx) || !finite(dy) {
		return
	}
	c.ensureDragging(KindPan)
	c.state.PostTranslate(dx, dy)
}

// Scale zooms by factor about pivot without enforcing coverage. Zooming in is
// clamped at the maximum scale.
func (c *Controller) Scale(factor float64, pivot geometry.Point) {
	if !c.cfg.ScaleEnabled || !(factor > 0) || math.IsInf(factor, 0) {
		return
	}
	c.ensureDragging(KindScale)
	if factor > 1 {
		cur := c.state.Scale()
		if limit := c.MaxScale(); limit > 0 && cur*factor > limit {
			factor = math.Max(limit/cur, 1)
		}
	}
	if factor != 1 {
		c.state.PostScale(factor, pivot)
	}
}

// Rotate turns the image by deg about pivot without enforcing coverage.
func (c *Controller) Rotate(deg float64, pivot geometry.Point) {
	if !c.cfg.RotateEnabled || !finite(deg) {
		return
	}
	c.ensureDragging(KindRotate)
	c.state.PostRotate(deg, pivot)
}

// MaxScale is the zoom-in bound for the current rotation, or 0 when the
// window is degenerate.
func (c *Controller) MaxScale() float64 {
	s, err := bounds.MinScaleToCover(c.state.ImageSize(), c.window, c.state.Rotation())
	if err != nil {
		return 0
	}
	return s * c.cfg.MaxScaleMultiplier
}

// End finishes the current gesture and settles.
func (c *Controller) End() error {
	c.kind = KindNone
	return c.Settle()
}

// Settle computes the correction that restores coverage and animates it, or
// applies it at once when the settle duration is zero. Settling a covering
// state is a no-op that returns to Idle.
func (c *Controller) Settle() error {
	c.kind = KindNone
	c.anim = nil
	corr, err := bounds.ComputeCorrection(c.state.ImageSize(), c.state.Matrix(), c.window)
	if err != nil {
		c.phase = PhaseIdle
		return err
	}
	if corr.IsZero() {
		c.phase = PhaseIdle
		return nil
	}
	if c.cfg.SettleDuration <= 0 {
		c.state.SetMatrix(corr.Apply(c.state.Matrix(), 1))
		c.finish()
		return nil
	}
	c.anim = &animation{from: c.state.Matrix(), correction: corr, start: c.now()}
	c.phase = PhaseSettling
	return nil
}

// Tick advances a settle animation to now. It reports whether the animation
// is still running.
func (c *Controller) Tick(now time.Time) bool {
	if c.phase != PhaseSettling || c.anim == nil {
		return false
	}
	progress := float64(now.Sub(c.anim.start)) / float64(c.cfg.SettleDuration)
	if progress >= 1 {
		c.state.SetMatrix(c.anim.correction.Apply(c.anim.from, 1))
		c.finish()
		return false
	}
	if progress < 0 {
		progress = 0
	}
	c.state.SetMatrix(c.anim.correction.Apply(c.anim.from, c.cfg.Easing(progress)))
	return true
}

// Flush completes a running settle animation immediately.
func (c *Controller) Flush() {
	if c.phase == PhaseSettling && c.anim != nil {
		c.state.SetMatrix(c.anim.correction.Apply(c.anim.from, 1))
		c.finish()
	}
}

// Reset reinstalls the default fit: zero rotation, exact cover, centered.
func (c *Controller) Reset() error {
	c.anim = nil
	c.kind = KindNone
	c.phase = PhaseIdle
	if err := c.state.ResetToDefault(c.window); err != nil {
		return err
	}
	c.emit()
	return nil
}

// DoubleTap resets to the default fit.
func (c *Controller) DoubleTap() error { return c.Reset() }

// SetWindow replaces the crop rectangle without settling.
func (c *Controller) SetWindow(window geometry.Box) { c.window = window }

// HandleOverlayEvent consumes a window notification. A ratio change while
// Idle or Settling settles against the new rectangle; a freeform update only
// records it.
func (c *Controller) HandleOverlayEvent(ev overlay.Event) error {
	c.window = ev.Rect
	if ev.Kind != overlay.EventRatioChanged || c.phase == PhaseDragging {
		return nil
	}
	return c.Settle()
}

func (c *Controller) finish() {
	c.anim = nil
	c.phase = PhaseIdle
	c.emit()
}

func (c *Controller) emit() {
	ev := Event{Transform: c.state.Snapshot(), Window: c.window}
	for _, l := range c.listeners {
		l(ev)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
