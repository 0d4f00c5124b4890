// Package engine ties one source image to its transform, crop window and
// gesture controller, and runs crops on a background worker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/gesture"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/transform"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrInvalidAdjustment reports a NaN or infinite adjustment value.
var ErrInvalidAdjustment = errors.New("adjustment must be a finite number")

// Executor performs a crop request.
type Executor interface {
	Execute(ctx context.Context, req *cropper.Request) (*cropper.Output, error)
}

// Result is the terminal outcome of one Execute call.
type Result struct {
	Output *cropper.Output
	Err    error
}

// Config holds the interactive options of an engine.
type Config struct {
	Viewport    geometry.Size
	AspectRatio overlay.AspectRatio
	Overlay     overlay.Config
	Gesture     gesture.Config
}

// DefaultConfig returns a 1000x1000 viewport with no ratio lock.
func DefaultConfig() Config {
	return Config{
		Viewport:    geometry.Size{Width: 1000, Height: 1000},
		AspectRatio: overlay.None(),
		Overlay:     overlay.DefaultConfig(),
		Gesture:     gesture.DefaultConfig(),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor replaces the crop executor.
func WithExecutor(x Executor) Option { return func(e *Engine) { e.exec = x } }

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock sets the time source for settle animations.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine is one crop session. Interactive methods must be called from a
// single goroutine; Execute, Cancel, Pending and Close may be called from any.
type Engine struct {
	src    *source.Handle
	state  *transform.State
	window *overlay.Window
	ctrl   *gesture.Controller
	exec   Executor
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending bool
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

// New creates an engine for src showing the default fit.
func New(src *source.Handle, cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{src: src, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.exec == nil {
		e.exec = cropper.NewExecutor(cropper.DefaultBudget(), cropper.WithLogger(e.logger))
	}

	upright := src.UprightSize()
	state, err := transform.New(upright)
	if err != nil {
		return nil, err
	}
	window, err := overlay.New(cfg.Viewport, upright, cfg.AspectRatio, cfg.Overlay)
	if err != nil {
		return nil, err
	}
	if err := state.ResetToDefault(window.Rect()); err != nil {
		return nil, err
	}
	e.state = state
	e.window = window
	e.ctrl = gesture.New(state, window.Rect(), cfg.Gesture, gesture.WithClock(e.now))
	window.Subscribe(func(ev overlay.Event) {
		if err := e.ctrl.HandleOverlayEvent(ev); err != nil {
			e.logger.Error("settle after window change failed", "event", ev.Kind.String(), "error", err)
		}
	})
	return e, nil
}

// Source returns the image being cropped.
func (e *Engine) Source() *source.Handle { return e.src }

// Transform returns the display transform.
func (e *Engine) Transform() *transform.State { return e.state }

// Window returns the crop window.
func (e *Engine) Window() *overlay.Window { return e.window }

// Controller returns the gesture controller.
func (e *Engine) Controller() *gesture.Controller { return e.ctrl }

// OnBoundsCorrected registers l for settle completions.
func (e *Engine) OnBoundsCorrected(l gesture.Listener) { e.ctrl.Subscribe(l) }

// OnWindowEvent registers l for crop window notifications.
func (e *Engine) OnWindowEvent(l overlay.Listener) func() { return e.window.Subscribe(l) }

// SetAspectRatio changes the window mode; the image settles to cover it.
func (e *Engine) SetAspectRatio(r overlay.AspectRatio) error { return e.window.SetAspectRatio(r) }

// ResizeViewport relays a host viewport resize.
func (e *Engine) ResizeViewport(size geometry.Size) error { return e.window.OnViewportResized(size) }

// Drag moves a freeform window handle within the displayed image.
func (e *Engine) Drag(h overlay.Handle, delta geometry.Point) bool {
	return e.window.Drag(h, delta, e.state.Bounds())
}

// Tick advances settle animations.
func (e *Engine) Tick(now time.Time) bool { return e.ctrl.Tick(now) }

// Reset restores the default fit.
func (e *Engine) Reset() error { return e.ctrl.Reset() }

// Adjustments is a programmatic gesture sequence.
type Adjustments struct {
	// Rotate turns the image clockwise about the window center, in degrees.
	Rotate float64
	// Zoom scales about the window center; 0 and 1 mean unchanged.
	Zoom float64
	// PanX and PanY move the image in viewport units.
	PanX float64
	PanY float64
}

// Adjust applies a rotate, zoom and pan, each as its own gesture, and
// settles at once so the image covers the window afterwards.
func (e *Engine) Adjust(a Adjustments) error {
	for _, v := range [...]float64{a.Rotate, a.Zoom, a.PanX, a.PanY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %+v", ErrInvalidAdjustment, a)
		}
	}
	if a.Rotate != 0 {
		if err := e.RotateBy(a.Rotate); err != nil {
			return err
		}
	}
	if a.Zoom > 0 && a.Zoom != 1 {
		if err := e.ZoomTo(e.state.Scale() * a.Zoom); err != nil {
			return err
		}
	}
	if a.PanX != 0 || a.PanY != 0 {
		if err := e.PanBy(a.PanX, a.PanY); err != nil {
			return err
		}
	}
	return nil
}

// RotateBy turns the image clockwise about the window center and settles.
func (e *Engine) RotateBy(deg float64) error {
	e.ctrl.Rotate(deg, e.window.Rect().Center())
	return e.settleNow()
}

// ZoomTo scales the image about the window center to the absolute scale
// and settles. The result is clamped to the zoom limits.
func (e *Engine) ZoomTo(scale float64) error {
	if cur := e.state.Scale(); scale > 0 && cur > 0 {
		e.ctrl.Scale(scale/cur, e.window.Rect().Center())
	}
	return e.settleNow()
}

// PanBy moves the image in viewport units and settles.
func (e *Engine) PanBy(dx, dy float64) error {
	e.ctrl.Pan(dx, dy)
	return e.settleNow()
}

func (e *Engine) settleNow() error {
	if err := e.ctrl.End(); err != nil {
		return err
	}
	e.ctrl.Flush()
	return nil
}

// Commit finishes any interaction and snapshots a crop request.
func (e *Engine) Commit(opts cropper.Options) (*cropper.Request, error) {
	if e.ctrl.Phase() == gesture.PhaseDragging {
		if err := e.ctrl.End(); err != nil {
			return nil, err
		}
	}
	e.ctrl.Flush()
	req, err := cropper.NewRequest(e.src, e.state.Snapshot(), e.window.Rect(), opts)
	if err != nil {
		return nil, err
	}
	for _, w := range req.Warnings() {
		e.logger.Warn("crop option ignored", "source", e.src.Name(), "warning", w.Error())
	}
	return req, nil
}

// Execute starts req on the worker and returns a channel that receives
// exactly one Result. Only one crop may be pending per engine.
func (e *Engine) Execute(ctx context.Context, req *cropper.Request) (<-chan Result, error) {
	e.mu.Lock()
	if e.pending {
		e.mu.Unlock()
		return nil, &cropper.Error{Kind: cropper.KindConcurrency, Op: "execute", Err: cropper.ErrCropPending}
	}
	ctx, cancel := context.WithCancel(ctx)
	e.pending = true
	e.cancel = cancel
	e.mu.Unlock()

	results := make(chan Result, 1)
	e.wg.Go(func() {
		res := e.run(ctx, req)
		cancel()
		e.mu.Lock()
		e.pending = false
		e.cancel = nil
		e.mu.Unlock()
		results <- res
		close(results)
	})
	return results, nil
}

func (e *Engine) run(ctx context.Context, req *cropper.Request) Result {
	var res Result
	var pc panics.Catcher
	pc.Try(func() {
		out, err := e.exec.Execute(ctx, req)
		res = Result{Output: out, Err: err}
	})
	if r := pc.Recovered(); r != nil {
		e.logger.Error("crop worker panicked", "panic", fmt.Sprint(r.Value))
		res = Result{Err: &cropper.Error{Kind: cropper.KindResource, Op: "execute", Err: r.AsError()}}
	}
	if res.Err != nil {
		e.logger.Error("crop failed", "source", e.src.Name(), "kind", cropper.KindOf(res.Err).String(), "error", res.Err)
	}
	return res
}

// Crop commits with opts and waits for the result.
func (e *Engine) Crop(ctx context.Context, opts cropper.Options) (*cropper.Output, error) {
	req, err := e.Commit(opts)
	if err != nil {
		return nil, err
	}
	ch, err := e.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	res := <-ch
	return res.Output, res.Err
}

// Pending reports whether a crop is in flight.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Cancel aborts the pending crop, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close cancels any pending crop and waits for the worker to exit.
func (e *Engine) Close() {
	e.Cancel()
	e.wg.Wait()
}
