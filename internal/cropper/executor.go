// Package cropper turns a committed transform and crop window into an
// encoded output image.
package cropper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
)

// Output describes a written crop.
type Output struct {
	Path       string
	Format     Format
	Width      int
	Height     int
	SizeBytes  int64
	SampleSize int
	// BudgetReduced reports that the memory budget forced a coarser sample
	// than the requested output size needed.
	BudgetReduced bool
	Duration      time.Duration
	Warnings      []error
}

// Executor runs crop requests. It holds no per-request state and may be
// shared between goroutines.
type Executor struct {
	budget Budget
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for crop diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor returns an executor bounded by budget.
func NewExecutor(budget Budget, opts ...Option) *Executor {
	e := &Executor{budget: budget, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Budget returns the memory limits.
func (e *Executor) Budget() Budget { return e.budget }

// Execute performs req. The output file appears only on success; on failure
// or cancellation no partial file is left behind.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Output, error) {
	start := time.Now()
	if req == nil {
		return nil, newError(KindInput, "execute", ErrSourceRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled("execute", err)
	}

	p, err := req.plan()
	if err != nil {
		return nil, err
	}
	src := req.source
	tw, th := targetSize(p.nativeW, p.nativeH, req.maxSize)
	sample, reduced, err := e.budget.chooseSample(p, tw, th)
	if err != nil {
		return nil, newError(KindResource, "budget", err)
	}
	sample, raised, err := e.budget.fitDecode(src, sample)
	if err != nil {
		return nil, newError(KindResource, "budget", err)
	}
	reduced = reduced || raised
	if reduced {
		e.logger.Warn("crop resolution reduced to fit memory budget",
			"path", req.outputPath, "sample", sample, "target_width", tw, "target_height", th)
	}

	img, err := render(ctx, src, p, req.window, sample)
	if err != nil {
		return nil, classify("render", err)
	}
	img = fitMax(img, req.maxSize)

	b := img.Bounds()
	size, err := writeAtomic(ctx, req.outputPath, func(w io.Writer) error {
		return encode(w, img, req.format, req.quality)
	})
	if err != nil {
		return nil, classify("write", err)
	}

	out := &Output{
		Path:          req.outputPath,
		Format:        req.format,
		Width:         b.Dx(),
		Height:        b.Dy(),
		SizeBytes:     size,
		SampleSize:    sample,
		BudgetReduced: reduced,
		Duration:      time.Since(start),
		Warnings:      req.Warnings(),
	}
	e.logger.Info("crop written",
		"path", out.Path, "format", out.Format.String(), "width", out.Width, "height", out.Height,
		"bytes", out.SizeBytes, "sample", sample, "duration", out.Duration)
	return out, nil
}

func fitMax(img image.Image, bound MaxSize) image.Image {
	if !bound.IsSet() {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= bound.Width && b.Dy() <= bound.Height {
		return img
	}
	return imaging.Fit(img, bound.Width, bound.Height, imaging.Lanczos)
}

func canceled(op string, err error) *Error {
	return newError(KindCanceled, op, fmt.Errorf("%w: %w", ErrCanceled, err))
}

func classify(op string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return canceled(op, err)
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindResource
	}
	return newError(kind, op, err)
}
