package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/sourcegraph/conc/pool"
)

// Item is the outcome for one input file.
type Item struct {
	Input    string
	Output   *cropper.Output
	Err      error
	Duration time.Duration
}

// outputFormat picks the explicit format, then the input's own, then the
// fallback.
func outputFormat(input string, cfg *Config) (cropper.Format, error) {
	if cfg.Output.Format != cropper.FormatUnspecified {
		return cfg.Output.Format, nil
	}
	if f, err := cropper.FormatFromPath(input); err == nil {
		return f, nil
	}
	if cfg.FallbackFormat == cropper.FormatUnspecified {
		return cropper.FormatUnspecified, &cropper.Error{Kind: cropper.KindInput, Op: "batch", Err: cropper.ErrFormatRequired}
	}
	return cfg.FallbackFormat, nil
}

// outputPathFor names the crop of input: the stem plus the suffix and the
// format extension, in OutputDir or next to the input.
func outputPathFor(input string, format cropper.Format, cfg *Config) string {
	dir := cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+cfg.suffix()+format.Extension())
}

// cropSingleImage runs one engine over input with the shared adjustments.
func cropSingleImage(ctx context.Context, exec engine.Executor, cfg *Config, input string) Item {
	start := time.Now()
	item := Item{Input: input}

	if err := ctx.Err(); err != nil {
		item.Err = &cropper.Error{Kind: cropper.KindCanceled, Op: "batch", Err: errors.Join(cropper.ErrCanceled, err)}
	} else {
		item.Output, item.Err = cropFile(ctx, exec, cfg, input)
	}
	item.Duration = time.Since(start)
	return item
}

func cropFile(ctx context.Context, exec engine.Executor, cfg *Config, input string) (*cropper.Output, error) {
	format, err := outputFormat(input, cfg)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", input, err)
	}

	e, err := engine.New(src, cfg.Engine, engine.WithExecutor(exec), engine.WithLogger(cfg.logger().With("input", input)))
	if err != nil {
		return nil, err
	}
	defer e.Close()

	if err := e.Adjust(cfg.Adjust); err != nil {
		return nil, err
	}

	opts := cfg.Output
	opts.Format = format
	opts.OutputPath = outputPathFor(input, format, cfg)
	return e.Crop(ctx, opts)
}

// cropImagesParallel crops files on a bounded pool. Items keep the input
// order. With FailFast the first failure cancels files not yet started.
func cropImagesParallel(ctx context.Context, files []string, cfg *Config) []Item {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exec := cropper.NewExecutor(cfg.Budget, cropper.WithLogger(cfg.logger()))
	items := make([]Item, len(files))

	p := pool.New().WithMaxGoroutines(cfg.workers())
	for i, path := range files {
		p.Go(func() {
			items[i] = cropSingleImage(ctx, exec, cfg, path)
			if items[i].Err != nil && cfg.FailFast {
				cancel()
			}
		})
	}
	p.Wait()

	return items
}
