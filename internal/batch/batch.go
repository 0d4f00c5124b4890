// Package batch applies one crop setup to many image files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoImages reports that discovery matched nothing.
var ErrNoImages = errors.New("no image files found")

// Result holds the result of batch processing.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// Succeeded counts the files that were cropped.
func (r *Result) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts the files that were not cropped.
func (r *Result) Failed() int { return len(r.Items) - r.Succeeded() }

// Err joins the per-file failures, or returns nil when every file succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.Input, it.Err))
		}
	}
	return errors.Join(errs...)
}

// FormatResults formats the batch results as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// ProcessBatch crops every image found under paths with the given
// configuration. Per-file failures are reported in the result, not as the
// returned error.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	files, err := discoverImageFiles(paths, config.Recursive, config.includePatterns(), config.excludePatterns())
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	logger := config.logger()
	logger.Info("Starting batch crop", "files", len(files), "workers", config.workers())

	start := time.Now()
	items := cropImagesParallel(ctx, files, config)
	result := &Result{Items: items, Duration: time.Since(start), WorkerCount: config.workers()}

	logger.Info("Batch crop finished", "succeeded", result.Succeeded(), "failed", result.Failed(),
		"duration", result.Duration)
	return result, nil
}
