package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "", "text":
		return formatText(r), nil
	}
	return "", fmt.Errorf("unsupported output format %q (want text, json or csv)", format)
}

type itemJSON struct {
	Input      string   `json:"input"`
	Output     string   `json:"output,omitempty"`
	Format     string   `json:"format,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	SizeBytes  int64    `json:"size_bytes,omitempty"`
	SampleSize int      `json:"sample_size,omitempty"`
	Reduced    bool     `json:"budget_reduced,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	Kind       string   `json:"kind,omitempty"`
}

func toItemJSON(it Item) itemJSON {
	out := itemJSON{Input: it.Input, DurationMs: it.Duration.Milliseconds()}
	if it.Err != nil {
		out.Error = cropper.Message(it.Err)
		out.Kind = cropper.KindOf(it.Err).String()
		return out
	}
	if o := it.Output; o != nil {
		out.Output = o.Path
		out.Format = o.Format.String()
		out.Width, out.Height = o.Width, o.Height
		out.SizeBytes = o.SizeBytes
		out.SampleSize = o.SampleSize
		out.Reduced = o.BudgetReduced
		for _, w := range o.Warnings {
			out.Warnings = append(out.Warnings, w.Error())
		}
	}
	return out
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	batchResult := struct {
		Images     []itemJSON `json:"images"`
		Succeeded  int        `json:"succeeded"`
		Failed     int        `json:"failed"`
		Workers    int        `json:"workers"`
		DurationMs int64      `json:"duration_ms"`
	}{
		Images:     make([]itemJSON, len(r.Items)),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		Workers:    r.WorkerCount,
		DurationMs: r.Duration.Milliseconds(),
	}
	for i, it := range r.Items {
		batchResult.Images[i] = toItemJSON(it)
	}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts) + "\n", err
}

// formatCSV formats results as CSV, one row per input.
func formatCSV(r *Result) (string, error) {
	csvData := [][]string{{
		"input", "output", "format", "width", "height", "size_bytes", "sample_size", "duration_ms", "error",
	}}

	for _, it := range r.Items {
		j := toItemJSON(it)
		csvData = append(csvData, []string{
			j.Input,
			j.Output,
			j.Format,
			strconv.Itoa(j.Width),
			strconv.Itoa(j.Height),
			strconv.FormatInt(j.SizeBytes, 10),
			strconv.Itoa(j.SampleSize),
			strconv.FormatInt(j.DurationMs, 10),
			j.Error,
		})
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.WriteAll(csvData); err != nil {
		return "", err
	}
	return output.String(), nil
}

// formatText formats results as one line per input.
func formatText(r *Result) string {
	var output strings.Builder
	for _, it := range r.Items {
		if it.Err != nil {
			fmt.Fprintf(&output, "FAIL %s: %s\n", it.Input, cropper.Message(it.Err))
			continue
		}
		o := it.Output
		fmt.Fprintf(&output, "ok   %s -> %s (%dx%d %s)\n", it.Input, o.Path, o.Width, o.Height, o.Format)
	}
	fmt.Fprintf(&output, "%d cropped, %d failed\n", r.Succeeded(), r.Failed())
	return output.String()
}
