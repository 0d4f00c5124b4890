package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/config"
	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// cropCmd represents the crop command.
var cropCmd = &cobra.Command{
	Use:   "crop <image>",
	Short: "Crop an image through the interactive crop engine",
	Long: `Crop one image. The image is fitted under the crop window exactly as an
interactive session would show it, the optional rotate, zoom and pan
adjustments are applied as gestures, and the engine snaps the image back so
it covers the window before the visible region is written.

Supported input formats: JPEG, PNG, WebP, BMP, TIFF
Supported output formats: jpeg, png, webp, webp-lossless

Examples:
  ucrop crop photo.jpg --ratio 1:1 -o square.jpg
  ucrop crop photo.jpg --ratio 16:9 --max-width 1920 --max-height 1080
  ucrop crop scan.png --rotate -3.5 --zoom 1.2 --pan-x 40 --format webp
  ucrop crop photo.jpg --json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)
	cropCmd.Flags().StringP("output", "o", "", "output file (default <input>-cropped.<ext>)")
	addCropSetupFlags(cropCmd)
	cropCmd.Flags().Bool("json", false, "print the result as JSON")
}

// addCropSetupFlags registers the window, adjustment and output flags shared
// by crop and batch.
func addCropSetupFlags(c *cobra.Command) {
	c.Flags().StringP("ratio", "r", "", "aspect ratio: none, source, freeform or X:Y")
	c.Flags().Float64("rotate", 0, "rotate clockwise by degrees")
	c.Flags().Float64("zoom", 0, "zoom factor relative to the default fit")
	c.Flags().Float64("pan-x", 0, "move the image right by viewport units")
	c.Flags().Float64("pan-y", 0, "move the image down by viewport units")
	c.Flags().Int("max-width", 0, "maximum result width (0 = unbounded)")
	c.Flags().Int("max-height", 0, "maximum result height (0 = unbounded)")
	c.Flags().StringP("format", "f", "", "output format: jpeg, png, webp, webp-lossless (default from extension)")
	c.Flags().IntP("quality", "q", 0, "lossy encoder quality 0-100")
	c.Flags().String("viewport", "", "viewport size as WIDTHxHEIGHT")
}

// cropSummary is the --json output of the crop command.
type cropSummary struct {
	Input      string   `json:"input"`
	Output     string   `json:"output"`
	Format     string   `json:"format"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	SizeBytes  int64    `json:"size_bytes"`
	SampleSize int      `json:"sample_size"`
	Reduced    bool     `json:"budget_reduced,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

func runCrop(cmd *cobra.Command, args []string) error {
	input := args[0]
	cfg := GetConfig()
	if err := applyCropFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	engineCfg, err := cfg.ToEngineConfig()
	if err != nil {
		return err
	}

	src, err := source.Open(input)
	if err != nil {
		return cropFailure(err)
	}

	logger := slog.Default().With("input", input)
	exec := cropper.NewExecutor(cfg.ToBudget(), cropper.WithLogger(logger))
	e, err := engine.New(src, engineCfg, engine.WithExecutor(exec), engine.WithLogger(logger))
	if err != nil {
		return cropFailure(err)
	}
	defer e.Close()

	adj, err := adjustmentsFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := e.Adjust(adj); err != nil {
		return cropFailure(err)
	}

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutputPath(input, format, cfg.Crop.Format)
	}
	opts, err := cfg.CropOptions(output, format)
	if err != nil {
		return cropFailure(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	win := e.Window().Rect()
	logger.Debug("Starting crop", "output", output, "format", opts.Format.String(),
		"window_width", win.Width(), "window_height", win.Height(),
		"scale", e.Transform().Scale(), "rotation", e.Transform().Rotation())
	out, err := e.Crop(ctx, opts)
	if err != nil {
		return cropFailure(err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeCropJSON(cmd.OutOrStdout(), input, out)
	}
	writeCropSummary(cmd.OutOrStdout(), src, out)
	return nil
}

// applyCropFlags overrides the crop and viewport sections with the flags
// that were set explicitly.
func applyCropFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("ratio") {
		cfg.Crop.AspectRatio, _ = flags.GetString("ratio")
	}
	if flags.Changed("max-width") {
		cfg.Crop.MaxResultWidth, _ = flags.GetInt("max-width")
	}
	if flags.Changed("max-height") {
		cfg.Crop.MaxResultHeight, _ = flags.GetInt("max-height")
	}
	if flags.Changed("quality") {
		cfg.Crop.Quality, _ = flags.GetInt("quality")
	}
	if flags.Changed("viewport") {
		v, _ := flags.GetString("viewport")
		w, h, err := parseViewport(v)
		if err != nil {
			return err
		}
		cfg.Viewport.Width, cfg.Viewport.Height = w, h
	}
	return nil
}

func adjustmentsFromFlags(cmd *cobra.Command) (engine.Adjustments, error) {
	var a engine.Adjustments
	a.Rotate, _ = cmd.Flags().GetFloat64("rotate")
	a.Zoom, _ = cmd.Flags().GetFloat64("zoom")
	a.PanX, _ = cmd.Flags().GetFloat64("pan-x")
	a.PanY, _ = cmd.Flags().GetFloat64("pan-y")
	for _, f := range []struct {
		name string
		v    float64
	}{{"rotate", a.Rotate}, {"zoom", a.Zoom}, {"pan-x", a.PanX}, {"pan-y", a.PanY}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return a, fmt.Errorf("invalid %s: %g (must be a finite number)", f.name, f.v)
		}
	}
	if a.Zoom < 0 {
		return a, fmt.Errorf("invalid zoom: %g (must be positive)", a.Zoom)
	}
	return a, nil
}

func parseViewport(v string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid viewport %q (want WIDTHxHEIGHT)", v)
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(ws), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(hs), 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport %q (want WIDTHxHEIGHT)", v)
	}
	return w, h, nil
}

// defaultOutputPath puts the crop next to the input. The input extension is
// kept when it can be encoded; otherwise the format decides.
func defaultOutputPath(input, format, fallback string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext) + "-cropped"
	if format == "" {
		if _, err := cropper.FormatFromPath(input); err == nil {
			return stem + ext
		}
		format = fallback
	}
	f, err := cropper.ParseFormat(format)
	if err != nil {
		return stem + ext
	}
	return stem + f.Extension()
}

// cropFailure prefixes err with its category.
func cropFailure(err error) error {
	if cropper.KindOf(err) != cropper.KindUnknown {
		return fmt.Errorf("%s %w", cropper.Message(err), err)
	}
	return err
}

func writeCropSummary(w io.Writer, src *source.Handle, out *cropper.Output) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "Cropped %s (%d x %d) to %s\n", src.Name(), src.Width(), src.Height(), out.Path)
	_, _ = p.Fprintf(w, "  %d x %d %s, %d bytes in %v\n", out.Width, out.Height, out.Format.String(), out.SizeBytes, out.Duration.Round(time.Millisecond))
	switch {
	case out.BudgetReduced:
		_, _ = p.Fprintf(w, "  reduced to 1/%d resolution to fit the memory budget\n", out.SampleSize)
	case out.SampleSize > 1:
		_, _ = p.Fprintf(w, "  sampled at 1/%d for the requested size\n", out.SampleSize)
	}
	for _, warn := range out.Warnings {
		_, _ = p.Fprintf(w, "  warning: %v\n", warn)
	}
}

func writeCropJSON(w io.Writer, input string, out *cropper.Output) error {
	s := cropSummary{
		Input:      input,
		Output:     out.Path,
		Format:     out.Format.String(),
		Width:      out.Width,
		Height:     out.Height,
		SizeBytes:  out.SizeBytes,
		SampleSize: out.SampleSize,
		Reduced:    out.BudgetReduced,
		DurationMs: out.Duration.Milliseconds(),
	}
	for _, warn := range out.Warnings {
		s.Warnings = append(s.Warnings, warn.Error())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
