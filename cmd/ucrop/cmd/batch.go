package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MeKo-Tech/ucrop/internal/batch"
	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Crop many images with the same setup",
	Long: `Crop every image found in the given files and directories with one
window and adjustment setup. Each image gets its own engine, so the window is
placed relative to that image's default fit. Crops are written next to their
input, or into --output-dir, as <name>-cropped.<ext>. Earlier crops are
skipped on a rerun.

Examples:
  ucrop batch ./photos --ratio 1:1 --max-width 512 --max-height 512
  ucrop batch ./scans --recursive --include "*.tif" --format jpeg -o ./out
  ucrop batch a.jpg b.jpg --report json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addCropSetupFlags(batchCmd)
	batchCmd.Flags().StringP("output-dir", "o", "", "directory for the crops (default next to each input)")
	batchCmd.Flags().String("suffix", batch.DefaultSuffix, "suffix added to each output name")
	batchCmd.Flags().BoolP("recursive", "R", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns of files to crop (default: all supported images)")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns of files to skip")
	batchCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of images cropped at once")
	batchCmd.Flags().Bool("fail-fast", false, "stop starting new crops after the first failure")
	batchCmd.Flags().String("report", "text", "report format: text, json or csv")
}

func runBatch(cmd *cobra.Command, args []string) error {
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
	adj, err := adjustmentsFromFlags(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	output := cropper.Options{
		Quality:   cfg.Crop.Quality,
		MaxWidth:  cfg.Crop.MaxResultWidth,
		MaxHeight: cfg.Crop.MaxResultHeight,
	}
	if format != "" {
		if output.Format, err = cropper.ParseFormat(format); err != nil {
			return cropFailure(err)
		}
	}
	fallback, err := cropper.ParseFormat(cfg.Crop.Format)
	if err != nil {
		return cropFailure(err)
	}

	report, _ := flags.GetString("report")
	switch report {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("invalid report format %q (want text, json or csv)", report)
	}

	bc := &batch.Config{
		Engine:         engineCfg,
		Adjust:         adj,
		Budget:         cfg.ToBudget(),
		Output:         output,
		FallbackFormat: fallback,
	}
	bc.OutputDir, _ = flags.GetString("output-dir")
	bc.Suffix, _ = flags.GetString("suffix")
	bc.Recursive, _ = flags.GetBool("recursive")
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	bc.Workers, _ = flags.GetInt("workers")
	bc.FailFast, _ = flags.GetBool("fail-fast")

	if bc.OutputDir != "" {
		if err := os.MkdirAll(bc.OutputDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := batch.ProcessBatch(ctx, args, bc)
	if err != nil {
		return err
	}

	text, err := res.FormatResults(report)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), text)

	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d images could not be cropped", n, len(res.Items))
	}
	return nil
}
