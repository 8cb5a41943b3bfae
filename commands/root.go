package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/waybacker/internal/collector"
	"github.com/penwyp/waybacker/internal/util"
)

var (
	// Time range
	fromTime string
	toTime   string
	stepSize string

	// Execution
	parallel int
	interval time.Duration

	// Output related
	outputDir string
	noContent bool
	reset     bool
	quiet     bool

	// System and debugging
	debug    bool
	timezone string

	rootCmd = &cobra.Command{
		Use:   "waybacker [flags] url",
		Short: "Sample Wayback Machine snapshots of a URL over a time range",
		Long: `waybacker queries the Wayback Machine's nearest-snapshot API once per
sampled timestamp between a start and end time, and appends each result as
one JSON line to a file named after the URL.

Time expressions are "now", an absolute date (DD-MM-YYYY), or an offset from
now like "-7D". Step units: s (seconds), m (minutes), h (hours), D (days),
M (months), Y (years); a negative step walks backward in time.

Examples:
  waybacker -f "-2D" -t now -s 1D example.com        # one snapshot per day, last two days
  waybacker -f 01-01-2018 -t 01-06-2018 -s 1M x.org  # monthly samples, first half of 2018
  waybacker -f now -t "-1Y" -s -1M -p 4 example.com  # walk a year back, four workers
  waybacker -f "-30D" -s 1D -r example.com           # discard prior results and rerun`,
		Args: cobra.ExactArgs(1),
		RunE: runCollect,

		SilenceUsage: true,
	}
)

const defaultLogFile = "~/.waybacker/logs/app.log"

func init() {
	// Time range
	rootCmd.Flags().StringVarP(&fromTime, "from", "f", "now",
		"Time to start, as 'now', 'DD-MM-YYYY' or an offset like '-2D'")
	rootCmd.Flags().StringVarP(&toTime, "to", "t", "now",
		"Time to stop, same formats as --from")
	rootCmd.Flags().StringVarP(&stepSize, "step", "s", "",
		"Step between samples, e.g. '1D' or '-2h'; negative steps walk backward")
	rootCmd.MarkFlagRequired("step")

	// Execution
	rootCmd.Flags().IntVarP(&parallel, "parallel", "p", 1,
		"Number of concurrent fetches")
	rootCmd.Flags().DurationVar(&interval, "interval", 0,
		"Minimum delay between requests to the archive (0 = unpaced)")

	// Output configuration
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./data",
		"Directory to store results")
	rootCmd.Flags().BoolVar(&noContent, "no-content", false,
		"Record snapshot metadata only, skip downloading page content")
	rootCmd.Flags().BoolVarP(&reset, "reset", "r", false,
		"Remove prior results and start over")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"Do not print progress to stdout")

	// System and debugging
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Print debug statements")
	rootCmd.Flags().StringVar(&timezone, "timezone", "Local",
		"Timezone governing 'now' and absolute dates (e.g. UTC, Europe/Amsterdam)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}

	logFile := expandPath(defaultLogFile)
	if err := ensureDir(filepath.Dir(logFile)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	util.InitLogger(logLevel, logFile, debug)

	if err := util.InitializeTimeProvider(timezone); err != nil {
		return err
	}

	if parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", parallel)
	}
	if interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", interval)
	}

	config := &collector.Config{
		URL:       args[0],
		From:      fromTime,
		To:        toTime,
		Step:      stepSize,
		Parallel:  parallel,
		Reset:     reset,
		Quiet:     quiet,
		NoContent: noContent,
		OutputDir: expandPath(outputDir),
		Interval:  interval,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return collector.New(config).Run(ctx)
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
