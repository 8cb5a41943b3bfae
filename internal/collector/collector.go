package collector

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/penwyp/waybacker/internal/core/model"
	"github.com/penwyp/waybacker/internal/core/timespec"
	"github.com/penwyp/waybacker/internal/data/archive"
	"github.com/penwyp/waybacker/internal/data/output"
	"github.com/penwyp/waybacker/internal/util"
)

// Config carries everything a run needs. Threaded explicitly so runs are
// reproducible: there is no ambient state beyond the process clock, and even
// that is taken from the time provider once, up front.
type Config struct {
	URL       string
	From      string
	To        string
	Step      string
	Parallel  int
	Reset     bool
	Quiet     bool
	NoContent bool
	OutputDir string
	Interval  time.Duration
}

// Collector drives the whole batch: parse and validate the time range,
// build the work list (minus resumed timestamps), fan the lookups out over
// a bounded worker pool and funnel every completed result into the writer.
type Collector struct {
	config   *Config
	client   *archive.Client
	now      time.Time
	progress io.Writer
}

// Option overrides a Collector dependency, mainly for tests.
type Option func(*Collector)

// WithClient substitutes the archive client.
func WithClient(client *archive.Client) Option {
	return func(c *Collector) { c.client = client }
}

// WithNow pins the reference time used to resolve "now" and relative
// expressions.
func WithNow(now time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithProgressWriter redirects progress output.
func WithProgressWriter(w io.Writer) Option {
	return func(c *Collector) { c.progress = w }
}

// New creates a Collector from the run configuration.
func New(config *Config, opts ...Option) *Collector {
	if config.Parallel < 1 {
		config.Parallel = 1
	}

	c := &Collector{
		config:   config,
		now:      util.GetTimeProvider().Now(),
		progress: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		clientOpts := []archive.Option{archive.WithContent(!config.NoContent)}
		if config.Interval > 0 {
			clientOpts = append(clientOpts, archive.WithLimiter(rate.NewLimiter(rate.Every(config.Interval), 1)))
		}
		c.client = archive.NewClient(clientOpts...)
	}
	return c
}

// Run executes the batch. Validation errors surface here, before any network
// activity; per-fetch failures are recorded in the result file and never
// abort the run. The returned error is nil exactly when the run completed.
func (c *Collector) Run(ctx context.Context) error {
	startTime := time.Now()

	// Phase 1: resolve the time range.
	step, err := timespec.ParseStep(c.config.Step)
	if err != nil {
		return err
	}
	from, err := timespec.ParseTime(c.config.From, c.now)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	to, err := timespec.ParseTime(c.config.To, c.now)
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}

	// Phase 2: build the timestamp sequence.
	sequence, err := timespec.Sequence(from, to, step)
	if err != nil {
		return err
	}
	util.LogDebugf("Phase 2 - sequence of %d timestamps between %s and %s",
		len(sequence), from.Format(time.RFC3339), to.Format(time.RFC3339))

	// Phase 3: open the result file and load the resume index.
	writer, err := output.Open(c.config.OutputDir, c.config.URL, c.config.Reset)
	if err != nil {
		return err
	}
	defer writer.Close()

	pending := sequence
	if c.config.Reset {
		util.LogInfo(fmt.Sprintf("Reset result file %s", writer.Path()))
	} else {
		index, err := output.LoadResumeIndex(writer.Path())
		if err != nil {
			return fmt.Errorf("failed to read prior results: %w", err)
		}
		pending = pending[:0:0]
		for _, ts := range sequence {
			if _, done := index[model.FormatRequested(ts)]; !done {
				pending = append(pending, ts)
			}
		}
		if skipped := len(sequence) - len(pending); skipped > 0 {
			util.LogInfo(fmt.Sprintf("Resuming: %d of %d timestamps already fetched", skipped, len(sequence)))
		}
	}

	if len(pending) == 0 {
		util.LogInfo("Nothing to fetch")
		return nil
	}
	util.LogInfo(fmt.Sprintf("Fetching %d snapshots of %s with %d workers",
		len(pending), c.config.URL, c.config.Parallel))

	// Phase 4: dispatch workers and stream results into the writer.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *model.SnapshotResult, len(pending))
	semaphore := make(chan struct{}, c.config.Parallel)
	var wg sync.WaitGroup

	for _, ts := range pending {
		wg.Add(1)
		go func(at time.Time) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-semaphore }()

			result := c.client.Fetch(runCtx, c.config.URL, at)
			if runCtx.Err() != nil {
				// Abandoned in-flight fetch: no line is written for it.
				return
			}
			results <- result
		}(ts)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single consumer: the writer serializes appends, this loop serializes
	// progress, so neither lines nor progress output interleave.
	completed := 0
	for result := range results {
		if err := writer.Append(result); err != nil {
			cancel()
			return err
		}
		completed++
		c.reportProgress(completed, len(pending), result)
	}
	if !c.config.Quiet && completed > 0 {
		fmt.Fprintln(c.progress)
	}

	if err := ctx.Err(); err != nil {
		util.LogWarn(fmt.Sprintf("Interrupted after %d of %d fetches", completed, len(pending)))
		return err
	}

	util.LogInfo(fmt.Sprintf("Completed %d fetches in %v, results in %s",
		completed, time.Since(startTime).Round(time.Millisecond), writer.Path()))
	return nil
}

func (c *Collector) reportProgress(completed, total int, result *model.SnapshotResult) {
	if c.config.Quiet {
		return
	}
	line := fmt.Sprintf("%d/%d %s %s", completed, total, result.Status, result.RequestedTimestamp)
	fmt.Fprint(c.progress, util.ClearLine+util.ClampLine(line))
}
