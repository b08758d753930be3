package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"

	"github.com/hupe1980/rowsink"
	promcollector "github.com/hupe1980/rowsink/metrics/prometheus"
)

type writeCommand struct {
	jobFile     string
	pattern     string
	baseDir     string
	format      string
	storeRoot   string
	existing    string
	partitionBy []string
	logLevel    string
	jsonLogs    bool
	progress    bool
	metricsAddr string
}

func addWriteCommand(app *kingpin.Application) {
	cmd := &writeCommand{}

	c := app.Command("write", "Write CSV files matching a glob to the dataset.").Action(cmd.run)
	c.Arg("pattern", "Doublestar glob of input files, overrides input.pattern.").StringVar(&cmd.pattern)
	c.Flag("job", "YAML job file.").Short('j').StringVar(&cmd.jobFile)
	c.Flag("base-dir", "Dataset directory, overrides output.base_dir.").StringVar(&cmd.baseDir)
	c.Flag("format", "Output format: parquet, ipc, csv or jsonl.").StringVar(&cmd.format)
	c.Flag("root", "Root of a local or filesystem store.").StringVar(&cmd.storeRoot)
	c.Flag("existing-data", "error, overwrite_or_ignore or delete_matching.").StringVar(&cmd.existing)
	c.Flag("partition-by", "Hive partition column, repeatable.").StringsVar(&cmd.partitionBy)
	c.Flag("log-level", "debug, info, warn or error.").Default("info").EnumVar(&cmd.logLevel, "debug", "info", "warn", "error")
	c.Flag("json-logs", "Log JSON instead of text.").BoolVar(&cmd.jsonLogs)
	c.Flag("progress", "Show a progress bar.").Default("true").BoolVar(&cmd.progress)
	c.Flag("metrics-addr", "Serve Prometheus metrics on this address while writing.").StringVar(&cmd.metricsAddr)
}

func (cmd *writeCommand) run(_ *kingpin.ParseContext) error {
	job, err := loadJob(cmd.jobFile)
	if err != nil {
		exitWithErr(err)
	}
	cmd.apply(&job)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.logLevel)); err != nil {
		exitWithErr(err)
	}

	logger := rowsink.NewTextLogger(level)
	if cmd.jsonLogs {
		logger = rowsink.NewJSONLogger(level)
	}

	var bar *progressbar.ProgressBar
	if cmd.progress {
		bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Rows read"),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	reg := prometheus.NewRegistry()
	if cmd.metricsAddr != "" {
		srv := &http.Server{
			Addr:              cmd.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	res, err := runWrite(ctx, job, reg, logger, bar)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		exitWithErr(err)
	}

	printResult(os.Stdout, res)
	return nil
}

func (cmd *writeCommand) apply(job *Job) {
	if cmd.pattern != "" {
		job.Input.Pattern = cmd.pattern
	}
	if cmd.baseDir != "" {
		job.Output.BaseDir = cmd.baseDir
	}
	if cmd.format != "" {
		job.Format.Name = cmd.format
	}
	if cmd.storeRoot != "" {
		job.Store.Root = cmd.storeRoot
	}
	if cmd.existing != "" {
		job.Output.ExistingData = cmd.existing
	}
	if len(cmd.partitionBy) > 0 {
		job.Output.PartitionBy = cmd.partitionBy
	}
}

// runWrite executes job. reg and bar may be nil.
func runWrite(ctx context.Context, job Job, reg prometheus.Registerer, logger *rowsink.Logger, bar *progressbar.ProgressBar) (*rowsink.Result, error) {
	paths, err := expandInputs(job.Input.Pattern)
	if err != nil {
		return nil, err
	}

	store, err := job.Store.open(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := job.options(ctx, store)
	if err != nil {
		return nil, err
	}

	opts = append(opts, rowsink.WithLogger(logger))
	if reg != nil {
		collector := promcollector.New(reg)
		opts = append(opts, rowsink.WithObserver(collector), rowsink.WithMetricsCollector(collector))
	}

	var onRows func(int64)
	if bar != nil {
		onRows = func(n int64) { _ = bar.Add64(n) }
	}

	logger.Info("writing dataset", "inputs", len(paths), "format", job.Format.Name, "base_dir", job.Output.BaseDir)

	return rowsink.Write(ctx, csvSource(ctx, paths, job.Input, onRows), opts...)
}

func printResult(w io.Writer, res *rowsink.Result) {
	fmt.Fprintf(w, "write %s: %s rows in %d files (%s)\n",
		res.WriteID, humanize.Comma(res.Rows), len(res.Files), res.Duration.Round(time.Millisecond))
	if res.ManifestID > 0 {
		fmt.Fprintf(w, "committed manifest %d\n", res.ManifestID)
	}
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\t%s rows\n", f.Path, humanize.Comma(f.Rows))
	}
}
