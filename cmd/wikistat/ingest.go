package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cognicore/wikistat/internal/logger"
	"github.com/cognicore/wikistat/pkg/wikistat/config"
	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/pipeline"
	"github.com/cognicore/wikistat/pkg/wikistat/store"
	"github.com/cognicore/wikistat/pkg/wikistat/store/sqlite"
)

type ingestFlags struct {
	dump      string
	db        string
	output    string
	schema    string
	metrics   string
	chunkSize config.ByteSize
	topN      int
	workers   int
	queue     int
	unordered bool
}

func newIngestCommand(root *rootOptions) *cobra.Command {
	f := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stream a dump into the database",
		Long: `Stream a dump file page by page through the parser workers and write one
record per page. Page-level problems are logged and counted; the command
fails only when the configuration is invalid, the database cannot be opened
or the dump cannot be read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			f.apply(cmd, &cfg)
			_, err = runIngest(cmd.Context(), cfg, log, cmd.OutOrStdout())
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.dump, "dump", "", "dump file to ingest")
	flags.StringVar(&f.db, "db", "", "SQLite database path")
	flags.StringVar(&f.output, "output", "", "mirror every raw page to this file")
	flags.StringVar(&f.schema, "schema", "", "DDL script applied when opening the database")
	flags.StringVar(&f.metrics, "metrics", "", "write Prometheus metrics to this textfile")
	flags.Var(&f.chunkSize, "chunk-size", "read window size, e.g. 1MiB")
	flags.IntVar(&f.topN, "top-n", 0, "ranked words kept per page")
	flags.IntVar(&f.workers, "workers", 0, "parser workers (0 = one per CPU)")
	flags.IntVar(&f.queue, "queue", 0, "work queue capacity (0 = twice the workers)")
	flags.BoolVar(&f.unordered, "unordered", false, "write records as they finish instead of in dump order")

	return cmd
}

// apply overrides config values with the flags given on the command line.
func (f *ingestFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("dump") {
		cfg.DumpPath = f.dump
	}
	if changed("db") {
		cfg.DBPath = f.db
	}
	if changed("output") {
		cfg.OutputPath = f.output
	}
	if changed("schema") {
		cfg.SchemaPath = f.schema
	}
	if changed("metrics") {
		cfg.MetricsPath = f.metrics
	}
	if changed("chunk-size") {
		cfg.ChunkSize = f.chunkSize
	}
	if changed("top-n") {
		cfg.TopN = f.topN
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("queue") {
		cfg.QueueCapacity = f.queue
	}
	if changed("unordered") {
		cfg.Ordered = !f.unordered
	}
}

// runIngest performs one run and records it in the runs table. Page-level
// issues leave the returned error nil; the summary carries them.
func runIngest(ctx context.Context, cfg config.Config, log logger.Logger, out io.Writer) (pipeline.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return pipeline.Summary{}, err
	}

	loader := cfg.Loader()
	comp, err := loader.Load()
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("load components: %w", err)
	}

	dumpFile, err := os.Open(cfg.DumpPath)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("open dump: %w: %w", internalerr.ErrDumpIO, err)
	}
	defer dumpFile.Close()

	st, err := sqlite.Open(ctx, cfg.DBPath, comp.SchemaScript)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	var mirror *bufio.Writer
	if cfg.OutputPath != "" {
		mirrorFile, err := os.Create(cfg.OutputPath)
		if err != nil {
			return pipeline.Summary{}, fmt.Errorf("create mirror: %w", err)
		}
		defer mirrorFile.Close()
		mirror = bufio.NewWriterSize(mirrorFile, 1<<20)
	}

	run := store.Run{
		ID:        store.NewRunID(),
		DumpPath:  cfg.DumpPath,
		StartedAt: time.Now(),
		Status:    store.RunRunning,
	}
	if err := st.StartRun(ctx, run); err != nil {
		return pipeline.Summary{}, fmt.Errorf("start run: %w", err)
	}

	runLog := log.With(logger.String("run_id", run.ID))
	reg := prometheus.NewRegistry()
	opts := pipeline.Options{
		Assembler: comp.Assembler,
		Sink:      store.RunWriter{Store: st, RunID: run.ID},
		Logger:    runLog,
		Metrics:   pipeline.NewMetrics(reg),
		Settings:  cfg.Pipeline(),
	}
	if mirror != nil {
		opts.Mirror = mirror
	}

	runLog.Info("Ingest started",
		logger.String("dump", cfg.DumpPath),
		logger.String("db", cfg.DBPath),
		logger.String("chunk_size", cfg.ChunkSize.String()),
		logger.Int("top_n", cfg.TopN),
	)
	summary, runErr := pipeline.New(opts).Run(ctx, dumpFile)

	if mirror != nil {
		if err := mirror.Flush(); err != nil {
			runLog.Error("Flush raw page mirror", logger.Err(err))
		}
	}

	run.FinishedAt = time.Now()
	run.PagesRead = summary.PagesRead
	run.PagesWritten = summary.PagesWritten
	run.Issues = summary.IssueCount()
	switch {
	case runErr != nil:
		run.Status = store.RunAborted
	case summary.Failed():
		run.Status = store.RunFailed
	default:
		run.Status = store.RunOK
	}
	if err := st.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		runLog.Error("Record run result", logger.Err(err))
	}

	if cfg.MetricsPath != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsPath, reg); err != nil {
			runLog.Error("Write metrics textfile", logger.String("path", cfg.MetricsPath), logger.Err(err))
		}
	}

	fmt.Fprintf(out, "run %s %s: %s\n", run.ID, run.Status, summary)

	if runErr != nil {
		if errors.Is(runErr, internalerr.ErrDumpIO) {
			return summary, runErr
		}
		return summary, fmt.Errorf("ingest interrupted: %w", runErr)
	}
	return summary, nil
}
