package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"llbot/internal/bot"
	"llbot/internal/cache"
	"llbot/internal/config"
	"llbot/internal/mediawiki"
	"llbot/internal/metrics"
	"llbot/internal/record"
	"llbot/internal/sparql"
	"llbot/internal/wiki"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "llbot",
		Short: "Add Lingua Libre pronunciation recordings to wiki pages",
		Long: `Reads pronunciation records (audio file, language, speaker location) and
adds an audio line to the pronunciation subsection of the matching language
entry on each target wiki, creating the subsection when needed.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(wikisCmd())

	return rootCmd
}

type runOptions struct {
	wikis       []string
	records     string
	dryRun      bool
	metricsAddr string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run --wiki <name> --records <file>",
		Short: "Process a batch of records against one or more wikis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.wikis, "wiki", nil, "Target wiki (repeatable), e.g. kuwiktionary")
	cmd.Flags().StringVar(&opts.records, "records", "", "Records file (JSON array or JSON lines)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Do everything except saving the pages")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	_ = cmd.MarkFlagRequired("wiki")
	_ = cmd.MarkFlagRequired("records")

	return cmd
}

func wikisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wikis",
		Short: "List the supported wikis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range wiki.Names() {
				w, err := wiki.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", w.Name, w.APIEndpoint())
			}
			return nil
		},
	}
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// runBatch handles the `run` command.
func runBatch(opts runOptions) error {
	ctx, cancel := setupContext()
	defer cancel()

	log.Logger = log.With().Str("run_id", uuid.NewString()).Logger()

	cfg := config.Load()
	if opts.dryRun {
		cfg.DryRun = true
	}

	// Resolve every wiki before doing any work.
	targets := make([]wiki.Wiki, 0, len(opts.wikis))
	for _, name := range opts.wikis {
		w, err := wiki.Lookup(name)
		if err != nil {
			return err
		}
		targets = append(targets, w)
	}

	records, err := record.LoadFile(opts.records)
	if err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Str("file", opts.records).Bool("dry_run", cfg.DryRun).Msg("Loaded records")

	snapshot, closeDB, err := initSnapshot(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	stopMetrics := serveMetrics(opts.metricsAddr, registry)
	defer stopMetrics()

	querier := sparql.NewClient(cfg.SPARQLEndpoint, cfg.UserAgent, cfg.HTTPTimeout)
	botOpts := bot.Options{
		MaxConflictRetries: cfg.MaxConflictRetries,
		LocationBatchSize:  cfg.LocationBatchSize,
		Workers:            cfg.WorkerCount,
	}

	var failures []error
	for _, w := range targets {
		pages, err := mediawiki.NewClient(mediawiki.Options{
			Endpoint:  w.APIEndpoint(),
			User:      cfg.User,
			Password:  cfg.Password,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.HTTPTimeout,
			DryRun:    cfg.DryRun,
		})
		if err != nil {
			return err
		}

		switch {
		case cfg.User != "":
			if err := pages.Login(ctx); err != nil {
				return fmt.Errorf("%s: %w", w.Name, err)
			}
		case !cfg.DryRun:
			return errors.New("LLBOT_USER and LLBOT_PASSWORD are required unless --dry-run is set")
		}

		b := bot.New(w, pages, querier, snapshot, m, botOpts)
		if err := b.Prepare(ctx, records); err != nil {
			return fmt.Errorf("%s: %w", w.Name, err)
		}

		summary, err := b.Run(ctx, records)
		logSummary(w.Name, summary)
		if err != nil {
			return fmt.Errorf("%s: %w", w.Name, err)
		}
		failures = append(failures, summary.Errors...)
	}

	if len(failures) > 0 {
		for _, f := range failures {
			log.Error().Err(f).Msg("Record failed")
		}
		return fmt.Errorf("%d records failed", len(failures))
	}

	log.Info().Int("wikis", len(targets)).Msg("Batch complete")
	return nil
}

// initSnapshot opens the optional PostgreSQL language code snapshot.
func initSnapshot(ctx context.Context, cfg *config.Config) (bot.LanguageSnapshot, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")

	store := cache.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return store, pool.Close, nil
}

// serveMetrics exposes registry on addr until the returned stop is called.
func serveMetrics(addr string, registry *prometheus.Registry) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func logSummary(wikiName string, summary bot.Summary) {
	event := log.Info().Str("wiki", wikiName)
	for outcome, n := range summary.Outcomes {
		event = event.Int(outcome.String(), n)
	}
	event.Int("errors", len(summary.Errors)).Msg("Wiki done")
}
