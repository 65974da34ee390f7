package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bsddscan/bsddscan/internal/bsdd"
	"github.com/bsddscan/bsddscan/internal/config"
	"github.com/bsddscan/bsddscan/internal/crawler"
	"github.com/bsddscan/bsddscan/internal/database"
	"github.com/bsddscan/bsddscan/internal/log"
	"github.com/bsddscan/bsddscan/internal/model"
	"github.com/bsddscan/bsddscan/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [class-uri-or-code]",
		Short: "Crawl a class taxonomy starting from one class",
		Long: `Crawl discovers every class reachable from the start class by following
child-class references, wave by wave, and collects one record per class
(name, code, child classes, relations, properties).

The start class may be a full class URI, an absolute identifier path, or a
bare IFC 4.3 class code such as IfcRoot.

Examples:
  # Crawl the whole IFC class tree
  bsddscan crawl IfcRoot

  # Crawl a subtree with more workers and no politeness delay
  bsddscan crawl IfcWall --workers 16 --delay 0

  # Full JSON document to a file
  bsddscan crawl IfcRoot --json -o ifc-classes.json

  # Scrape identifier pages instead of the REST API
  bsddscan crawl IfcRoot --scrape`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Worker pool size (maximum concurrent fetches)")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Politeness delay applied per worker around each fetch")
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Deadline for a single class fetch")
	cmd.Flags().Int("max-classes", 0,
		"Stop after collecting this many classes (0 = unbounded)")
	cmd.Flags().Int("max-waves", 0,
		"Stop after this many waves (0 = unbounded)")
	cmd.Flags().Int("max-attempts", 0,
		"Drop a failing class after this many attempts (0 = retry on rediscovery)")

	// Source flags
	cmd.Flags().Bool("scrape", false,
		"Scrape identifier pages instead of using the REST API")
	cmd.Flags().String("api-base", bsdd.DefaultAPIBase,
		"Base URL of the bSDD REST API")
	cmd.Flags().String("user-agent", bsdd.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bsddscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the full class document as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file path (creates directories if needed)")

	// Persistence and observability
	cmd.Flags().Bool("no-db", false,
		"Do not persist results to the local SQLite database")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics at this address during the crawl (e.g. :9090)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Cancel between waves on Ctrl-C; in-flight fetches run to completion.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, finishing current wave...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	if cfg.Workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = cmd.Flags().GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxClasses, err = cmd.Flags().GetInt("max-classes"); err != nil {
		return nil, err
	}
	if cfg.MaxWaves, err = cmd.Flags().GetInt("max-waves"); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = cmd.Flags().GetInt("max-attempts"); err != nil {
		return nil, err
	}
	if cfg.Scrape, err = cmd.Flags().GetBool("scrape"); err != nil {
		return nil, err
	}
	if cfg.APIBase, err = cmd.Flags().GetString("api-base"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Load per-dictionary overrides. An explicit path that does not exist
	// is an error; a missing default file is not.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.Dictionaries, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.StartClass = args[0]
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startURI, err := bsdd.StartURI(cfg.StartClass)
	if err != nil {
		return fmt.Errorf("invalid start class %q: %w", cfg.StartClass, err)
	}
	cfg.ApplyDictionaryOverrides(startURI)

	// Optional metrics listener for long crawls.
	stopMetrics := startMetricsServer(cfg.MetricsAddr, logger)
	defer stopMetrics()

	// Open the database unless persistence is disabled.
	var db *database.ClassDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	fetcher := newFetcher(cfg, logger)

	c := crawler.New(fetcher,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithDelay(cfg.Delay),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithMaxClasses(cfg.MaxClasses),
		crawler.WithMaxWaves(cfg.MaxWaves),
		crawler.WithMaxAttempts(cfg.MaxAttempts),
		crawler.WithLogger(log.WithComponent(logger, "crawler")),
	)

	fmt.Printf("Crawling %s...\n", startURI)
	startTime := time.Now()

	crawlReport, runErr := c.Run(ctx, startURI)

	// A cancelled crawl still produced a usable partial report; anything
	// else fatal (start failure, invariant violation) has nothing to show.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl completed in %s: %d classes, %d unreachable\n\n",
		elapsed.Round(time.Millisecond),
		crawlReport.ClassCount(),
		crawlReport.FailedCount(),
	)

	if err := outputReport(cfg, crawlReport); err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	if db != nil {
		runID, err := db.SaveReport(ctx, crawlReport)
		if err != nil {
			logger.Error("failed to save crawl run", "error", err)
		} else {
			logger.Info("crawl run saved", "runID", runID)
		}
	}

	return runErr
}

// newFetcher builds the configured fetch collaborator: the REST API client
// by default, the identifier-page scraper with --scrape.
func newFetcher(cfg *config.Config, logger *slog.Logger) crawler.Fetcher {
	if cfg.Scrape {
		return bsdd.NewHTMLFetcher(
			bsdd.WithHTMLUserAgent(cfg.UserAgent),
			bsdd.WithHTMLLogger(log.WithComponent(logger, "scraper")),
		)
	}
	return bsdd.NewClient(
		bsdd.WithAPIBase(cfg.APIBase),
		bsdd.WithUserAgent(cfg.UserAgent),
		bsdd.WithClientLogger(log.WithComponent(logger, "bsdd")),
	)
}

// startMetricsServer serves /metrics at addr until the returned stop
// function is called. A no-op when addr is empty.
func startMetricsServer(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort cleanup.
	}
}

// outputReport writes the crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport) error {
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(crawlReport)
	return err
}
