package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfmap/shelfmap/internal/checkpoint"
	"github.com/shelfmap/shelfmap/internal/config"
	"github.com/shelfmap/shelfmap/internal/crawler"
	"github.com/shelfmap/shelfmap/internal/explorer"
	"github.com/shelfmap/shelfmap/internal/frontier"
	"github.com/shelfmap/shelfmap/internal/log"
	"github.com/shelfmap/shelfmap/internal/metrics"
	"github.com/shelfmap/shelfmap/internal/model"
	"github.com/shelfmap/shelfmap/internal/report"
	"github.com/shelfmap/shelfmap/internal/store"
	"github.com/shelfmap/shelfmap/internal/urlnorm"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover retailer category hierarchies",
		Long: `Discover crawls the configured retailers' category pages and builds
their category hierarchy in a local SQLite database.

Retailers and their seed URLs come from the .shelfmap configuration
file. Each seed becomes a depth-0 root; discovered subcategory links
become its children, down to the configured depth ceiling.

Progress is checkpointed periodically. After a crash or Ctrl-C, run
again with --resume to continue where the previous run stopped.

Examples:
  # Discover all configured retailers
  shelfmap discover

  # Resume an interrupted run
  shelfmap discover --resume

  # Give permanently failed categories another chance
  shelfmap discover --reset-failed

  # Output JSON report to a file
  shelfmap discover --json -o report.json

  # Use a custom configuration file
  shelfmap discover -c myretailers.yaml

Configuration file (.shelfmap) example:
  retailers:
    acme:
      seeds:
        - https://www.acme.example/c/women
        - https://www.acme.example/c/men
      categoryPatterns:
        - /c/*
    megamart:
      seeds:
        - https://megamart.example/browse
      cookie: "region=us"
      maxDepth: 4`,
		Args: cobra.NoArgs,
		RunE: runDiscoverCmd,
	}

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request timeout for page exploration")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum category depth to explore")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of crawl workers")
	cmd.Flags().Int("retailer-limit", config.DefaultRetailerLimit,
		"Maximum in-flight requests per retailer")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with HTTP requests")

	// Checkpoint and resume flags
	cmd.Flags().Bool("resume", false,
		"Resume from the last checkpoint instead of starting from seeds")
	cmd.Flags().Bool("reset-failed", false,
		"Re-enqueue permanently failed categories before the run starts")
	cmd.Flags().String("checkpoint", "",
		"Checkpoint file path (default: checkpoint.json in XDG data directory)")
	cmd.Flags().Int("checkpoint-every", config.DefaultCheckpointEveryN,
		"Write a checkpoint after this many completed tasks")
	cmd.Flags().Duration("checkpoint-interval", config.DefaultCheckpointInterval,
		"Write a checkpoint after this much elapsed time")

	// Exit policy
	cmd.Flags().Float64("failure-rate", config.DefaultFailureRateThreshold,
		"Seed failure rate above which the run exits non-zero (0 disables)")

	// Storage
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	// Observability
	cmd.Flags().String("metrics-addr", "",
		"Listen address for the Prometheus /metrics endpoint (empty disables)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .shelfmap in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runDiscoverCmd executes the discover command.
func runDiscoverCmd(cmd *cobra.Command, _ []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential redaction
	cfg.Verbose = getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runDiscover(ctx, cfg, logger)
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

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.RetailerLimit, err = cmd.Flags().GetInt("retailer-limit")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.Resume, err = cmd.Flags().GetBool("resume")
	if err != nil {
		return nil, err
	}

	cfg.ResetFailed, err = cmd.Flags().GetBool("reset-failed")
	if err != nil {
		return nil, err
	}

	checkpointPath, err := cmd.Flags().GetString("checkpoint")
	if err != nil {
		return nil, err
	}
	if checkpointPath != "" {
		cfg.CheckpointPath = checkpointPath
	}

	cfg.CheckpointEveryN, err = cmd.Flags().GetInt("checkpoint-every")
	if err != nil {
		return nil, err
	}

	cfg.CheckpointInterval, err = cmd.Flags().GetDuration("checkpoint-interval")
	if err != nil {
		return nil, err
	}

	cfg.FailureRateThreshold, err = cmd.Flags().GetFloat64("failure-rate")
	if err != nil {
		return nil, err
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.MetricsAddr, err = cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load retailer configurations from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Retailers, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.Retailers = &config.File{
			Retailers: make(map[string]config.RetailerConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// runDiscover executes the crawl.
func runDiscover(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	retailerIDs := sortedRetailerIDs(cfg)

	logger.Info("starting discovery",
		"retailers", retailerIDs,
		"concurrency", cfg.Concurrency,
		"maxDepth", cfg.MaxDepth,
		"resume", cfg.Resume,
	)

	// Open the hierarchy database
	st, err := store.Open(cfg.DBDir, store.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()
	logger.Info("database opened", "dir", cfg.DBDir)

	// Give permanently failed categories another chance if requested
	if cfg.ResetFailed {
		n, err := st.ResetFailed(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to reset failed categories: %w", err)
		}
		logger.Info("reset failed categories", "count", n)
	}

	// Frontier with per-retailer in-flight ceilings
	ftOpts := make([]frontier.Option, 0, len(retailerIDs))
	for _, id := range retailerIDs {
		rc := cfg.Retailers.GetRetailerConfig(id)
		limit := cfg.RetailerLimit
		if rc.Limit > 0 {
			limit = rc.Limit
		}
		ftOpts = append(ftOpts, frontier.WithRetailerLimit(id, limit))
	}
	ft := frontier.New(ftOpts...)

	// One HTTP client shared by all explorers
	httpClient := &http.Client{Timeout: cfg.Timeout}
	defaultExplorer := explorer.NewHTTPExplorer(httpClient,
		explorer.WithUserAgent(cfg.UserAgent),
		explorer.WithMaxBodySize(cfg.MaxBodySize),
	)

	opts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithResume(cfg.Resume),
		crawler.WithFailureRateThreshold(cfg.FailureRateThreshold),
		crawler.WithLogger(logger),
	}
	opts = append(opts, retailerOptions(cfg, retailerIDs, httpClient)...)

	// Checkpointing
	cm := checkpoint.NewManager(
		checkpoint.NewFileStore(cfg.CheckpointPath),
		checkpoint.WithEveryN(cfg.CheckpointEveryN),
		checkpoint.WithInterval(cfg.CheckpointInterval),
		checkpoint.WithLogger(logger),
	)
	opts = append(opts, crawler.WithCheckpoints(cm))

	// Optional Prometheus endpoint
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		opts = append(opts, crawler.WithMetrics(m))
		serveMetrics(ctx, cfg.MetricsAddr, m, logger)
		logger.Info("metrics endpoint started", "addr", cfg.MetricsAddr)
	}

	c := crawler.New(st, ft, defaultExplorer, opts...)

	fmt.Printf("Discovering categories for %d retailer(s)...\n", len(retailerIDs))
	startTime := time.Now()

	stats, runErr := c.Run(ctx, collectSeeds(cfg, retailerIDs))
	if stats == nil {
		return runErr
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Discovery finished in %s\n\n", elapsed.Round(time.Millisecond))

	if err := outputReport(cfg, stats); err != nil {
		logger.Error("report failed", "error", err)
		if runErr == nil {
			return err
		}
	}

	if errors.Is(runErr, crawler.ErrSeedFailureRate) {
		fmt.Fprintf(os.Stderr, "Warning: %.0f%% of seeds failed permanently; results are likely incomplete.\n",
			stats.SeedFailureRate()*100)
	}
	return runErr
}

// sortedRetailerIDs returns the configured retailer IDs in stable order.
func sortedRetailerIDs(cfg *config.Config) []string {
	ids := make([]string, 0, len(cfg.Retailers.Retailers))
	for id := range cfg.Retailers.Retailers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// retailerOptions builds per-retailer crawler options: depth ceiling
// overrides and explorers carrying site-specific cookies, headers, and
// category URL patterns.
func retailerOptions(cfg *config.Config, retailerIDs []string, client *http.Client) []crawler.Option {
	opts := make([]crawler.Option, 0, len(retailerIDs))
	for _, id := range retailerIDs {
		rc := cfg.Retailers.GetRetailerConfig(id)

		if rc.MaxDepth > 0 {
			opts = append(opts, crawler.WithRetailerMaxDepth(id, rc.MaxDepth))
		}

		if rc.Cookie == "" && len(rc.Headers) == 0 && len(rc.CategoryPatterns) == 0 {
			continue
		}

		httpOpts := []explorer.HTTPOption{
			explorer.WithUserAgent(cfg.UserAgent),
			explorer.WithMaxBodySize(cfg.MaxBodySize),
		}
		if len(rc.CategoryPatterns) > 0 {
			httpOpts = append(httpOpts, explorer.WithCategoryPatterns(rc.CategoryPatterns))
		}

		headers := make(map[string]string, len(rc.Headers)+1)
		for k, v := range rc.Headers {
			headers[k] = v
		}
		if rc.Cookie != "" {
			headers["Cookie"] = rc.Cookie
		}
		if len(headers) > 0 {
			httpOpts = append(httpOpts, explorer.WithHeaders(headers))
		}

		opts = append(opts, crawler.WithRetailerExplorer(id,
			explorer.NewHTTPExplorer(client, httpOpts...)))
	}
	return opts
}

// collectSeeds turns configured seed URLs into crawl seeds.
func collectSeeds(cfg *config.Config, retailerIDs []string) []crawler.Seed {
	seeds := make([]crawler.Seed, 0)
	for _, id := range retailerIDs {
		rc := cfg.Retailers.GetRetailerConfig(id)
		for _, seedURL := range rc.Seeds {
			seeds = append(seeds, crawler.Seed{
				RetailerID: id,
				Name:       seedName(seedURL, id),
				URL:        seedURL,
			})
		}
	}
	return seeds
}

// seedName derives a display name for a root node from its URL path,
// falling back to the retailer ID for bare host URLs.
func seedName(rawURL, retailerID string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return retailerID
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)

	if name := urlnorm.NormalizeName(last); name != "" {
		return name
	}
	return retailerID
}

// serveMetrics exposes the Prometheus endpoint until the context ends.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort cleanup
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
}

// outputReport outputs the run report in the requested format.
func outputReport(cfg *config.Config, stats *model.RunStats) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with owner-only permissions;
		// reports can reveal which retailers an operator crawls.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output
	if cfg.JSONReport {
		_, err := report.NewJSONWriter(output, report.WithPrettyPrint()).Write(stats)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		_, err := report.NewMarkdownWriter(output).Write(stats)
		return err
	}

	// Human-readable report (default)
	_, err := report.NewSimpleWriter(output).Write(stats)
	return err
}
