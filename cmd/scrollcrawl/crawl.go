package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/crawler"
	"github.com/nao1215/scrollcrawl/internal/model"
	"github.com/nao1215/scrollcrawl/internal/report"
	"github.com/nao1215/scrollcrawl/internal/supervisor"
)

// errSitesFailed makes the process exit non-zero when a site could not be crawled.
var errSitesFailed = errors.New("one or more sites failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every site in the sites file",
		Long: `Crawl starts one worker per site listed in the sites file and waits until
every worker has run out of new article links or the process is interrupted.

Each worker scrolls the site's listing page, queues links inside the article
namespace, renders every queued article and stores both the page and the
extracted article in the sink. A site that cannot be started is reported as
failed without affecting the others.

Examples:
  # Crawl the sites in ./scrollcrawl.yaml with headless Chrome into SQLite
  scrollcrawl crawl

  # Use the static renderer and an in-memory sink for a dry run
  scrollcrawl crawl --renderer http --sink memory

  # Index into Elasticsearch with a shared Redis frontier
  ELASTIC_API_KEY=... scrollcrawl crawl --sink elasticsearch \
    --elastic-address https://es.example.com:9200 \
    --frontier redis --redis-address 127.0.0.1:6379

  # Write a Markdown report
  scrollcrawl crawl --format markdown -o reports/run.md`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("sites", "s", "",
		"Sites file path (default: ./"+config.DefaultSitesFile+" or the XDG config directory)")

	// Frontier flags
	cmd.Flags().String("frontier", config.FrontierMemory, "Frontier backend: memory or redis")
	cmd.Flags().String("redis-address", config.DefaultRedisAddress, "Redis host:port")
	cmd.Flags().Int("redis-db", 0, "Redis database number")
	cmd.Flags().String("redis-password-env", config.DefaultRedisPasswordEnv, "Environment variable holding the Redis password")

	// Renderer flags
	cmd.Flags().String("renderer", config.RendererRod, "Renderer: rod (headless Chrome) or http (static)")
	cmd.Flags().String("browser-bin", "", "Chrome/Chromium binary for the rod renderer")
	cmd.Flags().String("browser-control-url", "", "DevTools URL of a running browser")
	cmd.Flags().Bool("headless", true, "Run the launched browser without a window")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy for the http renderer (e.g. socks5://127.0.0.1:1080)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body read by the http renderer")
	cmd.Flags().Float64("rps", config.DefaultRequestsPerSecond, "Requests per second per worker for the http renderer (0 disables the cap)")
	cmd.Flags().Int("render-attempts", config.DefaultRenderAttempts, "Render attempts per URL before it is dropped")
	cmd.Flags().Duration("render-backoff", config.DefaultRenderBackoff, "Delay before the second render attempt")

	// Worker flags
	cmd.Flags().IntP("concurrency", "n", 0, "Number of sites crawled at once (0 crawls all sites at once)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.ReportText, "Report format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sites, err := config.LoadSites(cfg)
	if err != nil {
		return err
	}

	// Cancel the crawl on interrupt; workers stop at their next checkpoint
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawlReport, err := runCrawl(ctx, cfg, sites, logger)
	if err != nil {
		return err
	}

	if err := outputReport(cfg, crawlReport, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if crawlReport.HasFailures() {
		return errSitesFailed
	}
	return nil
}

// runCrawl crawls every site and returns the finished report.
func runCrawl(ctx context.Context, cfg *config.Config, sites []config.Site, logger *slog.Logger) (*model.CrawlReport, error) {
	logger.Info("starting crawl",
		"sites", len(sites),
		"sink", cfg.Sink,
		"frontier", cfg.Frontier,
		"renderer", cfg.Renderer,
	)

	factory := supervisor.NewFactory(cfg, supervisor.WithFactoryLogger(logger))

	runs, err := factory.OpenSink(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			logger.Warn("failed to close run sink", "error", err)
		}
	}()

	sup := supervisor.New(factory,
		supervisor.WithConcurrency(cfg.Concurrency),
		supervisor.WithRunSink(runs, cfg.RunsCollection),
		supervisor.WithLogger(logger),
		supervisor.WithWorkerOptions(
			crawler.WithCollections(cfg.PagesCollection, cfg.ArticlesCollection),
			crawler.WithRetryPolicy(supervisor.RetryPolicy(cfg)),
		),
	)

	return sup.Run(ctx, sites)
}

// outputReport writes the report to cfg.ReportFile, or to stdout when no file is set.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
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
	}

	writer, err := report.NewWriter(cfg.ReportFormat, output, getVersion())
	if err != nil {
		return err
	}
	_, err = writer.Write(crawlReport)
	return err
}
