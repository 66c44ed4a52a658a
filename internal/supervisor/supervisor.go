package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scrollcrawl/internal/adapter"
	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/crawler"
	"github.com/nao1215/scrollcrawl/internal/model"
	"github.com/nao1215/scrollcrawl/internal/render"
	"github.com/nao1215/scrollcrawl/internal/sink"
)

// Frontier is the queue of one worker. The supervisor closes it when the
// worker returns.
type Frontier interface {
	crawler.Frontier
	Close(ctx context.Context) error
}

// Resources are everything one worker needs. Nothing in it is shared with
// another site's worker, except a sink handle whose Close is a no-op.
type Resources struct {
	Adapter  adapter.Adapter
	Frontier Frontier
	Sink     sink.Sink
	Provider render.Provider

	// Filter may be nil.
	Filter *crawler.LinkFilter
}

// Close releases the frontier and the sink.
func (r *Resources) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Frontier != nil {
		if err := r.Frontier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close frontier: %w", err))
		}
	}
	if r.Sink != nil {
		if err := r.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Factory builds the resources of one site.
type Factory interface {
	Build(ctx context.Context, site config.Site) (*Resources, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, site config.Site) (*Resources, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, site config.Site) (*Resources, error) {
	return f(ctx, site)
}

// Supervisor runs one worker per site concurrently and collects a CrawlReport.
type Supervisor struct {
	factory     Factory
	concurrency int
	workerOpts  []crawler.Option

	// runs receives the final report; nil skips persisting it.
	runs           sink.Sink
	runsCollection string

	logger *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithConcurrency limits how many workers run at once.
// 0 or a negative value runs every site at once.
func WithConcurrency(n int) Option {
	return func(s *Supervisor) {
		s.concurrency = n
	}
}

// WithWorkerOptions passes options to every worker.
func WithWorkerOptions(opts ...crawler.Option) Option {
	return func(s *Supervisor) {
		s.workerOpts = append(s.workerOpts, opts...)
	}
}

// WithRunSink upserts the final report into collection of runs.
func WithRunSink(runs sink.Sink, collection string) Option {
	return func(s *Supervisor) {
		s.runs = runs
		s.runsCollection = collection
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// New creates a Supervisor that builds worker resources with factory.
func New(factory Factory, opts ...Option) *Supervisor {
	s := &Supervisor{
		factory:        factory,
		runsCollection: config.DefaultRunsCollection,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run crawls every site and waits for all workers to stop.
//
// The returned report always holds one result per site in the given order.
// A site whose resources cannot be built or whose worker cannot start is
// marked failed; the others keep running. Cancelling ctx stops every
// worker at its next step and marks the unfinished sites cancelled.
func (s *Supervisor) Run(ctx context.Context, sites []config.Site) (*model.CrawlReport, error) {
	if len(sites) == 0 {
		return nil, ErrNoSites
	}

	report := model.NewCrawlReport()
	report.Sites = make([]model.SiteResult, len(sites))

	limit := s.concurrency
	if limit <= 0 || limit > len(sites) {
		limit = len(sites)
	}

	s.logger.Info("starting crawl",
		"run_id", report.RunID,
		"sites", len(sites),
		"concurrency", limit,
	)

	// Workers never return errors to the group, so the group context is
	// only cancelled by the caller.
	var g errgroup.Group
	g.SetLimit(limit)

	for i, site := range sites {
		g.Go(func() error {
			report.Sites[i] = s.runSite(ctx, report.RunID, site)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // results are recorded per site

	report.FinishedAt = time.Now().UTC()

	s.logger.Info("crawl finished",
		"run_id", report.RunID,
		"exhausted", report.CountByStatus(model.SiteStatusExhausted),
		"failed", report.CountByStatus(model.SiteStatusFailed),
		"cancelled", report.CountByStatus(model.SiteStatusCancelled),
		"elapsed", report.FinishedAt.Sub(report.StartedAt),
	)

	s.saveReport(ctx, report)
	return report, nil
}

// runSite builds, runs and releases one site's worker.
func (s *Supervisor) runSite(ctx context.Context, runID string, site config.Site) model.SiteResult {
	result := model.SiteResult{
		Site:      site.Name,
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With("site", site.Name)

	defer func() {
		result.FinishedAt = time.Now().UTC()
	}()

	// A site still waiting for a concurrency slot when the crawl is
	// stopped never starts.
	if err := ctx.Err(); err != nil {
		result.Status = model.SiteStatusCancelled
		result.Error = err.Error()
		return result
	}

	res, err := s.factory.Build(ctx, site)
	if err != nil {
		logger.Error("failed to prepare site", "error", err)
		result.Status = model.SiteStatusFailed
		result.Error = err.Error()
		if ctx.Err() != nil {
			result.Status = model.SiteStatusCancelled
		}
		return result
	}
	defer func() {
		// Redis and Elasticsearch clean-up must still run after a stop request.
		if err := res.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release site resources", "error", err)
		}
	}()

	opts := make([]crawler.Option, 0, len(s.workerOpts)+3)
	opts = append(opts, s.workerOpts...)
	opts = append(opts,
		crawler.WithRunID(runID),
		crawler.WithLinkFilter(res.Filter),
		crawler.WithLogger(s.logger),
	)

	w := crawler.NewWorker(site, res.Adapter, res.Frontier, res.Sink, res.Provider, opts...)
	err = w.Run(ctx)
	result.Stats = w.Stats()

	switch {
	case err == nil:
		result.Status = model.SiteStatusExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result.Status = model.SiteStatusCancelled
		result.Error = err.Error()
	default:
		logger.Error("worker failed", "error", err)
		result.Status = model.SiteStatusFailed
		result.Error = err.Error()
	}
	return result
}

func (s *Supervisor) saveReport(ctx context.Context, report *model.CrawlReport) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Upsert(context.WithoutCancel(ctx), s.runsCollection, report.ID(), report); err != nil {
		s.logger.Warn("failed to store crawl report", "run_id", report.RunID, "error", err)
	}
}
