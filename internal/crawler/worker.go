package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/scrollcrawl/internal/adapter"
	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/model"
	"github.com/nao1215/scrollcrawl/internal/render"
	"github.com/nao1215/scrollcrawl/internal/sink"
)

// Frontier is the queue a worker drives. *frontier.Frontier implements it.
type Frontier interface {
	Enqueue(ctx context.Context, urls []string) (int, error)
	Dequeue(ctx context.Context) (string, bool, error)
}

// Worker crawls one site. It alternates between discovering links on the
// site's listing page and draining its frontier, one render at a time,
// until discovery comes back empty MaxDiscoveryAttempts times in a row.
//
// A Worker is single-use: Run may be called once.
type Worker struct {
	site     config.Site
	adapter  adapter.Adapter
	frontier Frontier
	sink     sink.Sink
	provider render.Provider

	pagesCollection    string
	articlesCollection string
	runID              string
	retry              render.RetryPolicy
	filter             *LinkFilter
	sleep              render.SleepFunc
	logger             *slog.Logger

	mu      sync.Mutex
	started bool
	state   State
	stats   model.CrawlStats
	reason  error

	// Crawl state below is only touched by the goroutine running Run.
	listingURL    string
	listingLoaded bool
	offset        int
	emptyRounds   int
}

// Option configures a Worker.
type Option func(*Worker)

// WithCollections sets the page and article collections records are written to.
func WithCollections(pages, articles string) Option {
	return func(w *Worker) {
		w.pagesCollection = pages
		w.articlesCollection = articles
	}
}

// WithRunID stamps page records with the crawl run id.
func WithRunID(id string) Option {
	return func(w *Worker) {
		w.runID = id
	}
}

// WithRetryPolicy sets how often a URL is rendered before it is dropped.
func WithRetryPolicy(p render.RetryPolicy) Option {
	return func(w *Worker) {
		w.retry = p
	}
}

// WithLinkFilter filters discovered links before they are enqueued.
func WithLinkFilter(f *LinkFilter) Option {
	return func(w *Worker) {
		w.filter = f
	}
}

// WithSleep replaces every pause of the worker (politeness, discovery
// backoff, render retry backoff). Tests use it to observe delays.
func WithSleep(fn render.SleepFunc) Option {
	return func(w *Worker) {
		if fn != nil {
			w.sleep = fn
		}
	}
}

// WithLogger sets the logger. The site name is added to every record.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker creates a worker for site. The adapter, frontier, sink and
// provider belong to this worker alone.
func NewWorker(
	site config.Site,
	a adapter.Adapter,
	f Frontier,
	s sink.Sink,
	p render.Provider,
	opts ...Option,
) *Worker {
	w := &Worker{
		site:               site,
		adapter:            a,
		frontier:           f,
		sink:               s,
		provider:           p,
		pagesCollection:    config.DefaultPagesCollection,
		articlesCollection: config.DefaultArticlesCollection,
		retry:              render.DefaultRetryPolicy(),
		sleep:              render.Sleep,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("site", site.Name)

	return w
}

// Run crawls until the frontier is exhausted or ctx is cancelled.
//
// It returns nil after a normal end, ctx.Err() after cancellation and an
// error wrapping ErrResourceAcquisition when the rendering sessions cannot be
// opened. Sessions are closed on every path. The frontier and sink are left
// open for the caller.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrWorkerStarted
	}
	w.started = true
	w.mu.Unlock()

	listingURL, err := w.site.ListingURL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceAcquisition, err)
	}
	w.listingURL = listingURL

	listing, err := w.open(ctx, "listing")
	if err != nil {
		return fmt.Errorf("%w: listing session: %w", ErrResourceAcquisition, err)
	}
	defer w.closeRenderer(listing, "listing")

	article, err := w.open(ctx, "article")
	if err != nil {
		return fmt.Errorf("%w: article session: %w", ErrResourceAcquisition, err)
	}
	defer w.closeRenderer(article, "article")

	w.logger.Info("worker started", "listing", listingURL)
	w.transition(StateDiscovering)

	for {
		// Cancellation is honoured between steps, never mid-render.
		if err := ctx.Err(); err != nil {
			w.finish(err)
			return err
		}

		var stepErr error
		switch w.State() {
		case StateDiscovering:
			stepErr = w.discover(ctx, listing)
		case StateDraining:
			stepErr = w.drain(ctx, article)
		case StateExhausted:
			w.finish(ErrFrontierExhausted)
			return nil
		}

		if stepErr != nil {
			w.finish(stepErr)
			return stepErr
		}
	}
}

// State returns the current state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a copy of the counters.
func (w *Worker) Stats() model.CrawlStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Reason returns why Run stopped: ErrFrontierExhausted, a context error or nil
// while the worker is running.
func (w *Worker) Reason() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// discover runs one discovery round. The first round loads the listing;
// every round scrolls it further by the site's scroll increment. Links of
// every snapshot taken are offered to the frontier.
func (w *Worker) discover(ctx context.Context, listing *render.Renderer) error {
	w.count(func(s *model.CrawlStats) { s.DiscoveryRounds++ })

	docs := make([]*model.RenderedDocument, 0, 2)

	if !w.listingLoaded {
		doc, err := listing.Render(ctx, w.listingURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("listing render failed", "url", w.listingURL, "error", err)
		} else {
			w.listingLoaded = true
			docs = append(docs, doc)
		}
	}

	if w.listingLoaded {
		next := w.offset + w.site.ScrollIncrement
		doc, err := listing.Scroll(ctx, w.listingURL, next)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("listing scroll failed", "url", w.listingURL, "offset", next, "error", err)
		} else {
			w.offset = next
			docs = append(docs, doc)
		}
	}

	added := 0
	for _, doc := range docs {
		n, err := w.enqueueLinks(ctx, doc)
		if err != nil {
			return err
		}
		added += n
	}

	if added > 0 {
		w.emptyRounds = 0
		w.logger.Debug("discovery round found links", "added", added, "offset", w.offset)
		w.transition(StateDraining)
		return nil
	}

	w.emptyRounds++
	w.count(func(s *model.CrawlStats) { s.EmptyRounds++ })
	w.logger.Debug("discovery round found nothing new",
		"empty_rounds", w.emptyRounds,
		"max", w.site.MaxDiscoveryAttempts,
	)

	if w.emptyRounds >= w.site.MaxDiscoveryAttempts {
		w.transition(StateExhausted)
		return nil
	}
	return w.sleep(ctx, w.site.DiscoveryBackoff())
}

// drain fetches one queued URL. Articles are persisted; pages that turn out
// not to be articles are mined for links instead.
func (w *Worker) drain(ctx context.Context, article *render.Renderer) error {
	rawURL, ok, err := w.frontier.Dequeue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("dequeue failed, returning to discovery", "error", err)
		w.transition(StateDiscovering)
		return nil
	}
	if !ok {
		w.transition(StateDiscovering)
		return nil
	}

	doc, err := article.Render(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.count(func(s *model.CrawlStats) { s.RenderDrops++ })
		w.logger.Warn("dropping URL after render retries", "url", rawURL, "error", err)
		return w.sleep(ctx, w.politenessDelay())
	}
	w.count(func(s *model.CrawlStats) { s.PagesFetched++ })

	record, err := w.adapter.ExtractArticle(doc)
	if err != nil {
		w.count(func(s *model.CrawlStats) { s.ExtractionFailures++ })
		w.logger.Debug("page is not an article, salvaging links", "url", rawURL, "error", err)
		if _, err := w.enqueueLinks(ctx, doc); err != nil {
			return err
		}
	} else {
		w.persist(ctx, doc, record)
	}

	return w.sleep(ctx, w.politenessDelay())
}

// enqueueLinks offers the accepted links of doc to the frontier. Only a
// cancelled context is returned as an error.
func (w *Worker) enqueueLinks(ctx context.Context, doc *model.RenderedDocument) (int, error) {
	links, err := adapter.ExtractLinks(w.adapter, doc)
	if err != nil {
		w.logger.Debug("link extraction failed", "url", doc.URL, "error", err)
		return 0, nil
	}

	links = w.filter.Filter(links)
	if len(links) == 0 {
		return 0, nil
	}

	n, err := w.frontier.Enqueue(ctx, links)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		w.logger.Warn("enqueue failed", "url", doc.URL, "error", err)
	}

	w.count(func(s *model.CrawlStats) { s.LinksEnqueued += n })
	return n, nil
}

// persist upserts the page and article records. Write failures are logged
// and counted; the sink's idempotent upsert makes a later crawl repair them.
func (w *Worker) persist(ctx context.Context, doc *model.RenderedDocument, record *model.ArticleRecord) {
	page := model.NewPageRecord(w.site.Name, w.runID, doc)
	if err := w.sink.Upsert(ctx, w.pagesCollection, page.ID(), page); err != nil {
		w.writeFailed(err, doc.URL)
	}

	if err := w.sink.Upsert(ctx, w.articlesCollection, record.ID(), record); err != nil {
		w.writeFailed(err, doc.URL)
		return
	}
	w.count(func(s *model.CrawlStats) { s.ArticlesWritten++ })
	w.logger.Debug("article stored", "url", doc.URL, "id", record.ID())
}

func (w *Worker) writeFailed(err error, rawURL string) {
	w.count(func(s *model.CrawlStats) { s.WriteFailures++ })

	var we *sink.WriteError
	if errors.As(err, &we) {
		w.logger.Warn("write failed", "url", rawURL, "collection", we.Collection, "error", we.Err)
		return
	}
	w.logger.Warn("write failed", "url", rawURL, "error", err)
}

// politenessDelay is the site delay, raised to the robots.txt Crawl-delay.
func (w *Worker) politenessDelay() time.Duration {
	delay := w.site.PolitenessDelay()
	if robots := w.filter.CrawlDelay(); robots > delay {
		return robots
	}
	return delay
}

// open acquires a session and wraps it with the worker's retry policy.
func (w *Worker) open(ctx context.Context, role string) (*render.Renderer, error) {
	session, err := w.provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(session,
		render.WithRetryPolicy(w.retry),
		render.WithTimeout(w.site.RenderTimeout()),
		render.WithSleep(w.sleep),
		render.WithRendererLogger(w.logger.With("session", role)),
	), nil
}

func (w *Worker) closeRenderer(r *render.Renderer, role string) {
	if err := r.Close(); err != nil {
		w.logger.Warn("failed to close render session", "session", role, "error", err)
	}
}

func (w *Worker) transition(to State) {
	w.mu.Lock()
	from := w.state
	w.state = to
	w.mu.Unlock()

	if from != to {
		w.logger.Debug("state transition", "from", from.String(), "to", to.String())
	}
}

func (w *Worker) finish(reason error) {
	w.mu.Lock()
	w.reason = reason
	stats := w.stats
	w.mu.Unlock()

	w.logger.Info("worker stopped",
		"reason", reason.Error(),
		"pages", stats.PagesFetched,
		"articles", stats.ArticlesWritten,
		"dropped", stats.RenderDrops,
	)
}

func (w *Worker) count(fn func(*model.CrawlStats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}
