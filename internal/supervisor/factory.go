package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/nao1215/scrollcrawl/internal/adapter"
	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/crawler"
	"github.com/nao1215/scrollcrawl/internal/frontier"
	"github.com/nao1215/scrollcrawl/internal/render"
	"github.com/nao1215/scrollcrawl/internal/sink"
)

// ConfigFactory builds worker resources from the process configuration.
//
// SQLite and Elasticsearch sinks are opened once per worker so every worker
// holds its own connection. The memory sink is shared by all workers, since
// it is only useful when the caller reads it back in the same process.
type ConfigFactory struct {
	cfg    *config.Config
	logger *slog.Logger

	mu     sync.Mutex
	memory *sink.Memory
}

// FactoryOption configures a ConfigFactory.
type FactoryOption func(*ConfigFactory)

// WithFactoryLogger sets the logger handed to every backend.
func WithFactoryLogger(logger *slog.Logger) FactoryOption {
	return func(f *ConfigFactory) {
		f.logger = logger
	}
}

// WithMemorySink makes the memory sink backend write to m.
func WithMemorySink(m *sink.Memory) FactoryOption {
	return func(f *ConfigFactory) {
		f.memory = m
	}
}

// NewFactory creates a factory for cfg. cfg must already be validated and
// have its credentials resolved.
func NewFactory(cfg *config.Config, opts ...FactoryOption) *ConfigFactory {
	f := &ConfigFactory{cfg: cfg}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Build implements Factory. Everything opened before a failing step is
// released again.
func (f *ConfigFactory) Build(ctx context.Context, site config.Site) (_ *Resources, err error) {
	a, err := adapter.New(site)
	if err != nil {
		return nil, err
	}

	built := &Resources{Adapter: a}
	defer func() {
		if err != nil {
			_ = built.Close(context.WithoutCancel(ctx)) //nolint:errcheck // reporting the build error
		}
	}()

	if built.Sink, err = f.OpenSink(ctx); err != nil {
		return nil, err
	}
	fr, err := f.openFrontier(ctx, site, built.Sink)
	if err != nil {
		return nil, err
	}
	built.Frontier = fr

	if built.Provider, err = f.newProvider(site); err != nil {
		return nil, err
	}
	if built.Filter, err = f.newFilter(ctx, site); err != nil {
		return nil, err
	}
	return built, nil
}

// OpenSink opens a handle on the configured sink.
func (f *ConfigFactory) OpenSink(ctx context.Context) (sink.Sink, error) {
	switch f.cfg.Sink {
	case config.SinkMemory:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.memory == nil {
			f.memory = sink.NewMemory()
		}
		return sink.NopCloser(f.memory), nil

	case config.SinkSQLite:
		s, err := sink.OpenSQLite(ctx, f.cfg.DBDir, sink.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite sink: %w", err)
		}
		return s, nil

	case config.SinkElasticsearch:
		aliases := maps.Clone(sink.DefaultIndexAliases)
		if f.cfg.PagesCollection != config.DefaultPagesCollection {
			// An explicitly named pages collection is used as the index name.
			delete(aliases, config.DefaultPagesCollection)
		}
		s, err := sink.OpenElasticsearch(ctx, sink.ElasticConfig{
			Addresses: f.cfg.ElasticAddresses,
			Username:  f.cfg.ElasticUsername,
			Password:  f.cfg.ElasticPassword,
			APIKey:    f.cfg.ElasticAPIKey,
			CloudID:   f.cfg.ElasticCloudID,
		},
			sink.WithIndexAliases(aliases),
			sink.WithElasticLogger(f.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open elasticsearch sink: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: sink %q", ErrUnknownBackend, f.cfg.Sink)
}

// openFrontier creates the site's queue. The pages collection of s is the
// dedup index, so pages archived by earlier runs are not fetched again.
func (f *ConfigFactory) openFrontier(ctx context.Context, site config.Site, s sink.Sink) (*frontier.Frontier, error) {
	var queue frontier.Queue
	switch f.cfg.Frontier {
	case config.FrontierMemory:
		q, err := frontier.NewMemoryQueue(site.QueueOrder)
		if err != nil {
			return nil, err
		}
		queue = q

	case config.FrontierRedis:
		client, err := frontier.DialRedis(ctx, f.cfg.RedisAddress, f.cfg.RedisPassword, f.cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		q, err := frontier.NewRedisQueue(ctx, client, site.Name, site.QueueOrder)
		if err != nil {
			_ = client.Close() //nolint:errcheck // reporting the queue error
			return nil, err
		}
		queue = q

	default:
		return nil, fmt.Errorf("%w: frontier %q", ErrUnknownBackend, f.cfg.Frontier)
	}

	return frontier.New(queue,
		frontier.WithDedupIndex(sink.NewPageIndex(s, f.cfg.PagesCollection)),
		frontier.WithLogger(f.logger.With("site", site.Name)),
	), nil
}

// newProvider creates the site's renderer backend.
func (f *ConfigFactory) newProvider(site config.Site) (render.Provider, error) {
	logger := f.logger.With("site", site.Name)

	switch f.cfg.Renderer {
	case config.RendererRod:
		return render.NewRodProvider(
			render.WithBrowserBin(f.cfg.BrowserBin),
			render.WithControlURL(f.cfg.BrowserControlURL),
			render.WithHeadless(f.cfg.Headless),
			render.WithBrowserUserAgent(f.cfg.UserAgent),
			render.WithExtraHeaders(site.Cookie, site.Headers),
			render.WithRodLogger(logger),
		), nil

	case config.RendererHTTP:
		client, err := render.NewHTTPClient(render.ClientConfig{
			ProxyURL: f.cfg.ProxyURL,
			Timeout:  site.RenderTimeout(),
			Cookie:   site.Cookie,
			Headers:  site.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		return render.NewHTTPProvider(client,
			render.WithUserAgent(f.cfg.UserAgent),
			render.WithMaxBodySize(f.cfg.MaxBodySize),
			render.WithRequestsPerSecond(f.cfg.RequestsPerSecond),
			render.WithPagination(site.PaginationParam, site.ScrollIncrement),
			render.WithHTTPLogger(logger),
		), nil
	}
	return nil, fmt.Errorf("%w: renderer %q", ErrUnknownBackend, f.cfg.Renderer)
}

// newFilter combines the site's ignore patterns with its robots.txt.
// An unreachable robots.txt is logged and treated as absent.
func (f *ConfigFactory) newFilter(ctx context.Context, site config.Site) (*crawler.LinkFilter, error) {
	var robots *crawler.RobotsPolicy
	if site.ObeysRobots() {
		client, err := render.NewHTTPClient(render.ClientConfig{
			ProxyURL: f.cfg.ProxyURL,
			Timeout:  site.RenderTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		robots, err = crawler.FetchRobots(ctx, client, site.BaseURL, f.cfg.UserAgent)
		if err != nil {
			f.logger.Warn("robots.txt unavailable, crawling without it", "site", site.Name, "error", err)
			robots = nil
		}
	}
	return crawler.NewLinkFilter(robots, site.IgnorePatterns), nil
}

// RetryPolicy returns the render retry policy of the configuration.
func RetryPolicy(cfg *config.Config) render.RetryPolicy {
	return render.RetryPolicy{
		MaxAttempts:  cfg.RenderAttempts,
		InitialDelay: cfg.RenderBackoff,
		MaxDelay:     cfg.RenderMaxBackoff,
		Multiplier:   2,
	}
}
