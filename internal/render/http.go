package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// maxRedirects caps redirect chains. Article URLs on news sites commonly
// redirect once or twice (tracking, trailing slash, region).
const maxRedirects = 10

// ClientConfig configures the HTTP client used by the static renderer.
type ClientConfig struct {
	// ProxyURL routes connections through a SOCKS5 proxy, e.g. "socks5://127.0.0.1:1080".
	// Empty means direct connections.
	ProxyURL string

	// Timeout bounds each request. The renderer's per-attempt deadline
	// usually fires first.
	Timeout time.Duration

	// Cookie is added to the Cookie header of every request.
	Cookie string

	// Headers are set on every request.
	Headers map[string]string
}

// NewHTTPClient creates an HTTP client with a cookie jar, a redirect cap
// and, when configured, a SOCKS5 dialer. Cookie and headers are injected by
// the transport so redirects carry them too.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if cfg.ProxyURL != "" {
		dialer, err := socksDialer(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if cfg.Cookie != "" || len(cfg.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  cfg.Cookie,
			headers: cfg.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// socksDialer builds a SOCKS5 dialer from a socks5:// or socks5h:// URL.
// Credentials in the URL are passed to the proxy.
func socksDialer(rawURL string) (proxy.Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, ErrInvalidProxyURL
	}
	if _, port, err := net.SplitHostPort(u.Host); err != nil || port == "" {
		return nil, ErrInvalidProxyURL
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return dialer, nil
}

// dialContext adapts a proxy.Dialer to http.Transport.DialContext. Dialers
// without context support are run in a goroutine so cancellation still
// returns promptly; the abandoned dial finishes in the background.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// HTTPProvider renders pages by fetching their static HTML.
// Sessions opened from one provider share its rate limiter.
type HTTPProvider struct {
	client          *http.Client
	userAgent       string
	maxBodySize     int64
	limiter         *rate.Limiter
	paginationParam string
	screensPerPage  int
	logger          *slog.Logger
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(p *HTTPProvider) {
		p.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) HTTPOption {
	return func(p *HTTPProvider) {
		p.maxBodySize = size
	}
}

// WithRequestsPerSecond caps the request rate. Zero or less removes the cap.
func WithRequestsPerSecond(rps float64) HTTPOption {
	return func(p *HTTPProvider) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithPagination makes Scroll request page offset/screensPerPage+1 through
// the named query parameter instead of refetching the listing.
func WithPagination(param string, screensPerPage int) HTTPOption {
	return func(p *HTTPProvider) {
		p.paginationParam = param
		if screensPerPage > 0 {
			p.screensPerPage = screensPerPage
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// NewHTTPProvider creates a static renderer on top of client.
// A nil client gets a direct NewHTTPClient.
func NewHTTPProvider(client *http.Client, opts ...HTTPOption) *HTTPProvider {
	if client == nil {
		client, _ = NewHTTPClient(ClientConfig{Timeout: 30 * time.Second}) //nolint:errcheck // no proxy, cannot fail
	}

	p := &HTTPProvider{
		client:         client,
		userAgent:      "scrollcrawl/1.0",
		maxBodySize:    10 * 1024 * 1024, // 10MB
		screensPerPage: 1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Open implements Provider. Opening a static session never fails.
func (p *HTTPProvider) Open(_ context.Context) (Session, error) {
	return &httpSession{provider: p}, nil
}

// httpSession remembers the last loaded URL so Scroll can page through it.
type httpSession struct {
	provider *HTTPProvider

	mu      sync.Mutex
	current string
	closed  bool
}

// Load implements Session.
func (s *httpSession) Load(ctx context.Context, rawURL string) (*model.RenderedDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	doc, err := s.provider.fetch(ctx, rawURL, rawURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = rawURL
	s.mu.Unlock()
	return doc, nil
}

// Scroll implements Session.
func (s *httpSession) Scroll(ctx context.Context, offset int) (*model.RenderedDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == "" {
		return nil, ErrNothingLoaded
	}

	target, err := s.provider.pageURL(current, offset)
	if err != nil {
		return nil, err
	}
	// The snapshot stays keyed by the listing URL; links are resolved
	// against it either way.
	return s.provider.fetch(ctx, current, target)
}

// Close implements Session.
func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *httpSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// pageURL maps a scroll offset to the URL of the matching listing page.
func (p *HTTPProvider) pageURL(listing string, offset int) (string, error) {
	if p.paginationParam == "" {
		return listing, nil
	}

	u, err := url.Parse(listing)
	if err != nil {
		return "", fmt.Errorf("failed to parse listing URL: %w", err)
	}

	page := offset/p.screensPerPage + 1
	q := u.Query()
	q.Set(p.paginationParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch GETs target and returns its body as a document labelled docURL.
func (p *HTTPProvider) fetch(ctx context.Context, docURL, target string) (*model.RenderedDocument, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &RenderError{Kind: KindNavigation, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return nil, &RenderError{
			Kind: KindNavigation,
			URL:  target,
			Err:  fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		p.logger.Debug("non-HTML response", "url", target, "content_type", ct)
	}

	return model.NewRenderedDocument(docURL, string(body)), nil
}
