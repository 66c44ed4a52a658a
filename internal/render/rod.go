package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/scrollcrawl/internal/model"
)

const (
	// defaultPollInterval is the pause between readiness checks.
	defaultPollInterval = 250 * time.Millisecond

	// defaultStablePolls is how many consecutive checks must report the same
	// scroll height before lazily loaded content is considered settled.
	defaultStablePolls = 2
)

// RodProvider renders pages in headless Chrome.
//
// The browser is launched (or connected to, with a control URL) on the first
// Open and closed when the last session of the provider is closed. Each
// session is a separate tab.
type RodProvider struct {
	bin          string
	controlURL   string
	headless     bool
	userAgent    string
	headers      map[string]string
	cookie       string
	pollInterval time.Duration
	stablePolls  int
	logger       *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	sessions int
}

// RodOption configures a RodProvider.
type RodOption func(*RodProvider)

// WithBrowserBin sets the Chrome/Chromium binary. Empty lets rod find or
// download one.
func WithBrowserBin(bin string) RodOption {
	return func(p *RodProvider) {
		p.bin = bin
	}
}

// WithControlURL connects to a running browser's DevTools endpoint instead
// of launching a new one.
func WithControlURL(u string) RodOption {
	return func(p *RodProvider) {
		p.controlURL = u
	}
}

// WithHeadless controls whether a launched browser is headless.
func WithHeadless(headless bool) RodOption {
	return func(p *RodProvider) {
		p.headless = headless
	}
}

// WithBrowserUserAgent overrides the browser's User-Agent.
func WithBrowserUserAgent(ua string) RodOption {
	return func(p *RodProvider) {
		p.userAgent = ua
	}
}

// WithExtraHeaders sets headers and a cookie sent with every request of every tab.
func WithExtraHeaders(cookie string, headers map[string]string) RodOption {
	return func(p *RodProvider) {
		p.cookie = cookie
		p.headers = headers
	}
}

// WithReadinessPolling sets the readiness poll interval and how many equal
// scroll heights in a row count as settled.
func WithReadinessPolling(interval time.Duration, stablePolls int) RodOption {
	return func(p *RodProvider) {
		if interval > 0 {
			p.pollInterval = interval
		}
		if stablePolls > 0 {
			p.stablePolls = stablePolls
		}
	}
}

// WithRodLogger sets the logger.
func WithRodLogger(logger *slog.Logger) RodOption {
	return func(p *RodProvider) {
		p.logger = logger
	}
}

// NewRodProvider creates a headless Chrome provider. Nothing is started
// until Open is called.
func NewRodProvider(opts ...RodOption) *RodProvider {
	p := &RodProvider{
		headless:     true,
		pollInterval: defaultPollInterval,
		stablePolls:  defaultStablePolls,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Open implements Provider. It starts or connects to the browser if needed
// and opens a blank tab configured with the provider's headers.
func (p *RodProvider) Open(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser == nil {
		if err := p.connect(ctx); err != nil {
			return nil, err
		}
	}

	page, err := p.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		p.releaseLocked()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	if err := p.configure(page); err != nil {
		_ = page.Close() //nolint:errcheck // tab is discarded
		p.releaseLocked()
		return nil, err
	}

	p.sessions++
	return &rodSession{provider: p, page: page}, nil
}

// connect launches or attaches to the browser. Caller holds p.mu.
func (p *RodProvider) connect(ctx context.Context) error {
	controlURL := p.controlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(p.headless)
		if p.bin != "" {
			l = l.Bin(p.bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		p.launcher = l
		controlURL = u
	}

	// The browser outlives Open's context; tabs get per-call contexts.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if p.launcher != nil {
			p.launcher.Kill()
			p.launcher = nil
		}
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	p.browser = browser
	p.logger.Debug("browser connected", "launched", p.launcher != nil)
	return nil
}

// configure applies user agent and extra headers to a new tab.
func (p *RodProvider) configure(page *rod.Page) error {
	if p.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: p.userAgent}); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if dict := extraHeaders(p.cookie, p.headers); len(dict) > 0 {
		if _, err := page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("failed to set extra headers: %w", err)
		}
	}
	return nil
}

// extraHeaders flattens headers into rod's name, value, name, value list.
// Names are sorted so the list is deterministic.
func extraHeaders(cookie string, headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	dict := make([]string, 0, 2*len(names)+2)
	for _, name := range names {
		dict = append(dict, name, headers[name])
	}
	if cookie != "" {
		dict = append(dict, "Cookie", cookie)
	}
	return dict
}

// release is called when a session closes.
func (p *RodProvider) release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions > 0 {
		p.sessions--
	}
	return p.releaseLocked()
}

// releaseLocked shuts the browser down once no session uses it.
func (p *RodProvider) releaseLocked() error {
	if p.sessions > 0 || p.browser == nil {
		return nil
	}

	var err error
	if p.launcher != nil {
		// Closing the connection of a launched browser also ends the process.
		err = p.browser.Close()
		p.launcher.Kill()
		p.launcher.Cleanup()
		p.launcher = nil
	}
	// An attached browser belongs to someone else and stays running.
	p.browser = nil
	return err
}

// rodSession is one browser tab.
type rodSession struct {
	provider *RodProvider
	page     *rod.Page

	mu     sync.Mutex
	closed bool
	loaded string
}

// Load implements Session.
func (s *rodSession) Load(ctx context.Context, rawURL string) (*model.RenderedDocument, error) {
	page, err := s.tab(ctx)
	if err != nil {
		return nil, err
	}

	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := s.waitReady(ctx, page); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loaded = rawURL
	s.mu.Unlock()
	return snapshot(page, rawURL)
}

// Scroll implements Session.
func (s *rodSession) Scroll(ctx context.Context, offset int) (*model.RenderedDocument, error) {
	page, err := s.tab(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded == "" {
		return nil, ErrNothingLoaded
	}

	if _, err := page.Eval(`(screens) => window.scrollTo(0, screens * window.innerHeight)`, offset); err != nil {
		return nil, fmt.Errorf("failed to scroll: %w", err)
	}
	if err := s.waitReady(ctx, page); err != nil {
		return nil, err
	}
	return snapshot(page, loaded)
}

// Close implements Session.
func (s *rodSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	pageErr := s.page.Close()
	return errors.Join(pageErr, s.provider.release())
}

// tab returns the page bound to ctx.
func (s *rodSession) tab(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.page.Context(ctx), nil
}

// waitReady polls until the document is complete and its scroll height has
// not changed for stablePolls checks in a row. The deadline comes from ctx.
func (s *rodSession) waitReady(ctx context.Context, page *rod.Page) error {
	interval := s.provider.pollInterval
	lastHeight := -1
	stable := 0

	for {
		res, err := page.Eval(`() => [document.readyState, document.body ? document.body.scrollHeight : 0]`)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}

		state := res.Value.Arr()
		if len(state) == 2 && state[0].Str() == "complete" {
			height := state[1].Int()
			if height == lastHeight {
				stable++
			} else {
				stable = 0
				lastHeight = height
			}
			if stable >= s.provider.stablePolls {
				return nil
			}
		}

		if err := Sleep(ctx, interval); err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
	}
}

// snapshot serializes the current DOM.
func snapshot(page *rod.Page, rawURL string) (*model.RenderedDocument, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return model.NewRenderedDocument(rawURL, html), nil
}
