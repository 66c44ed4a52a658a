package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// validSite returns a site that passes validation once builtin defaults apply.
func validSite(name string) Site {
	return Site{
		Name:           name,
		BaseURL:        "https://www.ign.com/",
		ExtractionRule: "ign",
	}
}

// TestSitesFileResolve tests defaults merging and validation.
func TestSitesFileResolve(t *testing.T) {
	t.Parallel()

	t.Run("applies builtin defaults", func(t *testing.T) {
		t.Parallel()

		sf := &SitesFile{Sites: []Site{validSite("IGN")}}
		sites, err := sf.Resolve()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := sites[0]
		if s.PolitenessDelay() != DefaultPolitenessDelay {
			t.Errorf("expected politeness %v, got %v", DefaultPolitenessDelay, s.PolitenessDelay())
		}
		if s.MaxDiscoveryAttempts != DefaultMaxDiscoveryAttempts {
			t.Errorf("expected %d attempts, got %d", DefaultMaxDiscoveryAttempts, s.MaxDiscoveryAttempts)
		}
		if s.ScrollIncrement != DefaultScrollIncrement {
			t.Errorf("expected scroll increment %d, got %d", DefaultScrollIncrement, s.ScrollIncrement)
		}
		if s.RenderTimeout() != DefaultRenderTimeout {
			t.Errorf("expected render timeout %v, got %v", DefaultRenderTimeout, s.RenderTimeout())
		}
		if s.QueueOrder != QueueOrderFIFO {
			t.Errorf("expected fifo, got %q", s.QueueOrder)
		}
		if s.ObeysRobots() {
			t.Error("expected robots filtering off by default")
		}
	})

	t.Run("merges file defaults and lets sites override", func(t *testing.T) {
		t.Parallel()

		override := validSite("GameInformer")
		override.PolitenessDelayMs = intPtr(0)
		override.Headers = map[string]string{"X-Site": "gi"}
		override.RespectRobots = boolPtr(false)

		sf := &SitesFile{
			Defaults: Site{
				PolitenessDelayMs:    intPtr(2500),
				MaxDiscoveryAttempts: 7,
				QueueOrder:           "LIFO",
				RespectRobots:        boolPtr(true),
				IgnorePatterns:       []string{"*.pdf"},
				Headers:              map[string]string{"Accept-Language": "en-US"},
			},
			Sites: []Site{validSite("IGN"), override},
		}

		sites, err := sf.Resolve()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ign, gi := sites[0], sites[1]
		if ign.PolitenessDelay() != 2500*time.Millisecond {
			t.Errorf("expected inherited 2.5s, got %v", ign.PolitenessDelay())
		}
		if ign.MaxDiscoveryAttempts != 7 {
			t.Errorf("expected inherited 7 attempts, got %d", ign.MaxDiscoveryAttempts)
		}
		if ign.QueueOrder != QueueOrderLIFO {
			t.Errorf("expected lowercased lifo, got %q", ign.QueueOrder)
		}
		if !ign.ObeysRobots() {
			t.Error("expected inherited robots filtering")
		}
		if len(ign.IgnorePatterns) != 1 || ign.IgnorePatterns[0] != "*.pdf" {
			t.Errorf("expected inherited ignore patterns, got %v", ign.IgnorePatterns)
		}
		if gi.PolitenessDelay() != 0 {
			t.Errorf("expected explicit zero politeness to win, got %v", gi.PolitenessDelay())
		}
		if gi.ObeysRobots() {
			t.Error("expected explicit false to win")
		}
		if gi.Headers["Accept-Language"] != "en-US" || gi.Headers["X-Site"] != "gi" {
			t.Errorf("expected merged headers, got %v", gi.Headers)
		}
		if _, leaked := ign.Headers["X-Site"]; leaked {
			t.Error("site headers leaked into another site")
		}
	})

	t.Run("discovery backoff falls back to politeness delay", func(t *testing.T) {
		t.Parallel()

		s := validSite("IGN")
		s.PolitenessDelayMs = intPtr(300)
		if s.DiscoveryBackoff() != 300*time.Millisecond {
			t.Errorf("expected 300ms, got %v", s.DiscoveryBackoff())
		}
		s.DiscoveryBackoffMs = intPtr(50)
		if s.DiscoveryBackoff() != 50*time.Millisecond {
			t.Errorf("expected 50ms, got %v", s.DiscoveryBackoff())
		}
	})

	errorTests := []struct {
		name    string
		sites   []Site
		wantErr error
	}{
		{name: "no sites", sites: nil, wantErr: ErrNoSites},
		{
			name:    "missing name",
			sites:   []Site{{BaseURL: "https://a.example/", ExtractionRule: "ign"}},
			wantErr: ErrSiteNameRequired,
		},
		{
			name:    "relative base URL",
			sites:   []Site{{Name: "a", BaseURL: "/news", ExtractionRule: "ign"}},
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "non-http base URL",
			sites:   []Site{{Name: "a", BaseURL: "ftp://a.example/", ExtractionRule: "ign"}},
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "missing extraction rule",
			sites:   []Site{{Name: "a", BaseURL: "https://a.example/"}},
			wantErr: ErrExtractionRuleRequired,
		},
		{
			name: "negative politeness",
			sites: []Site{{
				Name: "a", BaseURL: "https://a.example/", ExtractionRule: "ign", PolitenessDelayMs: intPtr(-1),
			}},
			wantErr: ErrInvalidPolitenessDelay,
		},
		{
			name: "negative discovery attempts",
			sites: []Site{{
				Name: "a", BaseURL: "https://a.example/", ExtractionRule: "ign", MaxDiscoveryAttempts: -2,
			}},
			wantErr: ErrInvalidDiscoveryAttempts,
		},
		{
			name: "negative scroll increment",
			sites: []Site{{
				Name: "a", BaseURL: "https://a.example/", ExtractionRule: "ign", ScrollIncrement: -1,
			}},
			wantErr: ErrInvalidScrollIncrement,
		},
		{
			name: "unknown queue order",
			sites: []Site{{
				Name: "a", BaseURL: "https://a.example/", ExtractionRule: "ign", QueueOrder: "random",
			}},
			wantErr: ErrInvalidQueueOrder,
		},
		{
			name:    "duplicate names ignore case",
			sites:   []Site{validSite("IGN"), validSite("ign")},
			wantErr: ErrDuplicateSiteName,
		},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sf := &SitesFile{Sites: tt.sites}
			_, err := sf.Resolve()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSiteListingURL tests joining the base URL and subdirectory.
func TestSiteListingURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		subdir string
		want   string
	}{
		{name: "no subdirectory", base: "https://www.ign.com/", subdir: "", want: "https://www.ign.com/"},
		{name: "subdirectory", base: "https://www.gameinformer.com", subdir: "news", want: "https://www.gameinformer.com/news"},
		{name: "slashes are collapsed", base: "https://www.pcgamer.com/", subdir: "/news/", want: "https://www.pcgamer.com/news/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := Site{BaseURL: tt.base, Subdirectory: tt.subdir}
			got, err := s.ListingURL()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestLoadSitesFile tests reading the YAML sites file.
func TestLoadSitesFile(t *testing.T) {
	t.Parallel()

	t.Run("parses sites and defaults", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  politenessDelayMs: 1500
  maxDiscoveryAttempts: 3
sites:
  - name: IGN
    baseUrl: https://www.ign.com/
    acceptPrefixes: ["/articles/", "/news/"]
    extractionRule: ign
    scrollIncrement: 4
  - name: GameInformer
    baseUrl: https://www.gameinformer.com/
    subdirectory: news
    extractionRule: gameinformer
    cookie: "consent=1"
`
		path := filepath.Join(t.TempDir(), "sites.yaml")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		sf, err := LoadSitesFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sites, err := sf.Resolve()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(sites) != 2 {
			t.Fatalf("expected 2 sites, got %d", len(sites))
		}
		if got := sites[0].AcceptPrefixes; len(got) != 2 || got[0] != "/articles/" {
			t.Errorf("unexpected prefixes %v", got)
		}
		if sites[0].ScrollIncrement != 4 {
			t.Errorf("expected scroll increment 4, got %d", sites[0].ScrollIncrement)
		}
		if sites[1].PolitenessDelay() != 1500*time.Millisecond {
			t.Errorf("expected inherited 1.5s, got %v", sites[1].PolitenessDelay())
		}
		if sites[1].Cookie != "consent=1" {
			t.Errorf("expected cookie, got %q", sites[1].Cookie)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadSitesFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid YAML is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		if _, err := LoadSitesFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestFindSitesFile tests explicit path handling.
func TestFindSitesFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("sites: []\n"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if got := FindSitesFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()

		if got := FindSitesFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty result, got %q", got)
		}
	})
}

// TestLoadSites tests the find, load and resolve chain.
func TestLoadSites(t *testing.T) {
	t.Parallel()

	t.Run("explicit missing file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.SitesFile = filepath.Join(t.TempDir(), "missing.yaml")

		_, err := LoadSites(cfg)
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid site is reported", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sites.yaml")
		content := "sites:\n  - name: broken\n    baseUrl: not-a-url\n    extractionRule: ign\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		cfg := NewConfig()
		cfg.SitesFile = path

		_, err := LoadSites(cfg)
		if !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})
}
