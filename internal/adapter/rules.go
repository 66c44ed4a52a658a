package adapter

import (
	"github.com/nao1215/scrollcrawl/internal/config"
)

// Registered rule ids.
const (
	RuleIGN          = "ign"
	RuleGameInformer = "gameinformer"
	RulePCGamer      = "pcgamer"
	RuleReadability  = "readability"
)

func init() {
	Register(RuleIGN, selectorFactory(ignPrefixes, ignSelectors))
	Register(RuleGameInformer, selectorFactory(gameInformerPrefixes, gameInformerSelectors))
	Register(RulePCGamer, selectorFactory(pcGamerPrefixes, pcGamerSelectors))
	Register(RuleReadability, newReadabilityRule)
}

var (
	ignPrefixes = []string{
		"/articles/", "/news/", "/review/", "/exclusive/", "/preview/", "/games/", "/gaming-industry/",
	}
	ignSelectors = selectors{
		Headline:       "h1",
		Date:           "time",
		DateAttr:       "datetime",
		Authors:        "a.author",
		Body:           "article",
		Topics:         `a[data-cy="object-breadcrumb"], a[href^="/topic/"]`,
		RequireAuthors: true,
	}
)

var (
	gameInformerPrefixes = []string{
		"/news/", "/preview/", "/review/", "/feature/", "/blog/", "/video/",
	}
	gameInformerSelectors = selectors{
		Headline: "h1.page-title, h1",
		Date:     "time, .field--name-created",
		DateAttr: "datetime",
		Authors:  ".field--name-uid a, .author-details a",
		Body:     ".field--name-body, article",
		Topics:   ".field--name-field-tags a, .tags a",
	}
)

var (
	pcGamerPrefixes = []string{
		"/news/", "/reviews/", "/features/", "/hardware/", "/games/", "/guides/",
	}
	pcGamerSelectors = selectors{
		Headline: "h1",
		Date:     "time[datetime], time",
		DateAttr: "datetime",
		Authors:  `a.author-byline__link, a[rel="author"]`,
		Body:     "#article-body, article",
		Topics:   ".tag a, a.tag",
	}
)

// selectorFactory returns a Factory for a goquery selector rule.
func selectorFactory(prefixes []string, sel selectors) Factory {
	return func(site config.Site) (Adapter, error) {
		ns, err := newNamespace(site, prefixes)
		if err != nil {
			return nil, err
		}
		return &selectorRule{namespace: ns, sel: sel}, nil
	}
}
