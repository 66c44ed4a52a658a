package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
)

const (
	// scrollKeepAlive is how long Elasticsearch keeps a scroll context between pages.
	scrollKeepAlive = time.Minute

	// scrollPageSize is the number of documents fetched per scroll page.
	scrollPageSize = 500
)

// DefaultIndexAliases maps logical collections to Elasticsearch index names
// that differ from the collection name.
var DefaultIndexAliases = map[string]string{
	"pages": "webpages",
}

var errElastic = errors.New("elasticsearch request failed")

// maxDocumentIDLength is the longest _id Elasticsearch accepts, in bytes.
const maxDocumentIDLength = 512

// plainDocumentID matches ids that can be used as _id without escaping.
var plainDocumentID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// DocumentID returns the Elasticsearch _id of a record id. Article ids are
// used as they are; ids that need escaping, such as page URLs, are replaced
// by their SHA-256 digest.
func DocumentID(id string) string {
	if len(id) <= maxDocumentIDLength && plainDocumentID.MatchString(id) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// ElasticConfig holds the connection settings of an Elasticsearch sink.
// Credentials come from the environment and are never logged.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	CloudID   string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Elasticsearch stores every collection in its own index.
type Elasticsearch struct {
	client  *es.Client
	aliases map[string]string
	refresh string
	logger  *slog.Logger
}

// ElasticOption configures an Elasticsearch sink.
type ElasticOption func(*Elasticsearch)

// WithIndexAliases replaces the collection to index name mapping.
func WithIndexAliases(aliases map[string]string) ElasticOption {
	return func(e *Elasticsearch) {
		e.aliases = aliases
	}
}

// WithRefresh sets the refresh parameter of index requests.
// "true" (default) makes a write visible to Exists immediately.
func WithRefresh(refresh string) ElasticOption {
	return func(e *Elasticsearch) {
		e.refresh = refresh
	}
}

// WithElasticLogger sets the logger.
func WithElasticLogger(logger *slog.Logger) ElasticOption {
	return func(e *Elasticsearch) {
		e.logger = logger
	}
}

// OpenElasticsearch creates a client and verifies the cluster is reachable.
func OpenElasticsearch(ctx context.Context, cfg ElasticConfig, opts ...ElasticOption) (*Elasticsearch, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		CloudID:   cfg.CloudID,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	e := &Elasticsearch{
		client:  client,
		aliases: DefaultIndexAliases,
		refresh: "true",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: ping: %s", errElastic, res.String())
	}

	e.logger.Debug("connected to Elasticsearch", "addresses", cfg.Addresses)
	return e, nil
}

// Index returns the index name of collection.
func (e *Elasticsearch) Index(collection string) string {
	if alias, ok := e.aliases[collection]; ok {
		return alias
	}
	return collection
}

// Upsert implements Sink by indexing the record under id.
func (e *Elasticsearch) Upsert(ctx context.Context, collection, id string, record any) error {
	body, err := encode(collection, id, record)
	if err != nil {
		return err
	}

	res, err := e.client.Index(
		e.Index(collection),
		bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(DocumentID(id)),
		e.client.Index.WithRefresh(e.refresh),
	)
	if err != nil {
		return &WriteError{Collection: collection, ID: id, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return &WriteError{Collection: collection, ID: id, Err: fmt.Errorf("%w: %s", errElastic, res.String())}
	}
	return nil
}

// Exists implements Sink with a HEAD request on the document.
func (e *Elasticsearch) Exists(ctx context.Context, collection, id string) (bool, error) {
	res, err := e.client.Exists(
		e.Index(collection),
		DocumentID(id),
		e.client.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: exists %s/%s: %s", errElastic, collection, id, res.Status())
	}
}

// Close implements Sink. The client keeps no connections that need closing.
func (e *Elasticsearch) Close() error {
	return nil
}

type scrollResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Scan implements Scanner with the scroll API. The id passed to fn is the
// Elasticsearch _id, see DocumentID.
func (e *Elasticsearch) Scan(ctx context.Context, collection string, fn func(string, json.RawMessage) error) error {
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.Index(collection)),
		e.client.Search.WithScroll(scrollKeepAlive),
		e.client.Search.WithSize(scrollPageSize),
		e.client.Search.WithSort("_doc"),
	)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}

	page, err := decodeScroll(res.Body, res.IsError(), res.String)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}

	// Elasticsearch may hand out a new scroll id on every page; the last
	// one is cleared.
	scrollID := page.ScrollID
	defer func() { e.clearScroll(scrollID) }()

	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			if err := fn(hit.ID, hit.Source); err != nil {
				return err
			}
		}

		res, err := e.client.Scroll(
			e.client.Scroll.WithContext(ctx),
			e.client.Scroll.WithScrollID(scrollID),
			e.client.Scroll.WithScroll(scrollKeepAlive),
		)
		if err != nil {
			return fmt.Errorf("failed to continue scan of %s: %w", collection, err)
		}
		page, err = decodeScroll(res.Body, res.IsError(), res.String)
		if err != nil {
			return fmt.Errorf("failed to continue scan of %s: %w", collection, err)
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return nil
}

// decodeScroll reads one scroll page and closes body.
func decodeScroll(body io.ReadCloser, isError bool, describe func() string) (*scrollResponse, error) {
	defer body.Close()

	if isError {
		return nil, fmt.Errorf("%w: %s", errElastic, describe())
	}
	var page scrollResponse
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode scroll page: %w", err)
	}
	return &page, nil
}

func (e *Elasticsearch) clearScroll(scrollID string) {
	if strings.TrimSpace(scrollID) == "" {
		return
	}
	res, err := e.client.ClearScroll(e.client.ClearScroll.WithScrollID(scrollID))
	if err != nil {
		e.logger.Debug("failed to clear scroll", "error", err)
		return
	}
	_ = res.Body.Close()
}
