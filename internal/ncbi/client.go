// Package ncbi reads PubMed records and converts article identifiers using
// the NCBI E-utilities and the PMC ID converter.
package ncbi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/config"
	"github.com/matsen/findit/internal/logging"
)

const (
	// EutilsURL is the E-utilities base URL.
	EutilsURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// IDConvURL is the PMC ID converter endpoint.
	IDConvURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 15 * time.Second

	// RateLimit is NCBI's allowance without an API key.
	RateLimit = 3.0

	// RateLimitWithKey is NCBI's allowance with an API key.
	RateLimitWithKey = 10.0

	// DefaultRetries is the number of attempts on 429 and 5xx responses.
	DefaultRetries = 3

	toolName       = "findit"
	cacheNamespace = "ncbi"
)

// Backend is a source of PubMed records and identifier conversions.
type Backend interface {
	// Article fetches the record for pmid.
	Article(ctx context.Context, pmid string) (article.Article, error)
	// SearchDOI returns the PMID whose article id list carries doi, or "".
	SearchDOI(ctx context.Context, doi string) (string, error)
	// IDConv looks up the PMC ID converter record for a PMID, PMCID or DOI.
	IDConv(ctx context.Context, id string) (IDRecord, error)
}

// NewBackend builds the record backend described by cfg. Options are
// applied after the configured values.
func NewBackend(cfg config.Config, opts ...ClientOption) Backend {
	base := []ClientOption{
		WithAPIKey(cfg.NCBIAPIKey),
		WithEmail(cfg.Email),
		WithUserAgent(cfg.UserAgent),
	}
	if cfg.Timeout > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return NewClient(append(base, opts...)...)
}

// Client is a rate-limited, caching E-utilities client.
type Client struct {
	httpClient *pester.Client
	limiter    *rate.Limiter
	eutilsURL  string
	idconvURL  string
	apiKey     string
	email      string
	userAgent  string
	store      cache.Store
	log        logrus.FieldLogger
}

var _ Backend = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	eutilsURL  string
	idconvURL  string
	apiKey     string
	email      string
	userAgent  string
	retries    int
	store      cache.Store
	log        logrus.FieldLogger
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom E-utilities base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *clientConfig) {
		c.eutilsURL = u
	}
}

// WithIDConvURL sets a custom ID converter URL (for testing).
func WithIDConvURL(u string) ClientOption {
	return func(c *clientConfig) {
		c.idconvURL = u
	}
}

// WithAPIKey sets the NCBI API key, which also raises the rate limit.
func WithAPIKey(key string) ClientOption {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithEmail sets the contact address NCBI asks tools to send.
func WithEmail(email string) ClientOption {
	return func(c *clientConfig) {
		c.email = email
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetries sets the number of attempts per request.
func WithRetries(n int) ClientOption {
	return func(c *clientConfig) {
		c.retries = n
	}
}

// WithCache sets the response cache.
func WithCache(store cache.Store) ClientOption {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *clientConfig) {
		c.log = log
	}
}

// NewClient creates an E-utilities client.
func NewClient(opts ...ClientOption) *Client {
	cfg := clientConfig{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		eutilsURL:  EutilsURL,
		idconvURL:  IDConvURL,
		userAgent:  toolName,
		retries:    DefaultRetries,
		store:      cache.Nop{},
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := RateLimit
	if cfg.apiKey != "" {
		limit = RateLimitWithKey
	}

	hc := pester.NewExtendedClient(cfg.httpClient)
	hc.MaxRetries = cfg.retries
	hc.Backoff = pester.ExponentialBackoff
	hc.KeepLog = false

	return &Client{
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		eutilsURL:  cfg.eutilsURL,
		idconvURL:  cfg.idconvURL,
		apiKey:     cfg.apiKey,
		email:      cfg.email,
		userAgent:  cfg.userAgent,
		store:      cfg.store,
		log:        cfg.log,
	}
}

// getJSON fetches endpoint with params and returns the parsed body. check
// inspects the payload for an error report; a body is cached only when it
// is valid JSON and check accepts it, so upstream failures are retried on
// the next call.
func (c *Client) getJSON(ctx context.Context, name, endpoint string, params url.Values, check func(gjson.Result) error) (gjson.Result, error) {
	keyURL := endpoint + "?" + params.Encode()
	key := cache.Key(cacheNamespace, keyURL)
	log := c.log.WithField("endpoint", name)

	if body, ok, err := c.store.Get(ctx, key); err != nil {
		log.WithError(err).Warn("reading ncbi cache")
	} else if ok && gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if check(res) == nil {
			log.Debug("ncbi cache hit")
			return res, nil
		}
		log.Debug("discarding cached error response")
	}

	body, err := c.fetch(ctx, name, endpoint, params)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: %s returned malformed JSON", ErrInvalidResponse, name)
	}
	res := gjson.ParseBytes(body)
	if err := check(res); err != nil {
		return gjson.Result{}, err
	}
	if err := c.store.Set(ctx, key, body); err != nil {
		log.WithError(err).Warn("writing ncbi cache")
	}
	return res, nil
}

func (c *Client) fetch(ctx context.Context, name, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("tool", toolName)
	if c.email != "" {
		q.Set("email", c.email)
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrNetworkError, name, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, name)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: name, Message: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}
