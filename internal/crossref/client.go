// Package crossref queries the CrossRef citation search for DOIs matching
// free-text or structured bibliographic fragments.
package crossref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/logging"
)

const (
	// BaseURL is the CrossRef citation search endpoint.
	BaseURL = "https://search.crossref.org/dois"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 15 * time.Second

	// RateLimit keeps us well under CrossRef's polite-pool allowance.
	RateLimit = 5.0

	// DefaultRows is how many candidates are requested per query.
	DefaultRows = 5

	cacheNamespace = "crossref"
)

var (
	// ErrConnectivity indicates the service could not be reached or sent a
	// response that is not a candidate list. It is distinct from an empty
	// result.
	ErrConnectivity = errors.New("crossref search unavailable")

	// ErrEmptyQuery is returned when there is nothing to search for.
	ErrEmptyQuery = errors.New("empty crossref query")
)

// Fields are the structured citation fragments a query is built from.
type Fields struct {
	Title   string
	Author  string // PubMed style, e.g. "Solberg WU"
	Journal string
	Volume  string
	Page    string
	Year    string
}

// Text joins the non-empty fields into a search string.
func (f Fields) Text() string {
	var parts []string
	for _, s := range []string{f.Title, f.Author, f.Journal, f.Volume, f.Page, f.Year} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// FieldsFor builds query fields from an article record.
func FieldsFor(a article.Article) Fields {
	page := a.FirstPage
	if page == "" {
		page = article.FirstPageOf(a.Pages)
	}
	return Fields{
		Title:   a.Title,
		Author:  a.FirstAuthor(),
		Journal: a.Journal,
		Volume:  a.Volume,
		Page:    page,
		Year:    a.Year,
	}
}

// Candidate is one search hit.
type Candidate struct {
	Score           float64           `json:"score"`
	NormalizedScore float64           `json:"normalizedScore"`
	DOI             string            `json:"doi"`
	FullCitation    string            `json:"fullCitation"`
	Title           string            `json:"title"`
	Year            flexString        `json:"year"`
	Coins           string            `json:"coins"`
	Slugs           map[string]string `json:"slugs,omitempty"`
	Authors         []string          `json:"authors,omitempty"`
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("year %s: %w", b, err)
	}
	*s = flexString(b)
	return nil
}

// Client is a rate-limited, caching CrossRef search client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	rows       int
	userAgent  string
	store      cache.Store
	log        logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithCache sets the response cache.
func WithCache(store cache.Store) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithRows sets how many candidates are requested.
func WithRows(n int) ClientOption {
	return func(c *Client) {
		c.rows = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a CrossRef search client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		rows:       DefaultRows,
		userAgent:  "findit",
		store:      cache.Nop{},
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryURL assembles the full request URL. It is also the cache key input.
func (c *Client) QueryURL(searchText string) string {
	v := url.Values{}
	v.Set("q", searchText)
	v.Set("rows", strconv.Itoa(c.rows))
	return c.baseURL + "?" + v.Encode()
}

// Query searches for searchText, or for fields.Text() when searchText is
// empty. A cached response for the same query URL skips the network.
func (c *Client) Query(ctx context.Context, searchText string, fields Fields) ([]Candidate, error) {
	text := strings.TrimSpace(searchText)
	if text == "" {
		text = fields.Text()
	}
	if text == "" {
		return nil, ErrEmptyQuery
	}

	reqURL := c.QueryURL(text)
	key := cache.Key(cacheNamespace, reqURL)
	log := c.log.WithField("query", text)

	if body, ok, err := c.store.Get(ctx, key); err != nil {
		log.WithError(err).Warn("reading crossref cache")
	} else if ok {
		if cands, err := decodeCandidates(body); err == nil {
			log.Debug("crossref cache hit")
			return cands, nil
		}
		log.Debug("discarding unreadable crossref cache entry")
	}

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	cands, err := decodeCandidates(body)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, body); err != nil {
		log.WithError(err).Warn("writing crossref cache")
	}
	log.WithField("candidates", len(cands)).Debug("crossref query")
	return cands, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrConnectivity, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrConnectivity, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrConnectivity, resp.StatusCode)
	}
	return body, nil
}

// decodeCandidates parses a response body. A JSON array, even an empty
// one, is a valid result; anything else is a connectivity error.
func decodeCandidates(body []byte) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: response is not a JSON array", ErrConnectivity)
	}

	var cands []Candidate
	if err := json.Unmarshal(trimmed, &cands); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrConnectivity, err)
	}
	if cands == nil {
		cands = []Candidate{}
	}
	for i := range cands {
		cands[i].DOI = article.NormalizeDOI(cands[i].DOI)
		cands[i].Slugs, cands[i].Authors = ParseCoins(cands[i].Coins)
	}
	return cands, nil
}
