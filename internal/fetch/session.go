// Package fetch performs the HTTP round trips used to locate article PDFs:
// DOI resolution, page fetches, form posts and HTML inspection.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/matsen/findit/internal/logging"
)

const (
	// DefaultDOIResolver is the base URL DOIs are appended to.
	DefaultDOIResolver = "https://doi.org/"

	// DefaultTimeout bounds every request, redirects included.
	DefaultTimeout = 15 * time.Second

	// DefaultRetries is the number of attempts pester makes on transport
	// errors and 5xx responses.
	DefaultRetries = 3

	// MaxBodySize caps how much of a response is read into memory.
	MaxBodySize = 64 << 20

	defaultUserAgent = "findit/dev"
)

// Page is a fetched response. URL is the final URL after redirects.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsPDF reports whether the page is a PDF, by content type or magic bytes.
func (p *Page) IsPDF() bool {
	if strings.Contains(strings.ToLower(p.ContentType), "pdf") {
		return true
	}
	return bytes.HasPrefix(p.Body, []byte("%PDF"))
}

// IsHTML reports whether the page declares an HTML content type.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "html")
}

// Contains reports whether the body contains marker, ignoring case.
func (p *Page) Contains(marker string) bool {
	return bytes.Contains(bytes.ToLower(p.Body), []byte(strings.ToLower(marker)))
}

// Resolve turns a possibly relative link on the page into an absolute URL.
func (p *Page) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// Session is a cookie-keeping, retrying HTTP client. Cookies persist for
// the lifetime of the session so multi-step negotiations (landing page,
// login form, PDF) share state.
type Session struct {
	client      *pester.Client
	userAgent   string
	doiResolver string
	log         logrus.FieldLogger
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	httpClient  *http.Client
	timeout     time.Duration
	retries     int
	userAgent   string
	doiResolver string
	log         logrus.FieldLogger
}

// WithHTTPClient sets a custom HTTP client (for testing). Its cookie jar
// and timeout are used as-is.
func WithHTTPClient(hc *http.Client) SessionOption {
	return func(c *sessionConfig) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithRetries sets the number of attempts per request.
func WithRetries(n int) SessionOption {
	return func(c *sessionConfig) {
		c.retries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SessionOption {
	return func(c *sessionConfig) {
		c.userAgent = ua
	}
}

// WithDOIResolver sets the base URL used for DOI resolution (for testing).
func WithDOIResolver(base string) SessionOption {
	return func(c *sessionConfig) {
		c.doiResolver = base
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) SessionOption {
	return func(c *sessionConfig) {
		c.log = log
	}
}

// NewSession creates a Session. TLS certificates are always verified.
func NewSession(opts ...SessionOption) *Session {
	cfg := sessionConfig{
		timeout:     DefaultTimeout,
		retries:     DefaultRetries,
		userAgent:   defaultUserAgent,
		doiResolver: DefaultDOIResolver,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		// cookiejar.New only fails on a nil-safe options struct, never here.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		hc = &http.Client{Timeout: cfg.timeout, Jar: jar}
	}

	client := pester.NewExtendedClient(hc)
	client.MaxRetries = cfg.retries
	client.Backoff = pester.ExponentialBackoff
	client.KeepLog = false

	log := cfg.log
	if log == nil {
		log = logging.Discard()
	}

	return &Session{
		client:      client,
		userAgent:   cfg.userAgent,
		doiResolver: cfg.doiResolver,
		log:         log,
	}
}

// DOIURL returns the resolver URL for a DOI.
func (s *Session) DOIURL(doi string) string {
	return s.doiResolver + strings.TrimSpace(doi)
}

// Get fetches a URL, following redirects.
//
// On a non-2xx response both the page and a *StatusError are returned, so
// callers may still inspect the body of an error page.
func (s *Session) Get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrTransport, rawURL, err)
	}
	return s.do(req)
}

// PostForm submits form values to a URL.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrTransport, rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

// ResolveDOI follows the DOI resolver's redirects to the publisher landing
// page ("the 2-step") and returns that page.
func (s *Session) ResolveDOI(ctx context.Context, doi string) (*Page, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, fmt.Errorf("%w: empty DOI", ErrNotFound)
	}
	page, err := s.Get(ctx, s.DOIURL(doi))
	if err != nil {
		return page, err
	}
	s.log.WithFields(logrus.Fields{"doi": doi, "landing": page.URL}).Debug("resolved DOI")
	return page, nil
}

func (s *Session) do(req *http.Request) (*Page, error) {
	req.Header.Set("User-Agent", s.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTransport, req.URL, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrTransport, req.URL, err)
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	s.log.WithFields(logrus.Fields{
		"method":       req.Method,
		"url":          req.URL.String(),
		"final":        finalURL,
		"status":       resp.StatusCode,
		"content_type": page.ContentType,
	}).Debug("fetched")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return page, &StatusError{Code: resp.StatusCode, URL: finalURL}
	}
	return page, nil
}
