package ncbi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/config"
)

const esummaryJBC = `{
  "header": {"type": "esummary", "version": "0.3"},
  "result": {
    "uids": ["19880848"],
    "19880848": {
      "uid": "19880848",
      "pubdate": "2010 Jan 29",
      "sortpubdate": "2010/01/29 00:00",
      "source": "J Biol Chem",
      "authors": [
        {"name": "Solberg WU", "authtype": "Author"},
        {"name": "Geiger RL", "authtype": "Author"},
        {"name": "Some Consortium", "authtype": "CollectiveName"}
      ],
      "title": "Structural basis of substrate recognition.",
      "volume": "285",
      "issue": "5",
      "pages": "3076-84",
      "articleids": [
        {"idtype": "pubmed", "value": "19880848"},
        {"idtype": "doi", "value": "10.1074/JBC.M109.081398"},
        {"idtype": "pii", "value": "M109.081398"},
        {"idtype": "pmc", "value": "PMC2823448"}
      ],
      "elocationid": "doi: 10.1074/jbc.M109.081398"
    }
  }
}`

const esummaryMinimal = `{
  "result": {
    "uids": ["111"],
    "111": {
      "uid": "111",
      "pubdate": "2009 Winter",
      "source": "Some Defunct Journal",
      "articleids": [{"idtype": "pubmed", "value": "111"}],
      "elocationid": "doi: 10.1000/XYZ"
    }
  }
}`

const esummaryMissing = `{
  "result": {
    "uids": ["999"],
    "999": {"uid": "999", "error": "cannot get document summary"}
  }
}`

type eutilsServer struct {
	srv   *httptest.Server
	calls atomic.Int32
	last  atomic.Value // last raw query
}

func newEutilsServer(t *testing.T) *eutilsServer {
	t.Helper()
	es := &eutilsServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/eutils/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "19880848":
			w.Write([]byte(esummaryJBC))
		case "111":
			w.Write([]byte(esummaryMinimal))
		case "999":
			w.Write([]byte(esummaryMissing))
		case "321":
			w.Write([]byte(`{"error": "API rate limit exceeded", "api-key": "1.2.3.4", "count": "4", "limit": "3"}`))
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		case "429":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"result": {`))
		}
	})
	mux.HandleFunc("/eutils/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("term") {
		case `"10.1074/jbc.m109.081398"[AID]`:
			w.Write([]byte(`{"esearchresult": {"count": "1", "idlist": ["19880848"]}}`))
		case `"10.1000/ambiguous"[AID]`:
			w.Write([]byte(`{"esearchresult": {"count": "2", "idlist": ["1", "2"]}}`))
		case `"10.1000/broken"[AID]`:
			w.Write([]byte(`{"esearchresult": {"ERROR": "Invalid query"}}`))
		default:
			w.Write([]byte(`{"esearchresult": {"count": "0", "idlist": []}}`))
		}
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ids") {
		case "19880848", "10.1074/jbc.m109.081398", "PMC2823448":
			w.Write([]byte(`{"status": "ok", "records": [{"pmcid": "PMC2823448", "pmid": 19880848, "doi": "10.1074/jbc.M109.081398"}]}`))
		case "", "PMC0":
			w.Write([]byte(`{"status": "error", "message": "service unavailable"}`))
		default:
			w.Write([]byte(`{"status": "ok", "records": [{"pmid": "1", "status": "error", "errmsg": "invalid article id"}]}`))
		}
	})
	es.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es.calls.Add(1)
		es.last.Store(r.URL.RawQuery)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(es.srv.Close)
	return es
}

func (es *eutilsServer) client(opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBaseURL(es.srv.URL + "/eutils"),
		WithIDConvURL(es.srv.URL + "/idconv/"),
		WithRetries(1),
	}
	return NewClient(append(base, opts...)...)
}

func TestArticle(t *testing.T) {
	es := newEutilsServer(t)
	a, err := es.client().Article(context.Background(), "19880848")
	if err != nil {
		t.Fatalf("Article() error = %v", err)
	}

	want := article.Article{
		PMID:      "19880848",
		Journal:   "J Biol Chem",
		Title:     "Structural basis of substrate recognition.",
		Authors:   []string{"Solberg WU", "Geiger RL"},
		Year:      "2010",
		Volume:    "285",
		Issue:     "5",
		Pages:     "3076-84",
		FirstPage: "3076",
		DOI:       "10.1074/jbc.m109.081398",
		PII:       "M109.081398",
		PMC:       "2823448",
	}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("Article() =\n%+v\nwant\n%+v", a, want)
	}
}

func TestArticle_SparseRecord(t *testing.T) {
	es := newEutilsServer(t)
	a, err := es.client().Article(context.Background(), "111")
	if err != nil {
		t.Fatalf("Article() error = %v", err)
	}
	if a.Journal != "Some Defunct Journal" {
		t.Errorf("Journal = %q", a.Journal)
	}
	if a.Year != "2009" {
		t.Errorf("Year = %q, want 2009", a.Year)
	}
	if a.DOI != "10.1000/xyz" {
		t.Errorf("DOI from elocationid = %q", a.DOI)
	}
	if a.Volume != "" || a.Issue != "" || a.FirstPage != "" || a.PMC != "" || a.PII != "" || a.Authors != nil {
		t.Errorf("absent fields should be empty: %+v", a)
	}
}

func TestArticle_Errors(t *testing.T) {
	es := newEutilsServer(t)
	c := es.client()
	ctx := context.Background()

	tests := []struct {
		pmid  string
		check func(error) bool
	}{
		{"999", IsNotFound},
		{"not-a-pmid", func(err error) bool { return errors.Is(err, ErrInvalidID) }},
		{"123", func(err error) bool { return errors.Is(err, ErrInvalidResponse) }},
		{"429", IsRateLimited},
		{"500", func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode == 500
		}},
	}
	for _, tt := range tests {
		t.Run(tt.pmid, func(t *testing.T) {
			_, err := c.Article(ctx, tt.pmid)
			if err == nil || !tt.check(err) {
				t.Errorf("Article(%s) error = %v", tt.pmid, err)
			}
		})
	}
}

func TestArticle_Cached(t *testing.T) {
	es := newEutilsServer(t)
	store := cache.NewMemory()
	c := es.client(WithCache(store))
	ctx := context.Background()

	first, err := c.Article(ctx, "19880848")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Article(ctx, "19880848")
	if err != nil {
		t.Fatal(err)
	}
	if es.calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", es.calls.Load())
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached record differs")
	}

	// Malformed bodies never reach the cache.
	before := store.Len()
	if _, err := c.Article(ctx, "123"); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != before {
		t.Error("malformed response was cached")
	}
}

func TestClient_UpstreamErrorsNotCached(t *testing.T) {
	es := newEutilsServer(t)
	store := cache.NewMemory()
	c := es.client(WithCache(store))
	ctx := context.Background()

	var apiErr *APIError
	if _, err := c.Article(ctx, "321"); !errors.As(err, &apiErr) || apiErr.Endpoint != "esummary" {
		t.Errorf("esummary error = %v", err)
	}
	if _, err := c.SearchDOI(ctx, "10.1000/broken"); !errors.As(err, &apiErr) || apiErr.Endpoint != "esearch" {
		t.Errorf("esearch error = %v", err)
	}
	if _, err := c.IDConv(ctx, "PMC0"); !errors.As(err, &apiErr) || apiErr.Endpoint != "idconv" {
		t.Errorf("idconv error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("%d error responses cached", store.Len())
	}

	// A repeated call goes back to the server.
	before := es.calls.Load()
	c.Article(ctx, "321")
	if es.calls.Load() != before+1 {
		t.Error("error response served from cache")
	}
}

func TestClient_SendsToolAndKey(t *testing.T) {
	es := newEutilsServer(t)
	c := es.client(WithAPIKey("secret"), WithEmail("me@example.org"))
	if _, err := c.Article(context.Background(), "19880848"); err != nil {
		t.Fatal(err)
	}
	q, _ := es.last.Load().(string)
	for _, want := range []string{"api_key=secret", "tool=findit", "email=me%40example.org", "retmode=json"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %s", q, want)
		}
	}
	if c.limiter.Limit() != RateLimitWithKey {
		t.Errorf("limit = %v, want %v", c.limiter.Limit(), RateLimitWithKey)
	}
	if NewClient().limiter.Limit() != RateLimit {
		t.Error("keyless client should use the default limit")
	}
}

func TestSearchDOI(t *testing.T) {
	es := newEutilsServer(t)
	c := es.client()
	ctx := context.Background()

	tests := []struct {
		doi     string
		want    string
		wantErr bool
	}{
		{"https://doi.org/10.1074/JBC.M109.081398", "19880848", false},
		{"10.1000/ambiguous", "", false},
		{"10.1000/unknown", "", false},
		{"10.1000/broken", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		got, err := c.SearchDOI(ctx, tt.doi)
		if (err != nil) != tt.wantErr {
			t.Errorf("SearchDOI(%q) error = %v, wantErr %v", tt.doi, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("SearchDOI(%q) = %q, want %q", tt.doi, got, tt.want)
		}
	}
}

func TestIDConv(t *testing.T) {
	es := newEutilsServer(t)
	c := es.client()
	ctx := context.Background()

	want := IDRecord{PMID: "19880848", PMCID: "2823448", DOI: "10.1074/jbc.m109.081398"}
	for _, id := range []string{"19880848", "10.1074/jbc.m109.081398", "PMC2823448"} {
		got, err := c.IDConv(ctx, id)
		if err != nil {
			t.Fatalf("IDConv(%s) error = %v", id, err)
		}
		if got != want {
			t.Errorf("IDConv(%s) = %+v, want %+v", id, got, want)
		}
	}

	if _, err := c.IDConv(ctx, "10.1000/unknown"); !IsNotFound(err) {
		t.Errorf("unknown id error = %v, want not found", err)
	}
	if _, err := c.IDConv(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("empty id error = %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	es := newEutilsServer(t)
	cfg := config.Default()
	cfg.NCBIAPIKey = "k"
	b := NewBackend(cfg, WithBaseURL(es.srv.URL+"/eutils"), WithIDConvURL(es.srv.URL+"/idconv/"))

	c, ok := b.(*Client)
	if !ok {
		t.Fatalf("NewBackend() = %T", b)
	}
	if c.apiKey != "k" || c.userAgent != config.DefaultUserAgent {
		t.Errorf("config not applied: key=%q ua=%q", c.apiKey, c.userAgent)
	}
	if _, err := b.Article(context.Background(), "19880848"); err != nil {
		t.Errorf("Article() via backend error = %v", err)
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 502, Endpoint: "esearch", Message: "Bad Gateway"}
	if got := err.Error(); got != "NCBI esearch error (status 502): Bad Gateway" {
		t.Errorf("Error() = %q", got)
	}
	if IsNotFound(err) || IsRateLimited(err) {
		t.Error("502 misclassified")
	}
	if !IsNotFound(&APIError{StatusCode: 404}) {
		t.Error("404 should be not found")
	}
}
