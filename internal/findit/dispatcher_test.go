package findit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/journal"
)

func servePDF(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Write([]byte("%PDF-1.4\n"))
}

func serveHTML(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head></head><body>" + body + "</body></html>"))
	}
}

func redirectTo(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

const aaasLogin = `<p>Sign in to read</p>
<form id="user-login" action="/aaas/login" method="post">
  <input type="hidden" name="form_build_id" value="form-tok">
  <input type="hidden" name="destination" value="/aaas/1/2/3.full.pdf">
  <input type="text" name="name"><input type="password" name="pass">
</form>`

// publisherServer imitates the publisher sites the test table points at.
func publisherServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	// central repository mirrors
	mux.HandleFunc("/pmc/PMC123/pdf", servePDF)
	mux.HandleFunc("/pmc/PMC456/pdf", serveHTML("article page"))
	mux.HandleFunc("/epmc/PMC456", servePDF)

	// templates
	mux.HandleFunc("/content/285/5/3076.full.pdf", servePDF)
	mux.HandleFunc("/content/36/2/100.full.pdf", servePDF)
	mux.HandleFunc("/pii/S0092867410000011.pdf", servePDF)
	mux.HandleFunc("/pii/S0000000000000000.pdf", serveHTML("Please subscribe to this journal"))
	mux.HandleFunc("/nature/v461/n7267/nature08494.pdf", servePDF)
	mux.HandleFunc("/broken/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	// DOI resolver and landing pages
	mux.HandleFunc("/doi/10.1038/nature99999", redirectTo("/nature/full/nature99999.html"))
	mux.HandleFunc("/nature/full/nature99999.html", serveHTML("abstract"))
	mux.HandleFunc("/nature/pdf/nature99999.pdf", servePDF)
	mux.HandleFunc("/doi/10.1186/bmc-1", redirectTo("/articles/bmc-1"))
	mux.HandleFunc("/articles/bmc-1", serveHTML("bmc article"))
	mux.HandleFunc("/track/pdf/bmc-1", servePDF)
	mux.HandleFunc("/doi/10.1186/odd", redirectTo("/elsewhere/odd"))
	mux.HandleFunc("/elsewhere/odd", serveHTML("moved"))
	mux.HandleFunc("/doi/10.1186/direct", redirectTo("/track/pdf/bmc-1"))
	mux.HandleFunc("/doi/10.7554/elife.1", redirectTo("/elife/1"))
	mux.HandleFunc("/elife/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="/elife/1.pdf"></head><body></body></html>`))
	})
	mux.HandleFunc("/elife/1.pdf", servePDF)
	mux.HandleFunc("/doi/10.9999/gone", http.NotFound)

	// scrape landing pages
	mux.HandleFunc("/landing/PII1", serveHTML(`<a class="pdf" href="/files/p1.pdf">Download</a>`))
	mux.HandleFunc("/files/p1.pdf", servePDF)
	mux.HandleFunc("/landing/PII2", serveHTML(`Subscribe to read the full text`))
	mux.HandleFunc("/landing/PII3", serveHTML(`<a class="pdf" href="/buy/article">Buy</a>`))
	mux.HandleFunc("/landing/PII4", serveHTML(`nothing here`))

	// form negotiation
	mux.HandleFunc("/aaas/1/2/3.full.pdf", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("aaas"); err == nil && c.Value == "member" {
			servePDF(w, r)
			return
		}
		serveHTML(aaasLogin)(w, r)
	})
	mux.HandleFunc("/aaas/9/9/9.full.pdf", serveHTML("no form here"))
	mux.HandleFunc("/aaas/login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("form_build_id") != "form-tok" || r.PostForm.Get("name") != "alice" || r.PostForm.Get("pass") != "secret" {
			serveHTML("login failed")(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "aaas", Value: "member", Path: "/"})
		http.Redirect(w, r, r.PostForm.Get("destination"), http.StatusSeeOther)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testTable(base string) *journal.Table {
	one := func(name string) []journal.Entry { return []journal.Entry{{Name: name}} }
	return journal.NewTable(
		journal.Family{
			Name: "Unsupported", Priority: journal.PriorityUnsupported,
			Rule:     journal.Rule{Kind: journal.KindUnsupported, Note: "defunct"},
			Journals: one("Some Defunct Journal"),
		},
		journal.Family{
			Name: "Pending", Priority: journal.PriorityTodo,
			Rule:     journal.Rule{Kind: journal.KindTodo},
			Journals: one("Pending Journal"),
		},
		journal.Family{
			Name: "VIP", Priority: journal.PriorityTemplate,
			Rule:     journal.Rule{Kind: journal.KindVIP, Template: base + "/content/{volume}/{issue}/{first_page}.full.pdf"},
			Journals: one("J Test Chem"),
		},
		journal.Family{
			Name: "Broken", Priority: journal.PriorityTemplate,
			Rule:     journal.Rule{Kind: journal.KindVIP, Template: base + "/broken/{volume}/{issue}/{first_page}"},
			Journals: one("Broken Journal"),
		},
		journal.Family{
			Name: "CellLike", Priority: journal.PriorityTemplate,
			Rule: journal.Rule{
				Kind: journal.KindPIITemplate, Template: base + "/pii/{pii}.pdf",
				StripPII: true, DenyMarkers: []string{"subscribe to"},
			},
			Journals: one("Test Cell"),
		},
		journal.Family{
			Name: "NatureLike", Priority: journal.PriorityTemplate,
			Rule: journal.Rule{
				Kind: journal.KindDOITemplate, Template: base + "/nature/v{volume}/n{issue}/{doi_suffix}.pdf",
				Fallback: &journal.Rule{
					Kind:     journal.KindRedirectRewrite,
					Rewrites: []journal.Rewrite{{Old: "/full/", New: "/pdf/"}, {Old: ".html", New: ".pdf"}},
				},
			},
			Journals: one("Test Nature"),
		},
		journal.Family{
			Name: "GatedFallback", Priority: journal.PriorityTemplate,
			Rule: journal.Rule{
				Kind: journal.KindDOITemplate, Template: base + "/nature/v{volume}/n{issue}/{doi_suffix}.pdf",
				Fallback: &journal.Rule{
					Kind:      journal.KindRedirectRewrite,
					Rewrites:  []journal.Rewrite{{Old: "/full/", New: "/pdf/"}, {Old: ".html", New: ".pdf"}},
					Paywalled: true,
				},
			},
			Journals: one("Test Gated Nature"),
		},
		journal.Family{
			Name: "BMCLike", Priority: journal.PriorityBMC,
			Rule: journal.Rule{
				Kind:     journal.KindRedirectRewrite,
				Rewrites: []journal.Rewrite{{Old: "/articles/", New: "/track/pdf/"}},
			},
			Journals: one("Test BMC"),
		},
		journal.Family{
			Name: "Landing", Priority: journal.PriorityScrape,
			Rule: journal.Rule{
				Kind: journal.KindScrape, Landing: base + "/landing/{pii}",
				Selector: "a.pdf", DenyMarkers: []string{"subscribe to"},
			},
			Journals: one("Test Scrape"),
		},
		journal.Family{
			Name: "Meta", Priority: journal.PriorityScrape,
			Rule:     journal.Rule{Kind: journal.KindScrape},
			Journals: one("Test Meta"),
		},
		journal.Family{
			Name: "Paywall", Priority: journal.PriorityScrape,
			Rule:     journal.Rule{Kind: journal.KindScrape, Paywalled: true},
			Journals: one("Test Paywall"),
		},
		journal.Family{
			Name: "Form", Priority: journal.PriorityAAAS,
			Rule:     journal.Rule{Kind: journal.KindForm, Template: base + "/aaas/{volume}/{issue}/{first_page}.full.pdf"},
			Journals: one("Test Science"),
		},
	)
}

// countingRules records how often the rule table is consulted.
type countingRules struct {
	RuleSource
	lookups int
}

func (c *countingRules) Lookup(name string) (journal.Rule, bool) {
	c.lookups++
	return c.RuleSource.Lookup(name)
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *countingRules) {
	t.Helper()
	srv := publisherServer(t)
	rules := &countingRules{RuleSource: testTable(srv.URL)}
	sess := fetch.NewSession(fetch.WithRetries(1), fetch.WithDOIResolver(srv.URL+"/doi/"))
	base := []Option{
		WithPMCMirrors(srv.URL+"/pmc/PMC{pmc}/pdf", srv.URL+"/epmc/PMC{pmc}"),
		WithCredentials("alice", "secret"),
	}
	return NewDispatcher(rules, sess, append(base, opts...)...), rules
}

func TestResolve_JBCScenario(t *testing.T) {
	d := NewDispatcher(journal.Default(), nil, WithVerify(false))
	a := article.Article{Journal: "J Biol Chem", Volume: "285", Issue: "5", FirstPage: "3076"}

	res := d.Resolve(context.Background(), a, false)
	if !res.OK() {
		t.Fatalf("Resolve() = %+v", res)
	}
	if res.URL != "http://www.jbc.org/content/285/5/3076.full.pdf" {
		t.Errorf("URL = %s", res.URL)
	}
	if res.Strategy != "vip" {
		t.Errorf("Strategy = %s, want vip", res.Strategy)
	}
}

func TestResolve_PMCShortcutSkipsRuleTable(t *testing.T) {
	tests := []struct {
		name   string
		pmc    string
		verify bool
		want   string
	}{
		{"first mirror", "PMC123", true, "/pmc/PMC123/pdf"},
		{"second mirror after HTML", "456", true, "/epmc/PMC456"},
		{"unverified returns first mirror", "789", false, "/pmc/PMC789/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rules := newTestDispatcher(t, WithVerify(tt.verify))
			a := article.Article{Journal: "J Test Chem", PMC: tt.pmc}

			res := d.Resolve(context.Background(), a, false)
			if !res.OK() || !strings.HasSuffix(res.URL, tt.want) {
				t.Fatalf("Resolve() = %+v, want URL ending %s", res, tt.want)
			}
			if res.Strategy != strategyPMC {
				t.Errorf("Strategy = %s", res.Strategy)
			}
			if rules.lookups != 0 {
				t.Errorf("rule table consulted %d times, want 0", rules.lookups)
			}
		})
	}
}

func TestResolve_PMCMirrorsFailFallsThrough(t *testing.T) {
	d, rules := newTestDispatcher(t)
	a := article.Article{Journal: "J Test Chem", Volume: "285", Issue: "5", FirstPage: "3076", PMC: "999"}

	res := d.Resolve(context.Background(), a, false)
	if !res.OK() || res.Strategy != "vip" {
		t.Fatalf("Resolve() = %+v, want vip success", res)
	}
	if rules.lookups != 1 {
		t.Errorf("lookups = %d, want 1", rules.lookups)
	}
}

func TestResolve_Classifications(t *testing.T) {
	d, _ := newTestDispatcher(t)

	tests := []struct {
		name  string
		a     article.Article
		allow bool
		want  Reason
	}{
		{"unknown journal", article.Article{Journal: "Journal of Nothing", Volume: "1"}, false, NoFormatRegistered},
		{"known unsupported", article.Article{Journal: "Some Defunct Journal", Volume: "1", Issue: "1", FirstPage: "1", DOI: "10.1/x"}, false, KnownUnsupported},
		{"todo", article.Article{Journal: "Pending Journal"}, false, NotYetSupported},
		{"paywalled", article.Article{Journal: "Test Paywall", DOI: "10.7554/elife.1"}, false, AccessDenied},
		{"no journal", article.Article{}, false, MissingPrecondition},
		{"vip missing issue", article.Article{Journal: "J Test Chem", Volume: "285", FirstPage: "1"}, false, MissingPrecondition},
		{"pii missing", article.Article{Journal: "Test Cell"}, false, MissingPrecondition},
		{"doi missing", article.Article{Journal: "Test BMC"}, false, MissingPrecondition},
		{"upstream 503", article.Article{Journal: "Broken Journal", Volume: "1", Issue: "1", FirstPage: "1"}, false, TransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Resolve(context.Background(), tt.a, tt.allow)
			if res.Reason != tt.want {
				t.Errorf("Reason = %v (%s), want %v", res.Reason, res.Detail, tt.want)
			}
			if res.URL != "" {
				t.Errorf("URL = %q on failure", res.URL)
			}
		})
	}
}

func TestResolve_PaywallDetail(t *testing.T) {
	d, _ := newTestDispatcher(t)
	res := d.Resolve(context.Background(), article.Article{Journal: "Test Paywall", DOI: "10.7554/elife.1"}, false)
	if res.Detail != "PAYWALL" {
		t.Errorf("Detail = %q, want PAYWALL", res.Detail)
	}

	// Allowing paywalled journals runs the strategy.
	res = d.Resolve(context.Background(), article.Article{Journal: "Test Paywall", DOI: "10.7554/elife.1"}, true)
	if !res.OK() {
		t.Errorf("allowPaywalled Resolve() = %+v", res)
	}
}

func TestResolve_Strategies(t *testing.T) {
	d, _ := newTestDispatcher(t)

	tests := []struct {
		name     string
		a        article.Article
		suffix   string
		strategy string
	}{
		{"vip", article.Article{Journal: "J Test Chem", Volume: "285", Issue: "5", FirstPage: "3076"}, "/content/285/5/3076.full.pdf", "vip"},
		{"vip composite volume", article.Article{Journal: "J Test Chem", Volume: "36(2)", Pages: "100-9"}, "/content/36/2/100.full.pdf", "vip"},
		{"pii stripped", article.Article{Journal: "Test Cell", PII: "S0092-8674(10)00001-1"}, "/pii/S0092867410000011.pdf", "pii-template"},
		{"doi template", article.Article{Journal: "Test Nature", DOI: "10.1038/nature08494", Volume: "461", Issue: "7267"}, "/nature/v461/n7267/nature08494.pdf", "doi-template"},
		{"redirect rewrite", article.Article{Journal: "Test BMC", DOI: "10.1186/bmc-1"}, "/track/pdf/bmc-1", "redirect-rewrite"},
		{"landing already pdf", article.Article{Journal: "Test BMC", DOI: "10.1186/direct"}, "/track/pdf/bmc-1", "redirect-rewrite"},
		{"scrape selector", article.Article{Journal: "Test Scrape", PII: "PII1"}, "/files/p1.pdf", "scrape"},
		{"scrape citation meta", article.Article{Journal: "Test Meta", DOI: "10.7554/elife.1"}, "/elife/1.pdf", "scrape"},
		{"form login", article.Article{Journal: "Test Science", Volume: "1", Issue: "2", FirstPage: "3"}, "/aaas/1/2/3.full.pdf", "form"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Resolve(context.Background(), tt.a, false)
			if !res.OK() {
				t.Fatalf("Resolve() = %+v", res)
			}
			if !strings.HasSuffix(res.URL, tt.suffix) {
				t.Errorf("URL = %s, want suffix %s", res.URL, tt.suffix)
			}
			if res.Strategy != tt.strategy {
				t.Errorf("Strategy = %s, want %s", res.Strategy, tt.strategy)
			}
		})
	}
}

func TestResolve_Denials(t *testing.T) {
	d, _ := newTestDispatcher(t)

	tests := []struct {
		name string
		a    article.Article
		want Reason
	}{
		{"pii deny marker", article.Article{Journal: "Test Cell", PII: "S0000-0000(00)00000-0"}, AccessDenied},
		{"scrape deny marker", article.Article{Journal: "Test Scrape", PII: "PII2"}, AccessDenied},
		{"scrape non-pdf link", article.Article{Journal: "Test Scrape", PII: "PII3"}, AccessDenied},
		{"scrape nothing", article.Article{Journal: "Test Scrape", PII: "PII4"}, NoPDF},
		{"rewrite pattern mismatch", article.Article{Journal: "Test BMC", DOI: "10.1186/odd"}, NoPDF},
		{"doi not found", article.Article{Journal: "Test BMC", DOI: "10.9999/gone"}, NoPDF},
		{"form without login form", article.Article{Journal: "Test Science", Volume: "9", Issue: "9", FirstPage: "9"}, AccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Resolve(context.Background(), tt.a, false)
			if res.Reason != tt.want {
				t.Errorf("Reason = %v (%s), want %v", res.Reason, res.Detail, tt.want)
			}
		})
	}
}

func TestResolve_FormWithoutCredentials(t *testing.T) {
	d, _ := newTestDispatcher(t, WithCredentials("", ""))
	a := article.Article{Journal: "Test Science", Volume: "1", Issue: "2", FirstPage: "3"}

	res := d.Resolve(context.Background(), a, false)
	if res.Reason != AccessDenied {
		t.Errorf("Reason = %v, want DENIED", res.Reason)
	}
	if !strings.Contains(res.Detail, "credentials") {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestResolve_Fallback(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Missing volume makes the primary template fail; the redirect
	// fallback rewrites the landing page.
	a := article.Article{Journal: "Test Nature", DOI: "10.1038/nature99999"}
	res := d.Resolve(context.Background(), a, false)
	if !res.OK() {
		t.Fatalf("Resolve() = %+v", res)
	}
	if !strings.HasSuffix(res.URL, "/nature/pdf/nature99999.pdf") || res.Strategy != "redirect-rewrite" {
		t.Errorf("fallback result = %+v", res)
	}
	if res.Publisher != "NatureLike" {
		t.Errorf("fallback publisher = %q, want inherited NatureLike", res.Publisher)
	}

	// When the fallback also fails the primary failure is reported.
	a = article.Article{Journal: "Test Nature", DOI: "10.9999/gone"}
	res = d.Resolve(context.Background(), a, false)
	if res.Reason != MissingPrecondition || res.Strategy != "doi-template" {
		t.Errorf("failed fallback result = %+v, want primary MISSING", res)
	}
}

func TestResolve_PaywalledFallback(t *testing.T) {
	d, _ := newTestDispatcher(t)
	a := article.Article{Journal: "Test Gated Nature", DOI: "10.1038/nature99999"}

	res := d.Resolve(context.Background(), a, false)
	if res.OK() || res.Reason != MissingPrecondition || res.Strategy != "doi-template" {
		t.Errorf("Resolve() = %+v, want primary MISSING with the fallback gated", res)
	}

	res = d.Resolve(context.Background(), a, true)
	if !res.OK() || !strings.HasSuffix(res.URL, "/nature/pdf/nature99999.pdf") {
		t.Errorf("Resolve(allowPaywalled) = %+v, want fallback URL", res)
	}
}

func TestResolve_Unverified(t *testing.T) {
	d, _ := newTestDispatcher(t, WithVerify(false))
	// Denied PII is not detected without verification.
	res := d.Resolve(context.Background(), article.Article{Journal: "Test Cell", PII: "S0000-0000(00)00000-0"}, false)
	if !res.OK() {
		t.Errorf("unverified Resolve() = %+v", res)
	}
}

func TestResolve_PanicBecomesTransportError(t *testing.T) {
	// A nil session panics on first use.
	d := NewDispatcher(journal.Default(), nil, WithVerify(true))
	a := article.Article{Journal: "J Biol Chem", Volume: "285", Issue: "5", FirstPage: "3076"}

	res := d.Resolve(context.Background(), a, false)
	if res.Reason != TransportError {
		t.Fatalf("Reason = %v, want TXERROR", res.Reason)
	}
	if !strings.Contains(res.Detail, "panicked") {
		t.Errorf("Detail = %q", res.Detail)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Resolve(ctx, article.Article{Journal: "J Test Chem", Volume: "285", Issue: "5", FirstPage: "3076"}, false)
	if res.Reason != TransportError {
		t.Errorf("Reason = %v, want TXERROR", res.Reason)
	}
}

func TestResolveBatch(t *testing.T) {
	d, _ := newTestDispatcher(t)
	batch := []article.Article{
		{Journal: "J Test Chem", Volume: "285", Issue: "5", FirstPage: "3076"},
		{Journal: "Journal of Nothing"},
		{Journal: "Broken Journal", Volume: "1", Issue: "1", FirstPage: "1"},
		{Journal: "Some Defunct Journal"},
		{Journal: "Test BMC", DOI: "10.1186/bmc-1"},
	}

	results := d.ResolveBatch(context.Background(), batch, false)
	if len(results) != len(batch) {
		t.Fatalf("got %d results, want %d", len(results), len(batch))
	}
	want := []Reason{ReasonNone, NoFormatRegistered, TransportError, KnownUnsupported, ReasonNone}
	for i, r := range results {
		if r.Reason != want[i] {
			t.Errorf("results[%d].Reason = %v, want %v", i, r.Reason, want[i])
		}
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	d := NewDispatcher(journal.Default(), nil, WithVerify(false))
	a := article.Article{Journal: "J Biol Chem", Volume: "36(2)", FirstPage: "1", Authors: []string{"X"}}
	before := a

	d.Resolve(context.Background(), a, false)
	if a.Volume != before.Volume || a.Issue != before.Issue {
		t.Errorf("input mutated: %+v", a)
	}
}
