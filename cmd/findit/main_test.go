package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/config"
	"github.com/matsen/findit/internal/crossref"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/journal"
	"github.com/matsen/findit/internal/ncbi"
	"github.com/matsen/findit/internal/pdf"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"invalid config", fmt.Errorf("%w: timeout", config.ErrInvalidConfig), ExitConfigError},
		{"no pmid", fmt.Errorf("%w: 10.1/x", findit.ErrNoPMID), ExitDataError},
		{"record missing", fmt.Errorf("fetching: %w", ncbi.ErrNotFound), ExitDataError},
		{"bad pmid", fmt.Errorf("%w: PMID x", ncbi.ErrInvalidID), ExitDataError},
		{"not a pdf", pdf.ErrNotPDF, ExitDataError},
		{"publisher 404", &fetch.StatusError{Code: 404, URL: "u"}, ExitDataError},
		{"ncbi down", fmt.Errorf("%w: reset", ncbi.ErrNetworkError), ExitAPIError},
		{"ncbi 502", &ncbi.APIError{StatusCode: 502, Endpoint: "esearch"}, ExitAPIError},
		{"rate limited", fmt.Errorf("%w: esummary", ncbi.ErrRateLimited), ExitAPIError},
		{"crossref down", fmt.Errorf("%w: HTTP 500", crossref.ErrConnectivity), ExitAPIError},
		{"publisher 500", &fetch.StatusError{Code: 500, URL: "u"}, ExitAPIError},
		{"publisher 403", &fetch.StatusError{Code: 403, URL: "u"}, ExitAPIError},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatOutcomeHuman(t *testing.T) {
	ok := findit.Outcome{
		PMID:      "19880848",
		Journal:   "J Biol Chem",
		DOI:       "10.1074/jbc.m109.081398",
		DOIScore:  2.6,
		URL:       "http://www.jbc.org/content/285/5/3076.full.pdf",
		Strategy:  "vip",
		Publisher: "Highwire VIP",
	}
	got := formatOutcomeHuman(ok)
	for _, want := range []string{
		"19880848  J Biol Chem\n",
		"doi:    10.1074/jbc.m109.081398 (score 2.60)",
		"url:    http://www.jbc.org/content/285/5/3076.full.pdf",
		"via:    vip, Highwire VIP",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	fail := findit.Outcome{PMID: "1", Journal: "Unknown J", Reason: findit.NoFormatRegistered, Detail: "no rule for Unknown J"}
	got = formatOutcomeHuman(fail)
	if !strings.Contains(got, "reason: NOFORMAT (no rule for Unknown J)") {
		t.Errorf("failure output:\n%s", got)
	}
	if strings.Contains(got, "url:") || strings.Contains(got, "via:") {
		t.Errorf("failure output has url or strategy:\n%s", got)
	}

	exact := findit.Outcome{PMID: "2", DOI: "10.1/x", DOIScore: 100, URL: "http://x"}
	if got := formatOutcomeHuman(exact); strings.Contains(got, "score") {
		t.Errorf("exact DOI should not show a score:\n%s", got)
	}
}

func TestLookupJournal(t *testing.T) {
	table := journal.Default()

	resp := lookupJournal(table, "J. Biol. Chem.")
	if resp.Rule == nil {
		t.Fatal("J Biol Chem not registered")
	}
	if resp.Rule.Kind != journal.KindVIP || resp.Rule.Host != "www.jbc.org" {
		t.Errorf("rule = %+v", resp.Rule)
	}
	if resp.Normalized != "J Biol Chem" {
		t.Errorf("Normalized = %q", resp.Normalized)
	}

	if resp := lookupJournal(table, "BMC Genomics"); resp.Rule == nil || resp.Rule.Publisher != "BioMed Central" {
		t.Errorf("BMC Genomics = %+v", resp.Rule)
	}

	miss := lookupJournal(table, "Journal of Nothing Whatsoever")
	if miss.Rule != nil || miss.Reason != "NOFORMAT" {
		t.Errorf("miss = %+v", miss)
	}
}

func TestSummarizeFamilies(t *testing.T) {
	fams := journal.Default().Families()
	sums := summarizeFamilies(fams)
	if len(sums) != len(fams) {
		t.Fatalf("got %d summaries for %d families", len(sums), len(fams))
	}
	for i, s := range sums {
		if s.Name != fams[i].Name || s.Journals != len(fams[i].Journals) {
			t.Errorf("summary %d = %+v", i, s)
		}
	}
}

// withConfigFile points the global --config flag at a fresh file and
// restores the flags afterwards.
func withConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	oldPath, oldNoCache := configPath, noCache
	t.Cleanup(func() { configPath, noCache = oldPath, oldNoCache })
	configPath = path
	noCache = false
	return path
}

func TestLoadConfig(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	withConfigFile(t, "timeout: 30s\ncrossref_min_score: 2.5\ncache_path: "+cachePath+"\n")
	t.Setenv("FINDIT_CACHE", cachePath)
	t.Setenv("NCBI_API_KEY", "from-env")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Timeout != 30*time.Second || cfg.CrossrefMinScore != 2.5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.NCBIAPIKey != "from-env" {
		t.Errorf("NCBIAPIKey = %q, want env override", cfg.NCBIAPIKey)
	}
	if !cfg.CacheEnabled() {
		t.Error("cache should be enabled")
	}

	noCache = true
	cfg, err = loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheEnabled() {
		t.Error("--no-cache should disable the cache")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	withConfigFile(t, "timeout: [not a duration\n")
	t.Setenv("FINDIT_CACHE", "none")
	_, err := loadConfig()
	if exitCodeFor(err) != ExitConfigError {
		t.Errorf("loadConfig() error = %v, want config error", err)
	}

	withConfigFile(t, "timeout: -5s\n")
	if _, err := loadConfig(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("negative timeout error = %v", err)
	}
}

func TestNewApp_Cache(t *testing.T) {
	cfg := config.Default()
	cfg.CachePath = filepath.Join(t.TempDir(), "sub", "cache.db")
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if _, ok := a.store.(*cache.SQLite); !ok {
		t.Errorf("store = %T, want *cache.SQLite", a.store)
	}
	a.Close()

	cfg.CachePath = "none"
	a, err = newApp(cfg, appOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, ok := a.store.(cache.Nop); !ok {
		t.Errorf("store = %T, want cache.Nop", a.store)
	}
}

func TestLookup_TypeMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.CachePath = "none"
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	ctx := context.Background()

	tests := []struct {
		raw   string
		force article.IDType
		want  string
	}{
		{"PMC2823448", article.IDPMID, "is a PMCID, not a PMID"},
		{"10.1074/jbc.M109.081398", article.IDPMID, "is a DOI, not a PMID"},
		{"19880848", article.IDDOI, "is a PMID, not a DOI"},
		{"not an id", "", "unrecognized identifier"},
	}
	for _, tt := range tests {
		_, err := a.lookup(ctx, tt.raw, tt.force)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("lookup(%q, %q) error = %v, want %q", tt.raw, tt.force, err, tt.want)
		}
	}
}

func TestNewConfigResponse_MasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.NCBIAPIKey = "key"
	cfg.AAASPassword = "hunter2"
	resp := newConfigResponse("/tmp/c.yml", cfg)
	if resp.NCBIAPIKey == "key" || resp.AAASPassword == "hunter2" {
		t.Errorf("secrets leaked: %+v", resp)
	}
	if resp.Timeout != config.DefaultTimeout.String() {
		t.Errorf("Timeout = %q", resp.Timeout)
	}
	if mask("") != "" {
		t.Error("empty secret should stay empty")
	}
}

func TestFormatting(t *testing.T) {
	if got := truncateString("abcdefghij", 8); got != "abcde..." {
		t.Errorf("truncateString() = %q", got)
	}
	if got := truncateString("short", 8); got != "short" {
		t.Errorf("truncateString() = %q", got)
	}
	bytesTests := map[int64]string{512: "512 B", 2048: "2.0 KB", 5 << 20: "5.0 MB"}
	for n, want := range bytesTests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
