package ncbi

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"

	"github.com/matsen/findit/internal/article"
)

var (
	pmidPattern = regexp.MustCompile(`^\d{1,9}$`)
	yearPattern = regexp.MustCompile(`\b(1[89]|20)\d{2}\b`)
)

// IDRecord is one PMC ID converter answer. Missing ids are "".
type IDRecord struct {
	PMID  string `json:"pmid,omitempty"`
	PMCID string `json:"pmcid,omitempty"` // numeric part only
	DOI   string `json:"doi,omitempty"`
}

// Article fetches the esummary record for pmid.
func (c *Client) Article(ctx context.Context, pmid string) (article.Article, error) {
	pmid = strings.TrimSpace(pmid)
	if !pmidPattern.MatchString(pmid) {
		return article.Article{}, fmt.Errorf("%w: PMID %q", ErrInvalidID, pmid)
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", pmid)
	params.Set("retmode", "json")

	res, err := c.getJSON(ctx, "esummary", c.eutilsURL+"/esummary.fcgi", params, summaryError)
	if err != nil {
		return article.Article{}, fmt.Errorf("fetching PMID %s: %w", pmid, err)
	}

	doc := res.Get("result." + pmid)
	if !doc.Exists() || doc.Get("error").Exists() {
		return article.Article{}, fmt.Errorf("%w: PMID %s", ErrNotFound, pmid)
	}
	a := parseSummary(pmid, doc)
	if a.Journal == "" {
		return article.Article{}, fmt.Errorf("%w: PMID %s has no journal", ErrInvalidResponse, pmid)
	}
	c.log.WithField("pmid", pmid).WithField("journal", a.Journal).Debug("fetched record")
	return a, nil
}

// parseSummary maps an esummary document onto an Article. Absent fields
// stay "".
func parseSummary(pmid string, doc gjson.Result) article.Article {
	a := article.Article{
		PMID:    pmid,
		Journal: strings.TrimSpace(doc.Get("source").String()),
		Title:   strings.TrimSpace(doc.Get("title").String()),
		Volume:  strings.TrimSpace(doc.Get("volume").String()),
		Issue:   strings.TrimSpace(doc.Get("issue").String()),
		Pages:   strings.TrimSpace(doc.Get("pages").String()),
		Year:    yearOf(doc),
	}
	a.FirstPage = article.FirstPageOf(a.Pages)

	for _, au := range doc.Get("authors").Array() {
		if t := au.Get("authtype").String(); t != "" && t != "Author" {
			continue
		}
		if name := strings.TrimSpace(au.Get("name").String()); name != "" {
			a.Authors = append(a.Authors, name)
		}
	}

	for _, id := range doc.Get("articleids").Array() {
		value := strings.TrimSpace(id.Get("value").String())
		switch id.Get("idtype").String() {
		case "doi":
			a.DOI = article.NormalizeDOI(value)
		case "pii":
			a.PII = value
		case "pmc":
			a.PMC = article.NormalizePMC(value)
		}
	}
	if a.DOI == "" {
		if loc := doc.Get("elocationid").String(); strings.HasPrefix(strings.ToLower(loc), "doi:") {
			a.DOI = article.NormalizeDOI(loc)
		}
	}
	return a
}

// yearOf reads the publication year from sortpubdate or pubdate. PubMed
// dates like "2009 Winter" or "2010 Jan-Feb" defeat date parsers, so a
// bare four-digit year is the fallback.
func yearOf(doc gjson.Result) string {
	for _, field := range []string{"sortpubdate", "pubdate", "epubdate"} {
		s := strings.TrimSpace(doc.Get(field).String())
		if s == "" {
			continue
		}
		if t, err := dateparse.ParseAny(s); err == nil && t.Year() > 1800 {
			return fmt.Sprintf("%d", t.Year())
		}
		if y := yearPattern.FindString(s); y != "" {
			return y
		}
	}
	return ""
}

// SearchDOI finds the PMID for doi with an [AID] search. Zero or several
// hits return "".
func (c *Client) SearchDOI(ctx context.Context, doi string) (string, error) {
	doi = article.NormalizeDOI(doi)
	if doi == "" {
		return "", fmt.Errorf("%w: empty DOI", ErrInvalidID)
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", `"`+doi+`"[AID]`)
	params.Set("retmode", "json")

	res, err := c.getJSON(ctx, "esearch", c.eutilsURL+"/esearch.fcgi", params, searchError)
	if err != nil {
		return "", fmt.Errorf("searching DOI %s: %w", doi, err)
	}

	ids := res.Get("esearchresult.idlist").Array()
	log := c.log.WithField("doi", doi).WithField("hits", len(ids))
	if len(ids) != 1 {
		log.Debug("esearch did not return a single PMID")
		return "", nil
	}
	log.Debug("esearch matched")
	return ids[0].String(), nil
}

// IDConv looks up id (a PMID, PMCID or DOI) with the PMC ID converter. An
// id the converter does not know returns ErrNotFound.
func (c *Client) IDConv(ctx context.Context, id string) (IDRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return IDRecord{}, fmt.Errorf("%w: empty id", ErrInvalidID)
	}

	params := url.Values{}
	params.Set("ids", id)
	params.Set("format", "json")

	res, err := c.getJSON(ctx, "idconv", c.idconvURL, params, idconvError)
	if err != nil {
		return IDRecord{}, fmt.Errorf("converting %s: %w", id, err)
	}

	recs := res.Get("records").Array()
	if len(recs) == 0 {
		return IDRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r := recs[0]
	if r.Get("status").String() == "error" {
		return IDRecord{}, fmt.Errorf("%w: %s: %s", ErrNotFound, id, r.Get("errmsg").String())
	}

	rec := IDRecord{
		PMID:  strings.TrimSpace(r.Get("pmid").String()),
		PMCID: article.NormalizePMC(r.Get("pmcid").String()),
		DOI:   article.NormalizeDOI(r.Get("doi").String()),
	}
	if rec == (IDRecord{}) {
		return IDRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Each endpoint reports failures inside a 200 response in its own way.

func summaryError(res gjson.Result) error {
	if msg := res.Get("error"); msg.Exists() {
		return &APIError{Endpoint: "esummary", Message: msg.String()}
	}
	return nil
}

func searchError(res gjson.Result) error {
	if msg := res.Get("esearchresult.ERROR"); msg.Exists() {
		return &APIError{Endpoint: "esearch", Message: msg.String()}
	}
	return nil
}

func idconvError(res gjson.Result) error {
	if res.Get("status").String() == "error" {
		return &APIError{Endpoint: "idconv", Message: res.Get("message").String()}
	}
	return nil
}
