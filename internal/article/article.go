// Package article defines the bibliographic metadata that drives PDF resolution.
package article

import (
	"regexp"
	"strings"
)

// Article is the metadata for a single PubMed record.
//
// Journal is always set. Every other field may be empty and callers must
// check before use.
type Article struct {
	PMID      string   `json:"pmid,omitempty"`
	Journal   string   `json:"journal"`
	Title     string   `json:"title,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Year      string   `json:"year,omitempty"`
	Volume    string   `json:"volume,omitempty"`
	Issue     string   `json:"issue,omitempty"`
	Pages     string   `json:"pages,omitempty"`
	FirstPage string   `json:"first_page,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	PII       string   `json:"pii,omitempty"`
	PMC       string   `json:"pmc,omitempty"` // numeric part only, without the "PMC" prefix
}

// FirstAuthor returns the first listed author or "".
func (a Article) FirstAuthor() string {
	if len(a.Authors) == 0 {
		return ""
	}
	return a.Authors[0]
}

// HasVIP reports whether volume, issue and first page are all present.
func (a Article) HasVIP() bool {
	return a.Volume != "" && a.Issue != "" && a.FirstPage != ""
}

// compositeVolume matches volumes that carry their issue, e.g. "36(2)",
// "36 (Pt 2)", "36 Suppl 2" or "36 Pt B".
var compositeVolume = regexp.MustCompile(`^\s*(\d+)\s*(?:\(\s*(?:(?:Pt|Suppl|Part)\.?\s*)?([0-9A-Za-z]+)\s*\)|\s+(?:(?:Pt|Suppl|Part)\.?\s*)?([0-9A-Za-z]+))\s*$`)

// NormalizeVIP backfills a missing issue from a composite volume string.
// The input is never modified; a normalized copy is returned.
func NormalizeVIP(a Article) Article {
	out := a
	if len(a.Authors) > 0 {
		out.Authors = append([]string(nil), a.Authors...)
	}
	if out.Issue != "" || out.Volume == "" {
		return out
	}
	m := compositeVolume.FindStringSubmatch(out.Volume)
	if m == nil {
		return out
	}
	issue := m[2]
	if issue == "" {
		issue = m[3]
	}
	out.Volume = m[1]
	out.Issue = issue
	if out.FirstPage == "" {
		out.FirstPage = FirstPageOf(out.Pages)
	}
	return out
}

// FirstPageOf extracts the first page from a page range such as "3076-84"
// or "e1002, e1003".
func FirstPageOf(pages string) string {
	pages = strings.TrimSpace(pages)
	if pages == "" {
		return ""
	}
	if i := strings.IndexAny(pages, "-–,; "); i >= 0 {
		pages = pages[:i]
	}
	return strings.TrimSpace(pages)
}
