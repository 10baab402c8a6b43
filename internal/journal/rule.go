// Package journal holds the publisher rule table: which URL-construction
// strategy applies to which journal, and the parameters it needs.
package journal

import (
	"regexp"
	"strings"
)

// Kind tags the strategy a Rule selects.
type Kind int

const (
	KindVIP             Kind = iota + 1 // volume/issue/page template
	KindPIITemplate                     // template keyed on the publisher item id
	KindDOITemplate                     // template keyed on the DOI
	KindRedirectRewrite                 // resolve DOI, then rewrite the landing URL
	KindScrape                          // fetch a landing page, find the PDF link
	KindForm                            // landing page with a login form
	KindTodo                            // known journal, format not worked out yet
	KindUnsupported                     // permanently out of scope
)

var kindNames = map[Kind]string{
	KindVIP:             "vip",
	KindPIITemplate:     "pii-template",
	KindDOITemplate:     "doi-template",
	KindRedirectRewrite: "redirect-rewrite",
	KindScrape:          "scrape",
	KindForm:            "form",
	KindTodo:            "todo",
	KindUnsupported:     "unsupported",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the kind name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Rewrite is an ordered string substitution applied to a landing URL.
type Rewrite struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Rule is the strategy registered for a journal. Rules are values; the
// table hands out copies.
type Rule struct {
	Kind      Kind   `json:"kind"`
	Publisher string `json:"publisher"`
	Priority  int    `json:"priority"`

	// Template is a URL with {placeholders}: host, abbrev, volume, issue,
	// first_page, pii, doi, doi_suffix.
	Template string `json:"template,omitempty"`
	Host     string `json:"host,omitempty"`
	Abbrev   string `json:"abbrev,omitempty"`

	Rewrites []Rewrite `json:"rewrites,omitempty"`

	// Landing is a template for the page a scrape starts from. Empty means
	// the DOI landing page.
	Landing string `json:"landing,omitempty"`
	// Selector locates the PDF link when no citation_pdf_url is present.
	Selector string `json:"selector,omitempty"`

	DenyMarkers []string `json:"deny_markers,omitempty"`
	Paywalled   bool     `json:"paywalled,omitempty"`
	StripPII    bool     `json:"strip_pii,omitempty"`

	Fallback *Rule  `json:"fallback,omitempty"`
	Note     string `json:"note,omitempty"`
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render fills tmpl from vars plus the rule's host and abbrev. It returns
// the URL and the names of any placeholders that had no value; the URL is
// only meaningful when missing is empty.
func (r Rule) Render(tmpl string, vars map[string]string) (url string, missing []string) {
	url = placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		var v string
		switch name {
		case "host":
			v = r.Host
		case "abbrev":
			v = r.Abbrev
		default:
			v = strings.TrimSpace(vars[name])
		}
		if v == "" {
			missing = append(missing, name)
		}
		return v
	})
	return url, missing
}

// Placeholders lists the placeholder names a template refers to.
func Placeholders(tmpl string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		names = append(names, m[1])
	}
	return names
}

// ApplyRewrites performs the rule's substitutions on u in order. Each
// rewrite replaces only the first occurrence.
func (r Rule) ApplyRewrites(u string) string {
	for _, rw := range r.Rewrites {
		u = strings.Replace(u, rw.Old, rw.New, 1)
	}
	return u
}

// Terminal reports whether the rule classifies a journal without any
// network access.
func (r Rule) Terminal() bool {
	return r.Kind == KindTodo || r.Kind == KindUnsupported
}
