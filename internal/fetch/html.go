package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document parses the page body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	if p.IsPDF() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotHTML, p.URL, p.ContentType)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedHTML, p.URL, err)
	}
	return doc, nil
}

// CitationPDFURL returns the citation_pdf_url meta tag, which most
// publishers emit for Google Scholar, or "" if absent.
func CitationPDFURL(doc *goquery.Document) string {
	return MetaContent(doc, "citation_pdf_url")
}

// MetaContent returns the content attribute of the first <meta name=...>.
func MetaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

// FirstHref returns the href of the first element matching selector.
func FirstHref(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("href", ""))
}

// Form is an HTML form ready to be re-submitted.
type Form struct {
	Action string
	Method string
	Fields url.Values
}

// FindForm returns the first form matching selector along with every named
// input's current value, so hidden tokens such as form_build_id survive.
func FindForm(doc *goquery.Document, selector string) (*Form, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}

	form := &Form{
		Action: strings.TrimSpace(sel.AttrOr("action", "")),
		Method: strings.ToUpper(sel.AttrOr("method", "GET")),
		Fields: url.Values{},
	}
	sel.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		form.Fields.Add(name, in.AttrOr("value", ""))
	})
	return form, true
}
