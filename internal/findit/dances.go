package findit

import (
	"context"
	"strings"
	"unicode"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/journal"
)

// loginFormSelector matches the AAAS login form in its known layouts.
const loginFormSelector = "form#user-login, form#user-login-form, form[action*='login']"

// templateVars exposes an article's fields to rule templates.
func templateVars(a article.Article, rule journal.Rule) map[string]string {
	pii := a.PII
	if rule.StripPII {
		pii = stripPII(pii)
	}
	return map[string]string{
		"volume":     a.Volume,
		"issue":      a.Issue,
		"first_page": a.FirstPage,
		"pii":        pii,
		"doi":        a.DOI,
		"doi_suffix": article.DOISuffix(a.DOI),
	}
}

// stripPII removes the punctuation Cell Press omits from PDF paths:
// "S0092-8674(10)00001-1" becomes "S0092867410000011".
func stripPII(pii string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, pii)
}

func render(rule journal.Rule, tmpl string, a article.Article) (string, error) {
	url, absent := rule.Render(tmpl, templateVars(a, rule))
	if len(absent) > 0 {
		return "", missing(absent...)
	}
	return url, nil
}

// vipShake renders the volume/issue/page template, normalizing composite
// volumes such as "36(2)" first.
func (d *Dispatcher) vipShake(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	n := article.NormalizeVIP(a)
	if n.FirstPage == "" {
		n.FirstPage = article.FirstPageOf(n.Pages)
	}
	url, err := render(rule, rule.Template, n)
	if err != nil {
		return "", err
	}
	return d.confirm(ctx, url, rule)
}

// piiTemplate renders a template keyed on the publisher item id.
func (d *Dispatcher) piiTemplate(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	if a.PII == "" {
		return "", missing("pii")
	}
	url, err := render(rule, rule.Template, a)
	if err != nil {
		return "", err
	}
	return d.confirm(ctx, url, rule)
}

// doiTemplate renders a template keyed on the DOI.
func (d *Dispatcher) doiTemplate(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	if a.DOI == "" {
		return "", missing("doi")
	}
	url, err := render(rule, rule.Template, article.NormalizeVIP(a))
	if err != nil {
		return "", err
	}
	return d.confirm(ctx, url, rule)
}

// redirectRewrite resolves the DOI to the publisher landing page and
// rewrites the landing URL into the PDF URL.
func (d *Dispatcher) redirectRewrite(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	if a.DOI == "" {
		return "", missing("doi")
	}
	page, err := d.sess.ResolveDOI(ctx, a.DOI)
	if err != nil {
		return "", err
	}
	if page.IsPDF() {
		return page.URL, nil
	}

	url := rule.ApplyRewrites(page.URL)
	if url == page.URL {
		return "", noLink("landing page %s does not match the publisher's URL pattern", page.URL)
	}
	return d.confirm(ctx, url, rule)
}

// scrapeFollow fetches a landing page and follows its PDF link.
func (d *Dispatcher) scrapeFollow(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	var (
		page *fetch.Page
		err  error
	)
	if rule.Landing != "" {
		landing, rerr := render(rule, rule.Landing, a)
		if rerr != nil {
			return "", rerr
		}
		page, err = d.sess.Get(ctx, landing)
	} else {
		if a.DOI == "" {
			return "", missing("doi")
		}
		page, err = d.sess.ResolveDOI(ctx, a.DOI)
	}
	if err != nil {
		return "", err
	}
	if page.IsPDF() {
		return page.URL, nil
	}

	doc, err := page.Document()
	if err != nil {
		return "", err
	}
	link := fetch.CitationPDFURL(doc)
	if link == "" && rule.Selector != "" {
		link = fetch.FirstHref(doc, rule.Selector)
	}
	if link == "" {
		if marker, ok := denyMarker(page, rule); ok {
			return "", denied("landing page %s shows %q", page.URL, marker)
		}
		return "", noLink("no PDF link on %s", page.URL)
	}

	link = page.Resolve(link)
	if !pdfLike(link) {
		return "", denied("link %s is not a PDF", link)
	}
	return d.confirm(ctx, link, rule)
}

// formTango handles landing pages behind a login form: the hidden
// form_build_id token is posted back with the configured credentials and
// the response is accepted only if it is a PDF.
func (d *Dispatcher) formTango(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	n := article.NormalizeVIP(a)
	if n.FirstPage == "" {
		n.FirstPage = article.FirstPageOf(n.Pages)
	}
	url, err := render(rule, rule.Template, n)
	if err != nil {
		return "", err
	}

	page, err := d.sess.Get(ctx, url)
	if err != nil && !(fetch.IsDenied(err) && page != nil) {
		return "", err
	}
	if err == nil && page.IsPDF() {
		return url, nil
	}

	doc, derr := page.Document()
	if derr != nil {
		return "", derr
	}
	form, ok := fetch.FindForm(doc, loginFormSelector)
	if !ok {
		if err != nil {
			return "", err
		}
		return "", denied("no PDF and no login form at %s", page.URL)
	}
	if d.username == "" || d.password == "" {
		return "", denied("login required at %s and no credentials configured", page.URL)
	}
	if form.Fields.Get("form_build_id") == "" {
		return "", noLink("login form at %s has no form_build_id", page.URL)
	}

	form.Fields.Set("name", d.username)
	form.Fields.Set("pass", d.password)
	action := page.Resolve(form.Action)
	if action == "" {
		action = page.URL
	}

	resp, err := d.sess.PostForm(ctx, action, form.Fields)
	if err != nil {
		return "", err
	}
	if !resp.IsPDF() {
		return "", denied("login at %s did not yield a PDF", action)
	}
	return resp.URL, nil
}

// pmcTwist tries the central-repository mirrors in order. With
// verification off the first mirror is returned unchecked.
func (d *Dispatcher) pmcTwist(ctx context.Context, a article.Article) (string, error) {
	pmc := article.NormalizePMC(a.PMC)
	if pmc == "" {
		return "", missing("pmc")
	}

	var lastErr error = noLink("no central repository mirrors configured")
	for _, tmpl := range d.pmcMirrors {
		url := strings.ReplaceAll(tmpl, "{pmc}", pmc)
		if !d.verify {
			return url, nil
		}
		page, err := d.sess.Get(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if page.IsPDF() {
			return url, nil
		}
		lastErr = noLink("mirror %s served %s", url, page.ContentType)
	}
	return "", lastErr
}

// confirm fetches url when verification is on and checks that it serves a
// PDF rather than an access gate.
func (d *Dispatcher) confirm(ctx context.Context, url string, rule journal.Rule) (string, error) {
	if !d.verify {
		return url, nil
	}
	page, err := d.sess.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if page.IsPDF() {
		return url, nil
	}
	if marker, ok := denyMarker(page, rule); ok {
		return "", denied("%s shows %q", page.URL, marker)
	}
	return "", noLink("%s served %s instead of a PDF", page.URL, page.ContentType)
}

func denyMarker(page *fetch.Page, rule journal.Rule) (string, bool) {
	for _, m := range rule.DenyMarkers {
		if page.Contains(m) {
			return m, true
		}
	}
	return "", false
}

func pdfLike(link string) bool {
	l := strings.ToLower(link)
	return strings.Contains(l, ".pdf") || strings.Contains(l, "/pdf")
}
