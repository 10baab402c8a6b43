// Package findit locates downloadable PDF URLs for articles by applying
// publisher-specific strategies ("dances") selected from a rule table.
package findit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/journal"
	"github.com/matsen/findit/internal/logging"
)

// RuleSource looks up the rule registered for a journal name.
// *journal.Table implements it.
type RuleSource interface {
	Lookup(journalName string) (journal.Rule, bool)
}

// Default central-repository mirrors, tried in order. {pmc} is the
// numeric PMC id.
var DefaultPMCMirrors = []string{
	"http://www.ncbi.nlm.nih.gov/pmc/articles/PMC{pmc}/pdf",
	"http://europepmc.org/backend/ptpmcrender.fcgi?accid=PMC{pmc}&blobtype=pdf",
}

const strategyPMC = "pmc"

// Dispatcher resolves articles to PDF URLs.
type Dispatcher struct {
	rules      RuleSource
	sess       *fetch.Session
	verify     bool
	username   string
	password   string
	pmcMirrors []string
	log        logrus.FieldLogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithVerify controls whether constructed URLs are fetched to confirm they
// serve a PDF. Without verification, templates are returned unchecked.
func WithVerify(verify bool) Option {
	return func(d *Dispatcher) {
		d.verify = verify
	}
}

// WithCredentials sets the login used by form-negotiation strategies.
func WithCredentials(username, password string) Option {
	return func(d *Dispatcher) {
		d.username = username
		d.password = password
	}
}

// WithPMCMirrors overrides the central-repository mirror templates.
func WithPMCMirrors(templates ...string) Option {
	return func(d *Dispatcher) {
		d.pmcMirrors = append([]string(nil), templates...)
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// NewDispatcher creates a Dispatcher over a rule source and HTTP session.
func NewDispatcher(rules RuleSource, sess *fetch.Session, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		rules:      rules,
		sess:       sess,
		verify:     true,
		pmcMirrors: DefaultPMCMirrors,
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve finds a PDF URL for a, or the reason none could be found.
//
// A central-repository copy is tried first and wins over every publisher
// rule. Otherwise the journal's rule is looked up once and its strategy
// run; recoverable failures fall through to the rule's fallback. Resolve
// never returns an error: every failure is reported in the Result.
func (d *Dispatcher) Resolve(ctx context.Context, a article.Article, allowPaywalled bool) Result {
	log := d.log.WithFields(logrus.Fields{"pmid": a.PMID, "journal": a.Journal})

	if a.PMC != "" {
		url, err := d.runStep(ctx, func() (string, error) { return d.pmcTwist(ctx, a) })
		if err == nil {
			log.WithField("url", url).Debug("central repository copy found")
			return Result{URL: url, Strategy: strategyPMC, Publisher: "PMC"}
		}
		log.WithError(err).Debug("central repository mirrors failed")
	}

	if a.Journal == "" {
		return failed(missing("journal"), "", "")
	}

	rule, ok := d.rules.Lookup(a.Journal)
	if !ok {
		return Result{Reason: NoFormatRegistered, Detail: fmt.Sprintf("no format registered for %q", a.Journal)}
	}

	switch {
	case rule.Kind == journal.KindUnsupported:
		return Result{Reason: KnownUnsupported, Detail: rule.Note, Strategy: rule.Kind.String(), Publisher: rule.Publisher}
	case rule.Kind == journal.KindTodo:
		return Result{Reason: NotYetSupported, Detail: rule.Note, Strategy: rule.Kind.String(), Publisher: rule.Publisher}
	case rule.Paywalled && !allowPaywalled:
		return Result{Reason: AccessDenied, Detail: "PAYWALL", Strategy: rule.Kind.String(), Publisher: rule.Publisher}
	}

	res := d.run(ctx, a, rule)
	if res.OK() || !res.Reason.Recoverable() || rule.Fallback == nil {
		log.WithFields(logrus.Fields{"strategy": res.Strategy, "reason": res.Reason}).Debug("resolved")
		return res
	}

	fb := *rule.Fallback
	if fb.Publisher == "" {
		fb.Publisher = rule.Publisher
	}
	if fb.Host == "" {
		fb.Host = rule.Host
	}
	if fb.Abbrev == "" {
		fb.Abbrev = rule.Abbrev
	}
	if fb.Paywalled && !allowPaywalled {
		log.Debug("fallback is paywalled, skipping")
		return res
	}
	log.WithFields(logrus.Fields{"reason": res.Reason, "detail": res.Detail}).Debug("trying fallback")
	if fres := d.run(ctx, a, fb); fres.OK() {
		return fres
	}
	return res
}

// ResolveBatch resolves each article independently. One failure never
// affects the others.
func (d *Dispatcher) ResolveBatch(ctx context.Context, articles []article.Article, allowPaywalled bool) []Result {
	results := make([]Result, len(articles))
	for i, a := range articles {
		results[i] = d.Resolve(ctx, a, allowPaywalled)
	}
	return results
}

// run executes one rule and converts its outcome into a Result.
func (d *Dispatcher) run(ctx context.Context, a article.Article, rule journal.Rule) Result {
	strategy := rule.Kind.String()
	url, err := d.runStep(ctx, func() (string, error) { return d.execute(ctx, a, rule) })
	if err != nil {
		return failed(classify(err), strategy, rule.Publisher)
	}
	return Result{URL: url, Strategy: strategy, Publisher: rule.Publisher}
}

// runStep calls step, turning a panic into a TransportError failure.
func (d *Dispatcher) runStep(ctx context.Context, step func() (string, error)) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			url, err = "", &Failure{Reason: TransportError, Detail: fmt.Sprintf("strategy panicked: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return step()
}

func (d *Dispatcher) execute(ctx context.Context, a article.Article, rule journal.Rule) (string, error) {
	switch rule.Kind {
	case journal.KindVIP:
		return d.vipShake(ctx, a, rule)
	case journal.KindPIITemplate:
		return d.piiTemplate(ctx, a, rule)
	case journal.KindDOITemplate:
		return d.doiTemplate(ctx, a, rule)
	case journal.KindRedirectRewrite:
		return d.redirectRewrite(ctx, a, rule)
	case journal.KindScrape:
		return d.scrapeFollow(ctx, a, rule)
	case journal.KindForm:
		return d.formTango(ctx, a, rule)
	default:
		return "", &Failure{Reason: NoFormatRegistered, Detail: "no strategy for rule kind " + rule.Kind.String()}
	}
}
