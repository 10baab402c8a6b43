package findit

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/encoding/json"
	"github.com/sirupsen/logrus"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/logging"
)

// ErrNoPMID is returned by FindByDOI when the DOI maps to no PubMed record.
var ErrNoPMID = errors.New("no PMID found for DOI")

// Records fetches article metadata by PMID.
type Records interface {
	Article(ctx context.Context, pmid string) (article.Article, error)
}

// Identifiers converts between PMIDs and DOIs.
type Identifiers interface {
	DOIForArticle(ctx context.Context, a article.Article) (doi string, score float64, err error)
	PMIDForDOI(ctx context.Context, doi string) (string, error)
}

// Finder runs the full lookup for an identifier: fetch the record, settle
// its DOI, dispatch, and cache the outcome by PMID.
type Finder struct {
	dispatcher     *Dispatcher
	records        Records
	ids            Identifiers
	store          cache.Store
	retryErrors    bool
	allowPaywalled bool
	bestGuess      bool
	log            logrus.FieldLogger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithCache sets the outcome cache.
func WithCache(store cache.Store) FinderOption {
	return func(f *Finder) {
		f.store = store
	}
}

// WithRetryErrors makes cached TXERROR outcomes be resolved again.
func WithRetryErrors(retry bool) FinderOption {
	return func(f *Finder) {
		f.retryErrors = retry
	}
}

// WithPaywalled allows journals flagged as always paywalled.
func WithPaywalled(allow bool) FinderOption {
	return func(f *Finder) {
		f.allowPaywalled = allow
	}
}

// WithBestGuess records that the Identifiers accept best-guess citation
// matches. Such outcomes are cached apart from strict ones.
func WithBestGuess(on bool) FinderOption {
	return func(f *Finder) {
		f.bestGuess = on
	}
}

// WithFinderLogger sets the logger.
func WithFinderLogger(log logrus.FieldLogger) FinderOption {
	return func(f *Finder) {
		f.log = log
	}
}

// NewFinder creates a Finder. ids may be nil, in which case only DOIs
// present in the record are used.
func NewFinder(d *Dispatcher, records Records, ids Identifiers, opts ...FinderOption) *Finder {
	f := &Finder{
		dispatcher: d,
		records:    records,
		ids:        ids,
		store:      cache.Nop{},
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// outcomeKey includes every setting that changes an outcome, so a
// PAYWALL denial is not replayed once paywalled journals are allowed.
func outcomeKey(pmid string, allowPaywalled, bestGuess bool) string {
	return fmt.Sprintf("findit:%s:p%d:g%d", pmid, flag(allowPaywalled), flag(bestGuess))
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (f *Finder) key(pmid string) string {
	return outcomeKey(pmid, f.allowPaywalled, f.bestGuess)
}

// FindByPMID resolves the article with the given PMID.
func (f *Finder) FindByPMID(ctx context.Context, pmid string) (Outcome, error) {
	log := f.log.WithField("pmid", pmid)

	if out, ok := f.cached(ctx, pmid); ok {
		if !(f.retryErrors && out.Reason == TransportError) {
			log.Debug("outcome cache hit")
			return out, nil
		}
		log.Debug("retrying cached transport error")
	}

	a, err := f.records.Article(ctx, pmid)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching PMID %s: %w", pmid, err)
	}

	out := Outcome{PMID: pmid, DOI: a.DOI, Journal: a.Journal}
	if f.ids != nil {
		doi, score, err := f.ids.DOIForArticle(ctx, a)
		switch {
		case err != nil:
			log.WithError(err).Warn("DOI lookup failed")
		case doi != "":
			a.DOI = doi
			out.DOI = doi
			out.DOIScore = score
		}
	}

	out.setResult(f.dispatcher.Resolve(ctx, a, f.allowPaywalled))
	if ctx.Err() != nil {
		// An interrupted lookup says nothing about the article.
		log.WithError(ctx.Err()).Debug("not caching outcome of cancelled lookup")
		return out, nil
	}
	f.remember(ctx, out)
	return out, nil
}

// FindByDOI maps the DOI to a PMID and resolves that article.
func (f *Finder) FindByDOI(ctx context.Context, doi string) (Outcome, error) {
	doi = article.NormalizeDOI(doi)
	if f.ids == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoPMID, doi)
	}
	pmid, err := f.ids.PMIDForDOI(ctx, doi)
	if err != nil {
		return Outcome{}, fmt.Errorf("looking up DOI %s: %w", doi, err)
	}
	if pmid == "" {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoPMID, doi)
	}

	out, err := f.FindByPMID(ctx, pmid)
	if err != nil {
		return out, err
	}
	if out.DOI == "" {
		out.DOI = doi
	}
	return out, nil
}

// Forget drops the cached outcomes for a PMID under every setting.
func (f *Finder) Forget(ctx context.Context, pmid string) error {
	for _, paywalled := range []bool{false, true} {
		for _, guess := range []bool{false, true} {
			if err := f.store.Delete(ctx, outcomeKey(pmid, paywalled, guess)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Finder) cached(ctx context.Context, pmid string) (Outcome, bool) {
	data, ok, err := f.store.Get(ctx, f.key(pmid))
	if err != nil {
		f.log.WithError(err).Warn("reading outcome cache")
		return Outcome{}, false
	}
	if !ok {
		return Outcome{}, false
	}
	var out Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		f.log.WithError(err).Warn("discarding unreadable cached outcome")
		return Outcome{}, false
	}
	return out, true
}

func (f *Finder) remember(ctx context.Context, out Outcome) {
	data, err := json.Marshal(out)
	if err != nil {
		f.log.WithError(err).Warn("encoding outcome")
		return
	}
	if err := f.store.Set(ctx, f.key(out.PMID), data); err != nil {
		f.log.WithError(err).Warn("writing outcome cache")
	}
}
