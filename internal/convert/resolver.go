// Package convert maps between PMIDs and DOIs, falling back from exact
// identifier services to fuzzy citation matching.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/crossref"
	"github.com/matsen/findit/internal/logging"
	"github.com/matsen/findit/internal/ncbi"
)

// MaxScore is the confidence reported for a DOI taken from an exact
// source (the record itself or the PMC ID converter).
const MaxScore = 100.0

// ErrEmptyID is returned when the identifier to convert is blank.
var ErrEmptyID = errors.New("empty identifier")

// Matcher searches a citation index.
type Matcher interface {
	Query(ctx context.Context, searchText string, fields crossref.Fields) ([]crossref.Candidate, error)
}

// Resolver converts identifiers. Any source may be nil and is then skipped.
type Resolver struct {
	records   ncbi.Backend
	matcher   Matcher
	minScore  float64
	bestGuess bool
	log       logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMinScore sets the score a citation match must exceed.
func WithMinScore(score float64) Option {
	return func(r *Resolver) {
		r.minScore = score
	}
}

// WithBestGuess accepts the highest-overlap citation match when nothing
// clears the score threshold.
func WithBestGuess(on bool) Option {
	return func(r *Resolver) {
		r.bestGuess = on
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a Resolver over a record backend and a citation matcher.
func NewResolver(records ncbi.Backend, matcher Matcher, opts ...Option) *Resolver {
	r := &Resolver{
		records:  records,
		matcher:  matcher,
		minScore: crossref.DefaultMinScore,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PMIDForDOI returns the PMID for doi, trying the PMC ID converter and then
// a PubMed [AID] search. An unknown DOI returns "" and a nil error.
func (r *Resolver) PMIDForDOI(ctx context.Context, doi string) (string, error) {
	doi = article.NormalizeDOI(doi)
	if doi == "" {
		return "", ErrEmptyID
	}
	if r.records == nil {
		return "", nil
	}
	log := r.log.WithField("doi", doi)

	rec, err := r.records.IDConv(ctx, doi)
	switch {
	case err == nil && rec.PMID != "":
		log.WithField("pmid", rec.PMID).Debug("pmid from idconv")
		return rec.PMID, nil
	case err != nil && !ncbi.IsNotFound(err):
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.WithError(err).Warn("idconv failed, falling back to esearch")
	}

	pmid, err := r.records.SearchDOI(ctx, doi)
	if err != nil {
		return "", fmt.Errorf("searching PubMed for %s: %w", doi, err)
	}
	return pmid, nil
}

// DOIForPMID fetches the record for pmid and returns its DOI with a
// confidence score. An article with no findable DOI returns ("", 0, nil).
func (r *Resolver) DOIForPMID(ctx context.Context, pmid string) (string, float64, error) {
	pmid = strings.TrimSpace(pmid)
	if pmid == "" {
		return "", 0, ErrEmptyID
	}
	if r.records == nil {
		return "", 0, fmt.Errorf("no record source for PMID %s", pmid)
	}
	a, err := r.records.Article(ctx, pmid)
	if err != nil {
		return "", 0, err
	}
	return r.DOIForArticle(ctx, a)
}

// DOIForArticle settles the DOI of an already-fetched record: a DOI in the
// record wins, then the PMC ID converter, then a citation match whose score
// exceeds the minimum (or the best guess, when enabled).
func (r *Resolver) DOIForArticle(ctx context.Context, a article.Article) (string, float64, error) {
	if doi := article.NormalizeDOI(a.DOI); doi != "" {
		return doi, MaxScore, nil
	}
	log := r.log.WithField("pmid", a.PMID)

	if r.records != nil && a.PMID != "" {
		rec, err := r.records.IDConv(ctx, a.PMID)
		switch {
		case err == nil && rec.DOI != "":
			log.Debug("doi from idconv")
			return rec.DOI, MaxScore, nil
		case err != nil && !ncbi.IsNotFound(err):
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			log.WithError(err).Warn("idconv failed, falling back to citation match")
		}
	}

	if r.matcher == nil {
		return "", 0, nil
	}
	fields := crossref.FieldsFor(a)
	cands, err := r.matcher.Query(ctx, "", fields)
	if err != nil {
		if errors.Is(err, crossref.ErrEmptyQuery) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("citation match for PMID %s: %w", a.PMID, err)
	}

	top := crossref.TopResult(cands, r.minScore, r.bestGuess, fields)
	if top == nil {
		log.WithField("candidates", len(cands)).Debug("no citation match above threshold")
		return "", 0, nil
	}
	log.WithFields(logrus.Fields{"doi": top.DOI, "score": top.Score}).Debug("doi from citation match")
	return top.DOI, top.Score, nil
}
