package crossref

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinScore is the score a candidate must exceed to be trusted.
const DefaultMinScore = 2.0

// TopResult picks the candidate to accept from a result list.
//
// A candidate qualifies when its score is strictly greater than minScore.
// One qualifying candidate is returned as is; among several the highest
// score wins, with best-guess overlap breaking exact ties. When nothing
// qualifies the result is nil unless bestGuess is set, in which case the
// candidate sharing the most fragments with fields is returned, provided
// it shares at least one.
func TopResult(cands []Candidate, minScore float64, bestGuess bool, fields Fields) *Candidate {
	var above []Candidate
	for _, c := range cands {
		if c.Score > minScore {
			above = append(above, c)
		}
	}

	switch len(above) {
	case 0:
		if !bestGuess {
			return nil
		}
		return bestOverlap(cands, fields)
	case 1:
		return &above[0]
	}

	best := above[0]
	for _, c := range above[1:] {
		switch {
		case c.Score > best.Score:
			best = c
		case c.Score == best.Score && bestGuess && Overlap(c, fields) > Overlap(best, fields):
			best = c
		}
	}
	return &best
}

func bestOverlap(cands []Candidate, fields Fields) *Candidate {
	var (
		best      Candidate
		bestScore int
	)
	for _, c := range cands {
		n := Overlap(c, fields)
		if n > bestScore || (n == bestScore && n > 0 && c.Score > best.Score) {
			best, bestScore = c, n
		}
	}
	if bestScore == 0 {
		return nil
	}
	return &best
}

// Overlap counts how many citation fragments in fields appear in the
// candidate's citation text.
func Overlap(c Candidate, fields Fields) int {
	hay := fold(c.FullCitation + " " + c.Title + " " + string(c.Year))
	n := 0

	if containsWords(hay, surname(fields.Author)) {
		n++
	}
	for _, s := range []string{fields.Journal, fields.Volume, fields.Page, fields.Year} {
		if containsWords(hay, fold(s)) {
			n++
		}
	}
	if titleMatches(hay, fields.Title) {
		n++
	}
	return n
}

// containsWords reports whether needle occurs in hay on word boundaries.
// Both must already be folded.
func containsWords(hay, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+hay+" ", " "+needle+" ")
}

// titleMatches is true when most of the title's longer words occur in hay.
func titleMatches(hay, title string) bool {
	var words, hits int
	for _, w := range strings.Fields(fold(title)) {
		if len(w) < 4 {
			continue
		}
		words++
		if strings.Contains(hay, w) {
			hits++
		}
	}
	return words > 0 && hits*2 > words
}

// surname returns the family name of a PubMed-style author ("Solberg WU").
func surname(author string) string {
	f := strings.Fields(fold(author))
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// fold lowercases, drops diacritics and replaces punctuation with spaces.
func fold(s string) string {
	// Chains hold state, so each call gets its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if t, _, err := transform.String(stripMarks, s); err == nil {
		s = t
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
