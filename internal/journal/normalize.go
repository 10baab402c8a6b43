package journal

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a journal name for lookup: NFKC, punctuation
// removed, runs of whitespace collapsed. Case is preserved, so "Cell" and
// "CELL" are different journals.
func Normalize(name string) string {
	name = norm.NFKC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range name {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
