package article

import (
	"regexp"
	"strings"
)

// IDType classifies a user-supplied identifier.
type IDType string

const (
	IDPMID    IDType = "PMID"
	IDPMCID   IDType = "PMCID"
	IDDOI     IDType = "DOI"
	IDUnknown IDType = "UNKNOWN"
)

// Identifier is a parsed article identifier.
type Identifier struct {
	Type  IDType
	Value string
}

func (id Identifier) String() string {
	return string(id.Type) + ":" + id.Value
}

// identifierPrefixes are accepted in front of an identifier, case-insensitively.
var identifierPrefixes = []struct {
	prefix string
	typ    IDType
}{
	{"https://doi.org/", IDDOI},
	{"http://doi.org/", IDDOI},
	{"https://dx.doi.org/", IDDOI},
	{"http://dx.doi.org/", IDDOI},
	{"doi.org/", IDDOI},
	{"DOI:", IDDOI},
	{"PMID:", IDPMID},
	{"PMCID:", IDPMCID},
}

var (
	pmidPattern  = regexp.MustCompile(`^\d{1,9}$`)
	pmcidPattern = regexp.MustCompile(`^(?i)PMC\d+$`)
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
)

// ParseID classifies an identifier string.
// Supports formats:
//   - 19872477, PMID:19872477
//   - PMC2323736, PMCID:PMC2323736
//   - 10.1038/nature12373, DOI:10.1038/..., https://doi.org/10.1038/...
func ParseID(raw string) Identifier {
	id := strings.TrimSpace(raw)

	for _, p := range identifierPrefixes {
		if len(id) >= len(p.prefix) && strings.EqualFold(id[:len(p.prefix)], p.prefix) {
			value := strings.TrimSpace(id[len(p.prefix):])
			if p.typ == IDPMCID {
				value = NormalizePMC(value)
			}
			return Identifier{Type: p.typ, Value: value}
		}
	}

	switch {
	case pmidPattern.MatchString(id):
		return Identifier{Type: IDPMID, Value: id}
	case pmcidPattern.MatchString(id):
		return Identifier{Type: IDPMCID, Value: NormalizePMC(id)}
	case doiPattern.MatchString(id):
		return Identifier{Type: IDDOI, Value: id}
	}
	return Identifier{Type: IDUnknown, Value: id}
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and converts to lowercase.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, p) {
			lower = lower[len(p):]
			break
		}
	}
	return strings.TrimSpace(lower)
}

// NormalizePMC strips the "PMC" prefix, leaving the numeric id.
func NormalizePMC(pmc string) string {
	pmc = strings.TrimSpace(pmc)
	if len(pmc) >= 3 && strings.EqualFold(pmc[:3], "PMC") {
		return pmc[3:]
	}
	return pmc
}

// DOISuffix returns the part of a DOI after the registrant prefix,
// e.g. "000012345" for "10.1159/000012345".
func DOISuffix(doi string) string {
	if i := strings.Index(doi, "/"); i >= 0 {
		return doi[i+1:]
	}
	return ""
}
