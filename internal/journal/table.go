package journal

import (
	"sort"
	"strings"
)

// Entry is one journal in a family, with the per-journal parameters the
// family's template needs.
type Entry struct {
	Name   string `json:"name"`
	Host   string `json:"host,omitempty"`
	Abbrev string `json:"abbrev,omitempty"`
}

// Family is a set of journals sharing one strategy. Prefixes claim every
// journal whose normalized name starts with them (e.g. "BMC ").
type Family struct {
	Name     string   `json:"name"`
	Priority int      `json:"priority"`
	Rule     Rule     `json:"rule"`
	Journals []Entry  `json:"journals,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
}

// Table maps normalized journal names to rules. It is immutable once
// built and safe for concurrent use.
//
// When more than one family claims a journal, through the explicit list
// or a prefix, the family with the lowest Priority wins. Equal priorities
// are resolved in registration order.
type Table struct {
	exact    map[string]Rule
	prefixes []prefixRule
	families []Family
}

type prefixRule struct {
	prefix string
	rule   Rule
}

// NewTable builds a table from families in registration order.
func NewTable(families ...Family) *Table {
	t := &Table{
		exact:    make(map[string]Rule),
		families: append([]Family(nil), families...),
	}

	for _, fam := range families {
		base := fam.Rule
		base.Publisher = fam.Name
		base.Priority = fam.Priority

		for _, e := range fam.Journals {
			rule := base
			if e.Host != "" {
				rule.Host = e.Host
			}
			if e.Abbrev != "" {
				rule.Abbrev = e.Abbrev
			}
			key := Normalize(e.Name)
			if prev, ok := t.exact[key]; ok && prev.Priority <= rule.Priority {
				continue
			}
			t.exact[key] = rule
		}

		for _, p := range fam.Prefixes {
			t.prefixes = append(t.prefixes, prefixRule{
				prefix: Normalize(p) + suffixSpace(p),
				rule:   base,
			})
		}
	}

	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return t.prefixes[i].rule.Priority < t.prefixes[j].rule.Priority
	})
	return t
}

// suffixSpace keeps a trailing word boundary on prefixes such as "BMC ",
// which Normalize would otherwise trim.
func suffixSpace(p string) string {
	if strings.HasSuffix(p, " ") {
		return " "
	}
	return ""
}

// Lookup returns the rule for a journal name.
func (t *Table) Lookup(name string) (Rule, bool) {
	key := Normalize(name)
	if key == "" {
		return Rule{}, false
	}

	rule, found := t.exact[key]
	for _, p := range t.prefixes {
		if found && p.rule.Priority >= rule.Priority {
			break
		}
		if strings.HasPrefix(key, p.prefix) {
			rule, found = p.rule, true
			break
		}
	}
	return rule, found
}

// Families returns the registered families in registration order.
func (t *Table) Families() []Family {
	return append([]Family(nil), t.families...)
}

// Len returns the number of explicitly listed journals.
func (t *Table) Len() int {
	return len(t.exact)
}

// Journals returns the explicitly listed journal names, sorted.
func (t *Table) Journals() []string {
	names := make([]string, 0, len(t.exact))
	for k := range t.exact {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
