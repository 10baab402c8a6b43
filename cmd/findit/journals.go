package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/journal"
)

var journalsAll bool

var journalsCmd = &cobra.Command{
	Use:   "journals [name...]",
	Short: "List publisher families or show the rule for a journal",
	Long: `List the registered publisher families, or show the rule a journal
name resolves to. Names are matched after normalization (punctuation
dropped, whitespace collapsed), so "J. Biol. Chem." and "J Biol Chem"
are the same journal.

Examples:
  findit journals
  findit journals --all --human
  findit journals "BMC Genomics"
  findit journals J Biol Chem --human`,
	Run: runJournals,
}

func init() {
	journalsCmd.Flags().BoolVar(&journalsAll, "all", false, "List every explicitly registered journal")
	rootCmd.AddCommand(journalsCmd)
}

// FamilySummary describes one publisher family.
type FamilySummary struct {
	Name     string       `json:"name"`
	Priority int          `json:"priority"`
	Kind     journal.Kind `json:"kind"`
	Journals int          `json:"journals"`
	Prefixes []string     `json:"prefixes,omitempty"`
}

// JournalResponse is the rule lookup for one journal name.
type JournalResponse struct {
	Journal    string        `json:"journal"`
	Normalized string        `json:"normalized"`
	Rule       *journal.Rule `json:"rule,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

func runJournals(cmd *cobra.Command, args []string) {
	table := journal.Default()

	if len(args) > 0 {
		outputJournalRule(table, strings.Join(args, " "))
		return
	}

	if journalsAll {
		names := table.Journals()
		if humanOutput {
			for _, n := range names {
				outputHuman("%s\n", n)
			}
			return
		}
		outputJSON(names)
		return
	}

	summaries := summarizeFamilies(table.Families())
	if humanOutput {
		for _, s := range summaries {
			outputHuman("%-28s %-16s priority %-3d %d journals", s.Name, s.Kind, s.Priority, s.Journals)
			if len(s.Prefixes) > 0 {
				outputHuman(", prefixes %q", s.Prefixes)
			}
			outputHuman("\n")
		}
		outputHuman("\n%d journals registered\n", table.Len())
		return
	}
	outputJSON(summaries)
}

func summarizeFamilies(fams []journal.Family) []FamilySummary {
	out := make([]FamilySummary, 0, len(fams))
	for _, f := range fams {
		out = append(out, FamilySummary{
			Name:     f.Name,
			Priority: f.Priority,
			Kind:     f.Rule.Kind,
			Journals: len(f.Journals),
			Prefixes: f.Prefixes,
		})
	}
	return out
}

// lookupJournal resolves a name against the table. A miss carries the
// NOFORMAT reason the dispatcher would report.
func lookupJournal(rules findit.RuleSource, name string) JournalResponse {
	resp := JournalResponse{Journal: name, Normalized: journal.Normalize(name)}
	rule, ok := rules.Lookup(name)
	if !ok {
		resp.Reason = findit.NoFormatRegistered.String()
		return resp
	}
	resp.Rule = &rule
	return resp
}

func outputJournalRule(table *journal.Table, name string) {
	resp := lookupJournal(table, name)
	if !humanOutput {
		outputJSON(resp)
		return
	}

	if resp.Rule == nil {
		outputHuman("%s: %s (no rule registered)\n", name, resp.Reason)
		return
	}
	r := resp.Rule
	outputHuman("%s\n", name)
	outputHuman("  publisher: %s (priority %d)\n", r.Publisher, r.Priority)
	outputHuman("  kind:      %s\n", r.Kind)
	if r.Template != "" {
		outputHuman("  template:  %s\n", r.Template)
	}
	if r.Host != "" {
		outputHuman("  host:      %s\n", r.Host)
	}
	if r.Abbrev != "" {
		outputHuman("  abbrev:    %s\n", r.Abbrev)
	}
	if r.Paywalled {
		outputHuman("  paywalled\n")
	}
	if r.Fallback != nil {
		outputHuman("  fallback:  %s\n", r.Fallback.Kind)
	}
	if r.Note != "" {
		outputHuman("  note:      %s\n", r.Note)
	}
}
