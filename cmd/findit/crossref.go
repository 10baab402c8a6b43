package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/crossref"
)

var (
	crFields    crossref.Fields
	crMinScore  float64
	crBestGuess bool
)

var crossrefCmd = &cobra.Command{
	Use:   "crossref [text...]",
	Short: "Search CrossRef for citations",
	Long: `Search the CrossRef citation index and show the candidates with the
one that would be accepted as the match.

Free text and field flags may be combined; with no free text the fields
are joined into the query.

Examples:
  findit crossref "Solberg Geiger 2010 J Biol Chem 285 3076"
  findit crossref --author "Solberg WU" --journal "J Biol Chem" --volume 285 --page 3076
  findit crossref --title "Structural basis" --best-guess --human`,
	Run: runCrossref,
}

// CrossrefResponse is the response for the crossref command.
type CrossrefResponse struct {
	Query      string               `json:"query"`
	Candidates []crossref.Candidate `json:"candidates"`
	Top        *crossref.Candidate  `json:"top"`
}

func init() {
	f := crossrefCmd.Flags()
	f.StringVar(&crFields.Title, "title", "", "Article title")
	f.StringVar(&crFields.Author, "author", "", "First author, PubMed style (\"Solberg WU\")")
	f.StringVar(&crFields.Journal, "journal", "", "Journal name")
	f.StringVar(&crFields.Volume, "volume", "", "Volume")
	f.StringVar(&crFields.Page, "page", "", "First page")
	f.StringVar(&crFields.Year, "year", "", "Publication year")
	f.Float64Var(&crMinScore, "min-score", 0, "Score a candidate must exceed (default from config)")
	f.BoolVar(&crBestGuess, "best-guess", false, "Fall back to the candidate overlapping the fields most")
	rootCmd.AddCommand(crossrefCmd)
}

func runCrossref(cmd *cobra.Command, args []string) {
	a := mustNewApp(appOptions{})
	defer a.Close()

	text := strings.Join(args, " ")
	cands, err := a.matcher.Query(cmd.Context(), text, crFields)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	minScore := a.cfg.CrossrefMinScore
	if crMinScore > 0 {
		minScore = crMinScore
	}
	top := crossref.TopResult(cands, minScore, crBestGuess, crFields)

	query := text
	if query == "" {
		query = crFields.Text()
	}

	if humanOutput {
		if len(cands) == 0 {
			outputHuman("No candidates for %q\n", query)
			return
		}
		for i, c := range cands {
			mark := " "
			if top != nil && c.DOI == top.DOI {
				mark = "*"
			}
			outputHuman("%s%d. [%.2f] %s\n   %s\n", mark, i+1, c.Score, c.DOI, truncateString(c.FullCitation, CitationMaxLen))
		}
		if top == nil {
			outputHuman("\nNo candidate scored above %.2f\n", minScore)
		}
		return
	}
	outputJSON(CrossrefResponse{Query: query, Candidates: cands, Top: top})
}
