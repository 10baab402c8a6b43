package main

import (
	"github.com/spf13/cobra"
)

var (
	convertBestGuess bool
	convertMinScore  float64
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between PMIDs and DOIs",
	Long: `Convert between PMIDs and DOIs.

PMID to DOI uses, in order: the DOI in the PubMed record, the PMC ID
converter, and a CrossRef citation match whose score exceeds the
threshold (crossref_min_score, default 2.0). DOI to PMID uses the PMC ID
converter and then a PubMed [AID] search.`,
}

// ConvertResponse is the response for convert subcommands.
type ConvertResponse struct {
	PMID  string  `json:"pmid"`
	DOI   string  `json:"doi"`
	Score float64 `json:"score,omitempty"`
}

var pmid2doiCmd = &cobra.Command{
	Use:   "pmid2doi <pmid>",
	Short: "Find the DOI for a PubMed ID",
	Long: `Find the DOI for a PubMed ID.

Examples:
  findit convert pmid2doi 19880848
  findit convert pmid2doi 19880848 --best-guess --human`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustNewApp(appOptions{bestGuess: convertBestGuess, minScore: convertMinScore})
		defer a.Close()

		doi, score, err := a.resolver.DOIForPMID(cmd.Context(), args[0])
		if err != nil {
			exitWithError(exitCodeFor(err), "%v", err)
		}
		if doi == "" {
			exitWithError(ExitDataError, "no DOI found for PMID %s", args[0])
		}
		if humanOutput {
			outputHuman("%s\t%s\t%.2f\n", args[0], doi, score)
			return
		}
		outputJSON(ConvertResponse{PMID: args[0], DOI: doi, Score: score})
	},
}

var doi2pmidCmd = &cobra.Command{
	Use:   "doi2pmid <doi>",
	Short: "Find the PubMed ID for a DOI",
	Long: `Find the PubMed ID for a DOI.

Examples:
  findit convert doi2pmid 10.1074/jbc.M109.081398`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustNewApp(appOptions{})
		defer a.Close()

		pmid, err := a.resolver.PMIDForDOI(cmd.Context(), args[0])
		if err != nil {
			exitWithError(exitCodeFor(err), "%v", err)
		}
		if pmid == "" {
			exitWithError(ExitDataError, "no PMID found for DOI %s", args[0])
		}
		if humanOutput {
			outputHuman("%s\t%s\n", args[0], pmid)
			return
		}
		outputJSON(ConvertResponse{PMID: pmid, DOI: args[0]})
	},
}

func init() {
	pmid2doiCmd.Flags().BoolVar(&convertBestGuess, "best-guess", false, "Accept the closest CrossRef match when none clears the threshold")
	pmid2doiCmd.Flags().Float64Var(&convertMinScore, "min-score", 0, "CrossRef score a match must exceed (default from config)")
	convertCmd.AddCommand(pmid2doiCmd, doi2pmidCmd)
	rootCmd.AddCommand(convertCmd)
}
