package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/article"
	"github.com/matsen/findit/internal/clipboard"
	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/ncbi"
)

var (
	findAllowPaywalled bool
	findBestGuess      bool
	findRefresh        bool
	findCopy           bool
)

var findCmd = &cobra.Command{
	Use:   "find <id>...",
	Short: "Find PDF URLs for PMIDs, PMCIDs or DOIs",
	Long: `Find PDF URLs for articles identified by PMID, PMCID or DOI.

The identifier type is detected from its form:
  19880848, PMID:19880848
  PMC2823448, PMCID:PMC2823448
  10.1074/jbc.M109.081398, DOI:10.1074/..., https://doi.org/10.1074/...

Each lookup is reported even when it fails; a failed lookup carries a
reason code instead of a URL.

Examples:
  findit find 19880848
  findit find 19880848 10.1038/nature12373 --human
  findit find PMC2823448 --refresh`,
	Args: cobra.MinimumNArgs(1),
	Run:  func(cmd *cobra.Command, args []string) { runFind(cmd.Context(), args, "") },
}

var pmidCmd = &cobra.Command{
	Use:   "pmid <pmid>...",
	Short: "Find PDF URLs for PubMed IDs",
	Long: `Find PDF URLs for PubMed IDs.

Examples:
  findit pmid 19880848
  findit pmid 19880848 20000000 --human`,
	Args: cobra.MinimumNArgs(1),
	Run:  func(cmd *cobra.Command, args []string) { runFind(cmd.Context(), args, article.IDPMID) },
}

var doiCmd = &cobra.Command{
	Use:   "doi <doi>...",
	Short: "Find PDF URLs for DOIs",
	Long: `Find PDF URLs for DOIs. The DOI is first mapped to a PubMed record.

Examples:
  findit doi 10.1074/jbc.M109.081398
  findit doi https://doi.org/10.1038/nature12373 --human`,
	Args: cobra.MinimumNArgs(1),
	Run:  func(cmd *cobra.Command, args []string) { runFind(cmd.Context(), args, article.IDDOI) },
}

func init() {
	for _, c := range []*cobra.Command{findCmd, pmidCmd, doiCmd} {
		c.Flags().BoolVar(&findAllowPaywalled, "allow-paywalled", false, "Resolve journals that are always paywalled")
		c.Flags().BoolVar(&findBestGuess, "best-guess", false, "Accept the closest CrossRef match when none clears the score threshold")
		c.Flags().BoolVar(&findRefresh, "refresh", false, "Ignore cached outcomes")
		c.Flags().BoolVar(&findCopy, "copy", false, "Copy the found URLs to the clipboard")
		rootCmd.AddCommand(c)
	}
}

// runFind looks up every id and prints the outcomes. force, when set,
// overrides identifier detection.
func runFind(ctx context.Context, ids []string, force article.IDType) {
	cfg := mustLoadConfig()
	if findAllowPaywalled {
		cfg.AllowPaywalled = true
	}
	a, err := newApp(cfg, appOptions{bestGuess: findBestGuess})
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}
	defer a.Close()

	resp := FindResponse{Outcomes: []findit.Outcome{}}
	lastCode := ExitSuccess
	for _, raw := range ids {
		out, err := a.lookup(ctx, raw, force)
		if err != nil {
			lastCode = exitCodeFor(err)
			resp.Errors = append(resp.Errors, LookupError{ID: raw, Error: err.Error()})
			continue
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}

	if findCopy {
		copyURLs(a, resp.Outcomes)
	}

	if humanOutput {
		for _, o := range resp.Outcomes {
			outputHuman("%s\n", formatOutcomeHuman(o))
		}
		for _, e := range resp.Errors {
			outputHuman("%s\n  error: %s\n\n", e.ID, e.Error)
		}
	} else {
		outputJSON(resp)
	}

	// Only a batch where nothing could be looked up is a failure.
	if len(resp.Outcomes) == 0 && lastCode != ExitSuccess {
		a.Close()
		os.Exit(lastCode)
	}
}

// lookup resolves one identifier to an outcome.
func (a *app) lookup(ctx context.Context, raw string, force article.IDType) (findit.Outcome, error) {
	id := article.ParseID(raw)
	if force != "" && id.Type != force {
		if id.Type != article.IDUnknown {
			return findit.Outcome{}, fmt.Errorf("%q is a %s, not a %s", raw, id.Type, force)
		}
		id.Type = force
	}

	switch id.Type {
	case article.IDPMID:
		if findRefresh {
			a.forget(ctx, id.Value)
		}
		return a.finder.FindByPMID(ctx, id.Value)
	case article.IDDOI:
		if findRefresh {
			if pmid, err := a.resolver.PMIDForDOI(ctx, id.Value); err == nil && pmid != "" {
				a.forget(ctx, pmid)
			}
		}
		return a.finder.FindByDOI(ctx, id.Value)
	case article.IDPMCID:
		rec, err := a.records.IDConv(ctx, "PMC"+id.Value)
		if err != nil {
			return findit.Outcome{}, err
		}
		if rec.PMID == "" {
			return findit.Outcome{}, fmt.Errorf("%w: no PMID for PMC%s", ncbi.ErrNotFound, id.Value)
		}
		if findRefresh {
			a.forget(ctx, rec.PMID)
		}
		return a.finder.FindByPMID(ctx, rec.PMID)
	}
	return findit.Outcome{}, fmt.Errorf("unrecognized identifier %q", raw)
}

func (a *app) forget(ctx context.Context, pmid string) {
	if err := a.finder.Forget(ctx, pmid); err != nil {
		a.log.WithError(err).Warn("dropping cached outcome")
	}
}

// copyURLs puts the found URLs on the clipboard, one per line. Clipboard
// trouble is logged, never fatal.
func copyURLs(a *app, outcomes []findit.Outcome) {
	var urls []string
	for _, o := range outcomes {
		if o.URL != "" {
			urls = append(urls, o.URL)
		}
	}
	if len(urls) == 0 {
		return
	}
	if err := clipboard.Copy(strings.Join(urls, "\n")); err != nil {
		a.log.WithError(err).Warn("copying to clipboard")
	}
}
