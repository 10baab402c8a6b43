// Package main provides the findit CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	logJSON     bool
	configPath  string
	noCache     bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// SilenceErrors is set, so cobra errors (bad flags, wrong arg
		// counts) would otherwise be invisible.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "findit",
	Short: "Find full-text PDFs for PubMed articles",
	Long: `findit resolves PubMed IDs and DOIs to downloadable PDF URLs.

It fetches the PubMed record, settles the DOI (PMC ID converter, then
CrossRef citation matching), and applies the publisher rule registered for
the journal. Lookups that fail report a reason code:

  MISSING   the record lacks a field the publisher's URL needs
  DENIED    the publisher refused access (paywall, login)
  NOFORMAT  no rule is registered for the journal
  TODO      the journal is known but not handled yet
  CANTDO    the journal is known to be impossible to handle
  TXERROR   a network or server error
  NOPDF     the publisher page had no PDF link

All commands output JSON by default. Use --human for readable output.

Environment Variables:
  NCBI_API_KEY                 NCBI API key (raises the rate limit)
  FINDIT_EMAIL                 Contact address sent to NCBI
  FINDIT_CACHE                 Cache database path ("none" disables)
  FINDIT_PDF_DIR               Where downloaded PDFs are stored
  AAAS_USERNAME, AAAS_PASSWORD Science login for AAAS journals`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for NCBI_API_KEY and AAAS credentials)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/findit/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Do not read or write the persistent cache")
	rootCmd.Version = Version
}
