package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/cache"
)

var cacheClearPrefix string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lookup cache",
	Long: `Inspect or clear the persistent lookup cache.

The cache holds PubMed records, CrossRef responses and resolution
outcomes. Entries are namespaced by key prefix:
  ncbi:      E-utilities and ID converter responses
  crossref:  CrossRef search responses
  findit:    resolution outcomes, keyed by PMID and settings`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := mustOpenCache()
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			exitWithError(ExitError, "reading cache stats: %v", err)
		}
		if humanOutput {
			outputHuman("path:    %s\nentries: %d\nsize:    %s\n", stats.Path, stats.Entries, formatBytes(stats.Bytes))
			return
		}
		outputJSON(stats)
	},
}

// ClearResponse is the response for cache clear.
type ClearResponse struct {
	Prefix  string `json:"prefix,omitempty"`
	Removed int64  `json:"removed"`
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cache entries",
	Long: `Remove cache entries, all of them or those under a key prefix.

Examples:
  findit cache clear
  findit cache clear --prefix findit:`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := mustOpenCache()
		defer store.Close()

		n, err := store.Clear(cmd.Context(), cacheClearPrefix)
		if err != nil {
			exitWithError(ExitError, "clearing cache: %v", err)
		}
		if humanOutput {
			outputHuman("Removed %d entries\n", n)
			return
		}
		outputJSON(ClearResponse{Prefix: cacheClearPrefix, Removed: n})
	},
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearPrefix, "prefix", "", "Only remove keys starting with this prefix")
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// mustOpenCache opens the configured SQLite cache, exits if caching is
// disabled or the database cannot be opened.
func mustOpenCache() *cache.SQLite {
	cfg := mustLoadConfig()
	if !cfg.CacheEnabled() {
		exitWithError(ExitConfigError, "cache is disabled (cache_path is %q)", cfg.CachePath)
	}
	store, err := cache.OpenSQLite(cfg.CachePath)
	if err != nil {
		exitWithError(ExitConfigError, "opening cache: %v", err)
	}
	return store
}
