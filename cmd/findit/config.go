package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Show or initialize configuration.

The config file lives at $XDG_CONFIG_HOME/findit/config.yml unless
--config is given. Environment variables and .env entries override it.

Keys:
  ncbi_api_key        NCBI API key
  email               Contact address sent to NCBI
  user_agent          User-Agent for all requests
  cache_path          SQLite cache file ("none" disables)
  timeout             Per-request timeout, e.g. 15s
  crossref_min_score  Score a CrossRef match must exceed (default 2.0)
  allow_paywalled     Resolve journals that are always paywalled
  verify              Fetch constructed URLs to confirm they serve a PDF
  retry_errors        Re-resolve cached TXERROR outcomes
  aaas_username       Science login
  aaas_password       Science password
  pdf_dir             Where downloaded PDFs are stored
  pdf_reader          system, skim, preview, zathura, evince, okular`,
}

// ConfigResponse is the effective configuration with secrets masked.
type ConfigResponse struct {
	Path             string        `json:"path"`
	NCBIAPIKey       string        `json:"ncbi_api_key,omitempty"`
	Email            string        `json:"email,omitempty"`
	UserAgent        string        `json:"user_agent"`
	CachePath        string        `json:"cache_path"`
	Timeout          string        `json:"timeout"`
	CrossrefMinScore float64       `json:"crossref_min_score"`
	AllowPaywalled   bool          `json:"allow_paywalled"`
	Verify           bool          `json:"verify"`
	RetryErrors      bool          `json:"retry_errors"`
	AAASUsername     string        `json:"aaas_username,omitempty"`
	AAASPassword     string        `json:"aaas_password,omitempty"`
	PDFDir           string        `json:"pdf_dir"`
	PDFReader        string        `json:"pdf_reader"`
}

func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func newConfigResponse(path string, cfg config.Config) ConfigResponse {
	return ConfigResponse{
		Path:             path,
		NCBIAPIKey:       mask(cfg.NCBIAPIKey),
		Email:            cfg.Email,
		UserAgent:        cfg.UserAgent,
		CachePath:        cfg.CachePath,
		Timeout:          cfg.Timeout.String(),
		CrossrefMinScore: cfg.CrossrefMinScore,
		AllowPaywalled:   cfg.AllowPaywalled,
		Verify:           cfg.Verify,
		RetryErrors:      cfg.RetryErrors,
		AAASUsername:     cfg.AAASUsername,
		AAASPassword:     mask(cfg.AAASPassword),
		PDFDir:           cfg.PDFDir,
		PDFReader:        cfg.PDFReader,
	}
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		resp := newConfigResponse(effectiveConfigPath(), cfg)
		if humanOutput {
			outputHuman("config:             %s\n", resp.Path)
			outputHuman("ncbi_api_key:       %s\n", resp.NCBIAPIKey)
			outputHuman("email:              %s\n", resp.Email)
			outputHuman("cache_path:         %s\n", resp.CachePath)
			outputHuman("timeout:            %s\n", resp.Timeout)
			outputHuman("crossref_min_score: %g\n", resp.CrossrefMinScore)
			outputHuman("allow_paywalled:    %t\n", resp.AllowPaywalled)
			outputHuman("verify:             %t\n", resp.Verify)
			outputHuman("retry_errors:       %t\n", resp.RetryErrors)
			outputHuman("aaas_username:      %s\n", resp.AAASUsername)
			outputHuman("pdf_dir:            %s\n", resp.PDFDir)
			outputHuman("pdf_reader:         %s\n", resp.PDFReader)
			return
		}
		outputJSON(resp)
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := effectiveConfigPath()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			exitWithError(ExitConfigError, "%s already exists\n  Hint: use --force to overwrite it", path)
		}
		if err := config.Default().Save(path); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if humanOutput {
			outputHuman("Wrote %s\n", path)
			return
		}
		outputJSON(StatusResponse{Status: "created", Path: path})
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
