package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/pdf"
)

var (
	downloadOpen           bool
	downloadForce          bool
	downloadDir            string
	downloadAllowPaywalled bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <id>...",
	Short: "Download article PDFs",
	Long: `Find and download PDFs into the PDF directory (pdf_dir in config,
default $XDG_DATA_HOME/findit/pdfs). Files are named after the PMID.

Every download is checked for the PDF signature, and the DOI printed in
the PDF text is compared with the article's DOI. A mismatch is reported
but the file is kept.

Examples:
  findit download 19880848
  findit download 10.1038/nature12373 --open
  findit download 19880848 --dir ./papers --force`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDownload,
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadOpen, "open", false, "Open each PDF in the configured viewer")
	downloadCmd.Flags().BoolVar(&downloadForce, "force", false, "Download even when the PDF is already stored")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "Directory to store PDFs (default pdf_dir from config)")
	downloadCmd.Flags().BoolVar(&downloadAllowPaywalled, "allow-paywalled", false, "Resolve journals that are always paywalled")
	rootCmd.AddCommand(downloadCmd)
}

// Download is the result of one download.
type Download struct {
	ID       string `json:"id"`
	PMID     string `json:"pmid"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Existing bool   `json:"existing,omitempty"`
	pdf.Check
}

// DownloadResponse is the response for the download command.
type DownloadResponse struct {
	Downloads []Download    `json:"downloads"`
	Errors    []LookupError `json:"errors,omitempty"`
}

func runDownload(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	if downloadAllowPaywalled {
		cfg.AllowPaywalled = true
	}
	if downloadDir != "" {
		cfg.PDFDir = downloadDir
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}
	defer a.Close()

	lib := pdf.NewLibrary(cfg.PDFDir, cfg.PDFReader)
	resp := DownloadResponse{Downloads: []Download{}}
	for _, raw := range args {
		d, err := a.download(cmd.Context(), lib, raw)
		if err != nil {
			resp.Errors = append(resp.Errors, LookupError{ID: raw, Error: err.Error()})
			continue
		}
		if d.Checked && !d.Matches {
			a.log.WithField("pmid", d.PMID).WithField("found_doi", d.FoundDOI).Warn("PDF carries a different DOI")
		}
		if downloadOpen {
			if err := lib.Open(d.Path); err != nil {
				resp.Errors = append(resp.Errors, LookupError{ID: raw, Error: fmt.Sprintf("opening PDF: %v", err)})
			}
		}
		resp.Downloads = append(resp.Downloads, d)
	}

	if humanOutput {
		for _, d := range resp.Downloads {
			status := "saved"
			if d.Existing {
				status = "exists"
			}
			outputHuman("%s  %s  %s\n", status, d.PMID, d.Path)
			if d.Checked && !d.Matches {
				outputHuman("  warning: PDF shows DOI %s\n", d.FoundDOI)
			}
		}
		for _, e := range resp.Errors {
			outputHuman("failed %s: %s\n", e.ID, e.Error)
		}
	} else {
		outputJSON(resp)
	}

	if len(resp.Downloads) == 0 {
		code := ExitDataError
		if len(resp.Errors) > 0 {
			code = ExitAPIError
		}
		exitWithError(code, "no PDFs downloaded")
	}
}

// download resolves raw to a PDF URL, fetches it and stores it in lib.
func (a *app) download(ctx context.Context, lib *pdf.Library, raw string) (Download, error) {
	out, err := a.lookup(ctx, raw, "")
	if err != nil {
		return Download{}, err
	}
	if out.URL == "" {
		return Download{}, fmt.Errorf("no PDF URL: %s", outcomeFailure(out))
	}

	d := Download{ID: raw, PMID: out.PMID, URL: out.URL, Path: lib.Path(out.PMID)}
	if lib.Exists(out.PMID) && !downloadForce {
		d.Existing = true
		return d, nil
	}

	page, err := a.sess.Get(ctx, out.URL)
	if err != nil {
		return Download{}, fmt.Errorf("fetching %s: %w", out.URL, err)
	}
	check, err := pdf.Verify(page.Body, out.DOI)
	if err != nil {
		return Download{}, fmt.Errorf("%s (%s): %w", out.URL, page.ContentType, err)
	}
	path, err := lib.Save(out.PMID, page.Body)
	if err != nil {
		return Download{}, err
	}
	d.Path = path
	d.Check = check
	a.log.WithField("pmid", out.PMID).WithField("path", path).Info("saved PDF")
	return d, nil
}

// outcomeFailure formats a failed outcome for error messages.
func outcomeFailure(o findit.Outcome) string {
	if o.Detail == "" {
		return o.Reason.String()
	}
	return o.Reason.String() + ": " + o.Detail
}
