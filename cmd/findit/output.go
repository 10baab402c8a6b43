package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/matsen/findit/internal/config"
	"github.com/matsen/findit/internal/convert"
	"github.com/matsen/findit/internal/crossref"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/ncbi"
	"github.com/matsen/findit/internal/pdf"
)

// CitationMaxLen truncates citations in human crossref output.
const CitationMaxLen = 90

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitCodeFor maps an error from the lookup pipeline to an exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, findit.ErrNoPMID),
		errors.Is(err, convert.ErrEmptyID),
		errors.Is(err, ncbi.ErrInvalidID),
		errors.Is(err, crossref.ErrEmptyQuery),
		errors.Is(err, pdf.ErrNotPDF),
		ncbi.IsNotFound(err),
		fetch.IsNotFound(err):
		return ExitDataError
	case errors.Is(err, ncbi.ErrNetworkError),
		errors.Is(err, ncbi.ErrInvalidResponse),
		ncbi.IsRateLimited(err),
		errors.Is(err, crossref.ErrConnectivity),
		fetch.IsTransport(err),
		fetch.IsDenied(err):
		return ExitAPIError
	}
	var apiErr *ncbi.APIError
	var statusErr *fetch.StatusError
	if errors.As(err, &apiErr) || errors.As(err, &statusErr) {
		return ExitAPIError
	}
	return ExitError
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// LookupError reports one failed lookup in a batch.
type LookupError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// FindResponse is the response for pmid, doi and find.
type FindResponse struct {
	Outcomes []findit.Outcome `json:"outcomes"`
	Errors   []LookupError    `json:"errors,omitempty"`
}

// formatOutcomeHuman renders one outcome as an indented block.
func formatOutcomeHuman(o findit.Outcome) string {
	var sb strings.Builder
	sb.WriteString(o.PMID)
	if o.Journal != "" {
		sb.WriteString("  " + o.Journal)
	}
	sb.WriteString("\n")
	if o.DOI != "" {
		if o.DOIScore > 0 && o.DOIScore < convert.MaxScore {
			sb.WriteString(fmt.Sprintf("  doi:    %s (score %.2f)\n", o.DOI, o.DOIScore))
		} else {
			sb.WriteString(fmt.Sprintf("  doi:    %s\n", o.DOI))
		}
	}
	if o.URL != "" {
		sb.WriteString(fmt.Sprintf("  url:    %s\n", o.URL))
	} else {
		sb.WriteString(fmt.Sprintf("  reason: %s", o.Reason))
		if o.Detail != "" {
			sb.WriteString(" (" + o.Detail + ")")
		}
		sb.WriteString("\n")
	}
	if o.Strategy != "" {
		via := o.Strategy
		if o.Publisher != "" {
			via += ", " + o.Publisher
		}
		sb.WriteString(fmt.Sprintf("  via:    %s\n", via))
	}
	return sb.String()
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
