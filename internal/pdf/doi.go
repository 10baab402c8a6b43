// Package pdf checks, stores and opens downloaded article PDFs.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when a payload lacks the %PDF magic bytes.
var ErrNotPDF = errors.New("payload is not a PDF")

// DOI pattern: 10.XXXX/... where XXXX is 4 to 9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// maxScanPages bounds how far into a document we look for its DOI.
const maxScanPages = 3

// IsPDF reports whether data starts with the PDF magic bytes, allowing
// for leading whitespace some servers emit.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\x00"), []byte("%PDF-"))
}

// ExtractDOI returns the first DOI printed in the first pages of a PDF,
// or "" if none is found.
func ExtractDOI(data []byte) (doi string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	// The PDF reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			doi, err = "", fmt.Errorf("reading PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}

	pages := r.NumPage()
	if pages > maxScanPages {
		pages = maxScanPages
	}
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// Check is the outcome of verifying a downloaded PDF against the DOI the
// article is expected to carry.
type Check struct {
	FoundDOI string `json:"found_doi,omitempty"`
	Matches  bool   `json:"matches"`
	Checked  bool   `json:"checked"` // false when the text layer had no DOI
}

// Verify confirms data is a PDF and, when wantDOI is set, that the DOI
// printed in it matches. Text extraction failures are not errors: many
// publisher PDFs have no usable text layer.
func Verify(data []byte, wantDOI string) (Check, error) {
	if !IsPDF(data) {
		return Check{}, ErrNotPDF
	}
	if wantDOI == "" {
		return Check{}, nil
	}
	found, err := ExtractDOI(data)
	if err != nil || found == "" {
		return Check{}, nil
	}
	return Check{
		FoundDOI: found,
		Checked:  true,
		Matches:  strings.EqualFold(found, strings.TrimSpace(wantDOI)),
	}, nil
}

// findDOI finds a DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}
