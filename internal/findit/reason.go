package findit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matsen/findit/internal/fetch"
)

// Reason classifies why no PDF URL was produced.
type Reason int

const (
	ReasonNone          Reason = iota
	MissingPrecondition        // a field the rule needs is absent
	AccessDenied               // the URL exists but is gated
	NoFormatRegistered         // no rule for the journal
	NotYetSupported            // journal known, format not done
	KnownUnsupported           // journal permanently out of scope
	TransportError             // network failure or unexpected status
	NoPDF                      // rule ran but found no link
)

var reasonCodes = map[Reason]string{
	ReasonNone:          "",
	MissingPrecondition: "MISSING",
	AccessDenied:        "DENIED",
	NoFormatRegistered:  "NOFORMAT",
	NotYetSupported:     "TODO",
	KnownUnsupported:    "CANTDO",
	TransportError:      "TXERROR",
	NoPDF:               "NOPDF",
}

// String returns the stable reason code, e.g. "NOFORMAT".
func (r Reason) String() string {
	if s, ok := reasonCodes[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// ParseReason converts a reason code back to a Reason.
func ParseReason(code string) (Reason, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for r, s := range reasonCodes {
		if s == code {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown reason code %q", code)
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(b []byte) error {
	parsed, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Recoverable reports whether a fallback strategy may still succeed.
func (r Reason) Recoverable() bool {
	return r == MissingPrecondition || r == NoPDF
}

// Failure is the typed error strategies return.
type Failure struct {
	Reason Reason
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Reason, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func missing(fields ...string) *Failure {
	return &Failure{Reason: MissingPrecondition, Detail: "missing " + strings.Join(fields, ", ")}
}

func denied(format string, args ...any) *Failure {
	return &Failure{Reason: AccessDenied, Detail: fmt.Sprintf(format, args...)}
}

func noLink(format string, args ...any) *Failure {
	return &Failure{Reason: NoPDF, Detail: fmt.Sprintf(format, args...)}
}

// classify converts any strategy error into a Failure. It is the only
// place raw transport and parse errors are interpreted.
func classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case fetch.IsDenied(err):
		return &Failure{Reason: AccessDenied, Detail: err.Error(), Err: err}
	case fetch.IsNotFound(err):
		return &Failure{Reason: NoPDF, Detail: err.Error(), Err: err}
	case errors.Is(err, fetch.ErrMalformedHTML), errors.Is(err, fetch.ErrNotHTML):
		return &Failure{Reason: NoPDF, Detail: err.Error(), Err: err}
	default:
		// Includes context cancellation and unexpected statuses.
		return &Failure{Reason: TransportError, Detail: err.Error(), Err: err}
	}
}
