package findit

// Result is the outcome of resolving one article. Exactly one of URL and
// Reason is set.
type Result struct {
	URL       string `json:"url,omitempty"`
	Reason    Reason `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// OK reports whether a URL was found.
func (r Result) OK() bool {
	return r.URL != "" && r.Reason == ReasonNone
}

func failed(f *Failure, strategy, publisher string) Result {
	return Result{Reason: f.Reason, Detail: f.Detail, Strategy: strategy, Publisher: publisher}
}

// Outcome is the serializable record of a lookup: the identifiers
// involved, the DOI confidence and the resolution result.
type Outcome struct {
	PMID      string  `json:"pmid,omitempty"`
	DOI       string  `json:"doi,omitempty"`
	DOIScore  float64 `json:"doi_score,omitempty"`
	Journal   string  `json:"journal,omitempty"`
	URL       string  `json:"url,omitempty"`
	Reason    Reason  `json:"reason,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	Publisher string  `json:"publisher,omitempty"`
}

// Result returns the resolution part of the outcome.
func (o Outcome) Result() Result {
	return Result{URL: o.URL, Reason: o.Reason, Detail: o.Detail, Strategy: o.Strategy, Publisher: o.Publisher}
}

func (o *Outcome) setResult(r Result) {
	o.URL = r.URL
	o.Reason = r.Reason
	o.Detail = r.Detail
	o.Strategy = r.Strategy
	o.Publisher = r.Publisher
}
