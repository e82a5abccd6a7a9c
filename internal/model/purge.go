package model

import "time"

// Outcome classifies a purge request.
type Outcome string

const (
	// OutcomePurged means the proxy answered 200.
	OutcomePurged Outcome = "purged"

	// OutcomeRejected means the proxy answered with another status, or
	// with something that was not HTTP.
	OutcomeRejected Outcome = "rejected"

	// OutcomeTimeout means the proxy did not answer in time.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeUnreachable means no connection to the proxy could be made.
	OutcomeUnreachable Outcome = "unreachable"

	// OutcomeInvalid means the target could not be turned into a request.
	OutcomeInvalid Outcome = "invalid"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{
	OutcomePurged,
	OutcomeRejected,
	OutcomeTimeout,
	OutcomeUnreachable,
	OutcomeInvalid,
}

// PurgeResult is the record of one purge request.
type PurgeResult struct {
	// URL is the purged URL, or the hostname for a domain purge.
	URL string `json:"url"`

	// Method is PURGE or DOMAINPURGE.
	Method string `json:"method"`

	// StatusCode is the status returned by the proxy, 0 if none.
	StatusCode int `json:"status_code,omitempty"`

	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`

	// Error is the failure reason, empty on success.
	Error string `json:"error,omitempty"`

	// Duration is the time the request took.
	Duration time.Duration `json:"duration_ns"`
}

// Purged reports whether the request evicted the object.
func (p PurgeResult) Purged() bool {
	return p.Outcome == OutcomePurged
}

// FetchFailure is a page that could not be fetched during a run.
type FetchFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}
