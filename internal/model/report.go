package model

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Command names the kind of run a Report describes.
type Command string

const (
	// CommandPage is a purge of one page and its resources.
	CommandPage Command = "page"

	// CommandDomain is a DOMAINPURGE of a whole host.
	CommandDomain Command = "domain"

	// CommandSpider is a crawl without purging.
	CommandSpider Command = "spider"

	// CommandCrawlPurge is a crawl followed by a purge of every page hit.
	CommandCrawlPurge Command = "crawl-purge"
)

// Report is the result of one run.
// It is safe to add purges and failures from several goroutines.
type Report struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Command is the kind of run.
	Command Command `json:"command"`

	// Target is the URL or hostname given on the command line.
	Target string `json:"target"`

	// Proxy is the cache proxy address purges were sent to.
	Proxy string `json:"proxy,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended. Zero while running.
	FinishedAt time.Time `json:"finished_at"`

	// PagesHit is the number of pages fetched successfully.
	PagesHit int `json:"pages_hit"`

	// Pages are the URLs of the fetched pages.
	Pages []string `json:"pages,omitempty"`

	// Resources are the purgeable resources found on a purged page.
	Resources []string `json:"resources,omitempty"`

	// Purges are the purge requests sent, in completion order.
	Purges []PurgeResult `json:"purges,omitempty"`

	// FetchFailures are the pages that could not be fetched.
	FetchFailures []FetchFailure `json:"fetch_failures,omitempty"`

	// Interrupted is true if the run was canceled before it finished.
	Interrupted bool `json:"interrupted"`

	// Error contains the error that ended the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional

	mu sync.Mutex
}

// NewReport creates a report for a run that starts now.
func NewReport(command Command, target string) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Command:   command,
		Target:    target,
		StartedAt: time.Now(),
		Purges:    make([]PurgeResult, 0),
	}
}

// AddPurge records a purge request.
func (r *Report) AddPurge(p PurgeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Purges = append(r.Purges, p)
}

// AddFetchFailure records a page that could not be fetched.
func (r *Report) AddFetchFailure(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FetchFailures = append(r.FetchFailures, FetchFailure{URL: url, Error: err.Error()})
}

// Finish stamps the end time and records err, which may be nil.
func (r *Report) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = time.Now()
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns how long the run took, or has taken so far.
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PurgedCount returns the number of successful purges.
func (r *Report) PurgedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.Purges {
		if p.Purged() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed purges.
func (r *Report) FailedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.Purges {
		if !p.Purged() {
			n++
		}
	}
	return n
}

// SortedPurges returns the purges ordered by URL, for stable output.
func (r *Report) SortedPurges() []PurgeResult {
	r.mu.Lock()
	out := append([]PurgeResult(nil), r.Purges...)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].URL < out[j].URL
	})
	return out
}
