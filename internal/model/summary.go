package model

import "time"

// Summary is a condensed view of a Report.
type Summary struct {
	// ID is the run identifier.
	ID string `json:"id"`

	// Command is the kind of run.
	Command Command `json:"command"`

	// Target is the URL or hostname of the run.
	Target string `json:"target"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration_ns"`

	// PagesHit is the number of pages fetched.
	PagesHit int `json:"pages_hit"`

	// Purged is the number of successful purges.
	Purged int `json:"purged"`

	// Failed is the number of failed purges.
	Failed int `json:"failed"`

	// FetchFailures is the number of pages that could not be fetched.
	FetchFailures int `json:"fetch_failures"`

	// ByOutcome counts purges per outcome.
	ByOutcome map[Outcome]int `json:"by_outcome"`

	// Interrupted is true if the run was canceled.
	Interrupted bool `json:"interrupted"`

	// Error is the error that ended the run, if any.
	Error string `json:"error,omitempty"`
}

// Summarize builds the Summary of r.
func (r *Report) Summarize() Summary {
	s := Summary{
		ID:        r.ID,
		Command:   r.Command,
		Target:    r.Target,
		StartedAt: r.StartedAt,
		Duration:  r.Duration(),
		ByOutcome: make(map[Outcome]int),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s.PagesHit = r.PagesHit
	s.FetchFailures = len(r.FetchFailures)
	s.Interrupted = r.Interrupted
	s.Error = r.ErrorMessage

	for _, p := range r.Purges {
		s.ByOutcome[p.Outcome]++
		if p.Purged() {
			s.Purged++
		} else {
			s.Failed++
		}
	}

	return s
}

// Succeeded reports whether the run finished without error and every purge
// went through.
func (s Summary) Succeeded() bool {
	return s.Error == "" && !s.Interrupted && s.Failed == 0
}
