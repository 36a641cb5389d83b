package domain

// RunResult is the structured outcome of one orchestrator run. Per-item
// failures reduce the counts; they never fail the run by themselves.
type RunResult struct {
	Success     bool            `json:"success"`
	Items       []SummaryRecord `json:"items"`
	NewCount    int             `json:"new_papers"`
	CachedCount int             `json:"cached_papers"`
	// FailureReason is set only when Success is false.
	FailureReason string `json:"failure_reason,omitempty"`
}

// PapersCount is the total number of records in the run output.
func (r RunResult) PapersCount() int {
	return len(r.Items)
}

// ResultBundle is one paper-type's entry inside a day's result set,
// the handoff artifact between the summarization and notification phases.
type ResultBundle struct {
	Category    string          `json:"category"`
	Topic       string          `json:"topic"`
	Success     bool            `json:"success"`
	Items       []SummaryRecord `json:"items"`
	NewCount    int             `json:"new_papers"`
	CachedCount int             `json:"cached_papers"`
}

// DailyResults maps paper-type keys to their bundles for one calendar date.
type DailyResults map[string]ResultBundle

// Digest is the normalized payload handed to a notification dispatcher.
// It carries plain data only; rendering and platform limits belong to the
// dispatcher.
type Digest struct {
	Category    string
	Topic       string
	NewCount    int
	CachedCount int
	Papers      []SummaryRecord
}
