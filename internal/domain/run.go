package domain

import "time"

// RunMode selects the fetch plan of a refresh run.
type RunMode string

const (
	// RunQuick refreshes the full price catalog plus history for the top-K
	// items by tradable volume.
	RunQuick RunMode = "quick"
	// RunFull refreshes history for every item with a tradable spread.
	RunFull RunMode = "full"
)

// RunState is the phase a refresh run is in. Per-item retries happen inside
// StateFetching without resetting the run.
type RunState string

const (
	StatePlanning  RunState = "planning"
	StateFetching  RunState = "fetching"
	StateMerging   RunState = "merging"
	StateComputing RunState = "computing"
	StateDone      RunState = "done"
)

// RunReport summarizes one refresh run. A run always reaches StateDone with
// counts even when some items failed; a partial run never reports as a
// clean success with Failed > 0.
type RunReport struct {
	Mode       RunMode   `json:"mode"`
	State      RunState  `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ItemsPlanned  int `json:"items_planned"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"` // fresh within the staleness threshold
	MalformedRows int `json:"malformed_rows"`
	OrderBooks    int `json:"order_books"`
}

// Stats is the operator-facing status view.
type Stats struct {
	Uptime         float64    `json:"uptime_seconds"`
	TrackedItems   int        `json:"tracked_items"`
	TotalSnapshots int64      `json:"total_snapshots"`
	LastRun        *RunReport `json:"last_run,omitempty"`
	RunSuccesses   int64      `json:"run_successes"`
	RunFailures    int64      `json:"run_failures"`
	StoreStatus    string     `json:"store_status"`
	SourceStatus   string     `json:"source_status"`
}
