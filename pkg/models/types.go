package models

import "time"

// DesignKind names an experimental design
type DesignKind string

const (
	DesignEgoCluster        DesignKind = "ego_cluster"
	DesignEgoGroupPartition DesignKind = "ego_group_partition"
)

// Valid reports whether d is a known design
func (d DesignKind) Valid() bool {
	return d == DesignEgoCluster || d == DesignEgoGroupPartition
}

// ResultBundle is the persisted outcome of one simulation task:
// R estimates of the GATE under one model and the model's true effect.
type ResultBundle struct {
	Name        string     `codec:"name" json:"name"`
	Design      DesignKind `codec:"design" json:"design"`
	Model       string     `codec:"model" json:"model"`
	Est         []float64  `codec:"est" json:"est"`
	Tau         float64    `codec:"tau" json:"tau"`
	Seed        int64      `codec:"seed" json:"seed"`
	Batch       int        `codec:"batch" json:"batch"`
	Repetitions int        `codec:"repetitions" json:"repetitions"`
	EgoRatio    float64    `codec:"ego_ratio" json:"ego_ratio"`
	Threshold   float64    `codec:"threshold" json:"threshold"`
	CreatedAtMs int64      `codec:"created_at_ms" json:"created_at_ms"`
}

// Summary describes the sampling distribution of a set of estimates
type Summary struct {
	Name   string     `json:"name"`
	Design DesignKind `json:"design"`
	Model  string     `json:"model"`
	N      int        `json:"n"`
	Tau    float64    `json:"tau"`
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"std_dev"`
	StdErr float64    `json:"std_err"`
	Bias   float64    `json:"bias"`
	RMSE   float64    `json:"rmse"`
}

// RunStatus represents the status of a daemon run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run represents an experiment run submitted to the daemon
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
	// Egos and EgoRatio describe the clustering, when one was built
	Egos     int     `json:"egos,omitempty"`
	EgoRatio float64 `json:"ego_ratio,omitempty"`

	Results   []*ResultBundle `json:"-"`
	Summaries []Summary       `json:"summaries,omitempty"`
	Progress  *Progress       `json:"progress,omitempty"`
}

// Progress describes how far a run has got
type Progress struct {
	TasksTotal        int     `json:"tasks_total"`
	TasksDone         int     `json:"tasks_done"`
	Repetitions       int     `json:"repetitions"`
	ElapsedMs         int64   `json:"elapsed_ms"`
	TaskMeanMs        float64 `json:"task_mean_ms"`
	TaskP95Ms         float64 `json:"task_p95_ms"`
	RepetitionsPerSec float64 `json:"repetitions_per_sec"`
}

// Duration returns the wall time between start and end, or zero
func (r *Run) Duration() time.Duration {
	if r.StartedAtUnixMs == 0 || r.EndedAtUnixMs == 0 {
		return 0
	}
	return time.Duration(r.EndedAtUnixMs-r.StartedAtUnixMs) * time.Millisecond
}

// Clone returns a copy of r whose slices can be read while r keeps changing.
// Bundles are shared; they are never modified once recorded.
func (r *Run) Clone() *Run {
	c := *r
	c.Results = append([]*ResultBundle(nil), r.Results...)
	c.Summaries = append([]Summary(nil), r.Summaries...)
	if r.Progress != nil {
		p := *r.Progress
		c.Progress = &p
	}
	return &c
}
