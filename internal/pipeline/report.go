package pipeline

import (
	"sort"
	"time"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/repository"
)

// Stage names, in execution order.
const (
	StageConnect    = "connect"
	StageReset      = "reset_schema"
	StageStatic     = "load_static_dimensions"
	StageArtifacts  = "load_artifact_dimensions"
	StageReadMatrix = "read_matrix"
	StageTransform  = "transform_rows"
	StageFacts      = "load_facts"
	StageLinks      = "reconcile_and_load_links"
	StageSummarize  = "summarize"
)

// Stages lists every stage in execution order.
var Stages = []string{
	StageConnect, StageReset, StageStatic, StageArtifacts, StageReadMatrix,
	StageTransform, StageFacts, StageLinks, StageSummarize,
}

// Stage statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Diagnostic is a recorded data-quality event.
type Diagnostic = domain.Diagnostic

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Rows     int64         `json:"rows,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report describes a finished (or aborted) run.
type Report struct {
	RunID      string    `json:"run_id"`
	Profile    string    `json:"profile"`
	Title      string    `json:"title"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stages      []StageResult           `json:"stages"`
	Diagnostics []Diagnostic            `json:"diagnostics"`
	Counts      []repository.TableCount `json:"counts"`

	// Fatal is set when the run aborted.
	Fatal error `json:"-"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Complete reports whether every stage ran without failure and nothing was
// dropped.
func (r *Report) Complete() bool {
	if r.Fatal != nil || len(r.Diagnostics) > 0 {
		return false
	}
	for _, s := range r.Stages {
		if s.Status == StatusFailed || s.Status == StatusDegraded {
			return false
		}
	}
	return true
}

// Stage returns the result of the named stage.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Count returns the row count of table, or -1 when it was not counted.
func (r *Report) Count(table string) int64 {
	for _, c := range r.Counts {
		if c.Table == table {
			return c.Rows
		}
	}
	return -1
}

// DiagnosticTotal counts diagnostics per code.
type DiagnosticTotal struct {
	Code  string
	Count int
}

// DiagnosticTotals returns per-code totals sorted by code.
func (r *Report) DiagnosticTotals() []DiagnosticTotal {
	byCode := make(map[string]int)
	for _, d := range r.Diagnostics {
		byCode[d.Code]++
	}
	totals := make([]DiagnosticTotal, 0, len(byCode))
	for code, n := range byCode {
		totals = append(totals, DiagnosticTotal{Code: code, Count: n})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Code < totals[j].Code })
	return totals
}
