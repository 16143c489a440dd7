package pipeline

import (
	"context"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

// RunStatus tracks where a pipeline run is in its lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID                 string        `json:"id"`
	RunDate            time.Time     `json:"run_date"`
	Since              time.Time     `json:"since"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at,omitempty"`
	Status             RunStatus     `json:"status"`
	EventsIngested     int           `json:"events_ingested"`
	ThresholdCrossings int           `json:"threshold_crossings"`
	ConvergenceNodes   int           `json:"convergence_nodes"`
	AlertEvents        int           `json:"alert_events"`
	ExecutiveSummary   string        `json:"executive_summary,omitempty"`
	SourceErrors       []SourceError `json:"source_errors,omitempty"`
}

// EventFilter narrows ListEvents results. Zero values mean no constraint.
type EventFilter struct {
	Country         string
	Network         event.Network
	MinAlertLevel   event.AlertLevel
	ConvergenceOnly bool
	Limit           int
}

// Store is the persistence interface for pipeline runs and their results.
// API and reporting layers treat everything it returns as read-only
// snapshots of one run.
type Store interface {
	CreateRun(ctx context.Context, rec *RunRecord) error
	FinishRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, bool, error)
	LatestRun(ctx context.Context) (*RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	PutEvents(ctx context.Context, runID string, events []event.Event) error
	GetEvent(ctx context.Context, id string) (*event.Event, bool, error)
	ListEvents(ctx context.Context, runID string, f EventFilter) ([]event.Event, error)

	PutScores(ctx context.Context, runID string, scores []event.ConvergenceScore) error
	ListScores(ctx context.Context, runID string, minCI float64) ([]event.ConvergenceScore, error)
}
