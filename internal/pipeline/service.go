package pipeline

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// GatewayFactory builds a fresh set of source gateways for one run. The
// service closes every gateway after the run, success or failure, so
// adapters must not be shared across runs.
type GatewayFactory func() []Gateway

// Notifier delivers a digest of a completed run.
type Notifier interface {
	Send(ctx context.Context, rec *RunRecord, result *Result) error
}

// Drafter turns a pipeline result into executive-summary prose. When it
// fails or is absent, the deterministic built-in summary stands.
type Drafter interface {
	Draft(ctx context.Context, result *Result) (string, error)
}

// TriggerResult is the outcome of requesting a pipeline run.
type TriggerResult struct {
	ID      string    `json:"run_id,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Skipped bool      `json:"skipped,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// Service is the business boundary for pipeline runs: it owns run records,
// async dispatch, gateway teardown, persistence, and notification.
type Service struct {
	store    Store
	gateways GatewayFactory
	notifier Notifier
	drafter  Drafter
	logger   log.Logger
	metrics  *Metrics
}

// NewService creates a pipeline service. notifier, drafter, and metrics
// may be nil.
func NewService(store Store, gateways GatewayFactory, notifier Notifier, drafter Drafter, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		gateways: gateways,
		notifier: notifier,
		drafter:  drafter,
		logger:   logger,
		metrics:  metrics,
	}
}

// Trigger starts a pipeline run over the lookback window, returning as
// soon as the run record exists. At most one run executes at a time; a
// trigger while one is running is skipped.
func (s *Service) Trigger(ctx context.Context, lookback time.Duration) (*TriggerResult, error) {
	if latest, ok, err := s.store.LatestRun(ctx); err != nil {
		return nil, err
	} else if ok && latest.Status == RunRunning {
		return &TriggerResult{Skipped: true, Reason: "run in progress"}, nil
	}

	now := time.Now().UTC()
	rec := &RunRecord{
		ID:        ulid.Make().String(),
		RunDate:   now,
		Since:     now.Add(-lookback),
		StartedAt: now,
		Status:    RunRunning,
	}
	if err := s.store.CreateRun(ctx, rec); err != nil {
		return nil, err
	}

	// Run async - the record ID is the caller's handle on the outcome.
	go s.execute(context.WithoutCancel(ctx), rec)

	return &TriggerResult{ID: rec.ID, Since: rec.Since}, nil
}

// GetRun retrieves a run record by ID.
func (s *Service) GetRun(ctx context.Context, id string) (*RunRecord, bool, error) {
	return s.store.GetRun(ctx, id)
}

// LatestRun retrieves the most recent run record.
func (s *Service) LatestRun(ctx context.Context) (*RunRecord, bool, error) {
	return s.store.LatestRun(ctx)
}

// ListRuns retrieves recent run records, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	return s.store.ListRuns(ctx, limit)
}

func (s *Service) execute(ctx context.Context, rec *RunRecord) {
	L := s.logger.With("run_id", rec.ID)

	gws := s.gateways()
	p := New(gws, L, s.metrics)
	defer func() {
		for _, g := range gws {
			if err := g.Close(ctx); err != nil {
				L.Error(ctx, err, "gateway close failed", "source", g.Name())
			}
		}
	}()

	result, err := p.Run(ctx, rec.Since)
	rec.FinishedAt = time.Now().UTC()
	rec.SourceErrors = p.SourceErrors()

	if err != nil {
		L.Error(ctx, err, "pipeline run failed")
		rec.Status = RunFailed
		rec.ExecutiveSummary = err.Error()
		if ferr := s.store.FinishRun(ctx, rec); ferr != nil {
			L.Error(ctx, ferr, "failed to persist failed run")
		}
		return
	}

	if s.drafter != nil {
		if summary, derr := s.drafter.Draft(ctx, result); derr != nil {
			L.Error(ctx, derr, "summary draft failed, keeping built-in summary")
		} else if summary != "" {
			result.ExecutiveSummary = summary
		}
	}

	if err := s.store.PutEvents(ctx, rec.ID, result.Events); err != nil {
		L.Error(ctx, err, "failed to persist events")
	}
	scores := p.ScoreConvergence(result.Events)
	if err := s.store.PutScores(ctx, rec.ID, scores); err != nil {
		L.Error(ctx, err, "failed to persist convergence scores")
	}

	rec.Status = RunCompleted
	rec.EventsIngested = len(result.Events)
	rec.ThresholdCrossings = len(result.ThresholdCrossings)
	rec.ConvergenceNodes = len(result.ConvergenceNodes)
	rec.AlertEvents = len(result.AlertEvents)
	rec.ExecutiveSummary = result.ExecutiveSummary
	if err := s.store.FinishRun(ctx, rec); err != nil {
		L.Error(ctx, err, "failed to persist run record")
	}

	if s.notifier != nil && len(result.AlertEvents) > 0 {
		if err := s.notifier.Send(ctx, rec, result); err != nil {
			L.Error(ctx, err, "run notification failed")
		}
	}

	L.Info(ctx, "run persisted",
		"status", rec.Status,
		"events", rec.EventsIngested,
		"alert_events", rec.AlertEvents,
		"source_errors", len(rec.SourceErrors),
	)
}
