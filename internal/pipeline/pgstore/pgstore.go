// Package pgstore provides a PostgreSQL implementation of pipeline.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

var tracer = otel.Tracer("github.com/nasteffe/tellus/internal/pipeline/pgstore")

//go:embed schema.sql
var schema string

// Store persists pipeline runs, events, and convergence scores in
// PostgreSQL. Events and scores are stored as JSONB documents alongside
// the columns the API filters on.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const runColumns = `id, run_date, since, started_at, finished_at, status,
	events_ingested, threshold_crossings, convergence_nodes, alert_events,
	executive_summary, source_errors`

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, rec *pipeline.RunRecord) error {
	ctx, span := s.startSpan(ctx, "pgstore.CreateRun", "INSERT")
	defer span.End()

	srcErrs, err := json.Marshal(sourceErrorsOrEmpty(rec))
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal source errors: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs
		   (id, run_date, since, started_at, status, source_errors)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.RunDate, rec.Since, rec.StartedAt, rec.Status, srcErrs)
	if err != nil {
		return spanErr(span, fmt.Errorf("insert run: %w", err))
	}
	return nil
}

// FinishRun updates a run record with its final state.
func (s *Store) FinishRun(ctx context.Context, rec *pipeline.RunRecord) error {
	ctx, span := s.startSpan(ctx, "pgstore.FinishRun", "UPDATE")
	defer span.End()

	srcErrs, err := json.Marshal(sourceErrorsOrEmpty(rec))
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal source errors: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET finished_at = $2, status = $3, events_ingested = $4,
		     threshold_crossings = $5, convergence_nodes = $6,
		     alert_events = $7, executive_summary = $8, source_errors = $9
		 WHERE id = $1`,
		rec.ID, nullTime(rec.FinishedAt), rec.Status, rec.EventsIngested,
		rec.ThresholdCrossings, rec.ConvergenceNodes, rec.AlertEvents,
		rec.ExecutiveSummary, srcErrs)
	if err != nil {
		return spanErr(span, fmt.Errorf("update run: %w", err))
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*pipeline.RunRecord, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetRun", "SELECT")
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1`
	rec, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, spanErr(span, err)
	}
	return rec, true, nil
}

// LatestRun retrieves the most recently started run record.
func (s *Store) LatestRun(ctx context.Context) (*pipeline.RunRecord, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.LatestRun", "SELECT")
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`
	rec, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, spanErr(span, err)
	}
	return rec, true, nil
}

// ListRuns retrieves up to limit run records, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*pipeline.RunRecord, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListRuns", "SELECT")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query runs: %w", err))
	}
	defer rows.Close()

	var out []*pipeline.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

// PutEvents stores a run's event set as JSONB documents.
func (s *Store) PutEvents(ctx context.Context, runID string, events []event.Event) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutEvents", "INSERT")
	defer span.End()

	batch := &pgx.Batch{}
	for i := range events {
		e := &events[i]
		data, err := json.Marshal(e)
		if err != nil {
			return spanErr(span, fmt.Errorf("marshal event %s: %w", e.ID, err))
		}
		batch.Queue(
			`INSERT INTO events (id, run_id, seq, event_date, country, alert_level, ci, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (run_id, id) DO UPDATE
			   SET alert_level = EXCLUDED.alert_level, ci = EXCLUDED.ci, data = EXCLUDED.data`,
			e.ID, runID, i, e.EventDate, e.Country, e.AlertLevel, e.ConvergenceIndex(), data)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return spanErr(span, fmt.Errorf("insert events: %w", err))
	}
	return nil
}

// GetEvent retrieves the latest stored copy of an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetEvent", "SELECT")
	defer span.End()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT e.data FROM events e
		 JOIN pipeline_runs r ON r.id = e.run_id
		 WHERE e.id = $1 ORDER BY r.started_at DESC LIMIT 1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, spanErr(span, err)
	}

	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, spanErr(span, fmt.Errorf("unmarshal event: %w", err))
	}
	return &e, true, nil
}

// ListEvents retrieves a run's events in intake order, filtered. The
// country filter is pushed to SQL; the remaining filters need the decoded
// document and apply in memory.
func (s *Store) ListEvents(ctx context.Context, runID string, f pipeline.EventFilter) ([]event.Event, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListEvents", "SELECT")
	defer span.End()

	query := `SELECT data FROM events WHERE run_id = $1`
	args := []any{runID}
	if f.Country != "" {
		query += ` AND country = $2`
		args = append(args, f.Country)
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query events: %w", err))
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, spanErr(span, err)
		}
		var e event.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, spanErr(span, fmt.Errorf("unmarshal event: %w", err))
		}
		if !matchesFilter(&e, f) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

// PutScores stores a run's convergence scores.
func (s *Store) PutScores(ctx context.Context, runID string, scores []event.ConvergenceScore) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutScores", "INSERT")
	defer span.End()

	batch := &pgx.Batch{}
	for i := range scores {
		data, err := json.Marshal(&scores[i])
		if err != nil {
			return spanErr(span, fmt.Errorf("marshal score %s: %w", scores[i].EventID, err))
		}
		batch.Queue(
			`INSERT INTO convergence_scores (event_id, run_id, ci, data)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (run_id, event_id) DO UPDATE
			   SET ci = EXCLUDED.ci, data = EXCLUDED.data`,
			scores[i].EventID, runID, scores[i].CIScore(), data)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return spanErr(span, fmt.Errorf("insert scores: %w", err))
	}
	return nil
}

// ListScores retrieves a run's convergence scores with CI >= minCI,
// highest first.
func (s *Store) ListScores(ctx context.Context, runID string, minCI float64) ([]event.ConvergenceScore, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListScores", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM convergence_scores
		 WHERE run_id = $1 AND ci >= $2 ORDER BY ci DESC`, runID, minCI)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query scores: %w", err))
	}
	defer rows.Close()

	var out []event.ConvergenceScore
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, spanErr(span, err)
		}
		var cs event.ConvergenceScore
		if err := json.Unmarshal(data, &cs); err != nil {
			return nil, spanErr(span, fmt.Errorf("unmarshal score: %w", err))
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func scanRun(row pgx.Row) (*pipeline.RunRecord, error) {
	var rec pipeline.RunRecord
	var finished *time.Time
	var srcErrs []byte
	err := row.Scan(&rec.ID, &rec.RunDate, &rec.Since, &rec.StartedAt, &finished,
		&rec.Status, &rec.EventsIngested, &rec.ThresholdCrossings,
		&rec.ConvergenceNodes, &rec.AlertEvents, &rec.ExecutiveSummary, &srcErrs)
	if err != nil {
		return nil, err
	}
	if finished != nil {
		rec.FinishedAt = *finished
	}
	if len(srcErrs) > 0 {
		if err := json.Unmarshal(srcErrs, &rec.SourceErrors); err != nil {
			return nil, fmt.Errorf("unmarshal source errors: %w", err)
		}
	}
	return &rec, nil
}

func matchesFilter(e *event.Event, f pipeline.EventFilter) bool {
	if f.Network != 0 {
		found := false
		for _, n := range e.Networks {
			if n == f.Network {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinAlertLevel != "" && !e.AlertLevel.AtLeast(f.MinAlertLevel) {
		return false
	}
	if f.ConvergenceOnly && !e.IsConvergenceNode() {
		return false
	}
	return true
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func sourceErrorsOrEmpty(rec *pipeline.RunRecord) []pipeline.SourceError {
	if rec.SourceErrors == nil {
		return []pipeline.SourceError{}
	}
	return rec.SourceErrors
}
