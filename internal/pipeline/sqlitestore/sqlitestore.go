// Package sqlitestore provides a SQLite implementation of pipeline.Store
// for single-node deployments that want persistence without PostgreSQL.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

//go:embed schema.sql
var schema string

// Store persists pipeline runs, events, and convergence scores in a
// SQLite database file. Documents are stored as JSON text alongside the
// columns the API filters on.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the
// schema.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialized access keeps the driver happy under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const runColumns = `id, run_date, since, started_at, finished_at, status,
	events_ingested, threshold_crossings, convergence_nodes, alert_events,
	executive_summary, source_errors`

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, rec *pipeline.RunRecord) error {
	srcErrs, err := marshalSourceErrors(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs
		   (id, run_date, since, started_at, status, source_errors)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, fmtTime(rec.RunDate), fmtTime(rec.Since), fmtTime(rec.StartedAt),
		rec.Status, srcErrs)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun updates a run record with its final state.
func (s *Store) FinishRun(ctx context.Context, rec *pipeline.RunRecord) error {
	srcErrs, err := marshalSourceErrors(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE pipeline_runs
		 SET finished_at = ?, status = ?, events_ingested = ?,
		     threshold_crossings = ?, convergence_nodes = ?,
		     alert_events = ?, executive_summary = ?, source_errors = ?
		 WHERE id = ?`,
		fmtTime(rec.FinishedAt), rec.Status, rec.EventsIngested,
		rec.ThresholdCrossings, rec.ConvergenceNodes, rec.AlertEvents,
		rec.ExecutiveSummary, srcErrs, rec.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*pipeline.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, id)
	return scanRun(row)
}

// LatestRun retrieves the most recently started run record.
func (s *Store) LatestRun(ctx context.Context) (*pipeline.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns retrieves up to limit run records, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*pipeline.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*pipeline.RunRecord
	for rows.Next() {
		rec, ok, err := scanRun(rows)
		if err != nil || !ok {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutEvents stores a run's event set as JSON documents.
func (s *Store) PutEvents(ctx context.Context, runID string, events []event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range events {
		e := &events[i]
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO events
			   (id, run_id, seq, event_date, country, alert_level, ci, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, runID, i, fmtTime(e.EventDate), e.Country, e.AlertLevel,
			e.ConvergenceIndex(), data)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// GetEvent retrieves the latest stored copy of an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT e.data FROM events e
		 JOIN pipeline_runs r ON r.id = e.run_id
		 WHERE e.id = ? ORDER BY r.started_at DESC LIMIT 1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, true, nil
}

// ListEvents retrieves a run's events in intake order, filtered.
func (s *Store) ListEvents(ctx context.Context, runID string, f pipeline.EventFilter) ([]event.Event, error) {
	query := `SELECT data FROM events WHERE run_id = ?`
	args := []any{runID}
	if f.Country != "" {
		query += ` AND country = ?`
		args = append(args, f.Country)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e event.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		if !matchesFilter(&e, f) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, rows.Err()
}

// PutScores stores a run's convergence scores.
func (s *Store) PutScores(ctx context.Context, runID string, scores []event.ConvergenceScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range scores {
		data, err := json.Marshal(&scores[i])
		if err != nil {
			return fmt.Errorf("marshal score %s: %w", scores[i].EventID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO convergence_scores (event_id, run_id, ci, data)
			 VALUES (?, ?, ?, ?)`,
			scores[i].EventID, runID, scores[i].CIScore(), data)
		if err != nil {
			return fmt.Errorf("insert score %s: %w", scores[i].EventID, err)
		}
	}
	return tx.Commit()
}

// ListScores retrieves a run's convergence scores with CI >= minCI,
// highest first.
func (s *Store) ListScores(ctx context.Context, runID string, minCI float64) ([]event.ConvergenceScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM convergence_scores
		 WHERE run_id = ? AND ci >= ? ORDER BY ci DESC`, runID, minCI)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []event.ConvergenceScore
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var cs event.ConvergenceScore
		if err := json.Unmarshal(data, &cs); err != nil {
			return nil, fmt.Errorf("unmarshal score: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*pipeline.RunRecord, bool, error) {
	var rec pipeline.RunRecord
	var runDate, since, started string
	var finished sql.NullString
	var srcErrs []byte
	err := row.Scan(&rec.ID, &runDate, &since, &started, &finished,
		&rec.Status, &rec.EventsIngested, &rec.ThresholdCrossings,
		&rec.ConvergenceNodes, &rec.AlertEvents, &rec.ExecutiveSummary, &srcErrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if rec.RunDate, err = parseTime(runDate); err != nil {
		return nil, false, err
	}
	if rec.Since, err = parseTime(since); err != nil {
		return nil, false, err
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, false, err
	}
	if finished.Valid && finished.String != "" {
		if rec.FinishedAt, err = parseTime(finished.String); err != nil {
			return nil, false, err
		}
	}
	if len(srcErrs) > 0 {
		if err := json.Unmarshal(srcErrs, &rec.SourceErrors); err != nil {
			return nil, false, fmt.Errorf("unmarshal source errors: %w", err)
		}
	}
	return &rec, true, nil
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

func marshalSourceErrors(rec *pipeline.RunRecord) ([]byte, error) {
	errsList := rec.SourceErrors
	if errsList == nil {
		errsList = []pipeline.SourceError{}
	}
	out, err := json.Marshal(errsList)
	if err != nil {
		return nil, fmt.Errorf("marshal source errors: %w", err)
	}
	return out, nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
