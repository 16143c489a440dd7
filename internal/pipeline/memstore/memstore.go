// Package memstore provides an in-memory implementation of pipeline.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

// Store holds run records, events, and convergence scores in memory.
// Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*pipeline.RunRecord
	order  []string // run IDs in creation order
	events map[string][]event.Event
	scores map[string][]event.ConvergenceScore
	byID   map[string]event.Event // event ID -> latest stored copy
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		runs:   make(map[string]*pipeline.RunRecord),
		events: make(map[string][]event.Event),
		scores: make(map[string][]event.ConvergenceScore),
		byID:   make(map[string]event.Event),
	}
}

// CreateRun stores a copy of the run record.
func (s *Store) CreateRun(_ context.Context, rec *pipeline.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.runs[rec.ID] = &cp
	s.order = append(s.order, rec.ID)
	return nil
}

// FinishRun overwrites the stored run record.
func (s *Store) FinishRun(_ context.Context, rec *pipeline.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.runs[rec.ID] = &cp
	return nil
}

// GetRun retrieves a run record by ID. Returns a copy.
func (s *Store) GetRun(_ context.Context, id string) (*pipeline.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

// LatestRun retrieves the most recently created run record.
func (s *Store) LatestRun(_ context.Context) (*pipeline.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false, nil
	}
	cp := *s.runs[s.order[len(s.order)-1]]
	return &cp, true, nil
}

// ListRuns retrieves up to limit run records, newest first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]*pipeline.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pipeline.RunRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *s.runs[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// PutEvents stores the run's event set.
func (s *Store) PutEvents(_ context.Context, runID string, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]event.Event(nil), events...)
	s.events[runID] = cp
	for _, e := range cp {
		s.byID[e.ID] = e
	}
	return nil
}

// GetEvent retrieves the latest stored copy of an event by ID.
func (s *Store) GetEvent(_ context.Context, id string) (*event.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

// ListEvents retrieves a run's events, filtered.
func (s *Store) ListEvents(_ context.Context, runID string, f pipeline.EventFilter) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, e := range s.events[runID] {
		if !matches(&e, f) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// PutScores stores the run's convergence scores.
func (s *Store) PutScores(_ context.Context, runID string, scores []event.ConvergenceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[runID] = append([]event.ConvergenceScore(nil), scores...)
	return nil
}

// ListScores retrieves a run's convergence scores with CI >= minCI,
// highest first.
func (s *Store) ListScores(_ context.Context, runID string, minCI float64) ([]event.ConvergenceScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.ConvergenceScore
	for _, cs := range s.scores[runID] {
		if cs.CIScore() >= minCI {
			out = append(out, cs)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CIScore() > out[j].CIScore() })
	return out, nil
}

func matches(e *event.Event, f pipeline.EventFilter) bool {
	if f.Country != "" && e.Country != f.Country {
		return false
	}
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
