package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

// fakeStore is a minimal in-memory Store for service tests.
type fakeStore struct {
	mu     sync.Mutex
	runs   map[string]*RunRecord
	order  []string
	events map[string][]event.Event
	scores map[string][]event.ConvergenceScore

	finishErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:   make(map[string]*RunRecord),
		events: make(map[string][]event.Event),
		scores: make(map[string][]event.ConvergenceScore),
	}
}

func (s *fakeStore) CreateRun(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.runs[rec.ID] = &cp
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *fakeStore) FinishRun(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishErr != nil {
		return s.finishErr
	}
	cp := *rec
	s.runs[rec.ID] = &cp
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id string) (*RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (s *fakeStore) LatestRun(_ context.Context) (*RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, false, nil
	}
	cp := *s.runs[s.order[len(s.order)-1]]
	return &cp, true, nil
}

func (s *fakeStore) ListRuns(_ context.Context, limit int) ([]*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*RunRecord
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.runs[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) PutEvents(_ context.Context, runID string, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[runID] = append([]event.Event(nil), events...)
	return nil
}

func (s *fakeStore) GetEvent(_ context.Context, id string) (*event.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evs := range s.events {
		for i := range evs {
			if evs[i].ID == id {
				cp := evs[i]
				return &cp, true, nil
			}
		}
	}
	return nil, false, nil
}

func (s *fakeStore) ListEvents(_ context.Context, runID string, _ EventFilter) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events[runID]...), nil
}

func (s *fakeStore) PutScores(_ context.Context, runID string, scores []event.ConvergenceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[runID] = append([]event.ConvergenceScore(nil), scores...)
	return nil
}

func (s *fakeStore) ListScores(_ context.Context, runID string, minCI float64) ([]event.ConvergenceScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.ConvergenceScore
	for _, cs := range s.scores[runID] {
		if cs.CIScore() >= minCI {
			out = append(out, cs)
		}
	}
	return out, nil
}

// fakeNotifier records digests.
type fakeNotifier struct {
	mu    sync.Mutex
	sends int
}

func (n *fakeNotifier) Send(_ context.Context, _ *RunRecord, _ *Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends++
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends
}

type fakeDrafter struct {
	summary string
	err     error
}

func (d *fakeDrafter) Draft(_ context.Context, _ *Result) (string, error) {
	return d.summary, d.err
}

// waitForRun polls until the run leaves RunRunning or the deadline passes.
func waitForRun(t *testing.T, store Store, id string) *RunRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok, err := store.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if ok && rec.Status != RunRunning {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return nil
}

func alertFactory() GatewayFactory {
	return func() []Gateway {
		ev := taggedEvent("e1",
			event.NetworkCarbon, event.NetworkWater, event.NetworkSoil, event.NetworkMineral)
		ev.ThresholdCrossings = []event.ThresholdCrossing{{
			Metric: event.ThresholdMetric{
				Name:           "displacement_single_event",
				CurrentValue:   250_000,
				ThresholdValue: 100_000,
			},
		}}
		return []Gateway{&fakeGateway{name: "acled", events: []event.Event{ev}}}
	}
}

func TestService_TriggerCompletesRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, alertFactory(), notifier, nil, nil, nil)

	res, err := svc.Trigger(context.Background(), 48*time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.Skipped {
		t.Fatalf("Trigger skipped: %s", res.Reason)
	}
	if res.ID == "" {
		t.Fatal("Trigger returned empty run ID")
	}

	rec := waitForRun(t, store, res.ID)
	if rec.Status != RunCompleted {
		t.Fatalf("Status = %q, want %q", rec.Status, RunCompleted)
	}
	if rec.EventsIngested != 1 {
		t.Errorf("EventsIngested = %d, want 1", rec.EventsIngested)
	}
	if rec.AlertEvents != 1 {
		t.Errorf("AlertEvents = %d, want 1", rec.AlertEvents)
	}
	if rec.ExecutiveSummary == "" {
		t.Error("ExecutiveSummary empty on completed run")
	}

	events, err := store.ListEvents(context.Background(), res.ID, EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("persisted events = %d, want 1", len(events))
	}
	scores, err := store.ListScores(context.Background(), res.ID, 0)
	if err != nil {
		t.Fatalf("ListScores: %v", err)
	}
	if len(scores) != 1 {
		t.Errorf("persisted scores = %d, want 1", len(scores))
	}
	if notifier.count() != 1 {
		t.Errorf("notifier sends = %d, want 1", notifier.count())
	}
}

func TestService_TriggerSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// Seed a running record directly; the service must refuse to stack runs.
	running := &RunRecord{ID: "01RUNNING", Status: RunRunning, StartedAt: time.Now()}
	if err := store.CreateRun(context.Background(), running); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	svc := NewService(store, alertFactory(), nil, nil, nil, nil)
	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected trigger to be skipped while a run is in progress")
	}
	if res.Reason != "run in progress" {
		t.Errorf("Reason = %q, want %q", res.Reason, "run in progress")
	}
}

func TestService_RunFailureRecorded(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	factory := GatewayFactory(func() []Gateway {
		bad := taggedEvent("e1")
		bad.Networks = nil
		return []Gateway{&fakeGateway{name: "acled", events: []event.Event{bad}}}
	})
	notifier := &fakeNotifier{}
	svc := NewService(store, factory, notifier, nil, nil, nil)

	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	rec := waitForRun(t, store, res.ID)
	if rec.Status != RunFailed {
		t.Fatalf("Status = %q, want %q", rec.Status, RunFailed)
	}
	if rec.ExecutiveSummary == "" {
		t.Error("failed run should carry the error in its summary")
	}
	if notifier.count() != 0 {
		t.Errorf("notifier sends = %d, want 0 on failed run", notifier.count())
	}
}

func TestService_SourceErrorsPersisted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	factory := GatewayFactory(func() []Gateway {
		return []Gateway{
			&fakeGateway{name: "acled", events: []event.Event{taggedEvent("e1")}},
			&fakeGateway{name: "gfw", err: errors.New("status 503")},
		}
	})
	svc := NewService(store, factory, nil, nil, nil, nil)

	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	rec := waitForRun(t, store, res.ID)
	if rec.Status != RunCompleted {
		t.Fatalf("Status = %q, want completed despite one source failing", rec.Status)
	}
	if len(rec.SourceErrors) != 1 || rec.SourceErrors[0].Source != "gfw" {
		t.Errorf("SourceErrors = %+v, want one gfw entry", rec.SourceErrors)
	}
}

func TestService_DrafterOverridesSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, alertFactory(), nil, &fakeDrafter{summary: "Prose summary."}, nil, nil)

	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	rec := waitForRun(t, store, res.ID)
	if rec.ExecutiveSummary != "Prose summary." {
		t.Errorf("ExecutiveSummary = %q, want drafter output", rec.ExecutiveSummary)
	}
}

func TestService_DrafterFailureKeepsBuiltInSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, alertFactory(), nil, &fakeDrafter{err: errors.New("rate limited")}, nil, nil)

	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	rec := waitForRun(t, store, res.ID)
	if rec.Status != RunCompleted {
		t.Fatalf("Status = %q, want completed", rec.Status)
	}
	if rec.ExecutiveSummary == "" || rec.ExecutiveSummary == "Prose summary." {
		t.Errorf("ExecutiveSummary = %q, want the deterministic fallback", rec.ExecutiveSummary)
	}
}

func TestService_ClosesGatewaysAfterRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gw := &fakeGateway{name: "acled", events: []event.Event{taggedEvent("e1")}}
	factory := GatewayFactory(func() []Gateway { return []Gateway{gw} })
	svc := NewService(store, factory, nil, nil, nil, nil)

	res, err := svc.Trigger(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForRun(t, store, res.ID)

	// Close runs in a defer after FinishRun; give it a moment.
	deadline := time.Now().Add(time.Second)
	for !gw.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !gw.closed.Load() {
		t.Error("gateway was not closed after the run")
	}
}
