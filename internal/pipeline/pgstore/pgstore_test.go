package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
	"github.com/nasteffe/tellus/internal/pipeline/pgstore"
	"github.com/nasteffe/tellus/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("TELLUS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TELLUS_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func seedRun(t *testing.T, s *pgstore.Store) *pipeline.RunRecord {
	t.Helper()
	now := time.Now().Truncate(time.Microsecond).UTC()
	rec := &pipeline.RunRecord{
		ID:        ulid.Make().String(),
		RunDate:   now,
		Since:     now.Add(-48 * time.Hour),
		StartedAt: now,
		Status:    pipeline.RunRunning,
	}
	if err := s.CreateRun(context.Background(), rec); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return rec
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := seedRun(t, s)
	rec.FinishedAt = rec.StartedAt.Add(time.Minute)
	rec.Status = pipeline.RunCompleted
	rec.EventsIngested = 12
	rec.AlertEvents = 3
	rec.ExecutiveSummary = "12 events analyzed."
	rec.SourceErrors = []pipeline.SourceError{{Source: "idmc", Err: "status 502"}}

	if err := s.FinishRun(ctx, rec); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, ok, err := s.GetRun(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !ok {
		t.Fatal("GetRun returned ok=false, want true")
	}
	if got.Status != pipeline.RunCompleted {
		t.Errorf("Status = %q, want %q", got.Status, pipeline.RunCompleted)
	}
	if got.EventsIngested != 12 {
		t.Errorf("EventsIngested = %d, want 12", got.EventsIngested)
	}
	if len(got.SourceErrors) != 1 || got.SourceErrors[0].Source != "idmc" {
		t.Errorf("SourceErrors = %+v, want one idmc entry", got.SourceErrors)
	}
	if !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, rec.FinishedAt)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := seedRun(t, s)
	events := []event.Event{
		{
			ID:         ulid.Make().String(),
			Title:      "Mine expansion displaces communities",
			EventDate:  rec.Since,
			Country:    "Peru",
			Networks:   []event.Network{event.NetworkMineral, event.NetworkWater},
			Layers:     []event.Layer{event.LayerFlow},
			Nodes:      []event.OntologyNode{event.NodeDisplacement},
			AlertLevel: event.LevelCritical,
		},
		{
			ID:         ulid.Make().String(),
			Title:      "Deforestation alert",
			EventDate:  rec.Since,
			Country:    "Brazil",
			Networks:   []event.Network{event.NetworkCarbon},
			Layers:     []event.Layer{event.LayerFlow},
			Nodes:      []event.OntologyNode{event.NodeAppropriation},
			AlertLevel: event.LevelWatch,
		},
	}
	if err := s.PutEvents(ctx, rec.ID, events); err != nil {
		t.Fatalf("PutEvents: %v", err)
	}

	got, ok, err := s.GetEvent(ctx, events[0].ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !ok {
		t.Fatal("GetEvent returned ok=false, want true")
	}
	if got.Title != events[0].Title {
		t.Errorf("Title = %q, want %q", got.Title, events[0].Title)
	}

	listed, err := s.ListEvents(ctx, rec.ID, pipeline.EventFilter{MinAlertLevel: event.LevelAlert})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != events[0].ID {
		t.Errorf("ListEvents(min ALERT) = %d events, want just the critical one", len(listed))
	}
}

func TestScoresRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := seedRun(t, s)
	scores := []event.ConvergenceScore{
		{EventID: "s1", Networks: []event.Network{event.NetworkCarbon}},
		{EventID: "s2", Networks: []event.Network{
			event.NetworkCarbon, event.NetworkWater, event.NetworkSoil,
		}},
	}
	if err := s.PutScores(ctx, rec.ID, scores); err != nil {
		t.Fatalf("PutScores: %v", err)
	}

	got, err := s.ListScores(ctx, rec.ID, 2)
	if err != nil {
		t.Fatalf("ListScores: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "s2" {
		t.Errorf("ListScores(minCI=2) = %+v, want only s2", got)
	}
}
