package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

func TestIDMC_FetchEvents(t *testing.T) {
	t.Parallel()

	var gotYear string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotYear = r.URL.Query().Get("year")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"country": "Sudan", "iso3": "SDN", "year": 2026, "conflict_new_displacements": 720000, "disaster_new_displacements": 15000},
			{"country": "Chile", "iso3": "CHL", "year": 2026, "conflict_new_displacements": 0, "disaster_new_displacements": 0}
		]}`))
	}))
	defer srv.Close()

	d := NewIDMC(Config{BaseURL: srv.URL})
	since := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	events, err := d.FetchEvents(context.Background(), since)
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}

	if got, want := gotYear, "2026"; got != want {
		t.Errorf("year query = %q, want %q", got, want)
	}

	// Zero-displacement records are dropped.
	if got, want := len(events), 1; got != want {
		t.Fatalf("len(events) = %d, want %d", got, want)
	}

	e := events[0]
	if got, want := e.ID, "idmc-SDN-2026"; got != want {
		t.Errorf("ID = %q, want %q", got, want)
	}
	if !strings.Contains(e.Summary, "735000 new internal displacements") {
		t.Errorf("Summary = %q, want displacement total", e.Summary)
	}
	if got, want := len(e.Networks), len(event.Networks); got != want {
		t.Errorf("len(Networks) = %d, want %d (displacement spans every network)", got, want)
	}
	if len(e.Nodes) != 1 || e.Nodes[0] != event.NodeDisplacement {
		t.Errorf("Nodes = %v, want [%v]", e.Nodes, event.NodeDisplacement)
	}
	if len(e.Sources) != 1 || e.Sources[0].Tier != event.TierUNOperational {
		t.Errorf("Sources = %+v, want one UN-operational source", e.Sources)
	}
}

func TestIDMC_BrightLineCrossing(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		conflict     int
		disaster     int
		wantCrossing bool
		wantLevel    event.AlertLevel
	}{
		{"below bright line", 40_000, 10_000, false, ""},
		{"at bright line", 100_000, 0, false, ""},
		{"above bright line", 120_000, 30_000, true, event.LevelAlert},
		{"mass displacement", 400_000, 200_000, true, event.LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewIDMC(Config{})
			e, ok := d.mapRecord(idmcRecord{
				Country:           "Sudan",
				ISO3:              "SDN",
				Year:              2026,
				ConflictDisplaced: tt.conflict,
				DisasterDisplaced: tt.disaster,
			}, since)
			if !ok {
				t.Fatal("mapRecord() ok = false, want true")
			}

			if !tt.wantCrossing {
				if len(e.ThresholdCrossings) != 0 {
					t.Fatalf("ThresholdCrossings = %+v, want none", e.ThresholdCrossings)
				}
				return
			}

			if len(e.ThresholdCrossings) != 1 {
				t.Fatalf("len(ThresholdCrossings) = %d, want 1", len(e.ThresholdCrossings))
			}
			tc := e.ThresholdCrossings[0]
			if got, want := tc.Metric.Name, "displacement_single_event"; got != want {
				t.Errorf("Metric.Name = %q, want %q", got, want)
			}
			if got, want := tc.Metric.Status, event.StatusExceeded; got != want {
				t.Errorf("Metric.Status = %v, want %v", got, want)
			}
			if got, want := tc.Metric.CurrentValue, float64(tt.conflict+tt.disaster); got != want {
				t.Errorf("Metric.CurrentValue = %v, want %v", got, want)
			}
			if got, want := tc.AlertLevel, tt.wantLevel; got != want {
				t.Errorf("AlertLevel = %v, want %v", got, want)
			}
		})
	}
}

func TestIDMC_YearFallback(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	d := NewIDMC(Config{})
	e, ok := d.mapRecord(idmcRecord{
		Country:           "Yemen",
		ISO3:              "YEM",
		ConflictDisplaced: 5_000,
	}, since)
	if !ok {
		t.Fatal("mapRecord() ok = false, want true")
	}
	if got, want := e.ID, "idmc-YEM-2025"; got != want {
		t.Errorf("ID = %q, want %q", got, want)
	}
}

func TestIDMC_DecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	d := NewIDMC(Config{BaseURL: srv.URL})
	_, err := d.FetchEvents(context.Background(), time.Now())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Kind != KindDecode {
		t.Errorf("Kind = %q, want %q", fe.Kind, KindDecode)
	}
}
