package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

func testRun() (*pipeline.RunRecord, *pipeline.Result) {
	ev := event.Event{
		ID:         "acled-1001",
		Title:      "Mine expansion displaces communities",
		Country:    "Peru",
		Networks:   []event.Network{event.NetworkMineral, event.NetworkWater},
		AlertLevel: event.LevelCritical,
	}
	rec := &pipeline.RunRecord{
		ID:      "01JN123",
		RunDate: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		SourceErrors: []pipeline.SourceError{
			{Source: "gfw", Err: "status 503"},
		},
	}
	result := &pipeline.Result{
		RunDate: rec.RunDate,
		Events:  []event.Event{ev},
		ConvergenceNodes: []event.ConvergenceScore{
			{EventID: ev.ID, Networks: ev.Networks},
		},
		AlertEvents:      []event.Event{ev},
		ExecutiveSummary: "1 events analyzed.",
	}
	return rec, result
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	rec, result := testRun()

	if err := n.Send(context.Background(), rec, result); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, counts, divider, alerts, divider, convergence,
	// divider, summary, divider, context = 11 blocks
	if len(blocks) != 11 {
		t.Errorf("blocks count = %d, want 11", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "1 events at ALERT or above") {
		t.Errorf("header text = %q, want alert count", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for a CRITICAL event")
	}

	alerts := blocks[4].(map[string]any)
	alertsText := alerts["text"].(map[string]any)["text"].(string)
	if !strings.Contains(alertsText, "Mine expansion displaces communities") {
		t.Errorf("alerts block = %q, want event title", alertsText)
	}
	if !strings.Contains(alertsText, "Peru") {
		t.Errorf("alerts block = %q, want country", alertsText)
	}
	if !strings.Contains(alertsText, "*CRITICAL* - Mine expansion") {
		t.Errorf("alerts block = %q, want ASCII level separator", alertsText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	rec, result := testRun()
	if err := n.Send(context.Background(), rec, result); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongSummary(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec, result := testRun()
	result.ConvergenceNodes = nil
	result.ExecutiveSummary = strings.Repeat("x", 4000)

	n := New(srv.URL)
	if err := n.Send(context.Background(), rec, result); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	// header, divider, counts, divider, alerts, divider, summary, divider, context
	summarySection := blocks[6].(map[string]any)
	text := summarySection["text"].(map[string]any)["text"].(string)

	if len(text) > maxSummaryLen+len("*Executive summary*\n\n") {
		t.Errorf("summary text length = %d, expected <= %d", len(text), maxSummaryLen+len("*Executive summary*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated summary to end with ...")
	}
}

func TestAlertsBlock_CapsListedRows(t *testing.T) {
	t.Parallel()

	_, result := testRun()
	for i := 0; i < 15; i++ {
		result.AlertEvents = append(result.AlertEvents, event.Event{
			ID:         "idmc-extra",
			Title:      "Displacement event",
			Country:    "Sudan",
			AlertLevel: event.LevelAlert,
		})
	}

	block := alertsBlock(result)
	text := block["text"].(map[string]any)["text"].(string)
	if !strings.Contains(text, "...and 6 more") {
		t.Errorf("alerts block = %q, want overflow marker for 16 events", text)
	}
}

func TestLevelEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level event.AlertLevel
		want  string
	}{
		{"systemic", event.LevelSystemic, "\U0001f534"},
		{"critical", event.LevelCritical, "\U0001f534"},
		{"alert", event.LevelAlert, "\U0001f7e0"},
		{"monitor", event.LevelMonitor, "\U0001f7e1"},
		{"watch", event.LevelWatch, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := levelEmoji(tt.level)
			if got != tt.want {
				t.Errorf("levelEmoji(%q) = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Mine expansion", "Peru", "1 events analyzed.")
	f.Add("", "", "")
	f.Add("<@U123> mention", "*bold* _italic_", "~strike~")
	f.Add("title\x00\x01\x02", "country\nline", "summary\ttab")
	f.Add(strings.Repeat("A", 5000), "DRC", strings.Repeat("x", 10000))

	f.Fuzz(func(t *testing.T, title, country, summary string) {
		ev := event.Event{
			ID:         "fuzz-id",
			Title:      title,
			Country:    country,
			Networks:   []event.Network{event.NetworkCarbon},
			AlertLevel: event.LevelAlert,
		}
		rec := &pipeline.RunRecord{
			ID:      "fuzz-run",
			RunDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		result := &pipeline.Result{
			Events:           []event.Event{ev},
			AlertEvents:      []event.Event{ev},
			ExecutiveSummary: summary,
		}

		// Must not panic
		msg := buildMessage(rec, result)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		if _, ok := decoded["blocks"].([]any); !ok {
			t.Fatal("expected blocks array")
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	rec, result := testRun()
	if err := n.Send(context.Background(), rec, result); err == nil {
		t.Fatal("expected error on non-OK status")
	} else if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
