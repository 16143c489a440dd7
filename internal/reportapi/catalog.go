package reportapi

import (
	"net/http"
	"time"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

func (a *API) handleThresholds(w http.ResponseWriter, r *http.Request) {
	grouped := make(map[string][]event.ThresholdDefinition, len(event.ThresholdCategories))
	for _, cat := range event.ThresholdCategories {
		grouped[string(cat)] = event.CatalogByCategory(cat)
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(event.Catalog),
		"categories": grouped,
	})
}

// handleThresholdStatus reports every threshold crossing attached to the
// latest run's events, with its live comparison.
func (a *API) handleThresholdStatus(w http.ResponseWriter, r *http.Request) {
	runID, ok, err := a.resolveRunID(r)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to resolve run")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"no runs recorded"}`, http.StatusNotFound)
		return
	}

	events, err := a.store.ListEvents(r.Context(), runID, pipeline.EventFilter{})
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list events", "run_id", runID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	type crossing struct {
		EventID        string                  `json:"event_id"`
		EventTitle     string                  `json:"event_title"`
		MetricName     string                  `json:"metric_name"`
		Category       event.ThresholdCategory `json:"category"`
		BaselineValue  float64                 `json:"baseline_value"`
		BaselineDate   time.Time               `json:"baseline_date"`
		Delta          float64                 `json:"delta"`
		CurrentValue   float64                 `json:"current_value"`
		ThresholdValue float64                 `json:"threshold_value"`
		Unit           string                  `json:"unit"`
		Status         event.ThresholdStatus   `json:"status"`
		AlertLevel     event.AlertLevel        `json:"alert_level"`
		Comparison     string                  `json:"comparison"`
	}

	crossings := make([]crossing, 0)
	for i := range events {
		e := &events[i]
		for _, tc := range e.ThresholdCrossings {
			crossings = append(crossings, crossing{
				EventID:        e.ID,
				EventTitle:     e.Title,
				MetricName:     tc.Metric.Name,
				Category:       tc.Metric.Category,
				BaselineValue:  tc.Metric.BaselineValue,
				BaselineDate:   tc.Metric.BaselineDate,
				Delta:          tc.Metric.Delta,
				CurrentValue:   tc.Metric.CurrentValue,
				ThresholdValue: tc.Metric.ThresholdValue,
				Unit:           tc.Metric.Unit,
				Status:         tc.Metric.Status,
				AlertLevel:     tc.AlertLevel,
				Comparison:     tc.Metric.ComparisonString(),
			})
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    runID,
		"crossings": crossings,
	})
}
