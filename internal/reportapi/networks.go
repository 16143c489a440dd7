package reportapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

// latestEvents loads the latest run's full event set. A missing run is
// not an error here: network reporting over an empty store is just all
// zeros, matching a deployment that has not completed a run yet.
func (a *API) latestEvents(r *http.Request, f pipeline.EventFilter) ([]event.Event, string, error) {
	runID, ok, err := a.resolveRunID(r)
	if err != nil || !ok {
		return nil, "", err
	}
	events, err := a.store.ListEvents(r.Context(), runID, f)
	return events, runID, err
}

func maxAlert(events []event.Event) event.AlertLevel {
	level := event.LevelWatch
	for i := range events {
		if events[i].AlertLevel.AtLeast(level) {
			level = events[i].AlertLevel
		}
	}
	return level
}

func (a *API) handleNetworks(w http.ResponseWriter, r *http.Request) {
	events, runID, err := a.latestEvents(r, pipeline.EventFilter{})
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load events for network summaries")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	type summary struct {
		ID                 int              `json:"id"`
		Roman              string           `json:"roman"`
		Label              string           `json:"label"`
		EventCount         int              `json:"event_count"`
		ConvergentCount    int              `json:"convergent_count"`
		ThresholdCrossings int              `json:"threshold_crossings"`
		MaxAlert           event.AlertLevel `json:"max_alert"`
	}

	out := make([]summary, 0, len(event.Networks))
	for _, n := range event.Networks {
		var netEvents []event.Event
		for i := range events {
			for _, en := range events[i].Networks {
				if en == n {
					netEvents = append(netEvents, events[i])
					break
				}
			}
		}

		s := summary{
			ID:       int(n),
			Roman:    n.Roman(),
			Label:    n.Label(),
			MaxAlert: maxAlert(netEvents),
		}
		for i := range netEvents {
			s.EventCount++
			if netEvents[i].IsConvergenceNode() {
				s.ConvergentCount++
			}
			s.ThresholdCrossings += len(netEvents[i].ThresholdCrossings)
		}
		out = append(out, s)
	}

	resp := map[string]any{"networks": out}
	if runID != "" {
		resp["run_id"] = runID
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleNetworkDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || !event.Network(id).Valid() {
		http.Error(w, `{"error":"network not found"}`, http.StatusNotFound)
		return
	}
	n := event.Network(id)

	events, runID, err := a.latestEvents(r, pipeline.EventFilter{Network: n})
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load events for network detail", "network", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	type layerEntry struct {
		ID         string           `json:"id"`
		Title      string           `json:"title"`
		Country    string           `json:"country"`
		AlertLevel event.AlertLevel `json:"alert_level"`
		EventDate  string           `json:"event_date"`
	}
	layers := make(map[string][]layerEntry)
	for i := range events {
		e := &events[i]
		entry := layerEntry{
			ID:         e.ID,
			Title:      e.Title,
			Country:    e.Country,
			AlertLevel: e.AlertLevel,
			EventDate:  e.EventDate.Format("2006-01-02"),
		}
		for _, l := range e.Layers {
			layers[string(l)] = append(layers[string(l)], entry)
		}
	}

	// Events whose resistance context has actually been collected, as
	// opposed to carrying the pending sentinel.
	type resistanceEntry struct {
		ID                string `json:"id"`
		Title             string `json:"title"`
		Country           string `json:"country"`
		ResistanceSummary string `json:"resistance_summary"`
	}
	spotlight := make([]resistanceEntry, 0, len(events))
	for i := range events {
		e := &events[i]
		if e.ResistanceSummary == "" || strings.Contains(e.ResistanceSummary, pipeline.ResistancePending) {
			continue
		}
		spotlight = append(spotlight, resistanceEntry{
			ID:                e.ID,
			Title:             e.Title,
			Country:           e.Country,
			ResistanceSummary: e.ResistanceSummary,
		})
		if len(spotlight) == 10 {
			break
		}
	}

	resp := map[string]any{
		"id":                   int(n),
		"roman":                n.Roman(),
		"label":                n.Label(),
		"event_count":          len(events),
		"layers":               layers,
		"resistance_spotlight": spotlight,
	}
	if runID != "" {
		resp["run_id"] = runID
	}
	a.writeJSON(w, http.StatusOK, resp)
}
