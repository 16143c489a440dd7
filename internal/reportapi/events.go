package reportapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

// resolveRunID returns the run_id query parameter, falling back to the
// latest recorded run. The bool is false when no run exists at all.
func (a *API) resolveRunID(r *http.Request) (string, bool, error) {
	if id := r.URL.Query().Get("run_id"); id != "" {
		return id, true, nil
	}
	rec, ok, err := a.svc.LatestRun(r.Context())
	if err != nil || !ok {
		return "", false, err
	}
	return rec.ID, true, nil
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
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

	var f pipeline.EventFilter
	q := r.URL.Query()
	f.Country = q.Get("country")
	if raw := q.Get("network"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !event.Network(n).Valid() {
			http.Error(w, `{"error":"network must be an integer between 1 and 8"}`, http.StatusBadRequest)
			return
		}
		f.Network = event.Network(n)
	}
	if raw := q.Get("min_level"); raw != "" {
		lvl := event.AlertLevel(strings.ToUpper(raw))
		if !lvl.Valid() {
			http.Error(w, `{"error":"unknown alert level"}`, http.StatusBadRequest)
			return
		}
		f.MinAlertLevel = lvl
	}
	f.ConvergenceOnly = q.Get("convergence") == "true"
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("tellus.run.id", runID))

	events, err := a.store.ListEvents(r.Context(), runID, f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list events", "run_id", runID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"events": events,
	})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("tellus.event.id", id))

	ev, ok, err := a.store.GetEvent(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get event", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, ev)
}

// handleConvergenceMatrix builds the 8x8 network co-occurrence matrix
// over the latest run's events. Cell [i][j] counts events tagged with
// both networks; the diagonal counts every event touching the network.
func (a *API) handleConvergenceMatrix(w http.ResponseWriter, r *http.Request) {
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

	labels := make([]string, 0, len(event.Networks))
	for _, n := range event.Networks {
		labels = append(labels, n.Label())
	}

	matrix := make([][]int, len(event.Networks))
	for i := range matrix {
		matrix[i] = make([]int, len(event.Networks))
	}
	for i := range events {
		nets := events[i].DistinctNetworks()
		for ai, na := range nets {
			for _, nb := range nets[ai:] {
				matrix[na-1][nb-1]++
				if na != nb {
					matrix[nb-1][na-1]++
				}
			}
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"labels": labels,
		"matrix": matrix,
	})
}

func (a *API) handleConvergence(w http.ResponseWriter, r *http.Request) {
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

	minCI := 2.0
	if raw := r.URL.Query().Get("min_ci"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			http.Error(w, `{"error":"min_ci must be a non-negative number"}`, http.StatusBadRequest)
			return
		}
		minCI = v
	}

	scores, err := a.store.ListScores(r.Context(), runID, minCI)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list convergence scores", "run_id", runID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	type node struct {
		EventID        string   `json:"event_id"`
		Networks       []string `json:"networks"`
		CIScore        float64  `json:"ci_score"`
		Classification string   `json:"classification"`
		Action         string   `json:"recommended_action"`
	}
	nodes := make([]node, 0, len(scores))
	for _, s := range scores {
		labels := make([]string, 0, len(s.Networks))
		for _, n := range s.Networks {
			labels = append(labels, n.Label())
		}
		nodes = append(nodes, node{
			EventID:        s.EventID,
			Networks:       labels,
			CIScore:        s.CIScore(),
			Classification: s.Classification(),
			Action:         s.RecommendedAction(),
		})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"min_ci": minCI,
		"nodes":  nodes,
	})
}
