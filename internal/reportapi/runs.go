package reportapi

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	lookback := a.defaultLookback
	if raw := r.URL.Query().Get("lookback_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			http.Error(w, `{"error":"lookback_days must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		lookback = time.Duration(days) * 24 * time.Hour
	}

	res, err := a.svc.Trigger(r.Context(), lookback)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to trigger pipeline run")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if res.Skipped {
		a.writeJSON(w, http.StatusConflict, res)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("tellus.run.id", res.ID))

	a.writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := a.svc.LatestRun(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load latest run")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"no runs recorded"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := a.svc.ListRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list runs")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("tellus.run.id", id))

	rec, ok, err := a.svc.GetRun(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get run", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("tellus.run.status", string(rec.Status)))

	a.writeJSON(w, http.StatusOK, rec)
}
