// Package reportapi exposes pipeline runs, events, convergence scores,
// and the threshold catalog over HTTP. Every collection it serves is a
// read-only snapshot of one pipeline run.
package reportapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/nasteffe/tellus/internal/pipeline"
)

// PipelineService defines the run operations the API needs.
type PipelineService interface {
	Trigger(ctx context.Context, lookback time.Duration) (*pipeline.TriggerResult, error)
	GetRun(ctx context.Context, id string) (*pipeline.RunRecord, bool, error)
	LatestRun(ctx context.Context) (*pipeline.RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]*pipeline.RunRecord, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger          log.Logger
	svc             PipelineService
	store           pipeline.Store
	defaultLookback time.Duration
}

// New creates a new API handler.
func New(logger log.Logger, svc PipelineService, store pipeline.Store, defaultLookback time.Duration) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("pipeline service is required"))
	}
	if store == nil {
		panic(xerrors.New("store is required"))
	}
	if defaultLookback <= 0 {
		defaultLookback = 48 * time.Hour
	}
	return &API{
		logger:          logger,
		svc:             svc,
		store:           store,
		defaultLookback: defaultLookback,
	}
}

// RegisterRoutes attaches API endpoints to the router. The trigger route
// is separate so main can wrap it with auth middleware.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pipeline/status", a.handlePipelineStatus)
		r.Get("/pipeline/runs", a.handleListRuns)
		r.Get("/pipeline/runs/{id}", a.handleGetRun)
		r.Get("/events", a.handleListEvents)
		r.Get("/events/{id}", a.handleGetEvent)
		r.Get("/convergence", a.handleConvergence)
		r.Get("/convergence/matrix", a.handleConvergenceMatrix)
		r.Get("/thresholds", a.handleThresholds)
		r.Get("/thresholds/status", a.handleThresholdStatus)
		r.Get("/networks", a.handleNetworks)
		r.Get("/networks/{id}", a.handleNetworkDetail)
	})
}

// RegisterTriggerRoute attaches the run-trigger endpoint, optionally
// wrapped in middleware (bearer auth in production).
func (a *API) RegisterTriggerRoute(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.Route("/api/v1/pipeline", func(r chi.Router) {
		r.Use(mw...)
		r.Post("/run", a.handleTriggerRun)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
