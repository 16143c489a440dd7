package postgres

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReqDBStats_Accumulates(t *testing.T) {
	t.Parallel()

	var s ReqDBStats
	for _, q := range []struct {
		dur time.Duration
		err error
	}{
		{10 * time.Millisecond, nil},
		{20 * time.Millisecond, errors.New("timeout")},
		{5 * time.Millisecond, nil},
	} {
		s.AddQuery(q.dur, q.err)
	}

	if got, want := s.QueryCount, 3; got != want {
		t.Errorf("QueryCount = %d, want %d", got, want)
	}
	if got, want := s.TotalDuration, 35*time.Millisecond; got != want {
		t.Errorf("TotalDuration = %v, want %v", got, want)
	}
	if got, want := s.ErrorCount, 1; got != want {
		t.Errorf("ErrorCount = %d, want %d", got, want)
	}
}

// The context carries a pointer, so stats recorded deep in the query
// tracer are visible to the request middleware that seeded them.
func TestReqDBStatsContext_SharedPointer(t *testing.T) {
	t.Parallel()

	ctx := NewReqDBStatsContext(context.Background())

	seeded, ok := ReqDBStatsFromContext(ctx)
	if !ok || seeded == nil {
		t.Fatalf("ReqDBStatsFromContext = %v, %v, want stats, true", seeded, ok)
	}
	seeded.AddQuery(time.Millisecond, nil)

	again, _ := ReqDBStatsFromContext(ctx)
	if got, want := again.QueryCount, 1; got != want {
		t.Errorf("QueryCount via second lookup = %d, want %d", got, want)
	}

	if _, ok := ReqDBStatsFromContext(context.Background()); ok {
		t.Error("ReqDBStatsFromContext(plain ctx) ok = true, want false")
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	for _, method := range []string{"POST", ""} {
		ctx := WithHTTPMethod(context.Background(), method)
		if got := httpMethodFromContext(ctx); got != method {
			t.Errorf("httpMethodFromContext = %q, want %q", got, method)
		}
	}
}

func TestSetQueryObserver(t *testing.T) {
	t.Parallel()

	defer SetQueryObserver(nil)

	var gotRoute string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, route, _ string, _ time.Duration) {
		gotRoute = route
	}))

	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("getQueryObserver() = nil after Set")
	}
	obs.ObserveQuery(context.Background(), "GET", "/api/v1/events", "ok", time.Millisecond)
	if got, want := gotRoute, "/api/v1/events"; got != want {
		t.Errorf("observed route = %q, want %q", got, want)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("getQueryObserver() != nil after Set(nil)")
	}
}
