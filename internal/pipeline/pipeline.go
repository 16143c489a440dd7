package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nasteffe/tellus/internal/event"
)

var tracer = otel.Tracer("github.com/nasteffe/tellus/internal/pipeline")

// ResistancePending is the sentinel prefix marking events whose frontline
// resistance evidence has not yet been collected. Downstream consumers
// filter on it to distinguish "no resistance" from "not yet collected".
const ResistancePending = "[PENDING]"

const resistancePlaceholder = ResistancePending +
	" Resistance data not yet collected for this event. " +
	"Requires follow-up from frontline/EJ sources."

// Pipeline executes the seven-stage analytical workflow over one batch of
// events. Stages after intake are pure transforms over the merged batch;
// intake alone fans out one fetch per registered gateway.
type Pipeline struct {
	logger  log.Logger
	metrics *Metrics

	mu       sync.Mutex
	gateways []Gateway
	srcErrs  []SourceError
}

// New creates a pipeline over the given gateways. metrics may be nil.
func New(gateways []Gateway, logger log.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		gateways: append([]Gateway(nil), gateways...),
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterGateway appends a gateway. Registration order determines the
// merge order of intake results.
func (p *Pipeline) RegisterGateway(g Gateway) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gateways = append(p.gateways, g)
}

// Gateways returns the registered gateways in registration order.
func (p *Pipeline) Gateways() []Gateway {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Gateway(nil), p.gateways...)
}

// SourceErrors returns the per-source failures recorded by the most recent
// intake. Callers use it to tell "nothing matched" apart from "every
// source failed".
func (p *Pipeline) SourceErrors() []SourceError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SourceError(nil), p.srcErrs...)
}

// Intake fetches events from every registered gateway concurrently and
// merges them in registration order. A failing source contributes zero
// events and one SourceError; it never fails the batch, even when every
// source fails. Intake waits for all fetches to settle.
func (p *Pipeline) Intake(ctx context.Context, since time.Time) []event.Event {
	ctx, span := tracer.Start(ctx, "pipeline.intake", trace.WithAttributes(
		attribute.String("tellus.intake.since", since.Format("2006-01-02")),
	))
	defer span.End()

	p.mu.Lock()
	gateways := append([]Gateway(nil), p.gateways...)
	p.srcErrs = nil
	p.mu.Unlock()

	type fetchResult struct {
		events []event.Event
		err    error
	}

	// One slot per source keeps the merge deterministic without any
	// shared mutable state between fetches.
	results := make([]fetchResult, len(gateways))

	var wg sync.WaitGroup
	for i, g := range gateways {
		wg.Add(1)
		go func(i int, g Gateway) {
			defer wg.Done()
			fctx, fspan := tracer.Start(ctx, "source.fetch", trace.WithAttributes(
				attribute.String("tellus.source", g.Name()),
			))
			defer fspan.End()

			events, err := g.FetchEvents(fctx, since)
			if err != nil {
				fspan.RecordError(err)
				fspan.SetStatus(codes.Error, "fetch failed")
			} else {
				fspan.SetAttributes(attribute.Int("tellus.source.events", len(events)))
			}
			results[i] = fetchResult{events: events, err: err}
		}(i, g)
	}
	wg.Wait()

	var merged []event.Event
	var errs []SourceError
	for i, g := range gateways {
		if err := results[i].err; err != nil {
			p.logger.Error(ctx, err, "source fetch failed", "source", g.Name())
			p.metrics.observeFetch(g.Name(), 0, err)
			errs = append(errs, SourceError{Source: g.Name(), Err: err.Error()})
			continue
		}
		p.logger.Info(ctx, "source fetch complete",
			"source", g.Name(), "events", len(results[i].events))
		p.metrics.observeFetch(g.Name(), len(results[i].events), nil)
		merged = append(merged, results[i].events...)
	}

	p.mu.Lock()
	p.srcErrs = errs
	p.mu.Unlock()

	span.SetAttributes(
		attribute.Int("tellus.intake.events", len(merged)),
		attribute.Int("tellus.intake.source_errors", len(errs)),
	)

	return merged
}

// Tag validates that every event arrived with network and layer
// assignments. Sources tag events; this stage never invents tags. Any
// untagged event aborts the whole batch, since an untagged event cannot be
// scored downstream and letting it through would corrupt network-level
// aggregates.
func (p *Pipeline) Tag(events []event.Event) ([]event.Event, error) {
	for i := range events {
		if len(events[i].Networks) == 0 {
			return nil, &UntaggedNetworkError{EventID: events[i].ID}
		}
		if len(events[i].Layers) == 0 {
			return nil, &UntaggedLayerError{EventID: events[i].ID}
		}
	}
	return events, nil
}

// EvaluateThresholds recomputes the status of every threshold crossing
// already attached to the batch from its live values. It discovers no new
// crossings and is idempotent.
func (p *Pipeline) EvaluateThresholds(events []event.Event) []event.Event {
	for i := range events {
		for j := range events[i].ThresholdCrossings {
			m := &events[i].ThresholdCrossings[j].Metric
			switch {
			case m.CurrentValue > m.ThresholdValue:
				m.Status = event.StatusExceeded
			case m.CurrentValue > m.ThresholdValue*0.8:
				m.Status = event.StatusApproaching
			default:
				m.Status = event.StatusBelow
			}
		}
	}
	return events
}

// ScoreConvergence derives one ConvergenceScore per event. Pure: the
// events themselves are untouched, and scores are recomputed every run.
func (p *Pipeline) ScoreConvergence(events []event.Event) []event.ConvergenceScore {
	scores := make([]event.ConvergenceScore, 0, len(events))
	for i := range events {
		scores = append(scores, event.ConvergenceScore{
			EventID:  events[i].ID,
			Networks: events[i].Networks,
		})
	}
	return scores
}

// LinkResistance flags events missing resistance context with the
// ResistancePending sentinel. Resistance is primary evidence, not an
// afterthought; its absence must be explicit. Existing summaries are left
// untouched.
func (p *Pipeline) LinkResistance(events []event.Event) []event.Event {
	for i := range events {
		if events[i].ResistanceSummary == "" {
			events[i].ResistanceSummary = resistancePlaceholder
		}
	}
	return events
}

// Triage assigns each event's alert level from its own crossing statuses
// and its convergence score, looked up by event id. The rules overlap, so
// evaluation order is the tie-break: first match wins.
func (p *Pipeline) Triage(events []event.Event, scores []event.ConvergenceScore) []event.Event {
	byEvent := make(map[string]event.ConvergenceScore, len(scores))
	for _, cs := range scores {
		byEvent[cs.EventID] = cs
	}

	for i := range events {
		var ci float64
		if cs, ok := byEvent[events[i].ID]; ok {
			ci = cs.CIScore()
		}

		var exceeded, approaching bool
		for _, tc := range events[i].ThresholdCrossings {
			switch tc.Metric.Status {
			case event.StatusExceeded:
				exceeded = true
			case event.StatusApproaching:
				approaching = true
			}
		}

		switch {
		case ci >= 4 && exceeded:
			events[i].AlertLevel = event.LevelSystemic
		case ci >= 3 && exceeded:
			events[i].AlertLevel = event.LevelCritical
		case exceeded:
			events[i].AlertLevel = event.LevelAlert
		case approaching || ci >= 2:
			events[i].AlertLevel = event.LevelMonitor
		default:
			events[i].AlertLevel = event.LevelWatch
		}
	}
	return events
}

// Verify applies the source triangulation protocol, marking every source
// on an under-evidenced event provisional:
//
//   - fewer than 2 sources
//   - 2+ sources but fewer than 2 distinct tiers
//   - actors attributed and fewer than 3 sources
//
// The rules are independent and cumulative, all three are evaluated, and
// a source once provisional is never un-marked.
func (p *Pipeline) Verify(events []event.Event) []event.Event {
	for i := range events {
		e := &events[i]

		tiers := make(map[event.SourceTier]struct{}, len(e.Sources))
		for _, s := range e.Sources {
			tiers[s.Tier] = struct{}{}
		}

		provisional := false
		if len(e.Sources) < 2 {
			provisional = true
		}
		if len(e.Sources) >= 2 && len(tiers) < 2 {
			provisional = true
		}
		if len(e.Actors) > 0 && len(e.Sources) < 3 {
			provisional = true
		}

		if provisional {
			for j := range e.Sources {
				e.Sources[j].Provisional = true
			}
		}
	}
	return events
}

// Run executes the full workflow for events since the given date. A tag
// failure aborts the run with no partial result; source failures do not,
// and are readable via SourceErrors. Verification runs before the result
// is assembled so provisional flags are visible to reporting.
func (p *Pipeline) Run(ctx context.Context, since time.Time) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("tellus.run.since", since.Format("2006-01-02")),
	))
	defer span.End()

	start := time.Now()

	events := p.Intake(ctx, since)

	events, err := p.Tag(events)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tag stage failed")
		p.metrics.observeRun(RunFailed, time.Since(start), nil)
		return nil, err
	}

	events = p.EvaluateThresholds(events)
	scores := p.ScoreConvergence(events)
	events = p.LinkResistance(events)
	events = p.Triage(events, scores)
	events = p.Verify(events)

	result := &Result{
		RunDate: time.Now().UTC(),
		Events:  events,
	}
	for _, cs := range scores {
		if cs.CIScore() >= 2 {
			result.ConvergenceNodes = append(result.ConvergenceNodes, cs)
		}
	}
	for i := range events {
		for _, tc := range events[i].ThresholdCrossings {
			if tc.Metric.Status == event.StatusExceeded {
				result.ThresholdCrossings = append(result.ThresholdCrossings, tc)
			}
		}
		if events[i].AlertLevel.AtLeast(event.LevelAlert) {
			result.AlertEvents = append(result.AlertEvents, events[i])
		}
	}
	result.ExecutiveSummary = buildSummary(result)

	span.SetAttributes(
		attribute.Int("tellus.run.events", len(result.Events)),
		attribute.Int("tellus.run.alert_events", len(result.AlertEvents)),
		attribute.Int("tellus.run.convergence_nodes", len(result.ConvergenceNodes)),
	)

	p.logger.Info(ctx, "pipeline run complete",
		"events", len(result.Events),
		"exceeded_crossings", len(result.ThresholdCrossings),
		"convergence_nodes", len(result.ConvergenceNodes),
		"alert_events", len(result.AlertEvents),
		"source_errors", len(p.SourceErrors()),
		"duration", time.Since(start).Seconds(),
	)
	p.metrics.observeRun(RunCompleted, time.Since(start), result)

	return result, nil
}
