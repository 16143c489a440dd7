package pipeline

import (
	"fmt"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

// Result is the immutable output of one pipeline run, owned exclusively by
// the caller. The derived collections are filtered views of the final
// event and score sets.
type Result struct {
	RunDate            time.Time                 `json:"run_date"`
	Events             []event.Event             `json:"events"`
	ThresholdCrossings []event.ThresholdCrossing `json:"threshold_crossings"`
	ConvergenceNodes   []event.ConvergenceScore  `json:"convergence_nodes"`
	AlertEvents        []event.Event             `json:"alert_events"`
	ExecutiveSummary   string                    `json:"executive_summary"`
}

// buildSummary renders the deterministic executive summary. A configured
// drafter may replace it with prose; this text is always the fallback.
func buildSummary(r *Result) string {
	if len(r.Events) == 0 {
		return "No events ingested for this run window."
	}

	networks := make(map[event.Network]struct{})
	for i := range r.Events {
		for _, n := range r.Events[i].Networks {
			networks[n] = struct{}{}
		}
	}

	return fmt.Sprintf(
		"%d events analyzed across %d metabolic networks. "+
			"%d threshold crossings detected. %d convergence nodes identified. "+
			"%d events at ALERT level or above.",
		len(r.Events), len(networks), len(r.ThresholdCrossings),
		len(r.ConvergenceNodes), len(r.AlertEvents),
	)
}
