package event

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Source is a citation backing an event, ranked by the seven-tier source
// hierarchy. Provisional is set by the pipeline's verification stage when
// the triangulation bar is not met; it is never cleared.
type Source struct {
	Organization string     `json:"organization"`
	ReportName   string     `json:"report_name"`
	DOI          string     `json:"doi,omitempty"`
	ReportID     string     `json:"report_id,omitempty"`
	Tier         SourceTier `json:"tier"`
	AccessDate   time.Time  `json:"access_date"`
	Provisional  bool       `json:"provisional"`
}

// Citation renders the source as a single citation line.
func (s Source) Citation() string {
	parts := []string{s.Organization, s.ReportName}
	switch {
	case s.DOI != "":
		parts = append(parts, s.DOI)
	case s.ReportID != "":
		parts = append(parts, s.ReportID)
	}
	return strings.Join(parts, " - ")
}

// Actor is a party involved in appropriation, governance, or resistance.
type Actor struct {
	Name string `json:"name"`
	// Type is e.g. "corporation", "state", "armed_group", "community", "NGO".
	Type         string `json:"actor_type"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	// Role is e.g. "extractor", "enabler", "beneficiary", "resister".
	Role string `json:"role"`
}

// ThresholdMetric is a single measured quantity compared against a bound.
// Status is recomputed by the pipeline's threshold stage.
type ThresholdMetric struct {
	Name           string            `json:"name"`
	Category       ThresholdCategory `json:"category"`
	Networks       []Network         `json:"networks"`
	BaselineValue  float64           `json:"baseline_value"`
	BaselineDate   time.Time         `json:"baseline_date"`
	Delta          float64           `json:"delta"`
	CurrentValue   float64           `json:"current_value"`
	ThresholdValue float64           `json:"threshold_value"`
	Unit           string            `json:"unit"`
	Status         ThresholdStatus   `json:"status"`
}

// ComparisonString renders the metric as
// "baseline (date) + delta = current <= threshold [STATUS]",
// tagging the status only when the bound is exceeded.
func (m ThresholdMetric) ComparisonString() string {
	statusTag := ""
	if m.Status == StatusExceeded {
		statusTag = fmt.Sprintf(" [%s]", m.Status)
	}
	return fmt.Sprintf("%.1f %s (%s) + %+.1f = %.1f <= %.1f%s",
		m.BaselineValue, m.Unit, m.BaselineDate.Format("2006-01-02"),
		m.Delta, m.CurrentValue, m.ThresholdValue, statusTag)
}

// ThresholdCrossing pairs a metric with its detection metadata. Crossings
// are owned by the event they are attached to.
type ThresholdCrossing struct {
	Metric     ThresholdMetric `json:"metric"`
	DetectedAt time.Time       `json:"detected_at"`
	AlertLevel AlertLevel      `json:"alert_level"`
	Notes      string          `json:"notes,omitempty"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is the unit of analysis: an occurrence of resource appropriation,
// displacement, governance change, or resistance, tagged through the
// Tellus ontology. Sources construct events; the pipeline only sets
// AlertLevel, ResistanceSummary (when absent), per-metric Status, and
// per-source Provisional.
type Event struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	EventDate  time.Time `json:"event_date"`
	DetectedAt time.Time `json:"detected_at"`

	Country     string       `json:"country"`
	Region      string       `json:"region,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	Networks         []Network         `json:"networks"`
	Layers           []Layer           `json:"layers"`
	Nodes            []OntologyNode    `json:"nodes"`
	CouplingPatterns []CouplingPattern `json:"coupling_patterns,omitempty"`

	Actors             []Actor             `json:"actors,omitempty"`
	ThresholdCrossings []ThresholdCrossing `json:"threshold_crossings,omitempty"`
	Sources            []Source            `json:"sources,omitempty"`

	AlertLevel AlertLevel `json:"alert_level"`

	ResistanceSummary string `json:"resistance_summary,omitempty"`
	GovernanceContext string `json:"governance_context,omitempty"`
	Outlook30d        string `json:"outlook_30d,omitempty"`
}

// distinctNetworks collapses duplicates, preserving nothing about order.
func (e *Event) distinctNetworks() map[Network]struct{} {
	set := make(map[Network]struct{}, len(e.Networks))
	for _, n := range e.Networks {
		set[n] = struct{}{}
	}
	return set
}

// ConvergenceIndex is the count of distinct networks the event touches.
func (e *Event) ConvergenceIndex() int {
	return len(e.distinctNetworks())
}

// IsConvergenceNode reports whether the event touches two or more networks.
func (e *Event) IsConvergenceNode() bool {
	return e.ConvergenceIndex() >= 2
}

// DistinctNetworks returns the event's networks deduplicated and in
// ordinal order.
func (e *Event) DistinctNetworks() []Network {
	set := e.distinctNetworks()
	nets := make([]Network, 0, len(set))
	for n := range set {
		nets = append(nets, n)
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i] < nets[j] })
	return nets
}

// NetworkLabels renders the distinct networks in ordinal order,
// e.g. "I: Carbon Accumulation, II: Water Appropriation".
func (e *Event) NetworkLabels() string {
	nets := e.DistinctNetworks()
	labels := make([]string, len(nets))
	for i, n := range nets {
		labels[i] = fmt.Sprintf("%s: %s", n.Roman(), n.Label())
	}
	return strings.Join(labels, ", ")
}
