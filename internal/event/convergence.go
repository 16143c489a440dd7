package event

// ConvergenceScore measures multi-network convergence for a single event.
//
// CI = sum over distinct networks of that network's severity weight
// (1.0 when no weights are set, so the plain score equals the distinct
// network count).
//
//	CI 1    single-network, monitor per network thresholds
//	CI 2-3  multi-network, escalate to cross-network analysis
//	CI >= 4 systemic node, immediate high-priority briefing
type ConvergenceScore struct {
	EventID         string              `json:"event_id"`
	Networks        []Network           `json:"networks"`
	SeverityWeights map[Network]float64 `json:"severity_weights,omitempty"`
}

// CIScore returns the convergence index. Weighted scores use the same
// breakpoints as unweighted ones, without rounding.
func (c ConvergenceScore) CIScore() float64 {
	set := make(map[Network]struct{}, len(c.Networks))
	for _, n := range c.Networks {
		set[n] = struct{}{}
	}
	if len(c.SeverityWeights) == 0 {
		return float64(len(set))
	}
	var sum float64
	for n := range set {
		if w, ok := c.SeverityWeights[n]; ok {
			sum += w
		} else {
			sum += 1.0
		}
	}
	return sum
}

// Classification buckets the CI score.
func (c ConvergenceScore) Classification() string {
	switch score := c.CIScore(); {
	case score >= 4:
		return "Systemic node"
	case score >= 2:
		return "Multi-network"
	default:
		return "Single-network"
	}
}

// RecommendedAction describes the analytical follow-up for the CI score.
func (c ConvergenceScore) RecommendedAction() string {
	switch score := c.CIScore(); {
	case score >= 4:
		return "Immediate high-priority briefing, structural analysis"
	case score >= 2:
		return "Escalate to cross-network analysis"
	default:
		return "Monitor per network thresholds"
	}
}

// RecommendedAlertLevel maps the CI score to a floor alert level.
func (c ConvergenceScore) RecommendedAlertLevel() AlertLevel {
	switch score := c.CIScore(); {
	case score >= 4:
		return LevelSystemic
	case score >= 3:
		return LevelCritical
	case score >= 2:
		return LevelAlert
	default:
		return LevelMonitor
	}
}
