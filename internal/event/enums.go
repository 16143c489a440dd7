package event

import "strconv"

// Network is one of the eight metabolic networks through which every event
// is analyzed. The ordinal values are fixed and appear in stored data.
type Network int

const (
	NetworkCarbon       Network = 1 // Carbon Accumulation
	NetworkWater        Network = 2 // Water Appropriation
	NetworkSoil         Network = 3 // Soil Fertility Transfer
	NetworkMineral      Network = 4 // Mineral Extraction
	NetworkAtmospheric  Network = 5 // Atmospheric Commons Degradation
	NetworkBiodiversity Network = 6 // Biodiversity & Genetic Commons
	NetworkOcean        Network = 7 // Ocean & Marine Appropriation
	NetworkLabor        Network = 8 // Labor & Embodied Health
)

// Networks lists all eight networks in ordinal order.
var Networks = []Network{
	NetworkCarbon,
	NetworkWater,
	NetworkSoil,
	NetworkMineral,
	NetworkAtmospheric,
	NetworkBiodiversity,
	NetworkOcean,
	NetworkLabor,
}

var networkLabels = map[Network]string{
	NetworkCarbon:       "Carbon Accumulation",
	NetworkWater:        "Water Appropriation",
	NetworkSoil:         "Soil Fertility Transfer",
	NetworkMineral:      "Mineral Extraction",
	NetworkAtmospheric:  "Atmospheric Commons Degradation",
	NetworkBiodiversity: "Biodiversity & Genetic Commons",
	NetworkOcean:        "Ocean & Marine Appropriation",
	NetworkLabor:        "Labor & Embodied Health",
}

var networkRomans = map[Network]string{
	NetworkCarbon:       "I",
	NetworkWater:        "II",
	NetworkSoil:         "III",
	NetworkMineral:      "IV",
	NetworkAtmospheric:  "V",
	NetworkBiodiversity: "VI",
	NetworkOcean:        "VII",
	NetworkLabor:        "VIII",
}

// Valid reports whether n is one of the eight defined networks.
func (n Network) Valid() bool {
	_, ok := networkLabels[n]
	return ok
}

// Label returns the display label, e.g. "Water Appropriation".
func (n Network) Label() string {
	if l, ok := networkLabels[n]; ok {
		return l
	}
	return "Unknown"
}

// Roman returns the Roman-numeral designation, e.g. "II".
func (n Network) Roman() string {
	if r, ok := networkRomans[n]; ok {
		return r
	}
	return "?"
}

func (n Network) String() string {
	if n.Valid() {
		return n.Roman() + ": " + n.Label()
	}
	return "Network(" + strconv.Itoa(int(n)) + ")"
}

// Layer is one of the six analytical lenses applied within a network.
type Layer string

const (
	LayerStock        Layer = "stock"
	LayerFlow         Layer = "flow"
	LayerAccumulation Layer = "accumulation"
	LayerExternality  Layer = "externality"
	LayerGovernance   Layer = "governance"
	LayerContestation Layer = "contestation"
)

// Layers lists all six analytical layers.
var Layers = []Layer{
	LayerStock,
	LayerFlow,
	LayerAccumulation,
	LayerExternality,
	LayerGovernance,
	LayerContestation,
}

// OntologyNode is one of the four event categories every event decomposes into.
type OntologyNode string

const (
	NodeAppropriation OntologyNode = "appropriation"
	NodeDisplacement  OntologyNode = "displacement"
	NodeGovernance    OntologyNode = "governance"
	NodeResistance    OntologyNode = "resistance"
)

// AlertLevel is the triage classification assigned to an event.
type AlertLevel string

const (
	LevelWatch    AlertLevel = "WATCH"
	LevelMonitor  AlertLevel = "MONITOR"
	LevelAlert    AlertLevel = "ALERT"
	LevelCritical AlertLevel = "CRITICAL"
	LevelSystemic AlertLevel = "SYSTEMIC"
)

var alertRanks = map[AlertLevel]int{
	LevelWatch:    0,
	LevelMonitor:  1,
	LevelAlert:    2,
	LevelCritical: 3,
	LevelSystemic: 4,
}

// Valid reports whether l is a recognized alert level.
func (l AlertLevel) Valid() bool {
	_, ok := alertRanks[l]
	return ok
}

// AtLeast reports whether l ranks at or above min in the
// WATCH < MONITOR < ALERT < CRITICAL < SYSTEMIC ordering.
func (l AlertLevel) AtLeast(min AlertLevel) bool {
	return alertRanks[l] >= alertRanks[min]
}

// ThresholdStatus records where a metric sits relative to its bound.
type ThresholdStatus string

const (
	StatusBelow ThresholdStatus = "BELOW"
	// StatusApproaching means within 20% of the threshold bound.
	StatusApproaching ThresholdStatus = "APPROACHING"
	StatusExceeded    ThresholdStatus = "EXCEEDED"
)

// ThresholdCategory distinguishes the four kinds of analytical thresholds.
type ThresholdCategory string

const (
	CategoryAbsolute        ThresholdCategory = "absolute"
	CategoryRateOfChange    ThresholdCategory = "rate_of_change"
	CategoryRelational      ThresholdCategory = "relational"
	CategoryGovernanceDecay ThresholdCategory = "governance_decay"
)

// ThresholdCategories lists the categories in catalog order.
var ThresholdCategories = []ThresholdCategory{
	CategoryAbsolute,
	CategoryRateOfChange,
	CategoryRelational,
	CategoryGovernanceDecay,
}

// SourceTier is the seven-level source hierarchy, strict priority order.
// Lower values rank higher.
type SourceTier int

const (
	TierFrontlineEJ          SourceTier = 1
	TierIndigenousMonitoring SourceTier = 2
	TierUNOperational        SourceTier = 3
	TierSpecializedResearch  SourceTier = 4
	TierAcademicPeerReviewed SourceTier = 5
	TierInvestigativeMedia   SourceTier = 6
	TierGovernmentRegulatory SourceTier = 7
)

// CouplingPattern is one of eleven recurring structural archetypes tagged
// onto events for qualitative pattern tracking.
type CouplingPattern int

const (
	PatternExtractiveCascade        CouplingPattern = 1
	PatternRegulatoryArbitrage      CouplingPattern = 2
	PatternGreenTransitionParadox   CouplingPattern = 3
	PatternAtmosphericEnclosure     CouplingPattern = 4
	PatternDebtNatureTrap           CouplingPattern = 5
	PatternSacrificeZoneSpiral      CouplingPattern = 6
	PatternMilitarizedConservation  CouplingPattern = 7
	PatternFoodSovereigntyErosion   CouplingPattern = 8
	PatternHumanitarianSecurityFeed CouplingPattern = 9
	PatternKnowledgeEnclosure       CouplingPattern = 10
	PatternInfrastructureLockIn     CouplingPattern = 11
)

var couplingLabels = map[CouplingPattern]string{
	PatternExtractiveCascade:        "Extractive Cascade",
	PatternRegulatoryArbitrage:      "Regulatory Arbitrage Loop",
	PatternGreenTransitionParadox:   "Green Transition Paradox",
	PatternAtmosphericEnclosure:     "Atmospheric Enclosure",
	PatternDebtNatureTrap:           "Debt-Nature Trap",
	PatternSacrificeZoneSpiral:      "Sacrifice Zone Intensification Spiral",
	PatternMilitarizedConservation:  "Militarized Conservation Enclosure",
	PatternFoodSovereigntyErosion:   "Food Sovereignty Erosion Loop",
	PatternHumanitarianSecurityFeed: "Humanitarian-Security Feedback",
	PatternKnowledgeEnclosure:       "Knowledge Enclosure Circuit",
	PatternInfrastructureLockIn:     "Infrastructure Lock-in Ratchet",
}

// Label returns the display label for the coupling pattern.
func (p CouplingPattern) Label() string {
	if l, ok := couplingLabels[p]; ok {
		return l
	}
	return "Unknown"
}
