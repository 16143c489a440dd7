package event

// ThresholdDefinition is one entry in the fixed analytical threshold
// catalog. The catalog is pure data: it is consulted by reporting and API
// layers and never mutated at runtime.
type ThresholdDefinition struct {
	Name           string            `json:"name"`
	Category       ThresholdCategory `json:"category"`
	Description    string            `json:"description"`
	Networks       []Network         `json:"networks"`
	ThresholdValue float64           `json:"threshold_value"`
	Unit           string            `json:"unit"`
}

// Catalog is the fixed list of analytical thresholds, ordered by category:
// absolute bright lines, rate-of-change, relational, governance decay.
var Catalog = []ThresholdDefinition{
	// Absolute (bright lines)
	{
		Name:           "displacement_single_event",
		Category:       CategoryAbsolute,
		Description:    "Displacement >100 000 persons in single event/campaign",
		Networks:       []Network{NetworkCarbon, NetworkWater, NetworkMineral},
		ThresholdValue: 100_000,
		Unit:           "persons",
	},
	{
		Name:           "contamination_who_limits",
		Category:       CategoryAbsolute,
		Description:    "Contamination above WHO limits affecting >50 000 persons",
		Networks:       []Network{NetworkWater, NetworkAtmospheric},
		ThresholdValue: 50_000,
		Unit:           "persons",
	},
	{
		Name:           "armed_conflict_fatalities",
		Category:       CategoryAbsolute,
		Description:    "Armed conflict >1 000 fatalities in 30-day window",
		Networks:       []Network{NetworkMineral, NetworkCarbon},
		ThresholdValue: 1_000,
		Unit:           "fatalities/30d",
	},
	{
		Name:           "regulatory_rollback",
		Category:       CategoryAbsolute,
		Description:    "Regulatory rollback eliminating >10% governance coverage in any network",
		Networks:       allNetworks(),
		ThresholdValue: 10,
		Unit:           "% governance coverage",
	},
	{
		Name:           "defender_killings",
		Category:       CategoryAbsolute,
		Description:    "Land/environmental defender killings >5 in 90-day window per jurisdiction",
		Networks:       allNetworks(),
		ThresholdValue: 5,
		Unit:           "killings/90d/jurisdiction",
	},
	// Rate-of-change (velocity)
	{
		Name:           "displacement_rate_doubling",
		Category:       CategoryRateOfChange,
		Description:    "Displacement rate doubling within 30-day window",
		Networks:       allNetworks(),
		ThresholdValue: 2.0,
		Unit:           "rate multiplier/30d",
	},
	{
		Name:           "deforestation_anomaly",
		Category:       CategoryRateOfChange,
		Description:    "Deforestation >3 sigma above 5-year mean for any jurisdiction",
		Networks:       []Network{NetworkCarbon, NetworkSoil},
		ThresholdValue: 3.0,
		Unit:           "sigma above 5y mean",
	},
	{
		Name:           "conflict_fatalities_acceleration",
		Category:       CategoryRateOfChange,
		Description:    "Conflict fatalities >50% month-on-month for 3 consecutive months",
		Networks:       []Network{NetworkMineral, NetworkCarbon},
		ThresholdValue: 50,
		Unit:           "% MoM increase",
	},
	{
		Name:           "regulatory_rollback_cluster",
		Category:       CategoryRateOfChange,
		Description:    "3 significant regulatory rollbacks in single jurisdiction within 60 days",
		Networks:       allNetworks(),
		ThresholdValue: 3,
		Unit:           "rollbacks/60d",
	},
	// Relational (equity)
	{
		Name:           "emissions_inequity",
		Category:       CategoryRelational,
		Description:    "Per capita emissions of A >20x B, where B bears >5x climate vulnerability",
		Networks:       []Network{NetworkCarbon, NetworkAtmospheric},
		ThresholdValue: 20,
		Unit:           "emissions ratio",
	},
	{
		Name:           "corporate_water_vs_domestic",
		Category:       CategoryRelational,
		Description:    "Corporate water extraction exceeding domestic supply for community >10 000 persons",
		Networks:       []Network{NetworkWater},
		ThresholdValue: 1.0,
		Unit:           "extraction/supply ratio",
	},
	{
		Name:           "ej_pollution_exposure",
		Category:       CategoryRelational,
		Description:    "EJ community pollution exposure >3x jurisdictional mean",
		Networks:       []Network{NetworkAtmospheric},
		ThresholdValue: 3.0,
		Unit:           "exposure ratio",
	},
	// Governance decay (institutional)
	{
		Name:           "treaty_noncompliance",
		Category:       CategoryGovernanceDecay,
		Description:    "Treaty withdrawal or non-compliance",
		Networks:       allNetworks(),
		ThresholdValue: 1,
		Unit:           "event",
	},
	{
		Name:           "agency_budget_cut",
		Category:       CategoryGovernanceDecay,
		Description:    "Regulatory agency budget/staffing cut >20%",
		Networks:       allNetworks(),
		ThresholdValue: 20,
		Unit:           "% cut",
	},
	{
		Name:           "fpic_weakened",
		Category:       CategoryGovernanceDecay,
		Description:    "FPIC requirement removed or weakened",
		Networks:       allNetworks(),
		ThresholdValue: 1,
		Unit:           "event",
	},
	{
		Name:           "whistleblower_protection_eliminated",
		Category:       CategoryGovernanceDecay,
		Description:    "Whistleblower/transparency protection eliminated",
		Networks:       allNetworks(),
		ThresholdValue: 1,
		Unit:           "event",
	},
}

// CatalogByCategory returns the catalog entries for one category,
// preserving catalog order.
func CatalogByCategory(cat ThresholdCategory) []ThresholdDefinition {
	var out []ThresholdDefinition
	for _, def := range Catalog {
		if def.Category == cat {
			out = append(out, def)
		}
	}
	return out
}

func allNetworks() []Network {
	out := make([]Network, len(Networks))
	copy(out, Networks)
	return out
}
