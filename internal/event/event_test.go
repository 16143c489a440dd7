package event

import (
	"testing"
	"time"
)

func TestEvent_ConvergenceIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		networks []Network
		want     int
	}{
		{"no networks", nil, 0},
		{"single", []Network{NetworkCarbon}, 1},
		{"two distinct", []Network{NetworkCarbon, NetworkWater}, 2},
		{"duplicates collapse", []Network{NetworkCarbon, NetworkCarbon, NetworkCarbon}, 1},
		{"mixed duplicates", []Network{NetworkCarbon, NetworkWater, NetworkCarbon, NetworkSoil}, 3},
		{"all eight", Networks, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := Event{Networks: tt.networks}
			if got := e.ConvergenceIndex(); got != tt.want {
				t.Errorf("ConvergenceIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvent_IsConvergenceNode(t *testing.T) {
	t.Parallel()

	one := Event{Networks: []Network{NetworkCarbon}}
	if one.IsConvergenceNode() {
		t.Error("single-network event should not be a convergence node")
	}

	two := Event{Networks: []Network{NetworkCarbon, NetworkWater}}
	if !two.IsConvergenceNode() {
		t.Error("two-network event should be a convergence node")
	}
}

func TestEvent_DistinctNetworks_SortedDedup(t *testing.T) {
	t.Parallel()

	e := Event{Networks: []Network{NetworkMineral, NetworkCarbon, NetworkMineral, NetworkWater}}
	got := e.DistinctNetworks()
	want := []Network{NetworkCarbon, NetworkWater, NetworkMineral}
	if len(got) != len(want) {
		t.Fatalf("DistinctNetworks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DistinctNetworks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEvent_NetworkLabels_SortedDistinct(t *testing.T) {
	t.Parallel()

	e := Event{Networks: []Network{NetworkMineral, NetworkCarbon, NetworkMineral}}
	got := e.NetworkLabels()
	want := "I: Carbon Accumulation, IV: Mineral Extraction"
	if got != want {
		t.Errorf("NetworkLabels() = %q, want %q", got, want)
	}
}

func TestSource_Citation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{
			name: "doi preferred",
			src:  Source{Organization: "IDMC", ReportName: "GRID 2026", DOI: "10.1000/xyz", ReportID: "r-9"},
			want: "IDMC - GRID 2026 - 10.1000/xyz",
		},
		{
			name: "report id fallback",
			src:  Source{Organization: "ACLED", ReportName: "Weekly", ReportID: "r-9"},
			want: "ACLED - Weekly - r-9",
		},
		{
			name: "neither",
			src:  Source{Organization: "GFW", ReportName: "Integrated Alerts"},
			want: "GFW - Integrated Alerts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.src.Citation(); got != tt.want {
				t.Errorf("Citation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThresholdMetric_ComparisonString(t *testing.T) {
	t.Parallel()

	m := ThresholdMetric{
		BaselineValue:  100,
		BaselineDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Delta:          50,
		CurrentValue:   150,
		ThresholdValue: 120,
		Unit:           "kt",
		Status:         StatusExceeded,
	}
	got := m.ComparisonString()
	want := "100.0 kt (2025-06-01) + +50.0 = 150.0 <= 120.0 [EXCEEDED]"
	if got != want {
		t.Errorf("ComparisonString() = %q, want %q", got, want)
	}

	m.Status = StatusBelow
	m.Delta = -10
	m.CurrentValue = 90
	got = m.ComparisonString()
	want = "100.0 kt (2025-06-01) + -10.0 = 90.0 <= 120.0"
	if got != want {
		t.Errorf("ComparisonString() below = %q, want %q", got, want)
	}
}
