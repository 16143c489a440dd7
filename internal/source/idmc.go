package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

const idmcBaseURL = "https://api.idmcdb.org/api"

// displacementBrightLine is the single-event displacement bound from the
// threshold catalog; IDMC records above it arrive with a synthesized
// crossing for the pipeline to evaluate.
const displacementBrightLine = 100_000

// IDMC adapts the Internal Displacement Monitoring Centre database.
// Displacement cuts across every metabolic network.
type IDMC struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewIDMC creates an IDMC adapter from its configuration.
func NewIDMC(c Config) *IDMC {
	base := c.BaseURL
	if base == "" {
		base = idmcBaseURL
	}
	return &IDMC{
		baseURL: base,
		apiKey:  c.APIKey,
		client:  newHTTPClient(c.Timeout),
	}
}

// Name implements pipeline.Gateway.
func (d *IDMC) Name() string { return "idmc" }

// Close implements pipeline.Gateway.
func (d *IDMC) Close(context.Context) error {
	d.client.CloseIdleConnections()
	return nil
}

type idmcRecord struct {
	Country           string `json:"country"`
	ISO3              string `json:"iso3"`
	Year              int    `json:"year"`
	ConflictDisplaced int    `json:"conflict_new_displacements"`
	DisasterDisplaced int    `json:"disaster_new_displacements"`
}

// FetchEvents implements pipeline.Gateway.
func (d *IDMC) FetchEvents(ctx context.Context, since time.Time) ([]event.Event, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fetchErr(d.Name(), KindTransport, fmt.Errorf("invalid endpoint: %w", err))
	}
	u.Path += "/displacement_data"

	q := u.Query()
	q.Set("ci", "IDMC")
	q.Set("year", strconv.Itoa(since.Year()))
	if d.apiKey != "" {
		q.Set("key", d.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchErr(d.Name(), KindTransport, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fetchErr(d.Name(), KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(d.Name(), classifyStatus(resp.StatusCode),
			fmt.Errorf("idmc returned %d", resp.StatusCode))
	}

	var payload struct {
		Results []idmcRecord `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fetchErr(d.Name(), KindDecode, err)
	}

	events := make([]event.Event, 0, len(payload.Results))
	for _, rec := range payload.Results {
		if e, ok := d.mapRecord(rec, since); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

// mapRecord maps one IDMC record to a tagged event, synthesizing a
// displacement bright-line crossing when the total exceeds the bound.
// Zero-displacement records are dropped.
func (d *IDMC) mapRecord(rec idmcRecord, since time.Time) (event.Event, bool) {
	total := rec.ConflictDisplaced + rec.DisasterDisplaced
	if total == 0 {
		return event.Event{}, false
	}

	year := rec.Year
	if year == 0 {
		year = since.Year()
	}
	eventDate := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	var crossings []event.ThresholdCrossing
	if total > displacementBrightLine {
		level := event.LevelAlert
		if total > 500_000 {
			level = event.LevelCritical
		}
		crossings = append(crossings, event.ThresholdCrossing{
			Metric: event.ThresholdMetric{
				Name:           "displacement_single_event",
				Category:       event.CategoryAbsolute,
				Networks:       append([]event.Network(nil), event.Networks...),
				BaselineValue:  0,
				BaselineDate:   time.Date(year-1, time.January, 1, 0, 0, 0, 0, time.UTC),
				Delta:          float64(total),
				CurrentValue:   float64(total),
				ThresholdValue: displacementBrightLine,
				Unit:           "persons",
				Status:         event.StatusExceeded,
			},
			DetectedAt: time.Now().UTC(),
			AlertLevel: level,
		})
	}

	return event.Event{
		ID:    fmt.Sprintf("idmc-%s-%d", rec.ISO3, year),
		Title: fmt.Sprintf("Internal displacement: %s (%d)", rec.Country, year),
		Summary: fmt.Sprintf(
			"%s: %d new internal displacements in %d (conflict: %d, disaster: %d).",
			rec.Country, total, year, rec.ConflictDisplaced, rec.DisasterDisplaced),
		EventDate:          eventDate,
		DetectedAt:         time.Now().UTC(),
		Country:            rec.Country,
		Networks:           append([]event.Network(nil), event.Networks...),
		Layers:             []event.Layer{event.LayerExternality, event.LayerFlow},
		Nodes:              []event.OntologyNode{event.NodeDisplacement},
		ThresholdCrossings: crossings,
		AlertLevel:         event.LevelWatch,
		Sources: []event.Source{{
			Organization: "IDMC",
			ReportName:   fmt.Sprintf("Global Internal Displacement Database - %s %d", rec.Country, year),
			Tier:         event.TierUNOperational,
			AccessDate:   time.Now().UTC(),
		}},
	}, true
}
