package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

const gfwBaseURL = "https://data-api.globalforestwatch.org"

// GFW adapts the Global Forest Watch integrated deforestation alert
// system: near-real-time forest change feeding carbon and soil analysis.
type GFW struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGFW creates a GFW adapter from its configuration.
func NewGFW(c Config) *GFW {
	base := c.BaseURL
	if base == "" {
		base = gfwBaseURL
	}
	return &GFW{
		baseURL: base,
		apiKey:  c.APIKey,
		client:  newHTTPClient(c.Timeout),
	}
}

// Name implements pipeline.Gateway.
func (g *GFW) Name() string { return "gfw" }

// Close implements pipeline.Gateway.
func (g *GFW) Close(context.Context) error {
	g.client.CloseIdleConnections()
	return nil
}

type gfwRecord struct {
	AlertDate  string  `json:"alert__date"`
	ISO        string  `json:"iso"`
	AlertCount int     `json:"alert__count"`
	AreaHa     float64 `json:"area__ha"`
}

// FetchEvents implements pipeline.Gateway.
func (g *GFW) FetchEvents(ctx context.Context, since time.Time) ([]event.Event, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fetchErr(g.Name(), KindTransport, fmt.Errorf("invalid endpoint: %w", err))
	}
	u.Path = "/dataset/gfw_integrated_alerts/latest/query"

	q := u.Query()
	q.Set("sql", fmt.Sprintf(
		"SELECT * FROM data WHERE alert__date >= '%s' AND alert__count > 100 "+
			"ORDER BY alert__date DESC LIMIT 200",
		since.Format("2006-01-02")))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchErr(g.Name(), KindTransport, err)
	}
	if g.apiKey != "" {
		req.Header.Set("x-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fetchErr(g.Name(), KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(g.Name(), classifyStatus(resp.StatusCode),
			fmt.Errorf("gfw returned %d", resp.StatusCode))
	}

	var payload struct {
		Data []gfwRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fetchErr(g.Name(), KindDecode, err)
	}

	events := make([]event.Event, 0, len(payload.Data))
	for _, rec := range payload.Data {
		if e, ok := g.mapRecord(rec); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

func (g *GFW) mapRecord(rec gfwRecord) (event.Event, bool) {
	alertDate, err := time.Parse("2006-01-02", rec.AlertDate)
	if err != nil {
		return event.Event{}, false
	}

	country := rec.ISO
	if country == "" {
		country = "Unknown"
	}

	return event.Event{
		ID:    fmt.Sprintf("gfw-%s-%s", country, rec.AlertDate),
		Title: "Deforestation alert: " + country,
		Summary: fmt.Sprintf(
			"%d deforestation alerts detected in %s, covering approximately %.0f ha. "+
				"Detected via GLAD integrated alert system.",
			rec.AlertCount, country, rec.AreaHa),
		EventDate:  alertDate,
		DetectedAt: time.Now().UTC(),
		Country:    country,
		Networks:   []event.Network{event.NetworkCarbon, event.NetworkSoil},
		Layers:     []event.Layer{event.LayerFlow, event.LayerStock},
		Nodes:      []event.OntologyNode{event.NodeAppropriation},
		AlertLevel: event.LevelWatch,
		Sources: []event.Source{{
			Organization: "Global Forest Watch",
			ReportName:   fmt.Sprintf("GLAD Alert - %s - %s", country, rec.AlertDate),
			Tier:         event.TierSpecializedResearch,
			AccessDate:   time.Now().UTC(),
		}},
	}, true
}
