package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nasteffe/tellus/internal/event"
)

const acledBaseURL = "https://api.acleddata.com/acled/read"

// ACLED adapts the Armed Conflict Location & Event Data feed. Conflict
// events primarily feed carbon and mineral network analysis: resource
// conflicts, extractive violence, and resistance.
type ACLED struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewACLED creates an ACLED adapter from its configuration.
func NewACLED(c Config) *ACLED {
	base := c.BaseURL
	if base == "" {
		base = acledBaseURL
	}
	return &ACLED{
		baseURL: base,
		apiKey:  c.APIKey,
		client:  newHTTPClient(c.Timeout),
	}
}

// Name implements pipeline.Gateway.
func (a *ACLED) Name() string { return "acled" }

// Close implements pipeline.Gateway.
func (a *ACLED) Close(context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}

type acledRecord struct {
	DataID       string `json:"data_id"`
	EventType    string `json:"event_type"`
	SubEventType string `json:"sub_event_type"`
	EventDate    string `json:"event_date"`
	Country      string `json:"country"`
	Admin1       string `json:"admin1"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Actor1       string `json:"actor1"`
	Fatalities   string `json:"fatalities"`
	Notes        string `json:"notes"`
}

// FetchEvents implements pipeline.Gateway.
func (a *ACLED) FetchEvents(ctx context.Context, since time.Time) ([]event.Event, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fetchErr(a.Name(), KindTransport, fmt.Errorf("invalid endpoint: %w", err))
	}
	q := u.Query()
	q.Set("event_date", since.Format("2006-01-02"))
	q.Set("event_date_where", ">=")
	q.Set("limit", "500")
	if a.apiKey != "" {
		q.Set("key", a.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fetchErr(a.Name(), KindTransport, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fetchErr(a.Name(), KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(a.Name(), classifyStatus(resp.StatusCode),
			fmt.Errorf("acled returned %d", resp.StatusCode))
	}

	var payload struct {
		Data []acledRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fetchErr(a.Name(), KindDecode, err)
	}

	events := make([]event.Event, 0, len(payload.Data))
	for _, rec := range payload.Data {
		if e, ok := a.mapRecord(rec); ok {
			events = append(events, e)
		}
	}
	return events, nil
}

// mapRecord maps one ACLED record to a tagged event. Records without a
// parseable event date are dropped.
func (a *ACLED) mapRecord(rec acledRecord) (event.Event, bool) {
	eventDate, err := time.Parse("2006-01-02", rec.EventDate)
	if err != nil {
		return event.Event{}, false
	}

	// Ontology nodes follow the ACLED event type.
	nodes := []event.OntologyNode{event.NodeAppropriation}
	lowerType := strings.ToLower(rec.EventType)
	switch {
	case strings.Contains(lowerType, "protest") || strings.Contains(lowerType, "riot"):
		nodes = []event.OntologyNode{event.NodeResistance}
	case strings.Contains(lowerType, "violence against civilians"):
		nodes = []event.OntologyNode{event.NodeDisplacement}
	}

	layers := []event.Layer{event.LayerFlow}
	if strings.Contains(strings.ToLower(rec.Actor1), "government") {
		layers = append(layers, event.LayerGovernance)
	}

	title := rec.EventType
	if rec.SubEventType != "" {
		title = rec.EventType + ": " + rec.SubEventType
	}

	region := rec.Admin1
	if region == "" {
		region = rec.Country
	}

	e := event.Event{
		ID:         "acled-" + rec.DataID,
		Title:      title,
		Summary:    fmt.Sprintf("%s in %s, %s. %s", rec.EventType, region, rec.Country, rec.Notes),
		EventDate:  eventDate,
		DetectedAt: time.Now().UTC(),
		Country:    rec.Country,
		Region:     rec.Admin1,
		Networks:   []event.Network{event.NetworkCarbon, event.NetworkMineral},
		Layers:     layers,
		Nodes:      nodes,
		AlertLevel: event.LevelWatch,
		Sources: []event.Source{{
			Organization: "ACLED",
			ReportName:   "Event #" + rec.DataID,
			Tier:         event.TierSpecializedResearch,
			AccessDate:   time.Now().UTC(),
		}},
	}

	if lat, err := strconv.ParseFloat(rec.Latitude, 64); err == nil {
		if lon, err := strconv.ParseFloat(rec.Longitude, 64); err == nil {
			e.Coordinates = &event.Coordinates{Lat: lat, Lon: lon}
		}
	}

	return e, true
}
