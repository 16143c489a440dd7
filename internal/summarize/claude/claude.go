// Package claude drafts executive summaries of pipeline runs using the
// Claude messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nasteffe/tellus/internal/pipeline"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	maxTokens      = 1024
)

const systemPrompt = "You are an analyst tracking global resource extraction and " +
	"displacement. Write a terse executive summary of the monitoring run " +
	"described by the user: lead with threshold crossings and convergence " +
	"nodes, name countries, do not speculate beyond the data given. " +
	"Plain prose, no markdown, at most three paragraphs."

// Drafter produces run summaries via the Claude API. It implements
// pipeline.Drafter.
type Drafter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Drafter.
type Option func(*Drafter)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(d *Drafter) { d.baseURL = strings.TrimRight(u, "/") }
}

// New creates a Drafter with the given API key and model name.
func New(apiKey, model string, opts ...Option) *Drafter {
	d := &Drafter{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Draft asks Claude for a prose summary of the run result.
func (d *Drafter) Draft(ctx context.Context, result *pipeline.Result) (string, error) {
	req := &request{
		Model:     d.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: buildPrompt(result)},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(text.String())
	if summary == "" {
		return "", fmt.Errorf("claude returned no text content")
	}
	return summary, nil
}

// buildPrompt renders the run result as a compact plain-text briefing.
func buildPrompt(result *pipeline.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Monitoring run of %s.\n", result.RunDate.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Events ingested: %d\n", len(result.Events))

	if len(result.ThresholdCrossings) > 0 {
		b.WriteString("\nThreshold crossings:\n")
		for _, tc := range result.ThresholdCrossings {
			fmt.Fprintf(&b, "- %s: %s (%s)\n",
				tc.Metric.Name, tc.Metric.ComparisonString(), tc.AlertLevel)
		}
	}

	if len(result.ConvergenceNodes) > 0 {
		b.WriteString("\nConvergence nodes:\n")
		for _, cs := range result.ConvergenceNodes {
			labels := make([]string, 0, len(cs.Networks))
			for _, n := range cs.Networks {
				labels = append(labels, n.Label())
			}
			fmt.Fprintf(&b, "- event %s, networks: %s, CI %.0f (%s)\n",
				cs.EventID, strings.Join(labels, ", "), cs.CIScore(), cs.Classification())
		}
	}

	if len(result.AlertEvents) > 0 {
		b.WriteString("\nEvents at ALERT or above:\n")
		for _, ev := range result.AlertEvents {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", ev.AlertLevel, ev.Title, ev.Country)
		}
	}

	return b.String()
}
