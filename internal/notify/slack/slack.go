// Package slack sends pipeline run digests to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nasteffe/tellus/internal/event"
	"github.com/nasteffe/tellus/internal/pipeline"
)

const (
	maxSummaryLen = 3000
	maxListedRows = 10
	httpTimeout   = 10 * time.Second
)

// Notifier sends run digests to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a run digest to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, rec *pipeline.RunRecord, result *pipeline.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rec, result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *pipeline.RunRecord, result *pipeline.Result) map[string]any {
	blocks := []map[string]any{
		headerBlock(result),
		{"type": "divider"},
		countsBlock(rec, result),
		{"type": "divider"},
		alertsBlock(result),
	}
	if len(result.ConvergenceNodes) > 0 {
		blocks = append(blocks, map[string]any{"type": "divider"}, convergenceBlock(result))
	}
	if result.ExecutiveSummary != "" {
		blocks = append(blocks, map[string]any{"type": "divider"}, summaryBlock(result))
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(rec))

	return map[string]any{"blocks": blocks}
}

func headerBlock(result *pipeline.Result) map[string]any {
	text := fmt.Sprintf("%s Extraction Watch: %d events at ALERT or above",
		levelEmoji(topLevel(result)), len(result.AlertEvents))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func countsBlock(rec *pipeline.RunRecord, result *pipeline.Result) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Events ingested:* %d", len(result.Events)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Threshold crossings:* %d", len(result.ThresholdCrossings)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Convergence nodes:* %d", len(result.ConvergenceNodes)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Source failures:* %d", len(rec.SourceErrors)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func alertsBlock(result *pipeline.Result) map[string]any {
	var b strings.Builder
	b.WriteString("*Alert events*\n")
	for i, ev := range result.AlertEvents {
		if i == maxListedRows {
			fmt.Fprintf(&b, "_...and %d more_\n", len(result.AlertEvents)-maxListedRows)
			break
		}
		fmt.Fprintf(&b, "%s *%s* - %s (%s)\n",
			levelEmoji(ev.AlertLevel), ev.AlertLevel, ev.Title, ev.Country)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}

func convergenceBlock(result *pipeline.Result) map[string]any {
	var b strings.Builder
	b.WriteString("*Convergence nodes*\n")
	for i, cs := range result.ConvergenceNodes {
		if i == maxListedRows {
			fmt.Fprintf(&b, "_...and %d more_\n", len(result.ConvergenceNodes)-maxListedRows)
			break
		}
		fmt.Fprintf(&b, "CI %.0f - %s [%s]\n", cs.CIScore(), cs.EventID, networkList(cs.Networks))
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}

func summaryBlock(result *pipeline.Result) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Executive summary*\n\n%s", truncate(result.ExecutiveSummary, maxSummaryLen)),
		},
	}
}

func contextBlock(rec *pipeline.RunRecord) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("tellus • run %s • %s", rec.ID, rec.RunDate.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func networkList(networks []event.Network) string {
	labels := make([]string, 0, len(networks))
	for _, n := range networks {
		labels = append(labels, n.Label())
	}
	return strings.Join(labels, ", ")
}

// topLevel returns the highest alert level present in the run.
func topLevel(result *pipeline.Result) event.AlertLevel {
	top := event.LevelWatch
	for _, ev := range result.AlertEvents {
		if ev.AlertLevel.AtLeast(top) {
			top = ev.AlertLevel
		}
	}
	return top
}

func levelEmoji(level event.AlertLevel) string {
	switch level {
	case event.LevelSystemic, event.LevelCritical:
		return "\U0001f534" // red circle
	case event.LevelAlert:
		return "\U0001f7e0" // orange circle
	case event.LevelMonitor:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
