// Package notify posts daily rollups to Slack.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/fatimatofatima/hyper-factory/internal/store"
)

// SlackConfig selects a delivery path. A webhook URL wins over a bot token.
type SlackConfig struct {
	WebhookURL string
	BotToken   string
	Channel    string
	APIBase    string
}

// Enabled reports whether any delivery path is configured.
func (c SlackConfig) Enabled() bool {
	return strings.TrimSpace(c.WebhookURL) != "" || strings.TrimSpace(c.BotToken) != ""
}

// Slack delivers rollup summaries through an incoming webhook or the Web API.
type Slack struct {
	cfg    SlackConfig
	client *http.Client
}

func NewSlack(cfg SlackConfig) (*Slack, error) {
	if !cfg.Enabled() {
		return nil, errors.New("slack: webhook url or bot token required")
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" && strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("slack: channel required with a bot token")
	}
	return &Slack{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}, nil
}

// NotifyDaily posts the summary of r.
func (s *Slack) NotifyDaily(ctx context.Context, r store.DailyReport, created int) error {
	text := DailySummary(r, created)
	if url := strings.TrimSpace(s.cfg.WebhookURL); url != "" {
		msg := &slack.WebhookMessage{Channel: s.cfg.Channel, Text: text}
		if err := slack.PostWebhookCustomHTTPContext(ctx, url, s.client, msg); err != nil {
			return fmt.Errorf("slack webhook: %w", err)
		}
		return nil
	}

	base := strings.TrimSpace(s.cfg.APIBase)
	if base == "" {
		base = "https://slack.com/api"
	}
	base = strings.TrimRight(base, "/") + "/"
	api := slack.New(strings.TrimSpace(s.cfg.BotToken), slack.OptionHTTPClient(s.client), slack.OptionAPIURL(base))
	if _, _, err := api.PostMessageContext(ctx, s.cfg.Channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}

// DailySummary renders r as a short plain-text message.
func DailySummary(r store.DailyReport, created int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Factory daily report %s\n", r.Day)
	fmt.Fprintf(&b, "tasks: %d (done %d, failed %d, assigned %d, queued %d)\n",
		r.TotalTasks, r.TasksDone, r.TasksFailed, r.TasksAssigned, r.TasksQueued)
	fmt.Fprintf(&b, "agents: %d, avg success %.1f%%\n", r.TotalAgents, r.AvgSuccessRate*100)
	if r.TopAgentID != "" {
		fmt.Fprintf(&b, "top agent: %s (%.1f%%)\n", r.TopAgentID, r.TopAgentSuccessRate*100)
	}
	fmt.Fprintf(&b, "new training tasks: %d (%s)", created, r.Notes)
	return b.String()
}
