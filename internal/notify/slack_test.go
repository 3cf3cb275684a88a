package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fatimatofatima/hyper-factory/internal/store"
)

var report = store.DailyReport{
	Day:                 "2025-01-01",
	TotalTasks:          4,
	TasksDone:           2,
	TasksFailed:         1,
	TasksQueued:         1,
	TotalAgents:         3,
	AvgSuccessRate:      0.5,
	TopAgentID:          "debug_expert",
	TopAgentSuccessRate: 0.75,
	Notes:               "training_tasks=1",
}

func TestDailySummary(t *testing.T) {
	got := DailySummary(report, 1)
	for _, want := range []string{"2025-01-01", "done 2", "failed 1", "avg success 50.0%", "debug_expert (75.0%)", "new training tasks: 1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestNotifyDailyWebhook(t *testing.T) {
	var msg map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &msg)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s, err := NewSlack(SlackConfig{WebhookURL: srv.URL, Channel: "#factory"})
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := s.NotifyDaily(context.Background(), report, 1); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if msg["channel"] != "#factory" || !strings.Contains(msg["text"].(string), "2025-01-01") {
		t.Fatalf("unexpected webhook payload %v", msg)
	}
}

func TestNotifyDailyWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewSlack(SlackConfig{WebhookURL: srv.URL})
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := s.NotifyDaily(context.Background(), report, 0); err == nil {
		t.Fatal("expected error from failing webhook")
	}
}

func TestNotifyDailyBotToken(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	s, err := NewSlack(SlackConfig{BotToken: "xoxb-test", Channel: "C123", APIBase: srv.URL})
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := s.NotifyDaily(context.Background(), report, 1); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if form.Get("channel") != "C123" || !strings.Contains(form.Get("text"), "Factory daily report") {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestNewSlackValidation(t *testing.T) {
	if _, err := NewSlack(SlackConfig{}); err == nil {
		t.Fatal("expected error without webhook or token")
	}
	if _, err := NewSlack(SlackConfig{BotToken: "xoxb"}); err == nil {
		t.Fatal("expected error for bot token without channel")
	}
}
