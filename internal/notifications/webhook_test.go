package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjannette/aete-backend/internal/httputil"
)

func captureServer(t *testing.T, received *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, received)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	if err := s.SendContext(context.Background(), "hello from test"); err != nil {
		t.Fatalf("log-only send should not fail, got: %v", err)
	}
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := captureServer(t, &received)

	s := NewSender(srv.URL, "TestBot")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Send("drawdown breaker tripped for s1")

	if received["username"] != "TestBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] != "`[TestBot] drawdown breaker tripped for s1`" {
		t.Fatalf("text: got %q", received["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := captureServer(t, &received)

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "AETEBot")
	s.Send("position size 12.00% exceeds max 10.00%")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if received["username"] != "AETEBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSendContext_ClientErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot")
	if err := s.SendContext(context.Background(), "denied"); err == nil {
		t.Fatal("expected a 403 to be reported")
	}
}

func TestSend_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot")
	s.retry = httputil.RetryConfig{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	// Should not panic, just log the error
	s.Send("this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "")
	if s.botName != DefaultBotName {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}
