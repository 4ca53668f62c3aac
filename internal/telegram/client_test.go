package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/crossarb/internal/notify"
)

type botServer struct {
	mu       sync.Mutex
	failures int
	sent     []string
	modes    []string
}

func (s *botServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 1, "is_bot": true, "first_name": "crossarb", "username": "crossarb_bot"},
		})
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failures > 0 {
			s.failures--
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 500, "description": "Internal Server Error"})
			return
		}
		s.sent = append(s.sent, r.PostForm.Get("text"))
		s.modes = append(s.modes, r.PostForm.Get("parse_mode"))
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": len(s.sent), "date": 0, "chat": map[string]any{"id": 42, "type": "private"}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, s *botServer, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(server.Close)

	c, err := NewClientWithEndpoint("TOKEN", "42", server.URL+"/bot%s/%s", server.Client(), retries, time.Millisecond)
	if err != nil {
		t.Fatalf("NewClientWithEndpoint() error = %v", err)
	}
	return c
}

func TestSend(t *testing.T) {
	s := &botServer{}
	c := newTestClient(t, s, 3)

	msg := notify.Message{
		Title:       "🟢 Small Opportunity Detected",
		Description: "**Net Profit:** 12.50%",
		Fields:      []notify.Field{{Name: "Kalshi", Value: "View Market", URL: "https://kalshi.com/markets/FED-25"}},
	}
	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(s.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.sent))
	}
	if s.modes[0] != "MarkdownV2" {
		t.Errorf("parse_mode = %q, want MarkdownV2", s.modes[0])
	}
	text := s.sent[0]
	for _, want := range []string{
		"*🟢 Small Opportunity Detected*",
		"*Net Profit:* 12\\.50%",
		"*Kalshi:* [View Market](https://kalshi.com/markets/FED-25)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func TestSendRetries(t *testing.T) {
	s := &botServer{failures: 2}
	c := newTestClient(t, s, 3)

	if err := c.Send(context.Background(), notify.Message{Title: "retry"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("expected delivery on third attempt, got %d messages", len(s.sent))
	}
}

func TestSendGivesUp(t *testing.T) {
	s := &botServer{failures: 5}
	c := newTestClient(t, s, 2)

	err := c.Send(context.Background(), notify.Message{Title: "fail"})
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInvalidChatID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc((&botServer{}).handler))
	defer server.Close()

	_, err := NewClientWithEndpoint("TOKEN", "not-a-number", server.URL+"/bot%s/%s", server.Client(), 1, time.Millisecond)
	if err == nil {
		t.Fatal("expected invalid chat ID error")
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"Will BTC hit $100k?", "Will BTC hit $100k?"},
		{"3.5% (net)", "3\\.5% \\(net\\)"},
		{"a_b*c", "a\\_b\\*c"},
		{"Kalshi - yes", "Kalshi \\- yes"},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderBold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**Event:** Fed cuts", "*Event:* Fed cuts"},
		{"no markers", "no markers"},
		{"**open only", "\\*\\*open only"},
	}

	for _, tt := range tests {
		if got := renderBold(tt.in); got != tt.want {
			t.Errorf("renderBold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
