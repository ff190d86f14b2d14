package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name string
	fail bool
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.sent = append(r.sent, title)
	if r.fail {
		return errors.New("down")
	}
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventReportReady, " "}, discard())

	if err := n.Notify(context.Background(), EventReportReady, "ready", ""); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), EventMarketResolved, "resolved", ""); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 1 || s.sent[0] != "ready" {
		t.Errorf("sent = %v, want [ready]", s.sent)
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	if !n.Enabled("anything") {
		t.Error("empty filter should enable every event")
	}
}

func TestNotifierContinuesAfterFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", fail: true}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventError, "boom", "")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("err = %v, want failure naming bad sender", err)
	}
	if len(good.sent) != 1 {
		t.Error("good sender should still receive the message")
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "Trader Pulse ready", "week of 5 Oct"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "*Trader Pulse ready*\nweek of 5 Oct" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", strings.Repeat("x", 5000))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want status 429", err)
	}
}
