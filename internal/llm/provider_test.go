package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	cfg := config.Defaults().LLM
	_, err := New(context.Background(), cfg, "  ")
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("err = %v, want ErrLLMUnavailable", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := config.Defaults().LLM
	cfg.Provider = "mistral"
	if _, err := New(context.Background(), cfg, "k"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "# Trader Pulse"}}]
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Options{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 500})
	resp, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hello", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "# Trader Pulse" || resp.Model != "gpt-4o-mini" {
		t.Errorf("resp = %+v", resp)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", body["messages"])
	}
	if rf, _ := body["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Errorf("response_format = %v", body["response_format"])
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "ak-test" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "{\"attention\": 70}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Options{APIKey: "ak-test", BaseURL: srv.URL, MaxTokens: 300})
	resp, err := p.Complete(context.Background(), Request{Prompt: "estimate", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"attention": 70}` {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL})
	if _, err := p.Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{MaxTokens: 0, Temperature: 0.3}
	req := o.withDefaults(Request{})
	if req.MaxTokens != 1024 || req.Temperature != 0.3 {
		t.Errorf("req = %+v", req)
	}
	req = Options{MaxTokens: 900}.withDefaults(Request{MaxTokens: 200, Temperature: 0.9})
	if req.MaxTokens != 200 || req.Temperature != 0.9 {
		t.Errorf("explicit values overwritten: %+v", req)
	}
}
