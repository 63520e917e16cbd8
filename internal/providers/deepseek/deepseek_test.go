package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	prov "github.com/deepcision/deepcision/internal/providers"
)

func testConfig(baseURL string) prov.Config {
	var cfg prov.Config
	cfg.Providers.DeepSeek.APIKey = "test-key"
	cfg.Providers.DeepSeek.BaseURL = baseURL
	return cfg
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header %q", r.Header.Get("Authorization"))
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != ModelChat {
			t.Errorf("model %v, want %s", req["model"], ModelChat)
		}
		if req["temperature"] != 0.7 {
			t.Errorf("temperature %v, want 0.7", req["temperature"])
		}
		if req["max_tokens"] != float64(2000) {
			t.Errorf("max_tokens %v, want 2000", req["max_tokens"])
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": ModelChat,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "the answer"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := New(testConfig(srv.URL))
	resp, err := p.ChatCompletion(context.Background(), prov.ChatRequest{
		Messages: []prov.Message{{Role: "user", Content: "question"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "the answer" {
		t.Errorf("content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens %d, want 15", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason %q", resp.FinishReason)
	}
}

func TestReasonerDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["temperature"] != 0.3 {
			t.Errorf("temperature %v, want 0.3", req["temperature"])
		}
		if req["max_tokens"] != float64(1500) {
			t.Errorf("max_tokens %v, want 1500", req["max_tokens"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": ModelReasoner,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "reasoned"}, "finish_reason": "stop"},
			},
		})
	}))
	defer srv.Close()

	p := New(testConfig(srv.URL))
	_, err := p.ChatCompletion(context.Background(), prov.ChatRequest{
		Model:    ModelReasoner,
		Messages: []prov.Message{{Role: "user", Content: "question"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
}

func TestAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer srv.Close()

	p := New(testConfig(srv.URL))
	_, err := p.ChatCompletion(context.Background(), prov.ChatRequest{
		Messages: []prov.Message{{Role: "user", Content: "question"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, prov.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "deepseek-chat", "choices": []}`))
	}))
	defer srv.Close()

	p := New(testConfig(srv.URL))
	_, err := p.ChatCompletion(context.Background(), prov.ChatRequest{
		Messages: []prov.Message{{Role: "user", Content: "question"}},
	})
	if !errors.Is(err, prov.ErrBadResponse) {
		t.Errorf("expected ErrBadResponse, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/user/balance" {
			t.Errorf("path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"is_available": true}`))
	}))
	defer srv.Close()

	p := New(testConfig(srv.URL))
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}
