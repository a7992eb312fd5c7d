package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

func TestGeminiProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("Expected key query parameter, got %q", r.URL.Query().Get("key"))
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "Is Pune in Goa?" {
			t.Errorf("Unexpected contents: %+v", req.Contents)
		}
		if req.SystemInstruction != nil {
			t.Error("Expected no system instruction")
		}
		if req.GenerationConfig == nil || req.GenerationConfig.MaxOutputTokens != 1000 {
			t.Errorf("Expected default max output tokens, got %+v", req.GenerationConfig)
		}

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "False. "}, {"text": "Pune is in Maharashtra."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"totalTokenCount": 17},
			"modelVersion": "gemini-1.5-flash-002"
		}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "Is Pune in Goa?"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "False. Pune is in Maharashtra." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.Model != "gemini-1.5-flash-002" {
		t.Errorf("Unexpected model: %s", resp.Model)
	}
	if resp.TokensUsed != 17 {
		t.Errorf("Expected 17 tokens, got %d", resp.TokensUsed)
	}
}

func TestGeminiProvider_Generate_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [], "promptFeedback": {"blockReason": "SAFETY"}}`))
	}))
	defer server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error for blocked prompt")
	}
	if !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("Expected block reason in error, got %v", err)
	}
}

func TestGeminiProvider_Generate_APIErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "secret-key", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
	if !apperr.IsKind(err, apperr.KindProvider) {
		t.Errorf("Expected provider error kind, got %v", apperr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		t.Errorf("Expected status in error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Error("API key leaked into error message")
	}
}

func TestGeminiProvider_TransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "secret-key", BaseURL: baseURL, Timeout: time.Second})

	_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected transport error")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("API key leaked into error message: %v", err)
	}
}

func TestGeminiProvider_IsAvailableDoesNotLogKey(t *testing.T) {
	var logs bytes.Buffer
	logging.Init(model.LoggingConfig{Level: "debug", Format: "text"}, &logs)
	t.Cleanup(func() { logging.Init(model.LoggingConfig{Level: "info", Format: "json"}, nil) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	provider, _ := NewGeminiProvider(Config{APIKey: "secret-key", BaseURL: baseURL, Timeout: time.Second})

	if provider.IsAvailable(context.Background()) {
		t.Fatal("Expected unreachable provider to be unavailable")
	}
	if !strings.Contains(logs.String(), "Gemini API check failed") {
		t.Fatalf("Expected a warning to be logged, got %q", logs.String())
	}
	if strings.Contains(logs.String(), "secret-key") {
		t.Errorf("API key leaked into log: %s", logs.String())
	}
}

func TestNewProvider_Factory(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"gemini", "gemini", false},
		{"", "gemini", false},
		{"openai", "openai", false},
		{"Claude", "anthropic", false},
		{"ollama", "ollama", false},
		{"watson", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, APIKey: "k", Model: "m"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, p.Name())
			}
		})
	}
}
