package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/model"
)

func newTestJina(url string, maxChars int) *Jina {
	return NewJina(model.RetrievalConfig{
		BaseURL:  url,
		APIKey:   "jina-secret",
		Timeout:  5 * time.Second,
		MaxChars: maxChars,
	}, ClientOptions{})
}

func TestJina_GroundingJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jina-secret" {
			t.Errorf("Unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected JSON accept header, got %q", r.Header.Get("Accept"))
		}
		if r.URL.Path != "/Pune is in Goa" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{
			"code": 200,
			"data": {
				"factuality": 0,
				"result": false,
				"reason": "Pune is a city in the Indian state of Maharashtra, not Goa.",
				"references": [
					{"url": "https://en.wikipedia.org/wiki/Pune", "keyQuote": "Pune is in Maharashtra", "isSupportive": false}
				]
			}
		}`))
	}))
	defer server.Close()

	ev, err := newTestJina(server.URL, 200).Fetch(context.Background(), "Pune is in Goa")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if ev.Provider != "jina" || ev.Kind != model.EvidenceKindRetrieval {
		t.Errorf("Unexpected provider/kind: %+v", ev)
	}
	if len(ev.Structured) == 0 || strings.Contains(string(ev.Structured), "\n") {
		t.Errorf("Expected compacted structured body, got %s", ev.Structured)
	}
	if !strings.HasPrefix(ev.Content, "Pune is a city") {
		t.Errorf("Expected reason as content, got %q", ev.Content)
	}
	if len(ev.References) != 1 || ev.References[0] != "https://en.wikipedia.org/wiki/Pune" {
		t.Errorf("Unexpected references: %v", ev.References)
	}
}

func TestJina_PlainTextTruncated(t *testing.T) {
	long := strings.Repeat("é", 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(long))
	}))
	defer server.Close()

	ev, err := newTestJina(server.URL, 200).Fetch(context.Background(), "claim")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if n := utf8.RuneCountInString(ev.Content); n != 200 {
		t.Errorf("Expected 200 runes, got %d", n)
	}
	if ev.Structured != nil {
		t.Error("Plain text must not set structured data")
	}
}

func TestJina_HTMLVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>T</title><script>var x=1;</script></head>
			<body><p>Water boils at <b>100°C</b> at sea level.</p><a href="https://physics.example/boiling">src</a></body></html>`))
	}))
	defer server.Close()

	ev, err := newTestJina(server.URL, 200).Fetch(context.Background(), "water")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ev.Content != "Water boils at 100°C at sea level. src" {
		t.Errorf("Unexpected visible text: %q", ev.Content)
	}
	if len(ev.References) != 1 || ev.References[0] != "https://physics.example/boiling" {
		t.Errorf("Unexpected references: %v", ev.References)
	}
}

func TestJina_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"insufficient balance"}`))
	}))
	defer server.Close()

	_, err := newTestJina(server.URL, 200).Fetch(context.Background(), "claim")
	if err == nil {
		t.Fatal("Expected error")
	}
	if !apperr.IsKind(err, apperr.KindProvider) {
		t.Errorf("Expected provider kind, got %v", apperr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "402") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"日本語テキスト", 3, "日本語"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
