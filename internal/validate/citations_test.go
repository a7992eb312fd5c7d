package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	checkSleepFunc = func(context.Context, time.Duration) {}
}

func newTestChecker(robots bool) *CitationChecker {
	return NewCitationChecker(model.CitationsConfig{
		Timeout: 5 * time.Second,
		Workers: 4,
		Robots:  robots,
	}, nil, nil, "", "")
}

func TestCitationChecker_Check(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	evidence := []model.Evidence{{Provider: "serpapi", URL: server.URL + "/ok"}}
	urls := []string{server.URL + "/ok", server.URL + "/gone"}

	got := newTestChecker(false).Check(context.Background(), urls, evidence)
	if len(got) != 2 {
		t.Fatalf("Expected 2 citations, got %d", len(got))
	}

	ok := got[0]
	if !ok.Checked || !ok.Accessible || ok.StatusCode != http.StatusOK || !ok.InEvidence {
		t.Errorf("Unexpected result for /ok: %+v", ok)
	}
	if ok.LastModified == nil {
		t.Error("Expected Last-Modified to be parsed")
	}

	gone := got[1]
	if !gone.Checked || gone.Accessible || gone.StatusCode != http.StatusNotFound || gone.InEvidence {
		t.Errorf("Unexpected result for /gone: %+v", gone)
	}
}

func TestCitationChecker_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	got := newTestChecker(false).Check(context.Background(), []string{server.URL}, nil)
	if !got[0].Accessible {
		t.Errorf("Expected success after retries, got %+v", got[0])
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestCitationChecker_PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_ = newTestChecker(false).Check(context.Background(), []string{server.URL}, nil)
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt for 403, got %d", calls.Load())
	}
}

func TestCitationChecker_RobotsDisallow(t *testing.T) {
	var headCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		headCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	got := newTestChecker(true).Check(context.Background(), []string{server.URL + "/private/x"}, nil)
	if got[0].Checked || got[0].Error != "disallowed by robots.txt" {
		t.Errorf("Expected robots.txt refusal, got %+v", got[0])
	}
	if headCalls.Load() != 0 {
		t.Error("Disallowed URL must not be requested")
	}
}

func TestCitationChecker_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newTestChecker(false).Check(ctx, []string{"https://a.example", "https://b.example"}, nil)
	for _, c := range got {
		if c.Checked || c.Error == "" {
			t.Errorf("Expected unchecked citation with error, got %+v", c)
		}
	}
}

func TestCitationChecker_Classify(t *testing.T) {
	checker := newTestChecker(false)
	evidence := []model.Evidence{{Provider: "jina", References: []string{"https://en.wikipedia.org/wiki/Pune"}}}

	got := checker.Classify([]string{"https://en.wikipedia.org/wiki/Pune", "https://blog.example/x"}, evidence)
	if !got[0].InEvidence || got[0].Authority != model.TierSecondary {
		t.Errorf("Unexpected first citation: %+v", got[0])
	}
	if got[1].InEvidence || got[1].Authority != model.TierTertiary || got[1].Checked {
		t.Errorf("Unexpected second citation: %+v", got[1])
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		cit  model.Citation
		want bool
	}{
		{model.Citation{StatusCode: 503}, true},
		{model.Citation{StatusCode: 429}, true},
		{model.Citation{StatusCode: 404}, false},
		{model.Citation{StatusCode: 200}, false},
		{model.Citation{Error: "request failed: dial tcp: i/o timeout"}, true},
		{model.Citation{Error: "request failed: connection refused"}, true},
		{model.Citation{Error: "disallowed by robots.txt"}, false},
	}
	for _, tt := range tests {
		if got := isRetryable(&tt.cit); got != tt.want {
			t.Errorf("isRetryable(%+v) = %v, want %v", tt.cit, got, tt.want)
		}
	}
}
