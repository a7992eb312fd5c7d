package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	result    *pipeline.Result
	err       error
	subclaims []model.Subclaim
	claims    []string
	deadline  bool
}

func (f *fakeService) Run(ctx context.Context, claim string) (*pipeline.Result, error) {
	f.claims = append(f.claims, claim)
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeService) Decompose(_ context.Context, claim string) ([]model.Subclaim, error) {
	f.claims = append(f.claims, claim)
	return f.subclaims, f.err
}

func testConfig() model.ServerConfig {
	return model.ServerConfig{
		Address:        "127.0.0.1:0",
		AllowedOrigins: []string{"*"},
		RequestTimeout: time.Minute,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func completedResult() *pipeline.Result {
	return &pipeline.Result{
		RequestID: "req-42",
		State:     pipeline.StateCompleted,
		Verdict: &model.Verdict{
			Claim:     "Pune is in the state of Goa in Europe",
			Subclaims: []model.Subclaim{"Pune is in Maharashtra."},
			Evidence: []model.Evidence{
				{Provider: "serpapi", Kind: model.EvidenceKindSearch, Question: "Where is Pune?"},
				{Provider: "jina", Kind: model.EvidenceKindRetrieval, Error: "status 502"},
			},
			Text:     "False. Pune is in Maharashtra, India.",
			Warnings: []string{"evidence provider jina unavailable"},
		},
	}
}

func TestProcessClaim_Success(t *testing.T) {
	svc := &fakeService{result: completedResult()}
	srv := New(testConfig(), svc)

	rec := do(t, srv.Handler(), http.MethodPost, "/process-claim", `{"claim":"Pune is in the state of Goa in Europe"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "False. Pune is in Maharashtra, India.", body["final_result"])
	assert.Equal(t, "req-42", body["request_id"])
	assert.Len(t, body["evidence"], 2)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, []string{"Pune is in the state of Goa in Europe"}, svc.claims)
	assert.True(t, svc.deadline, "request context should carry the configured timeout")
}

func TestProcessClaim_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "malformed body",
			body:       `{"claim":`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid request body",
		},
		{
			name:       "wrong type",
			body:       `{"claim": 42}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid request body",
		},
		{
			name:       "validation",
			body:       `{"claim":"   "}`,
			err:        apperr.New(apperr.KindValidation, "pipeline.validate", "claim is empty"),
			wantStatus: http.StatusBadRequest,
			wantDetail: "claim is empty",
		},
		{
			name:       "generation",
			body:       `{"claim":"Pune is in Goa"}`,
			err:        apperr.Wrap(apperr.KindGeneration, "llm.generate", errors.New("api key AIza-secret rejected"), "failed after 3 attempts"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "failed to generate response from the language model",
		},
		{
			name:       "pipeline",
			body:       `{"claim":"Pune is in Goa"}`,
			err:        apperr.New(apperr.KindPipeline, "pipeline.run", "panic in verified: nil map"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal error while processing the claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			if tt.err != nil {
				svc.result = &pipeline.Result{RequestID: "req-err", State: pipeline.StateFailed}
			}
			srv := New(testConfig(), svc)

			rec := do(t, srv.Handler(), http.MethodPost, "/process-claim", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Detail, tt.wantDetail)
			assert.NotContains(t, rec.Body.String(), "secret")
			assert.NotContains(t, rec.Body.String(), "final_result")
		})
	}
}

func TestProcessClaim_RejectedClaimIsOK(t *testing.T) {
	svc := &fakeService{result: &pipeline.Result{
		RequestID: "req-r",
		Verdict: &model.Verdict{
			Subclaims: []model.Subclaim{model.MalformedClaimSentinel},
			Text:      string(model.MalformedClaimSentinel),
			Rejected:  true,
		},
	}}
	srv := New(testConfig(), svc)

	rec := do(t, srv.Handler(), http.MethodPost, "/process-claim", `{"claim":"asdf qwer"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rejected":true`)
	assert.Contains(t, rec.Body.String(), string(model.MalformedClaimSentinel))
}

func TestGenerateSubclaims(t *testing.T) {
	svc := &fakeService{subclaims: []model.Subclaim{"Pune is in Maharashtra.", "Maharashtra is in India."}}
	srv := New(testConfig(), svc)

	rec := do(t, srv.Handler(), http.MethodPost, "/generate_subclaims", `{"claim":"Pune is in Goa"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body subclaimsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1. Pune is in Maharashtra.\n2. Maharashtra is in India.", body.VerifiedSubclaims)
	assert.Len(t, body.Subclaims, 2)
}

func TestHealth(t *testing.T) {
	srv := New(testConfig(), &fakeService{})
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	t.Run("preflight wildcard", func(t *testing.T) {
		srv := New(testConfig(), &fakeService{})
		rec := do(t, srv.Handler(), http.MethodOptions, "/process-claim", "", map[string]string{
			"Origin":                         "http://localhost:3000",
			"Access-Control-Request-Method":  "POST",
			"Access-Control-Request-Headers": "content-type",
		})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("restricted origins", func(t *testing.T) {
		cfg := testConfig()
		cfg.AllowedOrigins = []string{"https://claims.example/"}
		srv := New(cfg, &fakeService{result: completedResult()})

		rec := do(t, srv.Handler(), http.MethodPost, "/process-claim", `{"claim":"x"}`, map[string]string{"Origin": "https://claims.example"})
		assert.Equal(t, "https://claims.example", rec.Header().Get("Access-Control-Allow-Origin"))

		rec = do(t, srv.Handler(), http.MethodPost, "/process-claim", `{"claim":"x"}`, map[string]string{"Origin": "https://evil.example"})
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := New(testConfig(), &fakeService{}, WithMetrics(metrics.New(reg), reg))

	_ = do(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `claimcheck_http_requests_total{route="/health",status="200"} 1`)
}

func TestStaticFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>claimcheck</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.js"), []byte("fetch('/process-claim')"), 0o644))

	cfg := testConfig()
	cfg.StaticDir = dir
	srv := New(cfg, &fakeService{})

	rec := do(t, srv.Handler(), http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "claimcheck")

	rec = do(t, srv.Handler(), http.MethodGet, "/static/script.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "process-claim")
}
