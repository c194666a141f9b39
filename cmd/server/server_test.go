package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/baseline"
	"github.com/fractal-lba/nlueval/internal/eval"
	"github.com/fractal-lba/nlueval/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, baseline.Store) {
	t.Helper()
	store, err := baseline.NewMemoryStore("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return &Server{
		store:    store,
		metrics:  metrics.New(reg),
		gatherer: reg,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults: eval.DefaultConfig(),
	}, store
}

func cairo(intent string) api.Utterance {
	u := api.Utterance{
		Text: "Book me a flight to Cairo",
		Entities: []api.Entity{{
			EntityType:  "City",
			EntityValue: api.StringValuePtr("Cairo"),
		}},
	}
	if intent != "" {
		u.Intent = api.String(intent)
	}
	return u
}

func postCompare(t *testing.T, h http.Handler, req CompareRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/compare", bytes.NewReader(body)))
	return rec
}

func TestHandleCompare(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postCompare(t, srv.routes(), CompareRequest{
		Expected:  []api.Utterance{cairo("BookFlight")},
		Actual:    []api.Utterance{cairo("BookFlight")},
		TestLabel: "text",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result eval.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Statistics[eval.EntityScope("City")].Counts.TruePositives)
	assert.Equal(t, 1.0, *result.Statistics[eval.ScopeOverall].Metrics.F1)
	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].IntentMatch)
	assert.False(t, result.Baseline.BaselineAvailable)
}

func TestHandleCompareBaselineRoundTrip(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.routes()

	rec := postCompare(t, h, CompareRequest{
		Expected:     []api.Utterance{cairo("BookFlight")},
		Actual:       []api.Utterance{cairo("BookFlight")},
		TestLabel:    "text",
		BuildID:      "build-1",
		SaveBaseline: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := store.Get(context.Background(), "build-1")
	require.NoError(t, err)
	require.NotNil(t, saved)

	worse := cairo("BookFlight")
	worse.Entities[0].EntityValue = api.StringValuePtr("Paris")
	rec = postCompare(t, h, CompareRequest{
		Expected:  []api.Utterance{cairo("BookFlight")},
		Actual:    []api.Utterance{worse},
		TestLabel: "text",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result eval.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Baseline.BaselineAvailable)
	assert.Equal(t, "build-1", result.Baseline.BaselineID)
	assert.True(t, result.Baseline.HasRegressions())
}

func TestHandleCompareRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := postCompare(t, h, CompareRequest{
		Expected: []api.Utterance{cairo(""), cairo("")},
		Actual:   []api.Utterance{cairo("")},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/compare", bytes.NewReader([]byte("{"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/compare", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleCompareRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.limiter = rate.NewLimiter(0, 0)

	rec := postCompare(t, srv.routes(), CompareRequest{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestMetricsBasicAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.metricsAuth.enabled = true
	srv.metricsAuth.user = "prom"
	srv.metricsAuth.password = "secret"
	h := srv.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
