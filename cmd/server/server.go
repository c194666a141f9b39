package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/baseline"
	"github.com/fractal-lba/nlueval/internal/eval"
	"github.com/fractal-lba/nlueval/internal/metrics"
)

const maxBodyBytes = 32 << 20

// Server exposes the comparison engine over HTTP.
type Server struct {
	store       baseline.Store
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	limiter     *rate.Limiter
	logger      *slog.Logger
	defaults    eval.Config
	baselineTTL time.Duration
	metricsAuth struct {
		enabled  bool
		user     string
		password string
	}
}

// CompareRequest is the body of POST /v1/compare.
type CompareRequest struct {
	Expected     []api.Utterance `json:"expected"`
	Actual       []api.Utterance `json:"actual"`
	TestLabel    string          `json:"testLabel"`
	UnitTest     bool            `json:"unitTest"`
	Tolerance    *float64        `json:"tolerance,omitempty"`
	BuildID      string          `json:"buildId,omitempty"`
	BaselineID   string          `json:"baselineId,omitempty"` // Defaults to the latest baseline for testLabel
	SaveBaseline bool            `json:"saveBaseline,omitempty"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/compare", s.handleCompare)
	mux.Handle("/metrics", s.metricsHandler())
	mux.HandleFunc("/health", handleHealth)
	return mux
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.fail(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Rate limiting
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "10")
		s.fail(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	var req CompareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := s.defaults
	cfg.OutputFolder = ""
	cfg.BaselinePath = ""
	cfg.Strict = false
	cfg.TestLabel = req.TestLabel
	cfg.UnitTest = req.UnitTest
	cfg.BuildID = req.BuildID
	if req.Tolerance != nil {
		cfg.Tolerance = *req.Tolerance
	}

	opts := []eval.RunnerOption{eval.WithLogger(s.logger), eval.WithMetrics(s.metrics)}
	if s.store != nil {
		opts = append(opts, eval.WithBaselineSource(&baseline.Source{
			Store:   s.store,
			BuildID: req.BaselineID,
			Label:   req.TestLabel,
			Timeout: 2 * time.Second,
		}))
	}

	ctx := r.Context()
	result, err := eval.NewRunner(opts...).Evaluate(ctx, cfg, req.Expected, req.Actual)
	if err != nil {
		if errors.Is(err, eval.ErrConfiguration) {
			s.fail(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("comparison failed", "error", err)
		s.fail(w, "Comparison failed", http.StatusInternalServerError)
		return
	}

	if req.SaveBaseline && s.store != nil {
		if _, err := baseline.Save(ctx, s.store, result, s.baselineTTL); err != nil {
			// Not fatal: the comparison itself succeeded
			s.logger.Warn("failed to save baseline", "run_id", result.RunID, "error", err)
		}
	}

	s.respond(w, http.StatusOK, result)
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})

	if !s.metricsAuth.enabled {
		return handler
	}

	// Wrap with Basic Auth
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	s.countRequest(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, msg string, status int) {
	s.countRequest(status)
	http.Error(w, msg, status)
}

func (s *Server) countRequest(status int) {
	if s.metrics != nil {
		s.metrics.HTTPRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}
