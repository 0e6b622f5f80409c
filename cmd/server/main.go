package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/acordlabs/submissionqc/internal/logger"
	"github.com/acordlabs/submissionqc/parser"
	"github.com/acordlabs/submissionqc/pipeline"
	"github.com/acordlabs/submissionqc/quality"
	"github.com/acordlabs/submissionqc/store"
)

const defaultRulesetPath = "contracts/submission_quality_rules.yml"

type Server struct {
	db           *sql.DB // nil when running with the in-memory store
	engine       *quality.Engine
	processor    *pipeline.Processor
	reports      store.ReportStore
	metricsCache store.MetricsCache
	rulesetPath  string
	router       *chi.Mux
}

// NewServer loads the ruleset, connects storage and wires the pipeline.
// An empty databaseURL selects the in-memory report store.
func NewServer(databaseURL, rulesetPath string) (*Server, error) {
	ruleset, err := quality.LoadFile(rulesetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset %s: %w", rulesetPath, err)
	}
	logger.Info("ruleset loaded",
		"path", rulesetPath,
		"version", ruleset.Version,
		"fieldRules", len(ruleset.RequiredFields),
		"consistencyChecks", len(ruleset.ConsistencyChecks))

	engine := quality.NewEngine(ruleset)

	var db *sql.DB
	var reports store.ReportStore
	if databaseURL != "" {
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		reports = store.NewPostgresReportStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory report store")
		reports = store.NewInMemoryReportStore()
	}

	s := &Server{
		db:     db,
		engine: engine,
		processor: pipeline.NewProcessor(engine,
			pipeline.NewReferenceEnricher(),
			pipeline.NewHeuristicDetector(),
			pipeline.Config{}),
		reports:      reports,
		metricsCache: store.NewInMemoryMetricsCache(store.DefaultCacheConfig()),
		rulesetPath:  rulesetPath,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	// Validation only, nothing persisted
	r.Post("/api/v1/validate", s.handleValidate)

	// Full pipeline, report persisted
	r.Post("/api/v1/submissions", s.handleSubmission)
	r.Post("/api/v1/submissions/acord", s.handleACORDSubmission)

	r.Get("/api/v1/reports", s.handleListReports)
	r.Get("/api/v1/reports/{reportId}", s.handleGetReport)

	r.Get("/api/v1/ruleset", s.handleGetRuleset)
	r.Post("/api/v1/ruleset/reload", s.handleReloadRuleset)

	r.Get("/api/v1/metrics", s.handleMetrics)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	version := ""
	if rs := s.engine.RuleSet(); rs != nil {
		version = rs.Version
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"rulesetVersion": version,
	})
}

// Validation handler: evaluates a record without persisting anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	report, err := s.engine.Evaluate(rec)
	if err != nil {
		if errors.Is(err, quality.ErrNoRuleSet) {
			respondError(w, http.StatusServiceUnavailable, "no ruleset loaded", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "validation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Submission handler: runs the full pipeline and persists the report.
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	s.processAndRespond(w, rec)
}

// ACORD submission handler: XML body through the parser, then the pipeline.
func (s *Server) handleACORDSubmission(w http.ResponseWriter, r *http.Request) {
	rec, err := parser.ParseSubmission(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ACORD XML", err)
		return
	}
	s.processAndRespond(w, rec)
}

func (s *Server) processAndRespond(w http.ResponseWriter, rec quality.Record) {
	result, err := s.processor.Process(rec)
	if err != nil {
		if errors.Is(err, quality.ErrNoRuleSet) {
			respondError(w, http.StatusServiceUnavailable, "no ruleset loaded", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "processing failed", err)
		return
	}

	if err := s.reports.Save(result.Report); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save report", err)
		return
	}
	s.metricsCache.Invalidate()

	respondJSON(w, http.StatusCreated, result)
}

// Get report handler
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportId")

	report, err := s.reports.Get(reportID)
	if err != nil {
		respondError(w, http.StatusNotFound, "report not found", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// List reports handler: filters by submissionId, else a recent window.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var reports []*quality.ValidationReport
	var err error

	if submissionID := r.URL.Query().Get("submissionId"); submissionID != "" {
		reports, err = s.reports.ListBySubmission(submissionID)
	} else {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				respondError(w, http.StatusBadRequest, "invalid limit", nil)
				return
			}
		}
		reports, err = s.reports.Recent(limit)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list reports", err)
		return
	}
	if reports == nil {
		reports = []*quality.ValidationReport{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
	})
}

// Get ruleset handler: summary of the currently loaded ruleset.
func (s *Server) handleGetRuleset(w http.ResponseWriter, r *http.Request) {
	rs := s.engine.RuleSet()
	if rs == nil {
		respondError(w, http.StatusNotFound, "no ruleset loaded", nil)
		return
	}

	respondJSON(w, http.StatusOK, rulesetSummary(rs, s.rulesetPath))
}

// Reload ruleset handler: parse the file, swap atomically on success.
// In-flight validations keep the old ruleset.
func (s *Server) handleReloadRuleset(w http.ResponseWriter, r *http.Request) {
	ruleset, err := quality.LoadFile(s.rulesetPath)
	if err != nil {
		var malformed *quality.MalformedRuleSetError
		var dup *quality.DuplicateRuleError
		if errors.As(err, &malformed) || errors.As(err, &dup) {
			respondError(w, http.StatusUnprocessableEntity, "invalid ruleset", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to reload ruleset", err)
		return
	}

	s.engine.Reload(ruleset)
	logger.Info("ruleset reloaded", "version", ruleset.Version)

	respondJSON(w, http.StatusOK, rulesetSummary(ruleset, s.rulesetPath))
}

// Metrics handler: aggregate quality stats over recent reports, cached.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if summary := s.metricsCache.Get(); summary != nil {
		respondJSON(w, http.StatusOK, summary)
		return
	}

	reports, err := s.reports.Recent(100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load reports", err)
		return
	}

	summary := store.Summarize(reports)
	s.metricsCache.Set(summary)

	respondJSON(w, http.StatusOK, summary)
}

// Helper functions
func decodeRecord(w http.ResponseWriter, r *http.Request) (quality.Record, bool) {
	var rec quality.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return nil, false
	}
	if len(rec) == 0 {
		respondError(w, http.StatusBadRequest, "record is required", nil)
		return nil, false
	}
	return rec, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")

	rulesetPath := os.Getenv("RULESET_PATH")
	if rulesetPath == "" {
		rulesetPath = defaultRulesetPath
	}

	server, err := NewServer(databaseURL, rulesetPath)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
