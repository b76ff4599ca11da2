// Package server exposes the workflow steps and run inspection over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

// Reader is the read side of the store used by inspection endpoints.
type Reader interface {
	GetRun(ctx context.Context, id string) (*database.AnalysisRun, error)
	GetSummary(ctx context.Context, runID string) (*database.Summary, error)
	GetCategoryMetrics(ctx context.Context, runID string) ([]database.CategoryMetric, error)
	GetTimeSeries(ctx context.Context, runID string) ([]database.TimeSeriesPoint, error)
}

// Server is the HTTP surface of the workflow.
type Server struct {
	wf     *workflow.Orchestrator
	db     Reader
	report *template.Template
	router chi.Router
	logger *zap.Logger
}

// New creates a server. origins lists the CORS origins allowed to call the API.
func New(wf *workflow.Orchestrator, db Reader, origins []string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	s := &Server{
		wf:     wf,
		db:     db,
		report: tmpl,
		router: chi.NewRouter(),
		logger: logger.Named("server"),
	}
	s.routes(origins)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/workflow", func(rt chi.Router) {
		rt.Post("/step1", s.wrap(s.handleStep1))
		rt.Post("/step2", s.wrap(s.handleStep2))
		rt.Post("/step3", s.wrap(s.handleStep3))
		rt.Put("/{runId}/categories", s.wrap(s.handleSaveCategories))
		rt.Post("/step4", s.wrap(s.handleStep4))
		rt.Post("/step5", s.wrap(s.handleStep5))
	})

	r.Route("/api/runs/{runId}", func(rt chi.Router) {
		rt.Get("/", s.wrap(s.handleGetRun))
		rt.Delete("/", s.wrap(s.handleDeleteRun))
		rt.Get("/summary", s.wrap(s.handleSummary))
		rt.Get("/report", s.wrap(s.handleReport))
		rt.Post("/analyze", s.wrap(s.handleAnalyze))
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, code := http.StatusInternalServerError, "internal_error"
		if errors.Is(err, database.ErrRunNotFound) {
			code = "run_not_found"
		}
		s.logger.Error("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", workflow.ErrInvalidInput, err)
	}
	return nil
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
