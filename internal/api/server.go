// Package api exposes the HTTP surface: the vendor webhook receiver and a
// small read API over the reconciled records.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/engine"
	"github.com/flockops/safeguard/internal/logging"
)

// Reconciler is the slice of the engine the webhook receiver drives.
type Reconciler interface {
	ApplyCheckUpdate(ctx context.Context, u engine.CheckUpdate) error
	ApplyTrainingUpdate(ctx context.Context, u engine.TrainingUpdate) error
}

// RecordReader serves the read endpoints.
type RecordReader interface {
	RecentChecks(ctx context.Context, limit int) ([]*core.CheckRecord, error)
	RecentTrainings(ctx context.Context, limit int) ([]*core.TrainingRecord, error)
	CheckByID(ctx context.Context, id int64) (*core.CheckRecord, error)
	Fields(ctx context.Context, workflowID int64) (core.FieldSet, error)
	FileByHandle(ctx context.Context, handle string) (string, []byte, error)
}

// Config configures the server.
type Config struct {
	// WebhookSecret, when non-empty, must match the X-Webhook-Secret header
	// of every delivery.
	WebhookSecret string
	// CheckTypeID and TrainingTypeID are the workflow types auto-created
	// for observations with no in-flight request.
	CheckTypeID    int64
	TrainingTypeID int64
	RequestTimeout time.Duration
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	cfg        Config
	reconciler Reconciler
	records    RecordReader
	enricher   CheckEnricher
	logger     *logging.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCheckEnricher sets the client used to backfill webhook payload fields.
func WithCheckEnricher(e CheckEnricher) ServerOption {
	return func(s *Server) {
		s.enricher = e
	}
}

// NewServer creates a new API server.
func NewServer(cfg Config, reconciler Reconciler, records RecordReader, opts ...ServerOption) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		reconciler: reconciler,
		records:    records,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Post("/webhooks/ministrysafe", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/checks", s.handleListChecks)
		r.Get("/checks/{checkID}/report", s.handleCheckReport)
		r.Get("/trainings", s.handleListTrainings)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.records.RecentChecks(r.Context(), limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"checks": checkDTOs(recs)})
}

func (s *Server) handleListTrainings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.records.RecentTrainings(r.Context(), limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"trainings": trainingDTOs(recs)})
}

// handleCheckReport streams the stored result document of a check.
func (s *Server) handleCheckReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "checkID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "check id must be numeric")
		return
	}

	rec, err := s.records.CheckByID(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if rec.WorkflowID == nil {
		respondError(w, http.StatusNotFound, "check has no workflow bound")
		return
	}

	fields, err := s.records.Fields(r.Context(), *rec.WorkflowID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	handle := fields[core.FieldReportFile].Text
	if handle == "" {
		respondError(w, http.StatusNotFound, "no report document stored")
		return
	}

	filename, content, err := s.records.FileByHandle(r.Context(), handle)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

type checkDTO struct {
	ID           int64      `json:"id"`
	PersonRef    int64      `json:"person_ref"`
	RequestID    string     `json:"request_id"`
	PackageName  string     `json:"package_name,omitempty"`
	Status       string     `json:"status"`
	RequestDate  time.Time  `json:"request_date"`
	ResponseDate *time.Time `json:"response_date,omitempty"`
	WorkflowID   *int64     `json:"workflow_id,omitempty"`
}

func checkDTOs(recs []*core.CheckRecord) []checkDTO {
	out := make([]checkDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, checkDTO{
			ID:           rec.ID,
			PersonRef:    rec.PersonRef,
			RequestID:    rec.RequestID,
			PackageName:  rec.PackageName,
			Status:       string(rec.Status),
			RequestDate:  rec.RequestDate,
			ResponseDate: rec.ResponseDate,
			WorkflowID:   rec.WorkflowID,
		})
	}
	return out
}

type trainingDTO struct {
	ID          int64      `json:"id"`
	PersonRef   int64      `json:"person_ref"`
	SurveyCode  string     `json:"survey_code,omitempty"`
	Score       *int       `json:"score,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RequestDate time.Time  `json:"request_date"`
	WorkflowID  *int64     `json:"workflow_id,omitempty"`
}

func trainingDTOs(recs []*core.TrainingRecord) []trainingDTO {
	out := make([]trainingDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, trainingDTO{
			ID:          rec.ID,
			PersonRef:   rec.PersonRef,
			SurveyCode:  rec.SurveyCode,
			Score:       rec.Score,
			CompletedAt: rec.CompletedAt,
			RequestDate: rec.RequestDate,
			WorkflowID:  rec.WorkflowID,
		})
	}
	return out
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
