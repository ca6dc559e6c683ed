// Package server is the HTTP surface of the copilot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "sellerpilot/agent/contract"
	"sellerpilot/pkg/metrics"
)

// Config holds the listener settings.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"150s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Analyzer is the slice of the analyze service the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, req contractx.AnalyzeRequest) (contractx.AnalyzeResponse, error)
}

// Sessions exposes session creation and history reads. Lookup fails with
// ErrSessionNotFound for ids that were never created.
type Sessions interface {
	Lookup(ctx context.Context, sessionID string) (contractx.SessionRecord, error)
	Append(ctx context.Context, req contractx.AppendRequest) error
}

// Server owns the router and the http.Server lifecycle.
type Server struct {
	cfg      Config
	analyzer Analyzer
	sessions Sessions
	srv      *http.Server
}

func New(cfg Config, analyzer Analyzer, sessions Sessions) *Server {
	s := &Server{cfg: cfg, analyzer: analyzer, sessions: sessions}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}/messages", s.handleSessionMessages)
	})

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks until the listener stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req contractx.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createSessionRequest struct {
	SellerID   string `json:"seller_id"`
	SellerName string `json:"seller_name,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sessionID := uuid.NewString()
	err := s.sessions.Append(r.Context(), contractx.AppendRequest{
		SessionID:  sessionID,
		SellerID:   req.SellerID,
		SellerName: req.SellerName,
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sessionID})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rec, err := s.sessions.Lookup(r.Context(), sessionID)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	var failure *contractx.PipelineFailure
	switch {
	case errors.Is(err, contractx.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrSessionLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "session is busy, retry shortly")
	case errors.As(err, &failure):
		log.Error().Err(failure.Reason).Str("state", failure.State).Msg("pipeline failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":           "analysis pipeline failed",
			"state":           failure.State,
			"last_valid_plan": failure.Plan,
			"execution_trace": failure.Trace,
		})
	case errors.Is(err, contractx.ErrLLMUnavailable) || errors.Is(err, contractx.ErrLLMTimeout):
		writeError(w, http.StatusBadGateway, "language model providers unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "analysis timed out")
	default:
		log.Error().Err(err).Msg("analyze request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contractx.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, contractx.ErrSessionLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "session is busy, retry shortly")
	default:
		log.Error().Err(err).Msg("session request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
