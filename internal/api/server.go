// Package api exposes the variation service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
	maxBodyBytes    = 1 << 20
)

// ErrPromptRequired is reported when a variation request carries no prompt field.
var ErrPromptRequired = errors.New("field 'prompt' is required")

// VariationCreator is the part of the service the transport needs.
type VariationCreator interface {
	CreateVariation(ctx context.Context, trackID string, req core.VariationRequest) (*core.VariationResult, error)
}

// Server is the HTTP front end.
type Server struct {
	addr   string
	router *chi.Mux
	svc    VariationCreator
	log    *logger.Logger
}

// New creates a Server listening on addr.
func New(addr string, svc VariationCreator, log *logger.Logger) *Server {
	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		svc:    svc,
		log:    log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/tracks/{trackID}/variations", s.handleCreateVariation)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		s.log.Info("HTTP server listening on %s", s.addr)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type variationRequestBody struct {
	Prompt *string `json:"prompt"`
	core.Overrides
}

func (s *Server) handleCreateVariation(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	var body variationRequestBody

	decodeErr := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
	if decodeErr != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", decodeErr))

		return
	}

	if body.Prompt == nil {
		writeError(w, http.StatusUnprocessableEntity, ErrPromptRequired.Error())

		return
	}

	req := core.VariationRequest{Prompt: *body.Prompt, Overrides: body.Overrides}

	result, err := s.svc.CreateVariation(r.Context(), trackID, req)
	if err != nil {
		status := service.StatusCode(err)
		s.log.Error("Variation request for track '%s' failed (%d): %v", trackID, status, err)
		writeError(w, status, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
