/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the operator HTTP surface: intermission state,
// seekability, inbound ad-break commands, and the websocket state stream.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/intermission/internal/config"
	"github.com/friendsincode/intermission/internal/events"
	"github.com/friendsincode/intermission/internal/intermission"
	"github.com/friendsincode/intermission/internal/models"
	"github.com/friendsincode/intermission/internal/schedule"
	"github.com/friendsincode/intermission/internal/telemetry"
)

// Server bundles the HTTP surface over the orchestration core.
type Server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	router   chi.Router
	director *intermission.Director
	store    *schedule.Store
	bus      *events.Bus
	metrics  *telemetry.Metrics
}

// New assembles the router. The director, store, bus, and metrics are
// wired by the caller.
func New(cfg *config.Config, director *intermission.Director, store *schedule.Store, bus *events.Bus, metrics *telemetry.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		director: director,
		store:    store,
		bus:      bus,
		metrics:  metrics,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/intermission", s.handleIntermissionGet)
		r.Get("/intermission/ws", s.handleIntermissionWS)
		r.Get("/canseek", s.handleCanSeekGet)

		r.Post("/adbreaks/{id}/start", s.handleAdBreakStart)
		r.Post("/adbreaks/{id}/cancel", s.handleAdBreakCancel)
		r.Post("/adbreaks/{id}/complete", s.handleAdBreakComplete)
		r.Post("/ads/{id}/complete-image", s.handleImageAdComplete)

		r.Put("/timer", s.handleTimerPut)
		r.Put("/run/current", s.handleCurrentRunPut)
	})

	s.router = router
	return s
}

// Router returns the assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer builds the http.Server for the configured bind.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIntermissionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"intermission": s.director.Snapshot()})
}

func (s *Server) handleCanSeekGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"canSeek": s.director.CanSeek()})
}

// Ad-break commands are fire-and-forget: preconditions are enforced by
// the eligibility flags and lookup misses are logged by the director, so
// the handlers just hand the id over and acknowledge.

func (s *Server) handleAdBreakStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	go s.director.StartAdBreak(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": id})
}

func (s *Server) handleAdBreakCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	go s.director.CancelAdBreak(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": id})
}

func (s *Server) handleAdBreakComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	go s.director.CompleteAdBreak(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": id})
}

func (s *Server) handleImageAdComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	go s.director.CompleteImageAd(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": id})
}

func (s *Server) handleTimerPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State models.TimerState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := s.store.SetTimer(body.State); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timer_state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentRunPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := s.store.SetCurrentRun(body.ID); err != nil {
		writeError(w, http.StatusNotFound, "run_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
