// Package httpapi exposes the guide over HTTP: session endpoints, the daily
// tip, narration download and the breathing phase websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/audio"
	"github.com/meditateology/guide/internal/breathing"
	"github.com/meditateology/guide/internal/config"
	"github.com/meditateology/guide/internal/observability"
	"github.com/meditateology/guide/internal/session"
)

// TipSource produces the mindfulness tip of the day.
type TipSource interface {
	Tip(ctx context.Context) string
}

type Server struct {
	cfg       *config.Config
	sessions  *session.Manager
	tips      TipSource
	breathing *breathing.Cycle
	checks    map[string]observability.HealthCheckFunc
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

func New(cfg *config.Config, sessions *session.Manager, tips TipSource, cycle *breathing.Cycle, checks map[string]observability.HealthCheckFunc) *Server {
	origins := cfg.Origins()
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		tips:      tips,
		breathing: cycle,
		checks:    checks,
		logger:    observability.WithComponent("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, origins)
			},
		},
	}
}

// originAllowed admits non-browser clients, same-origin pages and configured origins.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", observability.HealthCheckHandler())
	r.Get("/ready", observability.ReadinessHandler(s.checks))
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/current", s.handleCurrentSession)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/narrate", s.handleNarrate)
	r.Post("/v1/sessions/{id}/stop", s.handleStopAudio)
	r.Delete("/v1/sessions/{id}", s.handleCloseSession)
	r.Get("/v1/sessions/{id}/audio.wav", s.handleNarrationWAV)

	r.Get("/v1/tip", s.handleTip)
	r.Get("/v1/breathing", s.handleBreathingState)
	r.Get("/v1/breathing/ws", s.handleBreathingWS)

	return r
}

type createSessionRequest struct {
	Mood     string `json:"mood"`
	Duration string `json:"duration"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snap, err := s.sessions.Open(req.Mood, req.Duration)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.sessions.RunAsync(snap.ID)
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.sessions.Current()
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sessions.Get(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	if snap.Stage == session.StageScriptLoading || snap.Script == "" {
		respondSessionError(w, session.ErrNoScript)
		return
	}
	s.sessions.NarrateAsync(id)
	respondJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleStopAudio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.StopAudio(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNarrationWAV(w http.ResponseWriter, r *http.Request) {
	buf, err := s.sessions.Narration(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	data, err := audio.EncodeWAV(buf)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode narration")
		respondError(w, http.StatusInternalServerError, "encode_failed", "could not encode narration")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="narration.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"tip": s.tips.Tip(r.Context())})
}

func (s *Server) handleBreathingState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.breathing.Current())
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrNoAudio):
		respondError(w, http.StatusNotFound, "no_audio", err.Error())
	case errors.Is(err, session.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, session.ErrNoScript), errors.Is(err, session.ErrBusy):
		respondError(w, http.StatusConflict, "not_ready", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
