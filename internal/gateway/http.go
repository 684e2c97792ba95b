package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/bus"
)

const maxTurnBody = 64 << 10

type turnRequest struct {
	User    string `json:"user"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

type turnResponse struct {
	User string `json:"user"`
	Turn
}

// Router builds the HTTP API: turns, profile reads, metrics, health and the
// websocket endpoint when that channel is enabled.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(g.logger))

	r.Get("/healthz", g.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))
	if ws := g.channels.WebSocket(); ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", g.handleTurn)
		r.Get("/profiles", g.handleListProfiles)
		r.Get("/profiles/{id}", g.handleGetProfile)
	})
	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"channels": g.channels.EnabledChannels(),
		"backend":  g.engine.HasBackend(),
		"sessions": g.sessions.Len(),
	})
}

func (g *Gateway) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	msg := bus.InboundMessage{
		Channel:   httpChannelName,
		SenderID:  req.User,
		ChatID:    req.User,
		Name:      req.Name,
		Content:   req.Message,
		Timestamp: time.Now(),
	}
	turn := g.Handle(r.Context(), msg)
	writeJSON(w, http.StatusOK, turnResponse{User: msg.UserKey(), Turn: turn})
}

func (g *Gateway) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ids, err := g.memory.ListProfiles(r.Context())
	if err != nil {
		g.logger.Error().Err(err).Msg("list profiles")
		writeError(w, http.StatusInternalServerError, "profile store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": ids})
}

func (g *Gateway) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := g.memory.GetProfile(r.Context(), id)
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
