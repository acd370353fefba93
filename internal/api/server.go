// Package api serves the read-only status HTTP API: health, the tracked
// match collection, and recently dispatched events. The poller is the only
// writer; handlers only read snapshots.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/goalwatch/goalwatch/internal/config"
	"github.com/goalwatch/goalwatch/internal/model"
	"github.com/goalwatch/goalwatch/internal/poller"
	"github.com/goalwatch/goalwatch/internal/tracker"
)

// NewRouter creates the Chi router with all middleware and routes.
func NewRouter(t *tracker.Tracker, p *poller.Poller, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{tracker: t, poller: p, logger: logger}

	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5)) // gzip

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// --- Routes ---
	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/matches", h.listMatches)
		r.Get("/matches/active", h.activeMatches)
		r.Get("/matches/{id}", h.matchByID)
		r.Get("/events/recent", h.recentEvents)
	})

	return r
}

type handlers struct {
	tracker *tracker.Tracker
	poller  *poller.Poller
	logger  *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listMatches(w http.ResponseWriter, r *http.Request) {
	var matches []model.Match
	if status := r.URL.Query().Get("status"); status != "" {
		matches = h.tracker.ByStatus(model.ParseStatus(status))
	} else {
		matches = h.tracker.All()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(matches),
		"matches": matches,
	})
}

func (h *handlers) activeMatches(w http.ResponseWriter, _ *http.Request) {
	matches := h.tracker.Active()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(matches),
		"matches": matches,
	})
}

func (h *handlers) matchByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.tracker.Match(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "match not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events := h.poller.RecentEvents(limit)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to encode response", "error", err)
	}
}
