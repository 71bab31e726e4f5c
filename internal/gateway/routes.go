package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clewhq/clew/internal/cron"
	"github.com/clewhq/clew/internal/transcript"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())

	// Everything else needs a configured token.
	if g.cfg.AuthToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.cfg.AuthToken, g.deps.Audit))
			r.Get("/status", g.handleStatus())
			r.Get("/ws/events", g.handleEvents())
			r.Route("/api", func(r chi.Router) {
				r.Get("/tools", g.handleListTools())
				r.Get("/sessions", g.handleListSessions())
				r.Get("/sessions/{id}", g.handleGetSession())
			})
			if g.deps.Metrics != nil {
				r.Handle("/metrics", g.deps.Metrics.Handler())
			}
		})
	}

	return r
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Tools  int    `json:"tools"`
}

func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.deps.Registry != nil {
			resp.Tools = len(g.deps.Registry.Names())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   float64          `json:"uptime_seconds"`
	Tools    []string         `json:"tools"`
	Sessions int              `json:"sessions"`
	Jobs     []cron.JobStatus `json:"jobs,omitempty"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}
		if g.deps.Registry != nil {
			resp.Tools = g.deps.Registry.Names()
		}
		if g.deps.Store != nil {
			if infos, err := g.deps.Store.Sessions(r.Context()); err == nil {
				resp.Sessions = len(infos)
			}
		}
		if g.deps.Jobs != nil {
			resp.Jobs = g.deps.Jobs()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.deps.Registry == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, g.deps.Registry.Schemas())
	}
}

func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Store == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		infos, err := g.deps.Store.Sessions(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if infos == nil {
			infos = []transcript.SessionInfo{}
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Store == nil {
			http.Error(w, "transcript store not configured", http.StatusNotFound)
			return
		}
		id := chi.URLParam(r, "id")
		entries, err := g.deps.Store.Entries(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(entries) == 0 {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
