package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/stats"
	"github.com/duckhunt/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HuntState reads channel game state
type HuntState interface {
	Snapshot(key domain.ChannelKey) domain.ChannelSnapshot
}

// StatsReader serves rankings, summaries and merges
type StatsReader interface {
	ChannelRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind) ([]domain.RankEntry, error)
	NetworkRanking(ctx context.Context, network string, kind domain.ScoreKind, mode domain.RankingMode) ([]domain.RankEntry, error)
	NetworkAverage(ctx context.Context, network string, kind domain.ScoreKind) (domain.ChannelAverage, error)
	Page(entries []domain.RankEntry, number int) (stats.Page, error)
	LiveRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind, limit int) ([]domain.RankEntry, error)
	PlayerStats(ctx context.Context, network, name, channel string) (*domain.PlayerStats, error)
	NetworkStats(ctx context.Context, network, channel string) (*domain.NetworkStats, error)
	Merge(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error)
}

// EventHandler accepts inbound chat events
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.ChatEvent) error
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the duck hunt API
type Handler struct {
	hunt   HuntState
	stats  StatsReader
	events EventHandler
	hub    *websocket.Hub
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(
	hunt HuntState,
	st StatsReader,
	events EventHandler,
	hub *websocket.Hub,
	deps map[string]Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		hunt:   hunt,
		stats:  st,
		events: events,
		hub:    hub,
		deps:   deps,
		logger: logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LeaderboardResponse is one page of a ranking
type LeaderboardResponse struct {
	Kind    domain.ScoreKind       `json:"kind"`
	Mode    domain.RankingMode     `json:"mode,omitempty"`
	Average *domain.ChannelAverage `json:"average,omitempty"`
	stats.Page
}

// MergeRequest names the user whose scores move and the user receiving them
type MergeRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", h.PostEvent)
		r.Get("/ws/stats", h.GetWebSocketStats)

		r.Route("/networks/{network}", func(r chi.Router) {
			r.Get("/leaderboard", h.GetNetworkLeaderboard)
			r.Get("/players/{name}", h.GetPlayerStats)
			r.Get("/stats", h.GetNetworkStats)
			r.Post("/merge", h.MergeScores)

			r.Route("/channels/{channel}", func(r chi.Router) {
				r.Get("/state", h.GetChannelState)
				r.Get("/leaderboard", h.GetChannelLeaderboard)
				r.Get("/live", h.GetLiveRanking)
			})
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported as internal errors.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrSameUser):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNothingToMerge), errors.Is(err, domain.ErrNoScores):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOptedOut):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	if status == http.StatusInternalServerError {
		err = domain.ErrInternalError
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(r.Context()); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    checks,
			Error:   "not ready",
		})
		return
	}
	h.writeSuccess(w, map[string]any{"status": "ready", "checks": checks})
}

// PostEvent accepts a chat event from an HTTP transport
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.ChatEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, r, domain.ErrInvalidRequest)
		return
	}

	if err := h.events.HandleEvent(r.Context(), event); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "accepted"},
	})
}

func channelKey(r *http.Request) domain.ChannelKey {
	return domain.ChannelKey{
		Network: chi.URLParam(r, "network"),
		Channel: chi.URLParam(r, "channel"),
	}
}

// scoreKind reads ?kind=, defaulting to shot
func scoreKind(r *http.Request) (domain.ScoreKind, error) {
	kind := domain.ScoreKind(r.URL.Query().Get("kind"))
	if kind == "" {
		return domain.ScoreShot, nil
	}
	if !kind.Valid() {
		return "", domain.ErrInvalidRequest
	}
	return kind, nil
}

// intParam reads a positive integer query parameter
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.ErrInvalidRequest
	}
	return n, nil
}

// GetChannelState returns the game state of a channel
func (h *Handler) GetChannelState(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.hunt.Snapshot(channelKey(r)))
}

// GetChannelLeaderboard returns one page of a channel ranking
func (h *Handler) GetChannelLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, err := scoreKind(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pageNo, err := intParam(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.stats.ChannelRanking(r.Context(), channelKey(r), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePage(w, r, entries, pageNo, LeaderboardResponse{Kind: kind})
}

// GetNetworkLeaderboard returns one page of a network ranking
func (h *Handler) GetNetworkLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, err := scoreKind(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pageNo, err := intParam(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mode := domain.RankingMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = domain.RankingTotal
	}

	network := chi.URLParam(r, "network")
	resp := LeaderboardResponse{Kind: kind, Mode: mode}
	rankBy := mode
	if mode == domain.RankingAverage {
		avg, err := h.stats.NetworkAverage(r.Context(), network, kind)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Average = &avg
		rankBy = domain.RankingTotal
	}

	entries, err := h.stats.NetworkRanking(r.Context(), network, kind, rankBy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePage(w, r, entries, pageNo, resp)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, entries []domain.RankEntry, number int, resp LeaderboardResponse) {
	page, err := h.stats.Page(entries, number)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.Page = page
	h.writeSuccess(w, resp)
}

// GetLiveRanking returns the top of a channel ranking from the cache
func (h *Handler) GetLiveRanking(w http.ResponseWriter, r *http.Request) {
	kind, err := scoreKind(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.stats.LiveRanking(r.Context(), channelKey(r), kind, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, entries)
}

// GetPlayerStats summarises a user across a network
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	ps, err := h.stats.PlayerStats(r.Context(),
		chi.URLParam(r, "network"),
		chi.URLParam(r, "name"),
		r.URL.Query().Get("channel"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, ps)
}

// GetNetworkStats summarises a network
func (h *Handler) GetNetworkStats(w http.ResponseWriter, r *http.Request) {
	ns, err := h.stats.NetworkStats(r.Context(), chi.URLParam(r, "network"), r.URL.Query().Get("channel"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, ns)
}

// MergeScores moves every score of one user to another
func (h *Handler) MergeScores(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrInvalidRequest)
		return
	}

	result, err := h.stats.Merge(r.Context(), chi.URLParam(r, "network"), req.OldName, req.NewName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, result)
}
