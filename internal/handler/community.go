package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/ecochallenge/internal/store"
)

const maxLeaderboardLimit = 100

type CommunityHandler struct {
	profileStore *store.ProfileStore
	defaultLimit int
	logger       *slog.Logger
}

func NewCommunityHandler(ps *store.ProfileStore, defaultLimit int, logger *slog.Logger) *CommunityHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &CommunityHandler{profileStore: ps, defaultLimit: defaultLimit, logger: logger}
}

// Leaderboard accepts an optional limit, capped at maxLeaderboardLimit.
func (h *CommunityHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := h.profileStore.Leaderboard(limit)
	if err != nil {
		writeError(w, h.logger, err, "get leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (h *CommunityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.profileStore.CommunityStats()
	if err != nil {
		writeError(w, h.logger, err, "get community stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
