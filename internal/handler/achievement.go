package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/catalog"
	"github.com/dukerupert/ecochallenge/internal/store"
)

type AchievementHandler struct {
	achievementStore *store.AchievementStore
	catalog          *catalog.Cache
	logger           *slog.Logger
}

func NewAchievementHandler(as *store.AchievementStore, cat *catalog.Cache, logger *slog.Logger) *AchievementHandler {
	return &AchievementHandler{achievementStore: as, catalog: cat, logger: logger}
}

func (h *AchievementHandler) List(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.catalog.Achievements()
	if err != nil {
		writeError(w, h.logger, err, "list achievements")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(achievements))
}

func (h *AchievementHandler) Unlocked(w http.ResponseWriter, r *http.Request) {
	unlocked, err := h.achievementStore.ListUnlocked(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list unlocked achievements")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(unlocked))
}

func (h *AchievementHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.achievementStore.WithStatus(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list achievement status")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(status))
}
