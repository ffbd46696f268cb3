package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/challenge"
	"github.com/dukerupert/ecochallenge/internal/progression"
	"github.com/dukerupert/ecochallenge/internal/store"
	"github.com/dukerupert/ecochallenge/internal/websocket"
)

type ProgressionHandler struct {
	engine         *progression.Engine
	challengeStore *store.ChallengeStore
	hub            *websocket.Hub
	logger         *slog.Logger
	now            func() time.Time
}

func NewProgressionHandler(engine *progression.Engine, cs *store.ChallengeStore, hub *websocket.Hub, logger *slog.Logger) *ProgressionHandler {
	return &ProgressionHandler{engine: engine, challengeStore: cs, hub: hub, logger: logger, now: time.Now}
}

func (h *ProgressionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *ProgressionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	enrollmentID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	userID := auth.UserID(r.Context())

	result, err := h.engine.CompleteChallenge(userID, enrollmentID)
	if err != nil {
		writeError(w, h.logger, err, "complete challenge")
		return
	}

	h.broadcast(websocket.NewMessage("leaderboard", "updated", userID, nil))
	writeJSON(w, http.StatusOK, result)
}

func (h *ProgressionHandler) PlantTree(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	result, err := h.engine.PlantTree(userID)
	if err != nil {
		writeError(w, h.logger, err, "plant tree")
		return
	}

	h.broadcast(websocket.NewMessage("leaderboard", "updated", userID, nil))
	writeJSON(w, http.StatusOK, result)
}

// Weekly returns completions and points for each of the last seven days,
// oldest first.
func (h *ProgressionHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	activity, err := h.challengeStore.DailyActivity(auth.UserID(r.Context()), challenge.WeekStart(now))
	if err != nil {
		writeError(w, h.logger, err, "get weekly progress")
		return
	}
	writeJSON(w, http.StatusOK, challenge.WeeklyProgress(activity, now))
}
