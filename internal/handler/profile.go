package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/model"
	"github.com/dukerupert/ecochallenge/internal/store"
	"github.com/dukerupert/ecochallenge/internal/websocket"
)

const maxDisplayNameLength = 50

type ProfileHandler struct {
	profileStore *store.ProfileStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, hub *websocket.Hub, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, hub: hub, logger: logger}
}

func (h *ProfileHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileStore.Get(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// Update only touches the display name. Progression fields are written by
// the progression engine.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name is required"})
		return
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name is too long"})
		return
	}

	userID := auth.UserID(r.Context())
	profile, err := h.profileStore.Update(userID, model.ProfileUpdate{DisplayName: &name})
	if err != nil {
		writeError(w, h.logger, err, "update profile")
		return
	}

	h.broadcast(websocket.NewMessage("profile", "updated", userID, nil))
	writeJSON(w, http.StatusOK, profile)
}
