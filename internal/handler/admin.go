package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/ecochallenge/internal/catalog"
	"github.com/dukerupert/ecochallenge/internal/model"
	"github.com/dukerupert/ecochallenge/internal/progression"
	"github.com/dukerupert/ecochallenge/internal/store"
	"github.com/dukerupert/ecochallenge/internal/websocket"
)

// AdminHandler manages the challenge and achievement catalogs. Every write
// drops the cached catalog and tells connected clients to refetch.
type AdminHandler struct {
	challengeStore   *store.ChallengeStore
	achievementStore *store.AchievementStore
	catalog          *catalog.Cache
	hub              *websocket.Hub
	logger           *slog.Logger
}

func NewAdminHandler(cs *store.ChallengeStore, as *store.AchievementStore, cat *catalog.Cache, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		challengeStore:   cs,
		achievementStore: as,
		catalog:          cat,
		hub:              hub,
		logger:           logger,
	}
}

func (h *AdminHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type createChallengeRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Points        int     `json:"points"`
	EstimatedTime string  `json:"estimated_time"`
	Difficulty    string  `json:"difficulty"`
	CO2ImpactKg   float64 `json:"co2_impact_kg"`
	Active        *bool   `json:"active"`
}

func (h *AdminHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	c, err := h.challengeStore.Create(model.ChallengeInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Points:        req.Points,
		EstimatedTime: req.EstimatedTime,
		Difficulty:    req.Difficulty,
		CO2ImpactKg:   req.CO2ImpactKg,
		Active:        active,
	})
	if err != nil {
		writeError(w, h.logger, err, "create challenge")
		return
	}

	h.catalog.InvalidateChallenges()
	h.broadcast(websocket.NewMessage("challenge", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AdminHandler) SetChallengeActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.challengeStore.SetActive(id, req.Active)
	if err != nil {
		writeError(w, h.logger, err, "update challenge")
		return
	}

	h.catalog.InvalidateChallenges()
	h.broadcast(websocket.NewMessage("challenge", "updated", c.ID, map[string]any{"active": c.Active}))
	writeJSON(w, http.StatusOK, c)
}

type createAchievementRequest struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Icon             string  `json:"icon"`
	RequirementType  string  `json:"requirement_type"`
	RequirementValue float64 `json:"requirement_value"`
	PointsReward     int     `json:"points_reward"`
}

func (h *AdminHandler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req createAchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if _, err := progression.ParseRequirement(req.RequirementType, req.RequirementValue); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	a, err := h.achievementStore.Create(model.AchievementInput{
		Name:             req.Name,
		Description:      req.Description,
		Icon:             req.Icon,
		RequirementType:  req.RequirementType,
		RequirementValue: req.RequirementValue,
		PointsReward:     req.PointsReward,
	})
	if err != nil {
		writeError(w, h.logger, err, "create achievement")
		return
	}

	h.catalog.InvalidateAchievements()
	h.broadcast(websocket.NewMessage("achievement", "created", a.ID, nil))
	writeJSON(w, http.StatusCreated, a)
}
