package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/catalog"
	"github.com/dukerupert/ecochallenge/internal/challenge"
	"github.com/dukerupert/ecochallenge/internal/store"
)

type ChallengeHandler struct {
	challengeStore *store.ChallengeStore
	catalog        *catalog.Cache
	logger         *slog.Logger
	now            func() time.Time
}

func NewChallengeHandler(cs *store.ChallengeStore, cat *catalog.Cache, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challengeStore: cs, catalog: cat, logger: logger, now: time.Now}
}

// List returns the active catalog narrowed by the category, difficulty and
// q query parameters. Missing or "all" values do not filter.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.catalog.Challenges()
	if err != nil {
		writeError(w, h.logger, err, "list challenges")
		return
	}

	q := r.URL.Query()
	filtered := challenge.Filter(challenges, challenge.Query{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Text:       q.Get("q"),
	})
	writeJSON(w, http.StatusOK, emptyIfNil(filtered))
}

func (h *ChallengeHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.challengeStore.Categories()
	if err != nil {
		writeError(w, h.logger, err, "list categories")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(categories))
}

// Available lists active challenges the user has never started.
func (h *ChallengeHandler) Available(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.catalog.Challenges()
	if err != nil {
		writeError(w, h.logger, err, "list challenges")
		return
	}
	enrollments, err := h.challengeStore.ListEnrollments(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list enrollments")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(challenge.Available(challenges, enrollments)))
}

func (h *ChallengeHandler) Enrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.challengeStore.ListEnrollments(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list enrollments")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(enrollments))
}

func (h *ChallengeHandler) Today(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.challengeStore.ListEnrollments(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list enrollments")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(challenge.Today(enrollments, h.now())))
}

// Start enrolls the user. Starting a challenge twice is not an error: the
// existing enrollment comes back with 200 instead of 201.
func (h *ChallengeHandler) Start(w http.ResponseWriter, r *http.Request) {
	challengeID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	userID := auth.UserID(r.Context())

	enrollment, err := h.challengeStore.Start(userID, challengeID)
	if errors.Is(err, store.ErrConflict) {
		existing, findErr := h.challengeStore.FindEnrollment(userID, challengeID)
		if findErr != nil || existing == nil {
			writeError(w, h.logger, err, "start challenge")
			return
		}
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if err != nil {
		writeError(w, h.logger, err, "start challenge")
		return
	}

	h.logger.Info("challenge started", "user_id", userID, "challenge_id", challengeID)
	writeJSON(w, http.StatusCreated, enrollment)
}
