package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/middleware"
	"github.com/dukerupert/ecochallenge/internal/model"
	"github.com/dukerupert/ecochallenge/internal/store"
)

const minPasswordLength = 8

type AuthHandler struct {
	userStore    *store.UserStore
	profileStore *store.ProfileStore
	sessionStore *store.SessionStore
	adminEmails  map[string]bool
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewAuthHandler returns an AuthHandler. Users registering with one of
// adminEmails get the admin role.
func NewAuthHandler(us *store.UserStore, ps *store.ProfileStore, ss *store.SessionStore, adminEmails []string, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	if sessionTTL <= 0 {
		sessionTTL = store.DefaultSessionTTL
	}
	return &AuthHandler{
		userStore:    us,
		profileStore: ps,
		sessionStore: ss,
		adminEmails:  admins,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// Register creates the account and its empty profile together, then a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email is required"})
		return
	}
	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to register"})
		return
	}

	role := model.RoleMember
	if h.adminEmails[email] {
		role = model.RoleAdmin
	}
	user, err := h.userStore.Register(email, name, string(hash), role, name)
	if err != nil {
		writeError(w, h.logger, err, "register")
		return
	}

	profile, err := h.profileStore.Get(user.ID)
	if err != nil {
		writeError(w, h.logger, err, "get profile")
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", role)
	writeJSON(w, http.StatusCreated, authResponse{User: user, Profile: profile})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err, "log in")
		return
	}
	// Same response for unknown email and wrong password to prevent enumeration.
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	hash, err := h.userStore.PasswordHash(user.ID)
	if err != nil {
		writeError(w, h.logger, err, "log in")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64) bool {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		writeError(w, h.logger, err, "create session")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return true
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := auth.SessionID(r.Context()); sessionID != 0 {
		if err := h.sessionStore.Delete(sessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
