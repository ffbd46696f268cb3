package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/ecochallenge/internal/auth"
	"github.com/dukerupert/ecochallenge/internal/middleware"
	"github.com/dukerupert/ecochallenge/internal/model"
)

func newAuthHandler(env *testEnv) *AuthHandler {
	return NewAuthHandler(env.users, env.profiles, env.sessions, []string{"Admin@Example.com"}, time.Hour, discard)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, "POST", "/register", map[string]string{
		"email":    "alice@example.com",
		"name":     "Alice",
		"password": "correct horse",
	}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	c := sessionCookie(rec)
	if c == nil || c.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if c.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", c.MaxAge)
	}

	resp := decode[authResponse](t, rec)
	if resp.User.Role != model.RoleMember {
		t.Errorf("role = %q, want %q", resp.User.Role, model.RoleMember)
	}
	if resp.Profile == nil || resp.Profile.Level != 1 || resp.Profile.TotalPoints != 0 {
		t.Errorf("profile = %+v, want fresh level 1 profile", resp.Profile)
	}

	sess, err := env.sessions.GetByToken(c.Value)
	if err != nil || sess == nil {
		t.Fatalf("session lookup: %v, %v", sess, err)
	}
	if sess.UserID != resp.User.ID {
		t.Errorf("session user = %d, want %d", sess.UserID, resp.User.ID)
	}
}

func TestRegisterAdminEmail(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, "POST", "/register", map[string]string{
		"email":    "admin@example.com",
		"password": "correct horse",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	resp := decode[authResponse](t, rec)
	if resp.User.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", resp.User.Role, model.RoleAdmin)
	}
	if resp.User.Name != "admin" {
		t.Errorf("name = %q, want name derived from email", resp.User.Name)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "correct horse"}},
		{"short password", map[string]string{"email": "bob@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, newRequest(t, "POST", "/register", tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)
	body := map[string]string{"email": "alice@example.com", "password": "correct horse"}

	h.Register(httptest.NewRecorder(), newRequest(t, "POST", "/register", body))
	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, "POST", "/register", body))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestLogin(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)
	h.Register(httptest.NewRecorder(), newRequest(t, "POST", "/register", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	}))

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{"valid", "Alice@Example.com", "correct horse", http.StatusOK},
		{"wrong password", "alice@example.com", "battery staple", http.StatusUnauthorized},
		{"unknown email", "nobody@example.com", "correct horse", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, newRequest(t, "POST", "/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := sessionCookie(rec) != nil; got != (tt.want == http.StatusOK) {
				t.Errorf("cookie set = %v", got)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)
	userID := env.newUser(t, "alice@example.com")
	sess, err := env.sessions.Create(userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := newRequest(t, "POST", "/logout", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID, SessionID: sess.ID}))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected cookie to be cleared, got %+v", c)
	}
	got, err := env.sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("session should be deleted")
	}
}

func TestRegisterProfileFailureRollsBack(t *testing.T) {
	env := setupEnv(t)
	h := newAuthHandler(env)
	body := map[string]string{"email": "alice@example.com", "password": "correct horse"}

	if _, err := env.db.Exec(`CREATE TRIGGER block_profiles BEFORE INSERT ON profiles
		BEGIN SELECT RAISE(ABORT, 'profiles blocked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, "POST", "/register", body))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if sessionCookie(rec) != nil {
		t.Error("failed registration should not set a session cookie")
	}

	var users int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 0 {
		t.Fatalf("users = %d, want 0", users)
	}

	if _, err := env.db.Exec(`DROP TRIGGER block_profiles`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	rec = httptest.NewRecorder()
	h.Register(rec, newRequest(t, "POST", "/register", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decode[authResponse](t, rec)
	if resp.Profile == nil || resp.Profile.UserID != resp.User.ID {
		t.Errorf("profile = %+v, want profile for user %d", resp.Profile, resp.User.ID)
	}
}
