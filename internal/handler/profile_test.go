package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/ecochallenge/internal/model"
)

func TestProfileGetAndUpdate(t *testing.T) {
	env := setupEnv(t)
	h := NewProfileHandler(env.profiles, nil, discard)
	userID := env.newUser(t, "alice@example.com")

	rec := httptest.NewRecorder()
	h.Update(rec, asUser(newRequest(t, "PUT", "/api/profile", map[string]string{"display_name": "  Eco Alice "}), userID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Get(rec, asUser(newRequest(t, "GET", "/api/profile", nil), userID))
	p := decode[model.Profile](t, rec)
	if p.DisplayName != "Eco Alice" {
		t.Errorf("display_name = %q, want %q", p.DisplayName, "Eco Alice")
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	env := setupEnv(t)
	h := NewProfileHandler(env.profiles, nil, discard)
	userID := env.newUser(t, "alice@example.com")

	for _, name := range []string{"", "   ", strings.Repeat("x", 51)} {
		rec := httptest.NewRecorder()
		h.Update(rec, asUser(newRequest(t, "PUT", "/api/profile", map[string]string{"display_name": name}), userID))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("display_name %q status = %d, want %d", name, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestProfileGetMissing(t *testing.T) {
	env := setupEnv(t)
	h := NewProfileHandler(env.profiles, nil, discard)

	rec := httptest.NewRecorder()
	h.Get(rec, asUser(newRequest(t, "GET", "/api/profile", nil), 42))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
