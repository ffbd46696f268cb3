package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/ecochallenge/internal/model"
)

func TestLeaderboard(t *testing.T) {
	env := setupEnv(t)
	h := NewCommunityHandler(env.profiles, 2, discard)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		id := env.newUser(t, email)
		points := (i + 1) * 100
		if _, err := env.profiles.Update(id, model.ProfileUpdate{TotalPoints: &points}); err != nil {
			t.Fatalf("set points: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.Leaderboard(rec, newRequest(t, "GET", "/api/leaderboard", nil))
	entries := decode[[]model.LeaderboardEntry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want default limit 2", len(entries))
	}
	if entries[0].TotalPoints != 300 || entries[0].Rank != 1 {
		t.Errorf("first = %+v, want rank 1 with 300 points", entries[0])
	}

	rec = httptest.NewRecorder()
	h.Leaderboard(rec, newRequest(t, "GET", "/api/leaderboard?limit=5", nil))
	if entries := decode[[]model.LeaderboardEntry](t, rec); len(entries) != 3 {
		t.Errorf("len = %d, want 3", len(entries))
	}

	for _, bad := range []string{"0", "-1", "ten"} {
		rec = httptest.NewRecorder()
		h.Leaderboard(rec, newRequest(t, "GET", "/api/leaderboard?limit="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", bad, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestCommunityStats(t *testing.T) {
	env := setupEnv(t)
	h := NewCommunityHandler(env.profiles, 0, discard)
	env.newUser(t, "a@example.com")
	env.newUser(t, "b@example.com")

	rec := httptest.NewRecorder()
	h.Stats(rec, newRequest(t, "GET", "/api/community/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	stats := decode[model.CommunityStats](t, rec)
	if stats.Members != 2 {
		t.Errorf("members = %d, want 2", stats.Members)
	}
}
