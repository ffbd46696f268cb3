package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/ecochallenge/internal/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string  { return &v }

func pointsAndCO2(points int, co2 float64) model.ProfileUpdate {
	return model.ProfileUpdate{TotalPoints: &points, CO2SavedKg: &co2}
}

func TestProfileCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)
	u := createTestUser(t, db, "alice@example.com")

	p, err := ps.Create(u.ID, "Alice")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if p.TotalPoints != 0 || p.Level != 1 || p.TreesPlanted != 0 || p.CO2SavedKg != 0 {
		t.Errorf("new profile = %+v, want zeroed stats at level 1", p)
	}
	if p.Version != 1 {
		t.Errorf("version = %d, want 1", p.Version)
	}

	if _, err := ps.Create(u.ID, "Alice"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate create err = %v, want ErrConflict", err)
	}
	if _, err := ps.Get(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing err = %v, want ErrNotFound", err)
	}
}

func TestProfileUpdatePartial(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)
	u := createTestUser(t, db, "alice@example.com")
	ps.Create(u.ID, "Alice")

	p, err := ps.Update(u.ID, pointsAndCO2(250, 12.5))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.TotalPoints != 250 {
		t.Errorf("total_points = %d, want 250", p.TotalPoints)
	}
	if p.CO2SavedKg != 12.5 {
		t.Errorf("co2 = %v, want 12.5", p.CO2SavedKg)
	}
	if p.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want untouched %q", p.DisplayName, "Alice")
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}

	p, err = ps.Update(u.ID, model.ProfileUpdate{DisplayName: stringPtr("Al")})
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if p.DisplayName != "Al" || p.TotalPoints != 250 {
		t.Errorf("profile = %+v, want name Al with 250 points kept", p)
	}

	if _, err := ps.Update(999, pointsAndCO2(1, 1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestProfileTreesPlantedIsSum(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)
	u := createTestUser(t, db, "alice@example.com")
	ps.Create(u.ID, "Alice")

	p, err := ps.Update(u.ID, model.ProfileUpdate{
		TreesFromCO2:   intPtr(3),
		TreesPurchased: intPtr(2),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.TreesPlanted != 5 {
		t.Errorf("trees_planted = %d, want 5", p.TreesPlanted)
	}
}

func TestProfileUpdateIfVersion(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)
	u := createTestUser(t, db, "alice@example.com")
	p, _ := ps.Create(u.ID, "Alice")

	updated, err := ps.UpdateIfVersion(u.ID, p.Version, pointsAndCO2(100, 1))
	if err != nil {
		t.Fatalf("update if version: %v", err)
	}
	if updated.Version != p.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, p.Version+1)
	}

	// Stale version must not be applied.
	_, err = ps.UpdateIfVersion(u.ID, p.Version, pointsAndCO2(999, 99))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale write err = %v, want ErrVersionConflict", err)
	}
	got, _ := ps.Get(u.ID)
	if got.TotalPoints != 100 {
		t.Errorf("total_points = %d, want 100", got.TotalPoints)
	}

	if _, err := ps.UpdateIfVersion(999, 1, pointsAndCO2(1, 1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing profile err = %v, want ErrNotFound", err)
	}
}

func TestProfileLeaderboard(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)

	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")
	ps.Create(alice.ID, "Alice")
	ps.Create(bob.ID, "Bob")
	ps.Create(carol.ID, "Carol")

	ps.Update(alice.ID, pointsAndCO2(300, 0))
	ps.Update(bob.ID, pointsAndCO2(700, 0))
	ps.Update(carol.ID, model.ProfileUpdate{
		TotalPoints:    intPtr(300),
		TreesPurchased: intPtr(1),
	})

	entries, err := ps.Leaderboard(10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	want := []int64{bob.ID, carol.ID, alice.ID}
	for i, e := range entries {
		if e.UserID != want[i] {
			t.Errorf("entries[%d].user_id = %d, want %d", i, e.UserID, want[i])
		}
		if e.Rank != i+1 {
			t.Errorf("entries[%d].rank = %d, want %d", i, e.Rank, i+1)
		}
	}

	top, _ := ps.Leaderboard(1)
	if len(top) != 1 {
		t.Errorf("limited len = %d, want 1", len(top))
	}
}

func TestProfileCommunityStats(t *testing.T) {
	db := setupTestDB(t)
	ps := NewProfileStore(db)

	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ps.Create(alice.ID, "Alice")
	ps.Create(bob.ID, "Bob")
	ps.Update(alice.ID, model.ProfileUpdate{
		TotalPoints:  intPtr(100),
		CO2SavedKg:   floatPtr(20),
		TreesFromCO2: intPtr(2),
	})
	ps.Update(bob.ID, model.ProfileUpdate{
		TotalPoints:    intPtr(50),
		TreesPurchased: intPtr(1),
	})

	cs, err := ps.CommunityStats()
	if err != nil {
		t.Fatalf("community stats: %v", err)
	}
	if cs.Members != 2 {
		t.Errorf("members = %d, want 2", cs.Members)
	}
	if cs.TotalPoints != 150 {
		t.Errorf("total_points = %d, want 150", cs.TotalPoints)
	}
	if cs.TreesPlanted != 3 {
		t.Errorf("trees = %d, want 3", cs.TreesPlanted)
	}
	if cs.CO2SavedKg != 20 {
		t.Errorf("co2 = %v, want 20", cs.CO2SavedKg)
	}
	if cs.ChallengesCompleted != 0 {
		t.Errorf("challenges_completed = %d, want 0", cs.ChallengesCompleted)
	}
}
