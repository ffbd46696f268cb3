package progression

import (
	"errors"
	"sync"
	"testing"

	"github.com/dukerupert/ecochallenge/internal/catalog"
	"github.com/dukerupert/ecochallenge/internal/database"
	"github.com/dukerupert/ecochallenge/internal/model"
	"github.com/dukerupert/ecochallenge/internal/store"
)

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(userID int64, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var titles []string
	for _, n := range r.notes {
		titles = append(titles, n.Title)
	}
	return titles
}

type testEnv struct {
	engine       *Engine
	notes        *recorder
	profiles     *store.ProfileStore
	challenges   *store.ChallengeStore
	achievements *store.AchievementStore
	userID       int64
}

func setupEngine(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	u, err := users.Create("alice@example.com", "Alice", "hash", model.RoleMember)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	profiles := store.NewProfileStore(db)
	if _, err := profiles.Create(u.ID, "Alice"); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	challenges := store.NewChallengeStore(db)
	achievements := store.NewAchievementStore(db)
	cache, err := catalog.New(challenges, achievements, 0, nil)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	env := &testEnv{
		notes:        &recorder{},
		profiles:     profiles,
		challenges:   challenges,
		achievements: achievements,
		userID:       u.ID,
	}
	env.engine = New(Deps{
		Profiles:     profiles,
		Challenges:   challenges,
		Catalog:      cache,
		Achievements: achievements,
		Notifier:     env.notes,
	})
	return env
}

func (env *testEnv) enroll(t *testing.T, points int, co2 float64) *model.Enrollment {
	t.Helper()
	c, err := env.challenges.Create(model.ChallengeInput{
		Title:       "Test Challenge",
		Category:    "energy",
		Points:      points,
		Difficulty:  model.DifficultyEasy,
		CO2ImpactKg: co2,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	e, err := env.challenges.Start(env.userID, c.ID)
	if err != nil {
		t.Fatalf("start challenge: %v", err)
	}
	return e
}

func (env *testEnv) setPoints(t *testing.T, points int) {
	t.Helper()
	level := LevelOf(points)
	if _, err := env.profiles.Update(env.userID, model.ProfileUpdate{TotalPoints: &points, Level: &level}); err != nil {
		t.Fatalf("set points: %v", err)
	}
}

func TestCompleteChallengeFreshProfile(t *testing.T) {
	env := setupEngine(t)
	e := env.enroll(t, 500, 100)

	res, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	p := res.Profile
	if p.TotalPoints != 500 {
		t.Errorf("total_points = %d, want 500", p.TotalPoints)
	}
	if p.Level != 2 {
		t.Errorf("level = %d, want 2", p.Level)
	}
	if p.TreesPlanted != 10 {
		t.Errorf("trees_planted = %d, want 10", p.TreesPlanted)
	}
	if p.CO2SavedKg != 100 {
		t.Errorf("co2 = %v, want 100", p.CO2SavedKg)
	}
	if p.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", p.CurrentStreak)
	}
	if !res.LeveledUp || res.PreviousLevel != 1 {
		t.Errorf("leveled_up = %v previous = %d, want true 1", res.LeveledUp, res.PreviousLevel)
	}

	titles := env.notes.titles()
	if len(titles) < 2 || titles[0] != "Challenge Completed!" || titles[1] != "Level Up!" {
		t.Fatalf("titles = %v, want completion then level up first", titles)
	}
	if env.notes.notes[0].Description != "You earned 500 points and saved 100kg CO2!" {
		t.Errorf("description = %q", env.notes.notes[0].Description)
	}
	if env.notes.notes[0].Kind != KindSuccess || env.notes.notes[1].Kind != KindMilestone {
		t.Errorf("kinds = %q %q, want success milestone", env.notes.notes[0].Kind, env.notes.notes[1].Kind)
	}

	// First Steps, Seedling, Carbon Cutter, Climate Champion, Getting Started.
	if len(res.Unlocked) != 5 {
		t.Errorf("unlocked = %d, want 5", len(res.Unlocked))
	}
	if got := len(titles) - 2; got != len(res.Unlocked) {
		t.Errorf("achievement notifications = %d, want %d", got, len(res.Unlocked))
	}
}

func TestCompleteChallengeNoLevelUp(t *testing.T) {
	env := setupEngine(t)
	e := env.enroll(t, 30, 0.5)

	res, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.LeveledUp {
		t.Error("did not expect level up")
	}
	for _, title := range env.notes.titles() {
		if title == "Level Up!" {
			t.Error("unexpected level up notification")
		}
	}
}

func TestCompleteChallengeCountsCompletions(t *testing.T) {
	env := setupEngine(t)
	e := env.enroll(t, 30, 0.5)

	res, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(res.Unlocked) != 1 || res.Unlocked[0].Name != "Getting Started" {
		t.Errorf("unlocked = %+v, want only Getting Started", res.Unlocked)
	}
}

func TestCompleteChallengeTwice(t *testing.T) {
	env := setupEngine(t)
	e := env.enroll(t, 100, 1)

	if _, err := env.engine.CompleteChallenge(env.userID, e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	before := len(env.notes.titles())

	_, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	notes := env.notes.notes[before:]
	if len(notes) != 1 || notes[0].Kind != KindDestructive {
		t.Errorf("notifications = %+v, want one destructive", notes)
	}

	p, _ := env.profiles.Get(env.userID)
	if p.TotalPoints != 100 {
		t.Errorf("total_points = %d, want 100", p.TotalPoints)
	}
}

func TestCompleteChallengeOtherUser(t *testing.T) {
	env := setupEngine(t)
	e := env.enroll(t, 100, 1)

	_, err := env.engine.CompleteChallenge(env.userID+1, e.ID)
	if !errors.Is(err, store.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestAchievementsUnlockExactlyOnce(t *testing.T) {
	env := setupEngine(t)

	for i := 0; i < 4; i++ {
		e := env.enroll(t, 120, 6)
		if _, err := env.engine.CompleteChallenge(env.userID, e.ID); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}

	unlocked, err := env.achievements.ListUnlocked(env.userID)
	if err != nil {
		t.Fatalf("list unlocked: %v", err)
	}
	seen := make(map[int64]int)
	for _, ua := range unlocked {
		seen[ua.AchievementID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("achievement %d unlocked %d times", id, n)
		}
	}

	// 480 points, 24 kg, 2 trees, 4 completions.
	for _, name := range []string{"First Steps", "Seedling", "Carbon Cutter", "Getting Started"} {
		found := false
		for _, ua := range unlocked {
			if ua.Achievement.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q to be unlocked", name)
		}
	}
}

func TestPlantTreeInsufficientPoints(t *testing.T) {
	env := setupEngine(t)
	env.setPoints(t, 50)
	before, _ := env.profiles.Get(env.userID)

	_, err := env.engine.PlantTree(env.userID)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}

	after, _ := env.profiles.Get(env.userID)
	if after.TreesPlanted != 0 || after.TotalPoints != 50 {
		t.Errorf("profile = %+v, want untouched", after)
	}
	if after.Version != before.Version {
		t.Errorf("version = %d, want %d", after.Version, before.Version)
	}
	titles := env.notes.titles()
	if len(titles) != 1 || titles[0] != "Not enough points" {
		t.Errorf("titles = %v, want [Not enough points]", titles)
	}
	if env.notes.notes[0].Kind != KindDestructive {
		t.Errorf("kind = %q, want destructive", env.notes.notes[0].Kind)
	}
}

func TestPlantTree(t *testing.T) {
	env := setupEngine(t)
	env.setPoints(t, 150)

	res, err := env.engine.PlantTree(env.userID)
	if err != nil {
		t.Fatalf("plant tree: %v", err)
	}
	p := res.Profile
	if p.TotalPoints != 50 {
		t.Errorf("total_points = %d, want 50", p.TotalPoints)
	}
	if p.TreesPurchased != 1 || p.TreesPlanted != 1 {
		t.Errorf("trees purchased = %d planted = %d, want 1 1", p.TreesPurchased, p.TreesPlanted)
	}
	if len(res.Unlocked) != 1 || res.Unlocked[0].Name != "Seedling" {
		t.Errorf("unlocked = %+v, want Seedling", res.Unlocked)
	}
	titles := env.notes.titles()
	if len(titles) != 2 || titles[0] != "Tree Planted!" || titles[1] != "Achievement Unlocked!" {
		t.Errorf("titles = %v", titles)
	}
}

func TestPurchasedTreesSurviveCompletion(t *testing.T) {
	env := setupEngine(t)
	env.setPoints(t, 100)

	if _, err := env.engine.PlantTree(env.userID); err != nil {
		t.Fatalf("plant tree: %v", err)
	}
	e := env.enroll(t, 50, 25)
	res, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Profile.TreesFromCO2 != 2 {
		t.Errorf("trees_from_co2 = %d, want 2", res.Profile.TreesFromCO2)
	}
	if res.Profile.TreesPlanted != 3 {
		t.Errorf("trees_planted = %d, want 3", res.Profile.TreesPlanted)
	}
}

// racingProfiles lets another writer slip in before the first conditional write.
type racingProfiles struct {
	*store.ProfileStore
	raced    bool
	attempts int
}

func (r *racingProfiles) UpdateIfVersion(userID, version int64, u model.ProfileUpdate) (*model.Profile, error) {
	r.attempts++
	if !r.raced {
		r.raced = true
		points := 40
		if _, err := r.ProfileStore.Update(userID, model.ProfileUpdate{TotalPoints: &points}); err != nil {
			return nil, err
		}
	}
	return r.ProfileStore.UpdateIfVersion(userID, version, u)
}

func TestCompleteChallengeRetriesOnVersionConflict(t *testing.T) {
	env := setupEngine(t)
	racing := &racingProfiles{ProfileStore: env.profiles}
	env.engine.profiles = racing
	e := env.enroll(t, 100, 1)

	res, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if racing.attempts != 2 {
		t.Errorf("attempts = %d, want 2", racing.attempts)
	}
	if res.Profile.TotalPoints != 140 {
		t.Errorf("total_points = %d, want 140 (concurrent write kept)", res.Profile.TotalPoints)
	}
}

type conflictingProfiles struct {
	*store.ProfileStore
	attempts int
}

func (c *conflictingProfiles) UpdateIfVersion(int64, int64, model.ProfileUpdate) (*model.Profile, error) {
	c.attempts++
	return nil, store.ErrVersionConflict
}

func TestCompleteChallengeGivesUpAfterMaxAttempts(t *testing.T) {
	env := setupEngine(t)
	conflicting := &conflictingProfiles{ProfileStore: env.profiles}
	env.engine.profiles = conflicting
	e := env.enroll(t, 100, 1)

	_, err := env.engine.CompleteChallenge(env.userID, e.ID)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	if conflicting.attempts != MaxWriteAttempts {
		t.Errorf("attempts = %d, want %d", conflicting.attempts, MaxWriteAttempts)
	}
	titles := env.notes.titles()
	if len(titles) != 1 || titles[0] != "Error" {
		t.Errorf("titles = %v, want [Error]", titles)
	}
}
