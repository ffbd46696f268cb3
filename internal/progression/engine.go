package progression

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dukerupert/ecochallenge/internal/model"
	"github.com/dukerupert/ecochallenge/internal/store"
)

// MaxWriteAttempts bounds the compare-and-swap loop on profile writes.
const MaxWriteAttempts = 3

var ErrInsufficientPoints = errors.New("insufficient points")

type ProfileStore interface {
	Get(userID int64) (*model.Profile, error)
	UpdateIfVersion(userID, version int64, u model.ProfileUpdate) (*model.Profile, error)
}

type ChallengeStore interface {
	Complete(enrollmentID, userID int64) (*model.Enrollment, error)
	CountCompleted(userID int64) (int, error)
}

type AchievementCatalog interface {
	Achievements() ([]model.Achievement, error)
}

type AchievementStore interface {
	Unlock(userID, achievementID int64) (*model.UserAchievement, bool, error)
}

type Deps struct {
	Profiles     ProfileStore
	Challenges   ChallengeStore
	Catalog      AchievementCatalog
	Achievements AchievementStore
	Notifier     Notifier
	Logger       *slog.Logger
}

type Engine struct {
	profiles     ProfileStore
	challenges   ChallengeStore
	catalog      AchievementCatalog
	achievements AchievementStore
	notifier     Notifier
	logger       *slog.Logger
}

// Result is the outcome of a successful progression action.
type Result struct {
	Profile       *model.Profile      `json:"profile"`
	PreviousLevel int                 `json:"previous_level"`
	LeveledUp     bool                `json:"leveled_up"`
	Unlocked      []model.Achievement `json:"unlocked"`
}

func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(int64, Notification) {})
	}
	return &Engine{
		profiles:     d.Profiles,
		challenges:   d.Challenges,
		catalog:      d.Catalog,
		achievements: d.Achievements,
		notifier:     notifier,
		logger:       logger.With("component", "progression"),
	}
}

// CompleteChallenge marks the enrollment done, credits its points and CO2 to
// the user's profile and unlocks any achievements the new totals reach.
// Earlier steps are not rolled back when a later one fails.
func (e *Engine) CompleteChallenge(userID, enrollmentID int64) (*Result, error) {
	res, enrollment, err := e.completeChallenge(userID, enrollmentID)
	if err != nil {
		e.logger.Error("complete challenge failed", "user_id", userID, "enrollment_id", enrollmentID, "error", err)
		e.notifier.Notify(userID, Notification{
			Kind:        KindDestructive,
			Title:       "Error",
			Description: "Failed to complete challenge. Please try again.",
		})
		return nil, fmt.Errorf("complete challenge: %w", err)
	}

	c := enrollment.Challenge
	e.notifier.Notify(userID, Notification{
		Kind:  KindSuccess,
		Title: "Challenge Completed!",
		Description: fmt.Sprintf("You earned %d points and saved %skg CO2!",
			c.Points, strconv.FormatFloat(c.CO2ImpactKg, 'f', -1, 64)),
	})
	if res.LeveledUp {
		e.notifier.Notify(userID, Notification{
			Kind:        KindMilestone,
			Title:       "Level Up!",
			Description: fmt.Sprintf("Congratulations! You reached level %d!", res.Profile.Level),
		})
	}
	e.notifyUnlocked(userID, res.Unlocked)

	e.logger.Info("challenge completed",
		"user_id", userID,
		"challenge_id", c.ID,
		"points", res.Profile.TotalPoints,
		"level", res.Profile.Level,
		"unlocked", len(res.Unlocked),
	)
	return res, nil
}

func (e *Engine) completeChallenge(userID, enrollmentID int64) (*Result, *model.Enrollment, error) {
	enrollment, err := e.challenges.Complete(enrollmentID, userID)
	if err != nil {
		return nil, nil, err
	}
	c := enrollment.Challenge

	var previousLevel int
	profile, err := e.writeProfile(userID, func(p *model.Profile) (model.ProfileUpdate, error) {
		previousLevel = p.Level
		points := p.TotalPoints + c.Points
		co2 := p.CO2SavedKg + c.CO2ImpactKg
		level := LevelOf(points)
		trees := TreesOf(co2)
		streak := p.CurrentStreak + 1
		return model.ProfileUpdate{
			TotalPoints:   &points,
			CO2SavedKg:    &co2,
			Level:         &level,
			TreesFromCO2:  &trees,
			CurrentStreak: &streak,
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	unlocked, err := e.unlockEarned(userID, profile)
	if err != nil {
		return nil, nil, err
	}

	return &Result{
		Profile:       profile,
		PreviousLevel: previousLevel,
		LeveledUp:     profile.Level > previousLevel,
		Unlocked:      unlocked,
	}, enrollment, nil
}

// PlantTree spends TreeCost points on one purchased tree. A profile with too
// few points is left untouched and ErrInsufficientPoints is returned.
func (e *Engine) PlantTree(userID int64) (*Result, error) {
	var previousLevel int
	profile, err := e.writeProfile(userID, func(p *model.Profile) (model.ProfileUpdate, error) {
		if p.TotalPoints < TreeCost {
			return model.ProfileUpdate{}, ErrInsufficientPoints
		}
		previousLevel = p.Level
		points := p.TotalPoints - TreeCost
		level := LevelOf(points)
		purchased := p.TreesPurchased + 1
		return model.ProfileUpdate{
			TotalPoints:    &points,
			Level:          &level,
			TreesPurchased: &purchased,
		}, nil
	})
	if errors.Is(err, ErrInsufficientPoints) {
		e.notifier.Notify(userID, Notification{
			Kind:        KindDestructive,
			Title:       "Not enough points",
			Description: fmt.Sprintf("You need %d points to plant a tree. Complete more challenges!", TreeCost),
		})
		return nil, err
	}
	if err != nil {
		e.logger.Error("plant tree failed", "user_id", userID, "error", err)
		e.notifier.Notify(userID, Notification{
			Kind:        KindDestructive,
			Title:       "Error",
			Description: "Failed to plant tree. Please try again.",
		})
		return nil, fmt.Errorf("plant tree: %w", err)
	}

	e.notifier.Notify(userID, Notification{
		Kind:        KindMilestone,
		Title:       "Tree Planted!",
		Description: "Your tree has been planted in partnership with our environmental partners!",
	})

	// The tree itself is already paid for; a failed evaluation only delays unlocks.
	unlocked, err := e.unlockEarned(userID, profile)
	if err != nil {
		e.logger.Error("evaluate achievements after tree", "user_id", userID, "error", err)
	}
	e.notifyUnlocked(userID, unlocked)

	e.logger.Info("tree planted", "user_id", userID, "trees", profile.TreesPlanted, "points", profile.TotalPoints)
	return &Result{
		Profile:       profile,
		PreviousLevel: previousLevel,
		LeveledUp:     profile.Level > previousLevel,
		Unlocked:      unlocked,
	}, nil
}

// writeProfile reads the profile, applies change and writes it back guarded
// by the version it read, re-reading on conflict up to MaxWriteAttempts times.
func (e *Engine) writeProfile(userID int64, change func(*model.Profile) (model.ProfileUpdate, error)) (*model.Profile, error) {
	for attempt := 1; ; attempt++ {
		current, err := e.profiles.Get(userID)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		u, err := change(current)
		if err != nil {
			return nil, err
		}
		updated, err := e.profiles.UpdateIfVersion(userID, current.Version, u)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= MaxWriteAttempts {
			return nil, fmt.Errorf("write profile: %w", err)
		}
		e.logger.Debug("profile version conflict, retrying", "user_id", userID, "attempt", attempt)
	}
}

// unlockEarned evaluates the full catalog against the profile's totals and
// returns the achievements this call newly unlocked.
func (e *Engine) unlockEarned(userID int64, p *model.Profile) ([]model.Achievement, error) {
	completed, err := e.challenges.CountCompleted(userID)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	catalog, err := e.catalog.Achievements()
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	met, err := Evaluate(catalog, StatsOf(p, completed))
	if err != nil {
		e.logger.Warn("skipping achievements with bad requirements", "error", err)
	}

	var unlocked []model.Achievement
	for _, a := range met {
		_, created, err := e.achievements.Unlock(userID, a.ID)
		if err != nil {
			return unlocked, fmt.Errorf("unlock achievement %d: %w", a.ID, err)
		}
		if created {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked, nil
}

func (e *Engine) notifyUnlocked(userID int64, unlocked []model.Achievement) {
	for _, a := range unlocked {
		e.notifier.Notify(userID, Notification{
			Kind:        KindMilestone,
			Title:       "Achievement Unlocked!",
			Description: a.Name + ": " + a.Description,
		})
	}
}
