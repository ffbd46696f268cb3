package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/ecochallenge/internal/model"
)

type AchievementStore struct {
	db *sql.DB
}

func NewAchievementStore(db *sql.DB) *AchievementStore {
	return &AchievementStore{db: db}
}

func scanAchievement(scanner interface{ Scan(...any) error }) (*model.Achievement, error) {
	var a model.Achievement
	err := scanner.Scan(
		&a.ID, &a.Name, &a.Description, &a.Icon, &a.RequirementType,
		&a.RequirementValue, &a.PointsReward, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const achievementCols = `id, name, description, icon, requirement_type, requirement_value, points_reward, created_at`

// ListAll returns the achievement catalog, biggest reward first.
func (s *AchievementStore) ListAll() ([]model.Achievement, error) {
	rows, err := s.db.Query(
		`SELECT ` + achievementCols + ` FROM achievements ORDER BY points_reward DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []model.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		achievements = append(achievements, *a)
	}
	return achievements, rows.Err()
}

func (s *AchievementStore) GetByID(id int64) (*model.Achievement, error) {
	row := s.db.QueryRow(`SELECT `+achievementCols+` FROM achievements WHERE id = ?`, id)
	a, err := scanAchievement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	return a, nil
}

func validRequirementType(kind string) bool {
	switch kind {
	case model.RequirementTotalPoints, model.RequirementLevel, model.RequirementTreesPlanted,
		model.RequirementCO2Saved, model.RequirementChallengesCompleted:
		return true
	}
	return false
}

func (s *AchievementStore) Create(in model.AchievementInput) (*model.Achievement, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	case !validRequirementType(in.RequirementType):
		return nil, fmt.Errorf("%w: unknown requirement type %q", ErrInvalid, in.RequirementType)
	case in.RequirementValue < 0:
		return nil, fmt.Errorf("%w: requirement value must not be negative", ErrInvalid)
	case in.PointsReward < 0:
		return nil, fmt.Errorf("%w: points reward must not be negative", ErrInvalid)
	}

	result, err := s.db.Exec(
		`INSERT INTO achievements (name, description, icon, requirement_type, requirement_value, points_reward, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Name), in.Description, in.Icon, in.RequirementType,
		in.RequirementValue, in.PointsReward, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert achievement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

const userAchievementCols = `ua.id, ua.user_id, ua.achievement_id, ua.unlocked_at,
	a.id, a.name, a.description, a.icon, a.requirement_type, a.requirement_value, a.points_reward, a.created_at`

const userAchievementFrom = ` FROM user_achievements ua JOIN achievements a ON a.id = ua.achievement_id`

func scanUserAchievement(scanner interface{ Scan(...any) error }) (*model.UserAchievement, error) {
	var ua model.UserAchievement
	a := &ua.Achievement
	err := scanner.Scan(
		&ua.ID, &ua.UserID, &ua.AchievementID, &ua.UnlockedAt,
		&a.ID, &a.Name, &a.Description, &a.Icon, &a.RequirementType,
		&a.RequirementValue, &a.PointsReward, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ua, nil
}

// ListUnlocked returns the user's unlocks, most recent first.
func (s *AchievementStore) ListUnlocked(userID int64) ([]model.UserAchievement, error) {
	rows, err := s.db.Query(
		`SELECT `+userAchievementCols+userAchievementFrom+` WHERE ua.user_id = ? ORDER BY ua.unlocked_at DESC, ua.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocked achievements: %w", err)
	}
	defer rows.Close()

	var unlocked []model.UserAchievement
	for rows.Next() {
		ua, err := scanUserAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user achievement: %w", err)
		}
		unlocked = append(unlocked, *ua)
	}
	return unlocked, rows.Err()
}

// Unlock records that the user earned an achievement. It is idempotent: the
// boolean reports whether this call created the unlock, and a repeat returns
// the existing row with false.
func (s *AchievementStore) Unlock(userID, achievementID int64) (*model.UserAchievement, bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, achievement_id) DO NOTHING`,
		userID, achievementID, time.Now().UTC(),
	)
	if isForeignKeyViolation(err) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("unlock achievement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+userAchievementCols+userAchievementFrom+` WHERE ua.user_id = ? AND ua.achievement_id = ?`,
		userID, achievementID,
	)
	ua, err := scanUserAchievement(row)
	if err != nil {
		return nil, false, fmt.Errorf("get user achievement: %w", err)
	}
	return ua, n > 0, nil
}

// WithStatus returns the whole catalog in ListAll order, marking which
// entries the user has unlocked.
func (s *AchievementStore) WithStatus(userID int64) ([]model.AchievementStatus, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.name, a.description, a.icon, a.requirement_type, a.requirement_value, a.points_reward, a.created_at, ua.unlocked_at
		 FROM achievements a
		 LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = ?
		 ORDER BY a.points_reward DESC, a.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list achievement status: %w", err)
	}
	defer rows.Close()

	var statuses []model.AchievementStatus
	for rows.Next() {
		var st model.AchievementStatus
		var unlockedAt sql.NullTime
		a := &st.Achievement
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Description, &a.Icon, &a.RequirementType,
			&a.RequirementValue, &a.PointsReward, &a.CreatedAt, &unlockedAt,
		); err != nil {
			return nil, fmt.Errorf("scan achievement status: %w", err)
		}
		if unlockedAt.Valid {
			st.Unlocked = true
			st.UnlockedAt = &unlockedAt.Time
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}
