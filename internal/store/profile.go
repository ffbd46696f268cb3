package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/ecochallenge/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(
		&p.UserID, &p.DisplayName, &p.TotalPoints, &p.Level, &p.CO2SavedKg,
		&p.TreesFromCO2, &p.TreesPurchased, &p.CurrentStreak, &p.Version,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TreesPlanted = p.TreesFromCO2 + p.TreesPurchased
	return &p, nil
}

const profileCols = `user_id, display_name, total_points, level, co2_saved_kg, trees_from_co2, trees_purchased, current_streak, version, created_at, updated_at`

// Create provisions an empty profile for a newly registered user.
func (s *ProfileStore) Create(userID int64, displayName string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (user_id, display_name) VALUES (?, ?)`,
		userID, displayName,
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.Get(userID)
}

// Get returns the profile for userID or ErrNotFound.
func (s *ProfileStore) Get(userID int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update merges the non-nil fields of u onto the stored profile without a
// version check. Last write wins.
func (s *ProfileStore) Update(userID int64, u model.ProfileUpdate) (*model.Profile, error) {
	return s.update(userID, nil, u)
}

// UpdateIfVersion merges u only if the stored version still equals version.
// A moved-on version returns ErrVersionConflict and writes nothing.
func (s *ProfileStore) UpdateIfVersion(userID, version int64, u model.ProfileUpdate) (*model.Profile, error) {
	return s.update(userID, &version, u)
}

func (s *ProfileStore) update(userID int64, version *int64, u model.ProfileUpdate) (*model.Profile, error) {
	sets, args := profileAssignments(u)
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, time.Now().UTC())

	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`
	args = append(args, userID)
	if version != nil {
		query += ` AND version = ?`
		args = append(args, *version)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(userID); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return s.Get(userID)
}

func profileAssignments(u model.ProfileUpdate) ([]string, []any) {
	var sets []string
	var args []any
	if u.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *u.DisplayName)
	}
	if u.TotalPoints != nil {
		sets = append(sets, "total_points = ?")
		args = append(args, *u.TotalPoints)
	}
	if u.Level != nil {
		sets = append(sets, "level = ?")
		args = append(args, *u.Level)
	}
	if u.CO2SavedKg != nil {
		sets = append(sets, "co2_saved_kg = ?")
		args = append(args, *u.CO2SavedKg)
	}
	if u.TreesFromCO2 != nil {
		sets = append(sets, "trees_from_co2 = ?")
		args = append(args, *u.TreesFromCO2)
	}
	if u.TreesPurchased != nil {
		sets = append(sets, "trees_purchased = ?")
		args = append(args, *u.TreesPurchased)
	}
	if u.CurrentStreak != nil {
		sets = append(sets, "current_streak = ?")
		args = append(args, *u.CurrentStreak)
	}
	return sets, args
}

// Leaderboard returns the top profiles by points, then trees, then user id.
func (s *ProfileStore) Leaderboard(limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT user_id, display_name, total_points, level, trees_from_co2 + trees_purchased, co2_saved_kg, current_streak
		FROM profiles
		ORDER BY total_points DESC, trees_from_co2 + trees_purchased DESC, user_id ASC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalPoints, &e.Level, &e.TreesPlanted, &e.CO2SavedKg, &e.CurrentStreak); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CommunityStats sums progression across every profile.
func (s *ProfileStore) CommunityStats() (*model.CommunityStats, error) {
	var cs model.CommunityStats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(total_points), 0), COALESCE(SUM(trees_from_co2 + trees_purchased), 0), COALESCE(SUM(co2_saved_kg), 0)
		FROM profiles`,
	).Scan(&cs.Members, &cs.TotalPoints, &cs.TreesPlanted, &cs.CO2SavedKg)
	if err != nil {
		return nil, fmt.Errorf("sum profiles: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM user_challenges WHERE is_completed = 1`).Scan(&cs.ChallengesCompleted)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	return &cs, nil
}
