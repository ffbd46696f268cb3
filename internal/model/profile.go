package model

import "time"

// Profile holds a user's cumulative progression stats.
// TreesPlanted is always TreesFromCO2 + TreesPurchased.
type Profile struct {
	UserID         int64     `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	TotalPoints    int       `json:"total_points"`
	Level          int       `json:"level"`
	CO2SavedKg     float64   `json:"co2_saved_kg"`
	TreesFromCO2   int       `json:"trees_from_co2"`
	TreesPurchased int       `json:"trees_purchased"`
	TreesPlanted   int       `json:"trees_planted"`
	CurrentStreak  int       `json:"current_streak"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfileUpdate is a partial write; nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName    *string
	TotalPoints    *int
	Level          *int
	CO2SavedKg     *float64
	TreesFromCO2   *int
	TreesPurchased *int
	CurrentStreak  *int
}

type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        int64   `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	TotalPoints   int     `json:"total_points"`
	Level         int     `json:"level"`
	TreesPlanted  int     `json:"trees_planted"`
	CO2SavedKg    float64 `json:"co2_saved_kg"`
	CurrentStreak int     `json:"current_streak"`
}

type CommunityStats struct {
	Members             int     `json:"members"`
	TotalPoints         int     `json:"total_points"`
	TreesPlanted        int     `json:"trees_planted"`
	CO2SavedKg          float64 `json:"co2_saved_kg"`
	ChallengesCompleted int     `json:"challenges_completed"`
}
