package model

import "time"

// Requirement type strings as stored in the achievements table.
const (
	RequirementTotalPoints         = "total_points"
	RequirementLevel               = "level"
	RequirementTreesPlanted        = "trees_planted"
	RequirementCO2Saved            = "co2_saved"
	RequirementChallengesCompleted = "challenges_completed"
)

type Achievement struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	RequirementType  string    `json:"requirement_type"`
	RequirementValue float64   `json:"requirement_value"`
	PointsReward     int       `json:"points_reward"`
	CreatedAt        time.Time `json:"created_at"`
}

type AchievementInput struct {
	Name             string
	Description      string
	Icon             string
	RequirementType  string
	RequirementValue float64
	PointsReward     int
}

type UserAchievement struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id"`
	AchievementID int64       `json:"achievement_id"`
	UnlockedAt    time.Time   `json:"unlocked_at"`
	Achievement   Achievement `json:"achievement"`
}

type AchievementStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}
