package model

import "time"

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Challenge struct {
	ID            int64     `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Points        int       `json:"points"`
	EstimatedTime string    `json:"estimated_time"`
	Difficulty    string    `json:"difficulty"`
	CO2ImpactKg   float64   `json:"co2_impact_kg"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type ChallengeInput struct {
	Title         string
	Description   string
	Category      string
	Points        int
	EstimatedTime string
	Difficulty    string
	CO2ImpactKg   float64
	Active        bool
}

// Enrollment links a user to a challenge they started.
// CompletedAt is set if and only if IsCompleted is true.
type Enrollment struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	ChallengeID int64      `json:"challenge_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	IsCompleted bool       `json:"is_completed"`
	Challenge   Challenge  `json:"challenge"`
}

type DayProgress struct {
	Date       time.Time `json:"date"`
	Day        string    `json:"day"`
	Challenges int       `json:"challenges"`
	Points     int       `json:"points"`
}
