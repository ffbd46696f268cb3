package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/dukerupert/ecochallenge/internal/model"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	err := scanner.Scan(
		&c.ID, &c.Slug, &c.Title, &c.Description, &c.Category, &c.Points,
		&c.EstimatedTime, &c.Difficulty, &c.CO2ImpactKg, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const challengeCols = `id, slug, title, description, category, points, estimated_time, difficulty, co2_impact_kg, active, created_at`

// ListActive returns the active catalog, newest first.
func (s *ChallengeStore) ListActive() ([]model.Challenge, error) {
	rows, err := s.db.Query(
		`SELECT ` + challengeCols + ` FROM challenges WHERE active = 1 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *ChallengeStore) GetByID(id int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func validateChallenge(in model.ChallengeInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalid)
	case in.Points <= 0:
		return fmt.Errorf("%w: points must be positive", ErrInvalid)
	case in.CO2ImpactKg < 0:
		return fmt.Errorf("%w: co2 impact must not be negative", ErrInvalid)
	}
	switch in.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		return nil
	default:
		return fmt.Errorf("%w: difficulty must be easy, medium or hard", ErrInvalid)
	}
}

// Create adds a challenge to the catalog. The slug is derived from the title
// and suffixed with a counter when taken.
func (s *ChallengeStore) Create(in model.ChallengeInput) (*model.Challenge, error) {
	if err := validateChallenge(in); err != nil {
		return nil, err
	}

	base := slug.Make(in.Title)
	if base == "" {
		base = "challenge"
	}
	candidate := base
	for n := 2; ; n++ {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM challenges WHERE slug = ?`, candidate).Scan(&count); err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if count == 0 {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}

	result, err := s.db.Exec(
		`INSERT INTO challenges (slug, title, description, category, points, estimated_time, difficulty, co2_impact_kg, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		candidate, strings.TrimSpace(in.Title), in.Description, strings.ToLower(strings.TrimSpace(in.Category)),
		in.Points, in.EstimatedTime, in.Difficulty, in.CO2ImpactKg, in.Active, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// SetActive shows or hides a challenge in the catalog. Existing enrollments
// are kept either way.
func (s *ChallengeStore) SetActive(id int64, active bool) (*model.Challenge, error) {
	result, err := s.db.Exec(`UPDATE challenges SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return nil, fmt.Errorf("set challenge active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) Categories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM challenges WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(categories)
	return categories, nil
}

const enrollmentCols = `uc.id, uc.user_id, uc.challenge_id, uc.started_at, uc.completed_at, uc.is_completed,
	c.id, c.slug, c.title, c.description, c.category, c.points, c.estimated_time, c.difficulty, c.co2_impact_kg, c.active, c.created_at`

const enrollmentFrom = ` FROM user_challenges uc JOIN challenges c ON c.id = uc.challenge_id`

func scanEnrollment(scanner interface{ Scan(...any) error }) (*model.Enrollment, error) {
	var e model.Enrollment
	var completedAt sql.NullTime
	c := &e.Challenge
	err := scanner.Scan(
		&e.ID, &e.UserID, &e.ChallengeID, &e.StartedAt, &completedAt, &e.IsCompleted,
		&c.ID, &c.Slug, &c.Title, &c.Description, &c.Category, &c.Points,
		&c.EstimatedTime, &c.Difficulty, &c.CO2ImpactKg, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

// ListEnrollments returns the user's enrollments, most recently started first.
func (s *ChallengeStore) ListEnrollments(userID int64) ([]model.Enrollment, error) {
	rows, err := s.db.Query(
		`SELECT `+enrollmentCols+enrollmentFrom+` WHERE uc.user_id = ? ORDER BY uc.started_at DESC, uc.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func (s *ChallengeStore) GetEnrollment(id int64) (*model.Enrollment, error) {
	row := s.db.QueryRow(`SELECT `+enrollmentCols+enrollmentFrom+` WHERE uc.id = ?`, id)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// FindEnrollment returns the user's enrollment in a challenge, or nil.
func (s *ChallengeStore) FindEnrollment(userID, challengeID int64) (*model.Enrollment, error) {
	row := s.db.QueryRow(
		`SELECT `+enrollmentCols+enrollmentFrom+` WHERE uc.user_id = ? AND uc.challenge_id = ?`,
		userID, challengeID,
	)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return e, nil
}

// Start enrolls the user in an active challenge. A second start of the same
// challenge returns ErrConflict, even if the challenge was deactivated since.
func (s *ChallengeStore) Start(userID, challengeID int64) (*model.Enrollment, error) {
	existing, err := s.FindEnrollment(userID, challengeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflict
	}

	c, err := s.GetByID(challengeID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.Active {
		return nil, ErrNotFound
	}

	result, err := s.db.Exec(
		`INSERT INTO user_challenges (user_id, challenge_id, started_at) VALUES (?, ?, ?)`,
		userID, challengeID, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if isForeignKeyViolation(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetEnrollment(id)
}

// Complete marks the user's enrollment done. Completing twice returns
// ErrConflict so points are never awarded twice.
func (s *ChallengeStore) Complete(enrollmentID, userID int64) (*model.Enrollment, error) {
	e, err := s.GetEnrollment(enrollmentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	if e.UserID != userID {
		return nil, ErrForbidden
	}
	if e.IsCompleted {
		return nil, ErrConflict
	}

	result, err := s.db.Exec(
		`UPDATE user_challenges SET is_completed = 1, completed_at = ? WHERE id = ? AND is_completed = 0`,
		time.Now().UTC(), enrollmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete enrollment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrConflict
	}
	return s.GetEnrollment(enrollmentID)
}

func (s *ChallengeStore) CountCompleted(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_challenges WHERE user_id = ? AND is_completed = 1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}
	return n, nil
}

// DailyActivity groups the user's completions since the given instant by
// calendar day in since's location, oldest day first. Days without
// completions are omitted.
func (s *ChallengeStore) DailyActivity(userID int64, since time.Time) ([]model.DayProgress, error) {
	rows, err := s.db.Query(
		`SELECT uc.completed_at, c.points`+enrollmentFrom+`
		 WHERE uc.user_id = ? AND uc.is_completed = 1 AND uc.completed_at >= ?
		 ORDER BY uc.completed_at ASC`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}
	defer rows.Close()

	loc := since.Location()
	var days []model.DayProgress
	for rows.Next() {
		var completedAt time.Time
		var points int
		if err := rows.Scan(&completedAt, &points); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		local := completedAt.In(loc)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Challenges++
			days[n-1].Points += points
			continue
		}
		days = append(days, model.DayProgress{
			Date:       date,
			Day:        date.Weekday().String()[:3],
			Challenges: 1,
			Points:     points,
		})
	}
	return days, rows.Err()
}
