// Package challenge derives the per-user views of the catalog: today's
// enrollments, challenges still available to start, filtered browsing and
// weekly progress.
package challenge

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/dukerupert/ecochallenge/internal/model"
)

// DailyCap limits how many of today's enrollments are shown.
const DailyCap = 3

// AnyValue matches every category or difficulty in a Query.
const AnyValue = "all"

// Today returns the enrollments started on now's calendar day, in input
// order, capped at DailyCap.
func Today(enrollments []model.Enrollment, now time.Time) []model.Enrollment {
	y, m, d := now.Date()
	today := make([]model.Enrollment, 0, DailyCap)
	for _, e := range enrollments {
		ey, em, ed := e.StartedAt.In(now.Location()).Date()
		if ey != y || em != m || ed != d {
			continue
		}
		today = append(today, e)
		if len(today) == DailyCap {
			break
		}
	}
	return today
}

// Available returns the catalog entries the user has not enrolled in,
// keeping catalog order.
func Available(catalog []model.Challenge, enrollments []model.Enrollment) []model.Challenge {
	enrolled := make(map[int64]struct{}, len(enrollments))
	for _, e := range enrollments {
		enrolled[e.ChallengeID] = struct{}{}
	}
	available := make([]model.Challenge, 0, len(catalog))
	for _, c := range catalog {
		if _, ok := enrolled[c.ID]; !ok {
			available = append(available, c)
		}
	}
	return available
}

type Query struct {
	Category   string
	Difficulty string
	Text       string
}

func matches(want, got string) bool {
	return want == "" || strings.EqualFold(want, AnyValue) || strings.EqualFold(want, got)
}

// searchItems implements fuzzy.Source over challenge titles and descriptions.
type searchItems []model.Challenge

func (s searchItems) Len() int { return len(s) }

func (s searchItems) String(i int) string {
	return strings.ToLower(s[i].Title + " " + s[i].Description)
}

// Filter narrows the catalog by category and difficulty, then by fuzzy text
// match. Without text the catalog order is kept; with text results are
// ordered by match score.
func Filter(catalog []model.Challenge, q Query) []model.Challenge {
	filtered := make(searchItems, 0, len(catalog))
	for _, c := range catalog {
		if matches(q.Category, c.Category) && matches(q.Difficulty, c.Difficulty) {
			filtered = append(filtered, c)
		}
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return filtered
	}

	found := fuzzy.FindFrom(text, filtered)
	results := make([]model.Challenge, len(found))
	for i, match := range found {
		results[i] = filtered[match.Index]
	}
	return results
}

// WeeklyProgress returns seven day buckets ending on now's calendar day,
// filling days without activity with zeros.
func WeeklyProgress(activity []model.DayProgress, now time.Time) []model.DayProgress {
	loc := now.Location()
	start := WeekStart(now)

	week := make([]model.DayProgress, 7)
	for i := range week {
		date := start.AddDate(0, 0, i)
		week[i] = model.DayProgress{Date: date, Day: date.Weekday().String()[:3]}
	}
	for _, a := range activity {
		ay, am, ad := a.Date.In(loc).Date()
		for i := range week {
			wy, wm, wd := week[i].Date.Date()
			if ay == wy && am == wm && ad == wd {
				week[i].Challenges += a.Challenges
				week[i].Points += a.Points
				break
			}
		}
	}
	return week
}

// WeekStart returns midnight six days before now, the first instant covered
// by WeeklyProgress.
func WeekStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)
}
