package progression

import (
	"errors"
	"fmt"

	"github.com/dukerupert/ecochallenge/internal/model"
)

var ErrUnknownRequirement = errors.New("unknown requirement type")

// Stats are the totals achievements are checked against.
type Stats struct {
	TotalPoints         int
	Level               int
	TreesPlanted        int
	CO2SavedKg          float64
	ChallengesCompleted int
}

// StatsOf builds Stats from a stored profile and the user's completion count.
func StatsOf(p *model.Profile, completed int) Stats {
	return Stats{
		TotalPoints:         p.TotalPoints,
		Level:               p.Level,
		TreesPlanted:        p.TreesPlanted,
		CO2SavedKg:          p.CO2SavedKg,
		ChallengesCompleted: completed,
	}
}

// Requirement is a threshold an achievement checks. The set of
// implementations is closed to this package.
type Requirement interface {
	Kind() string
	Threshold() float64
	Comparand(Stats) float64
	requirement()
}

// Met reports whether stats reach the requirement's threshold.
func Met(r Requirement, s Stats) bool {
	return r.Comparand(s) >= r.Threshold()
}

type TotalPoints struct{ Value float64 }
type Level struct{ Value float64 }
type TreesPlanted struct{ Value float64 }
type CO2Saved struct{ Value float64 }
type ChallengesCompleted struct{ Value float64 }

func (TotalPoints) Kind() string         { return model.RequirementTotalPoints }
func (Level) Kind() string               { return model.RequirementLevel }
func (TreesPlanted) Kind() string        { return model.RequirementTreesPlanted }
func (CO2Saved) Kind() string            { return model.RequirementCO2Saved }
func (ChallengesCompleted) Kind() string { return model.RequirementChallengesCompleted }

func (r TotalPoints) Threshold() float64         { return r.Value }
func (r Level) Threshold() float64               { return r.Value }
func (r TreesPlanted) Threshold() float64        { return r.Value }
func (r CO2Saved) Threshold() float64            { return r.Value }
func (r ChallengesCompleted) Threshold() float64 { return r.Value }

func (TotalPoints) Comparand(s Stats) float64         { return float64(s.TotalPoints) }
func (Level) Comparand(s Stats) float64               { return float64(s.Level) }
func (TreesPlanted) Comparand(s Stats) float64        { return float64(s.TreesPlanted) }
func (CO2Saved) Comparand(s Stats) float64            { return s.CO2SavedKg }
func (ChallengesCompleted) Comparand(s Stats) float64 { return float64(s.ChallengesCompleted) }

func (TotalPoints) requirement()         {}
func (Level) requirement()               {}
func (TreesPlanted) requirement()        {}
func (CO2Saved) requirement()            {}
func (ChallengesCompleted) requirement() {}

// ParseRequirement maps a stored requirement_type and value to its Requirement.
func ParseRequirement(kind string, value float64) (Requirement, error) {
	switch kind {
	case model.RequirementTotalPoints:
		return TotalPoints{Value: value}, nil
	case model.RequirementLevel:
		return Level{Value: value}, nil
	case model.RequirementTreesPlanted:
		return TreesPlanted{Value: value}, nil
	case model.RequirementCO2Saved:
		return CO2Saved{Value: value}, nil
	case model.RequirementChallengesCompleted:
		return ChallengesCompleted{Value: value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequirement, kind)
	}
}

// Evaluate returns every achievement whose requirement is met by stats, in
// input order. Achievements with an unknown requirement type are skipped and
// reported in the returned error; the met list is still valid.
func Evaluate(achievements []model.Achievement, stats Stats) ([]model.Achievement, error) {
	var met []model.Achievement
	var errs []error
	for _, a := range achievements {
		r, err := ParseRequirement(a.RequirementType, a.RequirementValue)
		if err != nil {
			errs = append(errs, fmt.Errorf("achievement %d: %w", a.ID, err))
			continue
		}
		if Met(r, stats) {
			met = append(met, a)
		}
	}
	return met, errors.Join(errs...)
}
