// Package progression turns challenge completions and tree purchases into
// profile stat changes and achievement unlocks.
package progression

import "math"

const (
	PointsPerLevel = 500
	CO2PerTree     = 10
	TreeCost       = 100
)

// LevelOf returns the level reached with the given points. Level 1 starts at 0.
func LevelOf(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// TreesOf returns how many trees the saved CO2 is worth.
func TreesOf(co2Kg float64) int {
	if co2Kg <= 0 || math.IsNaN(co2Kg) {
		return 0
	}
	return int(math.Floor(co2Kg / CO2PerTree))
}
