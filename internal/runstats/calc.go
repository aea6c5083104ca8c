// Package runstats holds the pure run metrics: distance, pace and calorie estimates.
// Every function returns a neutral zero on unusable input instead of failing.
package runstats

import (
	"math"

	"lakbay-kasaysayan/internal/shared/geo"
)

// DefaultBodyMassKg is used when no body mass is known.
const DefaultBodyMassKg = 70.0

const (
	fastSpeedMps = 2.5
	fastMET      = 9.8
	easyMET      = 6.0
)

// DistanceBetween returns the haversine distance between two fixes in metres.
func DistanceBetween(a, b *geo.Fix) float64 {
	if a == nil || b == nil {
		return 0
	}
	d := geo.DistanceMeters(*a, *b)
	if math.IsNaN(d) {
		return 0
	}
	return d
}

// TotalDistance sums DistanceBetween over consecutive points of the route.
func TotalDistance(route []geo.Fix) float64 {
	total := 0.0
	for i := 1; i < len(route); i++ {
		total += DistanceBetween(&route[i-1], &route[i])
	}
	return total
}

// Pace returns minutes per kilometre.
func Pace(distanceM, durationSec float64) float64 {
	if !usable(distanceM) || !usable(durationSec) {
		return 0
	}
	return (durationSec / 60) / (distanceM / 1000)
}

// Calories estimates kcal burned using a two-step MET table.
func Calories(distanceM, durationSec, massKg float64) float64 {
	if !usable(distanceM) || !usable(durationSec) {
		return 0
	}
	if !usable(massKg) {
		massKg = DefaultBodyMassKg
	}

	met := easyMET
	if distanceM/durationSec > fastSpeedMps {
		met = fastMET
	}
	return math.Round(met * massKg * durationSec / 3600)
}

func usable(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
