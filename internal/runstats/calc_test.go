package runstats

import (
	"math"
	"testing"
	"time"

	"lakbay-kasaysayan/internal/shared/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manilaRoute = []geo.Fix{
	{Latitude: 14.5995, Longitude: 120.9842},
	{Latitude: 14.6000, Longitude: 120.9850},
	{Latitude: 14.6005, Longitude: 120.9855},
}

func TestDistanceBetweenIdenticalFixes(t *testing.T) {
	for _, f := range manilaRoute {
		f := f
		assert.Zero(t, DistanceBetween(&f, &f))
	}
}

func TestDistanceBetweenMissingFix(t *testing.T) {
	f := manilaRoute[0]
	assert.Zero(t, DistanceBetween(nil, &f))
	assert.Zero(t, DistanceBetween(&f, nil))
	assert.Zero(t, DistanceBetween(nil, nil))
}

func TestTotalDistanceIsSumOfSegments(t *testing.T) {
	want := DistanceBetween(&manilaRoute[0], &manilaRoute[1]) + DistanceBetween(&manilaRoute[1], &manilaRoute[2])
	assert.Equal(t, want, TotalDistance(manilaRoute))
	assert.InDelta(t, 179.84423223060975, TotalDistance(manilaRoute), 1e-6)
}

func TestTotalDistanceShortRoutes(t *testing.T) {
	assert.Zero(t, TotalDistance(nil))
	assert.Zero(t, TotalDistance(manilaRoute[:1]))
}

func TestPaceZeroGuards(t *testing.T) {
	for _, v := range []float64{1, 60, 1800, 1e6} {
		assert.Zero(t, Pace(0, v))
		assert.Zero(t, Pace(v, 0))
	}
	assert.Zero(t, Pace(math.NaN(), 10))
	assert.Zero(t, Pace(-5, 10))
}

func TestPaceMinutesPerKm(t *testing.T) {
	// 5 km in 25 minutes
	assert.InDelta(t, 5.0, Pace(5000, 1500), 1e-9)
}

func TestCaloriesZeroGuards(t *testing.T) {
	assert.Zero(t, Calories(0, 600, 70))
	assert.Zero(t, Calories(1000, 0, 70))
}

func TestCaloriesMETStep(t *testing.T) {
	duration := (30 * time.Minute).Seconds()

	slow := Calories(2.0*duration, duration, 70) // 2.0 m/s
	fast := Calories(3.0*duration, duration, 70) // 3.0 m/s
	require.Equal(t, math.Round(6.0*70*duration/3600), slow)
	require.Equal(t, math.Round(9.8*70*duration/3600), fast)
	assert.Greater(t, fast, slow)

	// exactly at the threshold stays on the lower MET
	assert.Equal(t, slow, Calories(2.5*duration, duration, 70))
}

func TestCaloriesNonNegative(t *testing.T) {
	for _, d := range []float64{0, 1, 100, 5000, 42195} {
		for _, s := range []float64{0, 1, 60, 3600} {
			assert.GreaterOrEqual(t, Calories(d, s, DefaultBodyMassKg), 0.0)
		}
	}
}

func TestCaloriesDefaultsMass(t *testing.T) {
	assert.Equal(t, Calories(3000, 1800, DefaultBodyMassKg), Calories(3000, 1800, 0))
}

func TestCaloriesIdempotent(t *testing.T) {
	assert.Equal(t, Calories(5000, 1500, 64), Calories(5000, 1500, 64))
}
