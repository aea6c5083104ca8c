package runstats

import (
	"fmt"
	"math"
)

// FormatDistance renders metres as "850m" below a kilometre and "1.25km" above.
func FormatDistance(distanceM float64) string {
	if !usable(distanceM) {
		return "0m"
	}
	if distanceM < 1000 {
		return fmt.Sprintf("%dm", int64(math.Round(distanceM)))
	}
	return fmt.Sprintf("%.2fkm", distanceM/1000)
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "00:00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatPace renders minutes per kilometre as M:SS.
func FormatPace(pace float64) string {
	if !usable(pace) {
		return "0:00"
	}
	minutes := math.Floor(pace)
	seconds := math.Round((pace - minutes) * 60)
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", int64(minutes), int64(seconds))
}
