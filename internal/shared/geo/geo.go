package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Fix is a single GPS sample.
type Fix struct {
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Accuracy  *float64  `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
}

// Valid reports whether the fix carries usable coordinates and a timestamp.
func (f Fix) Valid() bool {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) {
		return false
	}
	if math.IsInf(f.Latitude, 0) || math.IsInf(f.Longitude, 0) {
		return false
	}
	if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
		return false
	}
	if f.Accuracy != nil && (math.IsNaN(*f.Accuracy) || *f.Accuracy < 0) {
		return false
	}
	return !f.Timestamp.IsZero()
}

// HaversineKm returns the great-circle distance between two coordinates in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceMeters is HaversineKm between two fixes, in metres.
func DistanceMeters(a, b Fix) float64 {
	return HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude) * 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
