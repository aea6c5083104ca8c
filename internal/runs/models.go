package runs

import (
	"errors"
	"time"

	"lakbay-kasaysayan/internal/shared/geo"
)

var ErrNotFound = errors.New("run not found")

// Run is a finished run as stored by the backend. Field names match the device record.
type Run struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Route          []geo.Fix  `json:"route"`
	DistanceMeters float64    `json:"distance"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	PaceMinPerKm   float64    `json:"pace"`
	Calories       *float64   `json:"calories,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Update is a partial change. Nil fields are left alone.
type Update struct {
	EndTime        *time.Time `json:"endTime"`
	Route          []geo.Fix  `json:"route"`
	DistanceMeters *float64   `json:"distance"`
	ElapsedSeconds *int64     `json:"elapsedSeconds"`
	PaceMinPerKm   *float64   `json:"pace"`
	Calories       *float64   `json:"calories"`
}

// LiveUpdate is what watchers of a runner's feed receive.
type LiveUpdate struct {
	Event          string  `json:"event"`
	RunID          string  `json:"runId"`
	DistanceMeters float64 `json:"distance"`
	ElapsedSeconds int64   `json:"elapsedSeconds"`
	PaceMinPerKm   float64 `json:"pace"`
}
