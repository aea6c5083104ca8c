package runsession

import (
	"time"

	"lakbay-kasaysayan/internal/shared/geo"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Record is the state of one run. Stop hands a frozen copy to the sync client.
type Record struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Status         Status     `json:"status"`
	Route          []geo.Fix  `json:"route"`
	DistanceMeters float64    `json:"distance"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	PaceMinPerKm   float64    `json:"pace"`
	Calories       float64    `json:"calories"`
}

// Stats are the live numbers shown while running.
type Stats struct {
	DistanceMeters float64 `json:"distance"`
	ElapsedSeconds int64   `json:"elapsedSeconds"`
	PaceMinPerKm   float64 `json:"pace"`
	Calories       float64 `json:"calories"`
}

// Milestone is emitted once per integer kilometre crossed.
type Milestone struct {
	SessionID      string
	Kilometre      int
	DistanceMeters float64
}

func (r Record) clone() Record {
	out := r
	out.Route = make([]geo.Fix, len(r.Route))
	copy(out.Route, r.Route)
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	return out
}
