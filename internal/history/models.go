package history

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("historical event not found")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

type Artifact struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ModelURL    string `json:"modelUrl"`
	// Unlocked is per user and only ever set on the device.
	Unlocked bool `json:"unlocked,omitempty"`
}

type Event struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Date              string     `json:"date"`
	Location          Location   `json:"location"`
	Artifacts         []Artifact `json:"artifacts"`
	Category          string     `json:"category,omitempty"`
	Verified          bool       `json:"verified"`
	VerificationNotes string     `json:"verificationNotes,omitempty"`
	CreatedBy         string     `json:"createdBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt,omitempty"`
}

var categories = []string{"battle", "monument", "museum", "historical_site", "cultural_event", "other"}

func ValidCategory(c string) bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

// Filter selects a page of events. Zero values mean "no filter".
type Filter struct {
	Page     int
	Limit    int
	Category string
	Verified *bool
	Search   string
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.Limit
}

type Page struct {
	Events      []Event `json:"events"`
	TotalPages  int     `json:"totalPages"`
	CurrentPage int     `json:"currentPage"`
	Total       int     `json:"total"`
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
