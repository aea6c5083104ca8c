package history

import (
	"context"
	"sort"
	"strings"

	"lakbay-kasaysayan/internal/shared/geo"
)

// Source is where the catalogue of historical events is read from.
type Source interface {
	List(ctx context.Context, f Filter) (Page, error)
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
}

// Nearby keeps the events within radiusKm of (lat, lng), nearest first.
func Nearby(events []Event, lat, lng, radiusKm float64) []Event {
	type hit struct {
		ev   Event
		dist float64
	}
	var hits []hit
	for _, ev := range events {
		d := geo.HaversineKm(lat, lng, ev.Location.Latitude, ev.Location.Longitude)
		if d <= radiusKm {
			hits = append(hits, hit{ev, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]Event, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ev)
	}
	return out
}

// FixtureSource serves a fixed in-memory catalogue.
type FixtureSource struct {
	events []Event
}

// NewFixtureSource serves events, or the built-in sample catalogue when events is empty.
func NewFixtureSource(events ...Event) *FixtureSource {
	if len(events) == 0 {
		events = SampleEvents()
	}
	return &FixtureSource{events: events}
}

func (s *FixtureSource) List(_ context.Context, f Filter) (Page, error) {
	f = f.normalized()
	search := strings.ToLower(f.Search)

	var matched []Event
	for _, ev := range s.events {
		if f.Category != "" && ev.Category != f.Category {
			continue
		}
		if f.Verified != nil && ev.Verified != *f.Verified {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ev.Title), search) &&
			!strings.Contains(strings.ToLower(ev.Description), search) {
			continue
		}
		matched = append(matched, ev)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Date > matched[j].Date })

	page := Page{
		Events:      []Event{},
		Total:       len(matched),
		TotalPages:  totalPages(len(matched), f.Limit),
		CurrentPage: f.Page,
	}
	if start := f.offset(); start < len(matched) {
		end := min(start+f.Limit, len(matched))
		page.Events = append(page.Events, matched[start:end]...)
	}
	return page, nil
}

func (s *FixtureSource) Nearby(_ context.Context, lat, lng, radiusKm float64) ([]Event, error) {
	return Nearby(s.events, lat, lng, radiusKm), nil
}

func (s *FixtureSource) Get(_ context.Context, id string) (Event, error) {
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return Event{}, ErrNotFound
}

// SampleEvents is the seed catalogue used when no database is available.
func SampleEvents() []Event {
	return []Event{
		{
			ID:          "1",
			Title:       "The First Philippine Republic",
			Description: "The establishment of the First Philippine Republic on January 23, 1899, marked the first constitutional republic in Asia.",
			Date:        "1899-01-23",
			Location:    Location{Latitude: 14.5995, Longitude: 120.9842, Name: "Malolos, Bulacan"},
			Category:    "historical_site",
			Verified:    true,
			Artifacts: []Artifact{{
				ID:          "1",
				EventID:     "1",
				Name:        "Malolos Constitution",
				Description: "The first constitution of the Philippines",
				ModelURL:    "https://example.com/models/constitution.glb",
			}},
		},
		{
			ID:          "2",
			Title:       "The Cry of Pugad Lawin",
			Description: "The beginning of the Philippine Revolution against Spanish colonial rule.",
			Date:        "1896-08-23",
			Location:    Location{Latitude: 14.6576, Longitude: 121.0310, Name: "Quezon City"},
			Category:    "historical_site",
			Verified:    true,
			Artifacts: []Artifact{{
				ID:          "2",
				EventID:     "2",
				Name:        "Katipunan Flag",
				Description: "The flag of the revolutionary society",
				ModelURL:    "https://example.com/models/flag.glb",
			}},
		},
	}
}
