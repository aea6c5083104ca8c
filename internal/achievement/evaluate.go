// Package achievement evaluates and persists the achievements a runner earns.
package achievement

import "sort"

var catalog = []Definition{
	{ID: FirstRun, Title: "First Steps", Description: "Complete your first run", Icon: "🏃", Points: 100},
	{ID: Distance5K, Title: "5K Runner", Description: "Run a total of 5 kilometers", Icon: "🏅", Points: 200},
	{ID: Distance10K, Title: "10K Runner", Description: "Run a total of 10 kilometers", Icon: "🏆", Points: 500},
	{ID: ArtifactCollector, Title: "Artifact Collector", Description: "Collect your first historical artifact", Icon: "🏺", Points: 150},
	{ID: HistoryBuff, Title: "History Buff", Description: "Visit 5 different historical locations", Icon: "📚", Points: 300},
}

// Catalog returns every known achievement definition.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a definition by ID.
func Lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Set is a set of achievement IDs.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

type rule struct {
	trigger TriggerType
	grants  string
	applies func(Metrics) bool
}

var rules = []rule{
	{TriggerRun, Distance5K, func(m Metrics) bool { return m.Distance >= 5000 }},
	{TriggerRun, Distance10K, func(m Metrics) bool { return m.Distance >= 10000 }},
	{TriggerArtifact, ArtifactCollector, func(m Metrics) bool { return m.CollectedCount == 1 }},
	{TriggerLocation, HistoryBuff, func(m Metrics) bool { return m.Count >= 5 }},
}

// Evaluate returns the achievement IDs newly granted by trigger, sorted. Rules are
// independent; anything already in granted is never returned.
func Evaluate(trigger Trigger, granted Set) []string {
	out := []string{}
	for _, r := range rules {
		if r.trigger != trigger.Type || granted.Has(r.grants) || !r.applies(trigger.Metrics) {
			continue
		}
		out = append(out, r.grants)
	}
	sort.Strings(out)
	return out
}

// ValidTrigger reports whether t names a known trigger type.
func ValidTrigger(t TriggerType) bool {
	switch t {
	case TriggerRun, TriggerArtifact, TriggerLocation:
		return true
	}
	return false
}
