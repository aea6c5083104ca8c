package history

import (
	"math/rand/v2"
	"sync"
)

// RandomSource is the randomness behind Picker. Tests pass a deterministic one.
type RandomSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Picker selects a loaded event uniformly at random, e.g. to unlock on a milestone.
type Picker struct {
	rnd RandomSource

	mu     sync.RWMutex
	events []Event
}

// NewPicker uses rnd, or the process-wide generator when rnd is nil.
func NewPicker(rnd RandomSource) *Picker {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Picker{rnd: rnd}
}

// Load replaces the candidate events.
func (p *Picker) Load(events []Event) {
	cp := make([]Event, len(events))
	copy(cp, events)
	p.mu.Lock()
	p.events = cp
	p.mu.Unlock()
}

func (p *Picker) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}

// Pick returns false when nothing is loaded.
func (p *Picker) Pick() (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.events) == 0 {
		return Event{}, false
	}
	return p.events[p.rnd.IntN(len(p.events))], true
}
