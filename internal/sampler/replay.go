package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lakbay-kasaysayan/internal/shared/geo"

	"gopkg.in/yaml.v3"
)

// ReplayProvider plays back a recorded route one fix per call. Once the route is
// exhausted it reports ErrSignalLost, like a device that lost GPS.
type ReplayProvider struct {
	mu     sync.Mutex
	fixes  []geo.Fix
	next   int
	denied bool
}

// NewReplayProvider replays fixes in order.
func NewReplayProvider(fixes []geo.Fix) *ReplayProvider {
	cp := make([]geo.Fix, len(fixes))
	copy(cp, fixes)
	return &ReplayProvider{fixes: cp}
}

// Deny makes subsequent permission requests fail.
func (p *ReplayProvider) Deny() {
	p.mu.Lock()
	p.denied = true
	p.mu.Unlock()
}

func (p *ReplayProvider) RequestPermission(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return ErrPermissionDenied
	}
	return nil
}

func (p *ReplayProvider) CurrentFix(context.Context) (geo.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.fixes) {
		return geo.Fix{}, ErrSignalLost
	}
	fix := p.fixes[p.next]
	p.next++
	return fix, nil
}

// Now is the timestamp of the most recently played fix, or of the first fix before
// playback starts. Passing it as a session clock keeps the recorded timing.
func (p *ReplayProvider) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case len(p.fixes) == 0:
		return time.Time{}
	case p.next == 0:
		return p.fixes[0].Timestamp
	default:
		return p.fixes[p.next-1].Timestamp
	}
}

// Remaining reports how many fixes have not been played yet.
func (p *ReplayProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fixes) - p.next
}

type routeFile struct {
	Fixes []geo.Fix `json:"fixes" yaml:"fixes"`
}

// LoadRoute reads a recorded route from a .yaml/.yml or .json file.
func LoadRoute(path string) ([]geo.Fix, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route: %w", err)
	}

	var rf routeFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &rf)
	default:
		err = yaml.Unmarshal(raw, &rf)
	}
	if err != nil {
		return nil, fmt.Errorf("parse route %s: %w", path, err)
	}
	if len(rf.Fixes) == 0 {
		return nil, fmt.Errorf("route %s has no fixes", path)
	}
	return rf.Fixes, nil
}
