package runsession

import (
	"errors"
	"sync"
	"testing"
	"time"

	"lakbay-kasaysayan/internal/runstats"
	"lakbay-kasaysayan/internal/shared/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var t0 = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func fixAt(lat, lng float64, offset time.Duration) geo.Fix {
	return geo.Fix{Latitude: lat, Longitude: lng, Timestamp: t0.Add(offset)}
}

func newTestSession(clock *fakeClock, opts ...Option) *Session {
	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { return "01HXRUN" }),
	}, opts...)
	return New("user-1", opts...)
}

func TestManilaRun(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := newTestSession(clock)

	start := fixAt(14.5995, 120.9842, 0)
	require.NoError(t, s.Start(&start))
	assert.Equal(t, StatusRunning, s.Status())

	clock.Advance(60 * time.Second)
	s.OnFix(fixAt(14.6000, 120.9850, 60*time.Second))
	clock.Advance(60 * time.Second)
	s.OnFix(fixAt(14.6005, 120.9855, 120*time.Second))
	clock.Advance(60 * time.Second)

	rec, err := s.Stop()
	require.NoError(t, err)

	assert.Equal(t, "01HXRUN", rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, StatusStopped, rec.Status)
	assert.Len(t, rec.Route, 3)
	assert.InDelta(t, 179.84423223060975, rec.DistanceMeters, 1e-6)
	assert.Equal(t, int64(180), rec.ElapsedSeconds)
	assert.InDelta(t, runstats.Pace(rec.DistanceMeters, 180), rec.PaceMinPerKm, 1e-9)
	assert.Equal(t, 21.0, rec.Calories)
	require.NotNil(t, rec.EndTime)
	assert.Equal(t, t0.Add(180*time.Second), *rec.EndTime)
	assert.Equal(t, t0, rec.StartTime)
}

func TestStartRequiresFix(t *testing.T) {
	s := newTestSession(&fakeClock{now: t0})
	err := s.Start(nil)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Equal(t, StatusIdle, s.Status())

	bad := geo.Fix{Latitude: 200, Longitude: 0, Timestamp: t0}
	assert.ErrorIs(t, s.Start(&bad), ErrLocationUnavailable)
}

func TestStopFromIdleIsInvalid(t *testing.T) {
	s := newTestSession(&fakeClock{now: t0})
	_, err := s.Stop()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusIdle, s.Status())
}

func TestStartTwiceIsInvalid(t *testing.T) {
	s := newTestSession(&fakeClock{now: t0})
	f := fixAt(14.5995, 120.9842, 0)
	require.NoError(t, s.Start(&f))
	assert.ErrorIs(t, s.Start(&f), ErrInvalidTransition)
}

func TestOnFixIgnoredOutsideRunning(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := newTestSession(clock)

	s.OnFix(fixAt(14.6, 120.98, time.Second))
	assert.Equal(t, StatusIdle, s.Status())
	assert.Empty(t, s.Snapshot().Route)

	f := fixAt(14.5995, 120.9842, 0)
	require.NoError(t, s.Start(&f))
	clock.Advance(10 * time.Second)
	rec, err := s.Stop()
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	s.OnFix(fixAt(14.6000, 120.9850, 20*time.Second))
	after := s.Snapshot()
	assert.Equal(t, rec.Route, after.Route)
	assert.Equal(t, rec.DistanceMeters, after.DistanceMeters)
	assert.Equal(t, rec.ElapsedSeconds, after.ElapsedSeconds)

	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestElapsedNeverDecreases(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := newTestSession(clock)
	f := fixAt(14.5995, 120.9842, 0)
	require.NoError(t, s.Start(&f))

	clock.Advance(30 * time.Second)
	s.OnFix(fixAt(14.6000, 120.9850, 30*time.Second))
	require.Equal(t, int64(30), s.Stats().ElapsedSeconds)

	clock.Advance(-10 * time.Second)
	s.OnFix(fixAt(14.6005, 120.9855, 40*time.Second))
	assert.Equal(t, int64(30), s.Stats().ElapsedSeconds)
}

func TestMilestonesFireOncePerKilometre(t *testing.T) {
	clock := &fakeClock{now: t0}
	var got []Milestone
	s := newTestSession(clock, WithMilestoneHandler(func(m Milestone) {
		got = append(got, m)
	}))

	f := fixAt(0, 0, 0)
	require.NoError(t, s.Start(&f))

	// 0.005 degrees of latitude is roughly 556 m.
	s.OnFix(fixAt(0.005, 0, time.Minute))
	assert.Empty(t, got)

	s.OnFix(fixAt(0.01, 0, 2*time.Minute))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Kilometre)
	assert.Equal(t, "01HXRUN", got[0].SessionID)

	// a single long jump crosses two boundaries at once
	s.OnFix(fixAt(0.03, 0, 3*time.Minute))
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[1].Kilometre)
	assert.Equal(t, 3, got[2].Kilometre)
	assert.InDelta(t, s.Stats().DistanceMeters, got[2].DistanceMeters, 1e-9)

	s.OnFix(fixAt(0.0305, 0, 4*time.Minute))
	assert.Len(t, got, 3)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := newTestSession(clock)
	f := fixAt(14.5995, 120.9842, 0)
	require.NoError(t, s.Start(&f))

	snap := s.Snapshot()
	snap.Route[0].Latitude = 0
	assert.Equal(t, 14.5995, s.Snapshot().Route[0].Latitude)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	f := fixAt(14.5995, 120.9842, 0)
	a, b := New("u"), New("u")
	require.NoError(t, a.Start(&f))
	require.NoError(t, b.Start(&f))
	assert.NotEqual(t, a.Snapshot().ID, b.Snapshot().ID)
	assert.Len(t, a.Snapshot().ID, 26)
}

func TestInvalidTransitionWrapsSentinel(t *testing.T) {
	s := newTestSession(&fakeClock{now: t0})
	_, err := s.Stop()
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "stop from idle")
}
