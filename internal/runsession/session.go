// Package runsession owns the lifecycle of a single run: idle, running, stopped.
package runsession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"lakbay-kasaysayan/internal/observability"
	"lakbay-kasaysayan/internal/runstats"
	"lakbay-kasaysayan/internal/shared/geo"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	// ErrLocationUnavailable means no current fix was available to start from. Retryable.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrInvalidTransition is a misuse of the state machine.
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// MilestoneHandler is called outside the session lock for every kilometre crossed.
type MilestoneHandler func(Milestone)

type Option func(*Session)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithBodyMass sets the runner's mass used for calorie estimates.
func WithBodyMass(kg float64) Option {
	return func(s *Session) { s.massKg = kg }
}

// WithMilestoneHandler registers the kilometre milestone callback.
func WithMilestoneHandler(h MilestoneHandler) Option {
	return func(s *Session) { s.onMilestone = h }
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithIDGenerator overrides how session IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// Session is the run state machine. Its methods may be called from any goroutine,
// but fixes are expected from a single writer (see Tracker).
type Session struct {
	mu            sync.RWMutex
	rec           Record
	nextMilestone int

	now         func() time.Time
	massKg      float64
	onMilestone MilestoneHandler
	logger      *zap.Logger
	newID       func() string
}

// New returns an idle session for userID.
func New(userID string, opts ...Option) *Session {
	s := &Session{
		rec:           Record{UserID: userID, Status: StatusIdle},
		nextMilestone: 1,
		now:           time.Now,
		massKg:        runstats.DefaultBodyMassKg,
		logger:        zap.NewNop(),
		newID:         func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the run from the current fix.
func (s *Session) Start(current *geo.Fix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Status != StatusIdle {
		return s.invalid("start")
	}
	if current == nil || !current.Valid() {
		return ErrLocationUnavailable
	}

	s.rec.ID = s.newID()
	s.rec.StartTime = s.now()
	s.rec.Route = []geo.Fix{*current}
	s.rec.Status = StatusRunning
	s.logger.Info("run started", zap.String("session_id", s.rec.ID), zap.String("user_id", s.rec.UserID))
	return nil
}

// OnFix applies a new fix. Ignored unless the session is running.
func (s *Session) OnFix(fix geo.Fix) {
	s.mu.Lock()
	if s.rec.Status != StatusRunning {
		s.mu.Unlock()
		return
	}

	last := s.rec.Route[len(s.rec.Route)-1]
	delta := runstats.DistanceBetween(&last, &fix)
	s.rec.Route = append(s.rec.Route, fix)
	if delta > 0 {
		s.rec.DistanceMeters += delta
	}
	s.refreshLocked(s.now())

	var crossed []Milestone
	for s.rec.DistanceMeters >= float64(s.nextMilestone)*1000 {
		crossed = append(crossed, Milestone{
			SessionID:      s.rec.ID,
			Kilometre:      s.nextMilestone,
			DistanceMeters: s.rec.DistanceMeters,
		})
		s.nextMilestone++
	}
	handler := s.onMilestone
	s.mu.Unlock()

	for _, m := range crossed {
		observability.RecordMilestone()
		s.logger.Info("milestone reached", zap.String("session_id", m.SessionID), zap.Int("km", m.Kilometre))
		if handler != nil {
			handler(m)
		}
	}
}

// Stop freezes the run and returns the finalized record.
func (s *Session) Stop() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Status != StatusRunning {
		return Record{}, s.invalid("stop")
	}

	end := s.now()
	s.refreshLocked(end)
	s.rec.EndTime = &end
	s.rec.Status = StatusStopped
	s.logger.Info("run stopped",
		zap.String("session_id", s.rec.ID),
		zap.Float64("distance_m", s.rec.DistanceMeters),
		zap.Int64("elapsed_s", s.rec.ElapsedSeconds))
	return s.rec.clone(), nil
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Status
}

// Stats returns the live numbers.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		DistanceMeters: s.rec.DistanceMeters,
		ElapsedSeconds: s.rec.ElapsedSeconds,
		PaceMinPerKm:   s.rec.PaceMinPerKm,
		Calories:       s.rec.Calories,
	}
}

// Snapshot returns a copy of the whole record.
func (s *Session) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.clone()
}

func (s *Session) refreshLocked(now time.Time) {
	elapsed := int64(now.Sub(s.rec.StartTime) / time.Second)
	if elapsed > s.rec.ElapsedSeconds {
		s.rec.ElapsedSeconds = elapsed
	}
	secs := float64(s.rec.ElapsedSeconds)
	s.rec.PaceMinPerKm = runstats.Pace(s.rec.DistanceMeters, secs)
	s.rec.Calories = runstats.Calories(s.rec.DistanceMeters, secs, s.massKg)
}

func (s *Session) invalid(op string) error {
	err := fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, s.rec.Status)
	s.logger.Error("run state machine misuse", zap.Error(err))
	return err
}
