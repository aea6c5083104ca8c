// Package game ties the run-tracking core to the sync client: it runs a session,
// unlocks historical events at every kilometre and settles achievements when the
// run ends.
package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/ledger"
	"lakbay-kasaysayan/internal/runs"
	"lakbay-kasaysayan/internal/runsession"
	"lakbay-kasaysayan/internal/shared/geo"
	"lakbay-kasaysayan/internal/syncclient"

	"go.uber.org/zap"
)

var ErrRunInProgress = errors.New("a run is already in progress")

// Backend is the part of the sync client the runner depends on.
type Backend interface {
	PersistRun(ctx context.Context, record runsession.Record) (runs.Run, error)
	PublishLive(ctx context.Context, runID string, stats runsession.Stats) error
	PersistArtifactCollection(ctx context.Context, artifactID string) (syncclient.Collection, error)
	CheckAchievements(ctx context.Context, userID string, trigger achievement.Trigger) (achievement.CheckResult, error)
	HistoricalEvents(ctx context.Context) ([]history.Event, error)
	Achievements(ctx context.Context) ([]achievement.Achievement, error)
}

type Config struct {
	UserID          string
	Interval        time.Duration
	FirstFixTimeout time.Duration
	BodyMassKg      float64
}

// Unlock is a historical event revealed by crossing a kilometre.
type Unlock struct {
	Kilometre int
	Event     history.Event
}

// Summary is what Stop reports about a finished run. SyncErr is set when the run
// or the achievement check could not reach the backend; the local result stands.
type Summary struct {
	Record      runsession.Record
	Unlocked    []Unlock
	Granted     []string
	TotalPoints int
	SyncErr     error
}

type Runner struct {
	cfg       Config
	stream    runsession.FixStream
	backend   Backend
	picker    *history.Picker
	artifacts *ledger.Artifacts
	earned    *ledger.Achievements
	logger    *zap.Logger
	sessOpts  []runsession.Option

	mu       sync.Mutex
	tracker  *runsession.Tracker
	unlocked []Unlock
	live     chan runsession.Milestone
	liveDone chan struct{}
	visits   *ledger.Visits
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithVisits keeps visited locations in v instead of in memory.
func WithVisits(v *ledger.Visits) Option {
	return func(r *Runner) { r.visits = v }
}

// WithSessionOptions passes extra options to every session the runner creates.
func WithSessionOptions(opts ...runsession.Option) Option {
	return func(r *Runner) { r.sessOpts = append(r.sessOpts, opts...) }
}

func NewRunner(cfg Config, stream runsession.FixStream, backend Backend, picker *history.Picker,
	artifacts *ledger.Artifacts, earned *ledger.Achievements, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		stream:    stream,
		backend:   backend,
		picker:    picker,
		artifacts: artifacts,
		earned:    earned,
		logger:    zap.NewNop(),
		visits:    ledger.NewVisits(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sync loads the event catalogue and the earned achievements from the backend.
// Without a backend the sample catalogue is used so milestones still unlock
// something. Each half is attempted even when the other fails.
func (r *Runner) Sync(ctx context.Context) error {
	events, eventsErr := r.backend.HistoricalEvents(ctx)
	if eventsErr != nil {
		r.logger.Warn("using sample catalogue", zap.Error(eventsErr))
		events = history.SampleEvents()
	}
	r.picker.Load(events)

	earned, err := r.backend.Achievements(ctx)
	if err != nil {
		r.logger.Warn("earned achievements unavailable", zap.Error(err))
		return errors.Join(eventsErr, err)
	}
	ids := make([]string, 0, len(earned))
	for _, a := range earned {
		ids = append(ids, a.Type)
	}
	r.earned.Merge(ids...)
	return eventsErr
}

// Start waits for a first fix and begins a run.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tracker != nil {
		return ErrRunInProgress
	}

	r.unlocked = nil
	r.live = make(chan runsession.Milestone, 8)
	r.liveDone = make(chan struct{})

	opts := append([]runsession.Option{
		runsession.WithBodyMass(r.cfg.BodyMassKg),
		runsession.WithLogger(r.logger.Named("session")),
		runsession.WithMilestoneHandler(r.onMilestone),
	}, r.sessOpts...)
	session := runsession.New(r.cfg.UserID, opts...)
	tracker := runsession.NewTracker(session, r.stream, r.cfg.FirstFixTimeout, r.logger.Named("tracker"))

	if err := tracker.Start(ctx, r.cfg.Interval); err != nil {
		close(r.live)
		close(r.liveDone)
		return err
	}
	r.tracker = tracker
	go r.publishLive(tracker.Session(), r.live, r.liveDone)
	return nil
}

// Stats are the live numbers of the current run, zero when idle.
func (r *Runner) Stats() runsession.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tracker == nil {
		return runsession.Stats{}
	}
	return r.tracker.Session().Stats()
}

// LastFix is the most recent fix applied to the current run.
func (r *Runner) LastFix() (geo.Fix, bool) {
	r.mu.Lock()
	tracker := r.tracker
	r.mu.Unlock()
	if tracker == nil {
		return geo.Fix{}, false
	}
	route := tracker.Session().Snapshot().Route
	if len(route) == 0 {
		return geo.Fix{}, false
	}
	return route[len(route)-1], true
}

// Stop finalizes the run, persists it and settles run achievements.
func (r *Runner) Stop(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	tracker := r.tracker
	r.mu.Unlock()
	if tracker == nil {
		return Summary{}, fmt.Errorf("%w: no run in progress", runsession.ErrInvalidTransition)
	}

	record, err := tracker.Stop()
	if err != nil {
		return Summary{}, err
	}

	r.mu.Lock()
	r.tracker = nil
	close(r.live)
	liveDone := r.liveDone
	unlocked := append([]Unlock(nil), r.unlocked...)
	r.mu.Unlock()
	<-liveDone

	summary := Summary{Record: record, Unlocked: unlocked}
	if _, err := r.backend.PersistRun(ctx, record); err != nil {
		r.logger.Warn("run kept locally", zap.String("session_id", record.ID), zap.Error(err))
		summary.SyncErr = err
	}

	trigger := achievement.Trigger{Type: achievement.TriggerRun, Metrics: achievement.Metrics{Distance: record.DistanceMeters}}
	granted, points, err := r.settle(ctx, trigger)
	summary.Granted = granted
	summary.TotalPoints = points
	if err != nil && summary.SyncErr == nil {
		summary.SyncErr = err
	}
	return summary, nil
}

// CollectArtifact records artifactID in the ledger and settles the collector achievement.
func (r *Runner) CollectArtifact(ctx context.Context, artifactID string) ([]string, error) {
	res, syncErr := r.backend.PersistArtifactCollection(ctx, artifactID)
	if res.CollectedCount == 0 && syncErr != nil {
		return nil, syncErr
	}
	trigger := achievement.Trigger{Type: achievement.TriggerArtifact, Metrics: achievement.Metrics{CollectedCount: r.artifacts.Len()}}
	granted, _, err := r.settle(ctx, trigger)
	return granted, errors.Join(syncErr, err)
}

// VisitLocation counts a distinct historical location and settles history_buff.
func (r *Runner) VisitLocation(ctx context.Context, eventID string) ([]string, error) {
	if _, err := r.visits.Add(ctx, eventID); err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}

	trigger := achievement.Trigger{Type: achievement.TriggerLocation, Metrics: achievement.Metrics{Count: r.visits.Len()}}
	granted, _, err := r.settle(ctx, trigger)
	return granted, err
}

// settle evaluates trigger against the local ledger, then asks the backend. The
// returned ids are everything newly earned by either side.
func (r *Runner) settle(ctx context.Context, trigger achievement.Trigger) ([]string, int, error) {
	local := achievement.Evaluate(trigger, r.earned.Snapshot())
	granted := r.earned.Merge(local...)

	res, err := r.backend.CheckAchievements(ctx, r.cfg.UserID, trigger)
	if err != nil {
		r.logger.Warn("achievement check kept locally", zap.String("trigger", string(trigger.Type)), zap.Error(err))
		return granted, 0, err
	}
	granted = append(granted, r.earned.Merge(res.NewAchievements...)...)
	sort.Strings(granted)
	return granted, res.TotalPoints, nil
}

func (r *Runner) onMilestone(m runsession.Milestone) {
	ev, ok := r.picker.Pick()
	r.mu.Lock()
	if ok {
		r.unlocked = append(r.unlocked, Unlock{Kilometre: m.Kilometre, Event: ev})
	}
	live := r.live
	r.mu.Unlock()

	if ok {
		r.logger.Info("historical event unlocked", zap.Int("km", m.Kilometre), zap.String("event_id", ev.ID))
	}
	select {
	case live <- m:
	default:
	}
}

// publishLive forwards milestone stats to watchers until the run stops.
func (r *Runner) publishLive(session *runsession.Session, live <-chan runsession.Milestone, done chan<- struct{}) {
	defer close(done)

	for m := range live {
		if err := r.backend.PublishLive(context.Background(), m.SessionID, session.Stats()); err != nil {
			r.logger.Debug("live update dropped", zap.Int("km", m.Kilometre), zap.Error(err))
		}
	}
}
