// Package sampler turns a device location provider into an ordered stream of validated fixes.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lakbay-kasaysayan/internal/observability"
	"lakbay-kasaysayan/internal/shared/geo"

	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied is returned when the user refused location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrSignalLost is what providers report when no fix is currently available.
	ErrSignalLost = errors.New("location signal lost")
	// ErrAlreadyStarted is returned by Start on a sampler that is already running.
	ErrAlreadyStarted = errors.New("sampler already started")
)

// Provider is the device location service.
type Provider interface {
	RequestPermission(ctx context.Context) error
	CurrentFix(ctx context.Context) (geo.Fix, error)
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// Sampler polls a Provider and forwards fixes with strictly increasing timestamps.
type Sampler struct {
	provider Provider
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Sampler around provider.
func New(provider Provider, opts ...Option) *Sampler {
	s := &Sampler{provider: provider, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start requests permission and begins polling every interval. The returned channel is
// closed when Stop is called, ctx ends, or permission is revoked mid-run.
func (s *Sampler) Start(ctx context.Context, interval time.Duration) (<-chan geo.Fix, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sampling interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil, ErrAlreadyStarted
	}

	if err := s.provider.RequestPermission(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan geo.Fix)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(runCtx, interval, out, done)
	return out, nil
}

// Stop halts polling and waits for the stream to close. Safe to call more than once.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration, out chan<- geo.Fix, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		fix, err := s.provider.CurrentFix(ctx)
		switch {
		case errors.Is(err, ErrPermissionDenied):
			s.logger.Warn("location permission revoked, closing fix stream")
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("no location fix", zap.Error(err))
		case !fix.Valid():
			observability.RecordFixDropped("invalid")
			s.logger.Debug("dropping invalid fix",
				zap.Float64("lat", fix.Latitude), zap.Float64("lng", fix.Longitude))
		case !last.IsZero() && !fix.Timestamp.After(last):
			observability.RecordFixDropped("stale")
			s.logger.Debug("dropping stale fix", zap.Time("timestamp", fix.Timestamp))
		default:
			select {
			case out <- fix:
				last = fix.Timestamp
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
