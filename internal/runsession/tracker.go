package runsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lakbay-kasaysayan/internal/shared/geo"

	"go.uber.org/zap"
)

// DefaultFirstFixTimeout bounds how long Tracker.Start waits for a starting position.
const DefaultFirstFixTimeout = 15 * time.Second

// FixStream is satisfied by *sampler.Sampler.
type FixStream interface {
	Start(ctx context.Context, interval time.Duration) (<-chan geo.Fix, error)
	Stop()
}

// Tracker is the single writer of a Session: every fix is applied from one goroutine
// in the order the stream delivered it.
type Tracker struct {
	session *Session
	stream  FixStream
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	done chan struct{}
}

// NewTracker binds a session to a fix stream.
func NewTracker(session *Session, stream FixStream, firstFixTimeout time.Duration, logger *zap.Logger) *Tracker {
	if firstFixTimeout <= 0 {
		firstFixTimeout = DefaultFirstFixTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{session: session, stream: stream, timeout: firstFixTimeout, logger: logger}
}

// Session exposes the tracked session for read-only queries.
func (t *Tracker) Session() *Session { return t.session }

// Start opens the fix stream, waits for the first fix and starts the session from it.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil || t.session.Status() != StatusIdle {
		return fmt.Errorf("%w: tracker already started", ErrInvalidTransition)
	}

	fixes, err := t.stream.Start(ctx, interval)
	if err != nil {
		return err
	}

	first, err := t.awaitFirst(ctx, fixes)
	if err != nil {
		t.stream.Stop()
		return err
	}
	if err := t.session.Start(&first); err != nil {
		t.stream.Stop()
		return err
	}

	done := make(chan struct{})
	t.done = done
	go func() {
		defer close(done)
		for fix := range fixes {
			t.session.OnFix(fix)
		}
		t.logger.Debug("fix stream closed", zap.String("session_id", t.session.Snapshot().ID))
	}()
	return nil
}

// Stop halts sampling, applies any fix already in flight and finalizes the session.
func (t *Tracker) Stop() (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return Record{}, fmt.Errorf("%w: tracker not started", ErrInvalidTransition)
	}
	t.stream.Stop()
	<-t.done
	return t.session.Stop()
}

func (t *Tracker) awaitFirst(ctx context.Context, fixes <-chan geo.Fix) (geo.Fix, error) {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case fix, ok := <-fixes:
		if !ok {
			return geo.Fix{}, ErrLocationUnavailable
		}
		return fix, nil
	case <-timer.C:
		return geo.Fix{}, fmt.Errorf("%w: no fix within %v", ErrLocationUnavailable, t.timeout)
	case <-ctx.Done():
		return geo.Fix{}, errors.Join(ErrLocationUnavailable, ctx.Err())
	}
}
