// Package session tracks the lifecycle of analysis requests for one scanner
// surface. Only the most recently issued request may change the state; a
// response for any earlier request is dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("session closed")

// DefaultTimeout bounds a single Analyzer call.
const DefaultTimeout = 30 * time.Second

type Config struct {
	// Surface names the scanner this session serves (link, file, ...).
	Surface string
	Timeout time.Duration
}

// Session is a single-writer state container for one scanner surface.
type Session struct {
	surface  string
	timeout  time.Duration
	analyzer analyzer.Analyzer
	clock    clockwork.Clock
	logger   logging.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	closed  bool
	subs    map[int]chan State
	nextSub int
}

// New creates an idle session. clock may be nil, in which case the real
// clock is used.
func New(cfg Config, a analyzer.Analyzer, clock clockwork.Clock, logger logging.Logger) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Session{
		surface:  cfg.Surface,
		timeout:  cfg.Timeout,
		analyzer: a,
		clock:    clock,
		logger:   logger.With(logging.Field{Key: "component", Value: "session"}, logging.Field{Key: "surface", Value: cfg.Surface}),
		base:     base,
		cancel:   cancel,
		subs:     make(map[int]chan State),
	}
	s.state = State{Surface: cfg.Surface, Phase: PhaseIdle, UpdatedAt: clock.Now().UTC()}
	return s
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit validates payload, moves the session to pending and starts the
// Analyzer call in the background. Any request still pending is superseded:
// its response will be ignored. Invalid input leaves the state unchanged.
//
// ctx only carries values; the call is bounded by the session timeout and is
// cancelled by Close, not by ctx.
func (s *Session) Submit(ctx context.Context, payload any) (string, error) {
	req, err := NewRequest(payload, s.clock.Now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	prev := s.state
	s.state = State{
		Surface:    s.surface,
		Phase:      PhasePending,
		RequestID:  req.ID,
		Kind:       req.Kind,
		Generation: prev.Generation + 1,
		UpdatedAt:  req.IssuedAt,
	}
	s.broadcastLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	if prev.Phase == PhasePending {
		s.logger.Debug("superseding pending request",
			logging.Field{Key: "previous", Value: prev.RequestID},
			logging.Field{Key: "request_id", Value: req.ID})
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	stop := context.AfterFunc(s.base, cancel)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()
		s.run(callCtx, req)
	}()

	return req.ID, nil
}

func (s *Session) run(ctx context.Context, req model.ScanRequest) {
	outcome, err := dispatch(ctx, s.analyzer, req)
	if err == nil && outcome == nil {
		err = fmt.Errorf("%w: empty outcome", analyzer.ErrSchema)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, analyzer.ErrTimeout) {
			err = fmt.Errorf("%w: %v", analyzer.ErrTimeout, err)
		}
		kind := analyzer.KindOf(err)
		if !s.apply(req.ID, PhaseFailed, nil, kind, err.Error()) {
			s.logger.Debug("dropped stale failure",
				logging.Field{Key: "request_id", Value: req.ID},
				logging.Field{Key: "error", Value: err})
			return
		}
		s.logger.Warn("scan failed",
			logging.Field{Key: "request_id", Value: req.ID},
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: err})
		return
	}

	if !s.apply(req.ID, PhaseSucceeded, outcome, analyzer.KindNone, "") {
		s.logger.Debug("dropped stale outcome", logging.Field{Key: "request_id", Value: req.ID})
		return
	}
	s.logger.Info("scan completed",
		logging.Field{Key: "request_id", Value: req.ID},
		logging.Field{Key: "status", Value: string(outcome.Status)},
		logging.Field{Key: "risk", Value: string(outcome.RiskLevel)})
}

// Resolve moves the session to succeeded if requestID is the pending
// request. It reports whether the state changed.
func (s *Session) Resolve(requestID string, outcome *model.ScanOutcome) bool {
	if outcome == nil {
		return false
	}
	return s.apply(requestID, PhaseSucceeded, outcome, analyzer.KindNone, "")
}

// Reject moves the session to failed if requestID is the pending request.
// It reports whether the state changed.
func (s *Session) Reject(requestID string, kind analyzer.ErrorKind) bool {
	return s.apply(requestID, PhaseFailed, nil, kind, string(kind))
}

func (s *Session) apply(requestID string, phase Phase, outcome *model.ScanOutcome, kind analyzer.ErrorKind, msg string) bool {
	s.mu.Lock()
	if s.closed || s.state.Phase != PhasePending || s.state.RequestID != requestID {
		s.mu.Unlock()
		return false
	}
	s.state.Phase = phase
	s.state.Outcome = outcome
	s.state.ErrorKind = kind
	s.state.Error = msg
	s.state.UpdatedAt = s.clock.Now().UTC()
	s.broadcastLocked()
	s.mu.Unlock()
	return true
}

// Reset returns the session to idle. A pending request becomes stale.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = State{
		Surface:    s.surface,
		Phase:      PhaseIdle,
		Generation: s.state.Generation + 1,
		UpdatedAt:  s.clock.Now().UTC(),
	}
	s.broadcastLocked()
	s.mu.Unlock()
}

// Subscribe returns a channel of state changes and a function to stop the
// subscription. Delivery is non-blocking: a slow subscriber misses updates.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// broadcastLocked sends the current state to every subscriber. Sending under
// the lock keeps deliveries in state order.
func (s *Session) broadcastLocked() {
	for _, ch := range s.subs {
		// Non-blocking send; drop if buffer is full.
		select {
		case ch <- s.state:
		default:
		}
	}
}

// Close abandons any in-flight call, waits for its goroutine and closes
// every subscription. Further Submits return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
