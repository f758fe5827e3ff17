// Package monitor simulates passive protection: while enabled it draws one
// sample per poll interval and pushes a fixed alert when the sample exceeds
// the threshold.
package monitor

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/raysh454/cyra/internal/logging"
)

const (
	DefaultPollInterval = 20 * time.Second
	DefaultThreshold    = 0.95
	AlertMessage        = "Blocked a suspicious message in the background."
)

// Sampler yields uniform samples in [0,1).
type Sampler interface {
	Float64() float64
}

// Pusher receives alerts; *notify.Center satisfies it.
type Pusher interface {
	Push(message string) string
}

type Config struct {
	PollInterval time.Duration
	Threshold    float64
	Message      string
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Threshold:    DefaultThreshold,
		Message:      AlertMessage,
	}
}

// Monitor owns at most one ticker at a time.
type Monitor struct {
	cfg     Config
	clock   clockwork.Clock
	pusher  Pusher
	sampler Sampler
	logger  logging.Logger

	mu      sync.Mutex
	enabled bool
	gen     uint64
	ticker  clockwork.Ticker
	stop    chan struct{}
	done    chan struct{}

	ticks  atomic.Int64
	pushes atomic.Int64
}

// New creates a disabled monitor. Zero config fields take their defaults. A
// nil clock means the real clock and a nil sampler means math/rand/v2's
// global source.
func New(cfg Config, pusher Pusher, sampler Sampler, clock clockwork.Clock, logger logging.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Message == "" {
		cfg.Message = AlertMessage
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sampler == nil {
		sampler = globalSampler{}
	}
	return &Monitor{
		cfg:     cfg,
		clock:   clock,
		pusher:  pusher,
		sampler: sampler,
		logger:  logger.With(logging.Field{Key: "component", Value: "monitor"}),
	}
}

// Enable arms the ticker. It is a no-op when already enabled.
func (m *Monitor) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return
	}
	m.enabled = true
	m.gen++
	m.ticker = m.clock.NewTicker(m.cfg.PollInterval)
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(m.gen, m.ticker, m.stop, m.done)
	m.logger.Info("background monitor enabled",
		logging.Field{Key: "interval", Value: m.cfg.PollInterval.String()})
}

// Disable stops the ticker and waits for the loop to exit. Once it returns
// no further push can happen, including for a tick that was already
// delivered. It is a no-op when already disabled.
func (m *Monitor) Disable() {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = false
	m.ticker.Stop()
	m.ticker = nil
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("background monitor disabled")
}

// Enabled reports whether the ticker is armed.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Ticks returns how many ticks have been evaluated since creation.
func (m *Monitor) Ticks() int64 { return m.ticks.Load() }

// Pushes returns how many alerts have been pushed since creation.
func (m *Monitor) Pushes() int64 { return m.pushes.Load() }

func (m *Monitor) loop(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			m.tick(gen)
		}
	}
}

func (m *Monitor) tick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A tick delivered just before Disable must not push.
	if !m.enabled || m.gen != gen {
		return
	}
	// Counted on the way out so an observer of Ticks also sees the push.
	defer m.ticks.Add(1)
	sample := m.sampler.Float64()
	if sample <= m.cfg.Threshold {
		return
	}
	m.pushes.Add(1)
	m.logger.Debug("synthetic alert", logging.Field{Key: "sample", Value: sample})
	if m.pusher != nil {
		m.pusher.Push(m.cfg.Message)
	}
}

type globalSampler struct{}

func (globalSampler) Float64() float64 { return rand.Float64() }
