// Package alert implements the per-camera Idle/Alerting/Cooldown state machine
// that decides when a fire needs to be re-checked.
package alert

import (
	"sync"
	"time"

	"firewatch/internal/model"
)

// DefaultRecheckInterval is the minimum time between re-evaluations of a flagged fire.
const DefaultRecheckInterval = 60 * time.Second

type State int

const (
	Idle State = iota
	Alerting
	Cooldown
)

func (s State) String() string {
	switch s {
	case Alerting:
		return "alerting"
	case Cooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// Record is a snapshot of the machine.
type Record struct {
	State               State
	LastFireDetectionAt *time.Time
}

// Transition describes the effect of one observed detection.
type Transition struct {
	From State
	To   State
	// Alert is set when a fire was confirmed by this observation, either
	// as a new alert or a re-check that found the fire still burning.
	Alert bool
}

// Changed reports whether the observation moved the machine to another state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine is safe for concurrent use.
type Machine struct {
	mu                  sync.Mutex
	state               State
	lastFireDetectionAt time.Time
	recheck             time.Duration
	now                 func() time.Time
}

type Option func(*Machine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine returns a machine in Idle with no fire on record.
func NewMachine(recheck time.Duration, opts ...Option) *Machine {
	if recheck <= 0 {
		recheck = DefaultRecheckInterval
	}
	m := &Machine{recheck: recheck, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShouldCheck reports whether the classifier should run: always while no fire
// is on record, and at most once per recheck interval while one is.
// A denied check while Alerting moves the machine into Cooldown.
func (m *Machine) ShouldCheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastFireDetectionAt.IsZero() {
		return true
	}
	if m.now().Sub(m.lastFireDetectionAt) >= m.recheck {
		return true
	}
	if m.state == Alerting {
		m.state = Cooldown
	}
	return false
}

// Observe applies a classifier result.
func (m *Machine) Observe(res model.DetectionResult) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := res.Timestamp
	if at.IsZero() {
		at = m.now()
	}

	t := Transition{From: m.state}
	if res.IsFire {
		m.state = Alerting
		m.lastFireDetectionAt = at
		t.Alert = true
	} else {
		m.state = Idle
		m.lastFireDetectionAt = time.Time{}
	}
	t.To = m.state
	return t
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.state = Idle
	m.lastFireDetectionAt = time.Time{}
	m.mu.Unlock()
}

func (m *Machine) Record() Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := Record{State: m.state}
	if !m.lastFireDetectionAt.IsZero() {
		at := m.lastFireDetectionAt
		r.LastFireDetectionAt = &at
	}
	return r
}
