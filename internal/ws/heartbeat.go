package ws

import (
	"sync"
	"time"
)

// HeartbeatState is the liveness state of the screen connection.
type HeartbeatState int

const (
	HeartbeatUnmonitored HeartbeatState = iota
	HeartbeatHealthy
	HeartbeatSuspect
	HeartbeatDead
)

func (s HeartbeatState) String() string {
	switch s {
	case HeartbeatUnmonitored:
		return "unmonitored"
	case HeartbeatHealthy:
		return "healthy"
	case HeartbeatSuspect:
		return "suspect"
	case HeartbeatDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HeartbeatAction tells the room what to do after a check.
type HeartbeatAction int

const (
	HeartbeatNone HeartbeatAction = iota
	HeartbeatProbe
	HeartbeatDeclareDead
)

// HeartbeatConfig holds the heartbeat thresholds.
type HeartbeatConfig struct {
	// PongTimeout is how long the screen may stay silent before it is suspect.
	PongTimeout time.Duration
	// PingInterval is the minimum gap between two probes.
	PingInterval time.Duration
	// MaxMissedPings is how many unanswered probes are tolerated.
	MaxMissedPings int
}

// DefaultHeartbeatConfig returns the default thresholds.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		PongTimeout:    10 * time.Second,
		PingInterval:   time.Second,
		MaxMissedPings: 3,
	}
}

// Heartbeat tracks the screen's liveness. It has no timer of its own: Check
// is called from viewer message handling.
type Heartbeat struct {
	cfg HeartbeatConfig
	now func() time.Time

	mu                 sync.Mutex
	state              HeartbeatState
	lastPingSentAt     time.Time
	lastPongReceivedAt time.Time
	missedPings        int
}

// NewHeartbeat creates an unmonitored Heartbeat. A nil now uses time.Now.
func NewHeartbeat(cfg HeartbeatConfig, now func() time.Time) *Heartbeat {
	if now == nil {
		now = time.Now
	}
	defaults := DefaultHeartbeatConfig()
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.MaxMissedPings <= 0 {
		cfg.MaxMissedPings = defaults.MaxMissedPings
	}

	t := now()
	return &Heartbeat{
		cfg:                cfg,
		now:                now,
		state:              HeartbeatUnmonitored,
		lastPingSentAt:     t,
		lastPongReceivedAt: t,
	}
}

// Start begins monitoring a newly registered screen.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
	h.state = HeartbeatHealthy
}

// Stop returns the monitor to Unmonitored.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
	h.state = HeartbeatUnmonitored
}

// Pong records a message from the screen.
func (h *Heartbeat) Pong() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPongReceivedAt = h.now()
	h.missedPings = 0
	if h.state != HeartbeatUnmonitored {
		h.state = HeartbeatHealthy
	}
}

func (h *Heartbeat) resetLocked() {
	t := h.now()
	h.lastPingSentAt = t
	h.lastPongReceivedAt = t
	h.missedPings = 0
}

// Check evaluates the screen's liveness and returns the action to take.
func (h *Heartbeat) Check() HeartbeatAction {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == HeartbeatUnmonitored || h.state == HeartbeatDead {
		return HeartbeatNone
	}

	now := h.now()
	if now.Sub(h.lastPongReceivedAt) <= h.cfg.PongTimeout {
		return HeartbeatNone
	}

	h.state = HeartbeatSuspect
	if h.missedPings > h.cfg.MaxMissedPings {
		h.state = HeartbeatDead
		return HeartbeatDeclareDead
	}

	if now.Sub(h.lastPingSentAt) > h.cfg.PingInterval {
		h.lastPingSentAt = now
		h.missedPings++
		return HeartbeatProbe
	}

	return HeartbeatNone
}

// State returns the current state.
func (h *Heartbeat) State() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// MissedPings returns the number of consecutive unanswered probes.
func (h *Heartbeat) MissedPings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missedPings
}
