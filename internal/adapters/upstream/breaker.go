package upstream

import (
	"sync"
	"time"

	"github.com/okian/fixturecast/pkg/metrics"
)

// State is the circuit breaker state.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func (s State) gauge() int {
	switch s {
	case StateOpen:
		return metrics.BreakerOpen
	case StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// transition describes a state change, zero when nothing changed.
type transition struct {
	from, to State
}

func (t transition) changed() bool { return t.from != t.to }

// permit is handed out by acquire. Results are only counted while the
// breaker is still in the phase that granted the permit.
type permit struct {
	ok    bool
	phase uint64
	probe bool
}

// breaker counts consecutive failed fetches. Every method holds mu only for
// the bookkeeping; callers do the I/O between acquire and success/failure.
type breaker struct {
	mu sync.Mutex

	maxFailures       int
	openTimeout       time.Duration
	halfOpenMaxProbes int

	state               State
	phase               uint64 // bumped on every state change
	consecutiveFailures int
	lastFailureAt       time.Time
	openedAt            time.Time
	probesIssued        int
}

func newBreaker(maxFailures int, openTimeout time.Duration, halfOpenMaxProbes int) *breaker {
	return &breaker{
		maxFailures:       maxFailures,
		openTimeout:       openTimeout,
		halfOpenMaxProbes: halfOpenMaxProbes,
	}
}

// setState moves to s and starts a new phase. Caller holds mu.
func (b *breaker) setState(s State) {
	b.state = s
	b.phase++
	b.probesIssued = 0
}

// advance moves OPEN to HALF_OPEN once the open timeout has elapsed.
// Caller holds mu.
func (b *breaker) advance(now time.Time) transition {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.openTimeout {
		b.setState(StateHalfOpen)
		return transition{from: StateOpen, to: StateHalfOpen}
	}
	return transition{from: b.state, to: b.state}
}

// rejects reports whether the breaker is OPEN and still cooling down.
func (b *breaker) rejects(now time.Time) (bool, transition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.advance(now)
	return b.state == StateOpen, t
}

// acquire grants permission for one real request. In HALF_OPEN at most
// halfOpenMaxProbes permits are handed out.
func (b *breaker) acquire(now time.Time) (permit, transition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.advance(now)
	switch b.state {
	case StateClosed:
		return permit{ok: true, phase: b.phase}, t
	case StateHalfOpen:
		if b.probesIssued < b.halfOpenMaxProbes {
			b.probesIssued++
			return permit{ok: true, phase: b.phase, probe: true}, t
		}
		return permit{phase: b.phase}, t
	default:
		return permit{phase: b.phase}, t
	}
}

// current reports whether p was granted in the running phase. Caller holds mu.
func (b *breaker) current(p permit) bool {
	return p.ok && p.phase == b.phase
}

// release returns a probe permit whose request was abandoned by the caller.
func (b *breaker) release(p permit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.probe && b.current(p) && b.probesIssued > 0 {
		b.probesIssued--
	}
}

func (b *breaker) success(p permit) transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := transition{from: b.state, to: b.state}
	if !b.current(p) {
		return t
	}
	b.consecutiveFailures = 0
	if b.state != StateClosed {
		b.setState(StateClosed)
	}
	t.to = b.state
	return t
}

func (b *breaker) failure(p permit, now time.Time) transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := transition{from: b.state, to: b.state}
	if !b.current(p) {
		return t
	}
	b.consecutiveFailures++
	b.lastFailureAt = now

	switch b.state {
	case StateHalfOpen:
		b.trip(now)
	case StateClosed:
		if b.consecutiveFailures >= b.maxFailures {
			b.trip(now)
		}
	}
	t.to = b.state
	return t
}

func (b *breaker) trip(now time.Time) {
	b.setState(StateOpen)
	b.openedAt = now
}

// BreakerSnapshot is a point-in-time view of the breaker.
type BreakerSnapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastFailureAt       time.Time `json:"lastFailureAt,omitzero"`
	HalfOpenProbes      int       `json:"halfOpenProbesIssued"`
}

func (b *breaker) snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
		HalfOpenProbes:      b.probesIssued,
	}
}
