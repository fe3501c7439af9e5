package auction

import (
	"sync"
	"time"

	"github.com/bidmesh/auctioncore/internal/observability"
)

// BreakerState is the circuit breaker state for one adapter.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name used in metrics and logs.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Clock provides current time (for deterministic tests)
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker is the per-adapter circuit breaker. It opens after threshold
// consecutive failures and stays open for resetTimeout, after which exactly
// one trial call is let through (half-open). The trial's result decides
// whether the breaker closes again or reopens.
//
// All transitions happen under the mutex; the only callers are auction
// goroutines doing Allow / OnSuccess / OnFailure around a bid call, so no
// lock is ever held across network I/O.
type Breaker struct {
	mu sync.Mutex

	threshold    int
	resetTimeout time.Duration
	clock        Clock

	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool

	onTransition func(to BreakerState)
}

// NewBreaker constructs a breaker using the real system clock.
func NewBreaker(threshold int, resetTimeout time.Duration) *Breaker {
	return NewBreakerWithClock(threshold, resetTimeout, realClock{})
}

// NewBreakerWithClock allows injecting a custom clock (for tests).
func NewBreakerWithClock(threshold int, resetTimeout time.Duration, clk Clock) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 60 * time.Second
	}
	if clk == nil {
		clk = realClock{}
	}
	return &Breaker{threshold: threshold, resetTimeout: resetTimeout, clock: clk}
}

// Allow reports whether a call may proceed. While open it returns false until
// the reset window has elapsed, at which point the breaker moves to half-open
// and admits a single probe; further calls are rejected until that probe
// resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailure) >= b.resetTimeout {
			b.transition(StateHalfOpen)
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// OnSuccess records a successful call: the failure streak resets and a
// half-open breaker closes. A success arriving while the breaker is open
// (a late response from a call started before the trip) does not close it;
// the breaker must still run its half-open probe first.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.probing = false
		b.transition(StateClosed)
	}
}

// OnFailure records a failed call. In half-open the breaker reopens and the
// reset window restarts; in closed it opens once the streak reaches the
// threshold.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.clock.Now()
	b.probing = false

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.failures = 0
			b.transition(StateOpen)
		}
	}
}

// State returns the current breaker state. An open breaker whose reset window
// elapsed reports half-open readiness only via Allow, not here: State is a
// read-only snapshot.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to BreakerState) {
	b.state = to
	if b.onTransition != nil {
		b.onTransition(to)
	}
}

// BreakerSet holds one breaker per adapter, created lazily with shared
// settings. Many concurrent auctions share the set; the per-adapter mutex in
// Breaker serializes mutations.
type BreakerSet struct {
	mu           sync.RWMutex
	breakers     map[string]*Breaker
	threshold    int
	resetTimeout time.Duration
	clock        Clock
	metrics      observability.MetricsRegistry
}

// NewBreakerSet creates a set producing breakers with the given settings.
func NewBreakerSet(threshold int, resetTimeout time.Duration, metrics observability.MetricsRegistry) *BreakerSet {
	return &BreakerSet{
		breakers:     make(map[string]*Breaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		metrics:      metrics,
	}
}

// SetClock replaces the clock used for breakers created after the call.
// Intended for tests.
func (s *BreakerSet) SetClock(clk Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clk
}

// Get returns the breaker for the given adapter, creating it on first use.
func (s *BreakerSet) Get(adapterID string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[adapterID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[adapterID]; ok {
		return b
	}
	b = NewBreakerWithClock(s.threshold, s.resetTimeout, s.clock)
	if s.metrics != nil {
		id := adapterID
		b.onTransition = func(to BreakerState) {
			s.metrics.IncrementBreakerTransitions(id, to.String())
		}
	}
	s.breakers[adapterID] = b
	return b
}
