package mcircuitbreaker

import (
	"context"
	"sync"
	"time"

	libCircuitBreaker "github.com/LerianStudio/lib-commons/v2/commons/circuitbreaker"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
)

// ErrOpen is returned by Execute when the named operation's breaker is open
// or half-open and has already admitted its trial request. It is a
// *errs.DomainError with Code Transport so callers using errs.Is/Code
// checks (rather than direct equality) still match it.
var ErrOpen = errs.New(errs.CodeTransport, errs.ReasonCircuitOpen, "mcircuitbreaker: circuit open")

// Settings configures one breaker keyed by operation name.
type Settings struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	SuccessThreshold uint32
	MonitoringPeriod time.Duration
}

// DefaultSettings match the accounting core's resilience defaults: five
// consecutive failures trip the breaker, it waits 30s before probing again,
// and three consecutive probe successes close it.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		MonitoringPeriod: 60 * time.Second,
	}
}

type operationBreaker struct {
	mu sync.Mutex

	state           State
	counts          Counts
	openedAt        time.Time
	windowStart     time.Time
	halfOpenInFlight bool
}

// Breaker is a registry of per-operation circuit breakers sharing one
// configuration and one optional state-change listener. The listener is
// typed to lib-commons' own circuitbreaker.StateChangeListener so this
// engine's transitions reach the same interface the teacher's HTTP clients
// register against; wrap a domain StateListener with NewLibCommonsAdapter to
// receive them in this package's own event shape.
type Breaker struct {
	settings Settings
	listener libCircuitBreaker.StateChangeListener

	mu    sync.Mutex
	byKey map[string]*operationBreaker
}

// NewBreaker builds a registry using settings, notifying listener (if
// non-nil) on every state transition.
func NewBreaker(settings Settings, listener libCircuitBreaker.StateChangeListener) *Breaker {
	return &Breaker{
		settings: settings,
		listener: listener,
		byKey:    make(map[string]*operationBreaker),
	}
}

func (b *Breaker) operation(name string) *operationBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	ob, ok := b.byKey[name]
	if !ok {
		ob = &operationBreaker{state: StateClosed, windowStart: time.Now()}
		b.byKey[name] = ob
	}

	return ob
}

// Execute runs fn through the named operation's breaker: fails fast with
// ErrOpen while the breaker is open, admits exactly one trial call while
// half-open, and tracks successes/failures to drive transitions.
func (b *Breaker) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ob := b.operation(name)

	from, to, err := ob.beforeCall(b.settings)
	if from != to && b.listener != nil {
		b.listener.OnStateChange(name, toLibState(from), toLibState(to), toLibCounts(ob.snapshotLocked()))
	}
	if err != nil {
		return err
	}

	err = fn(ctx)

	from, to = ob.afterCall(b.settings, err)
	if from != to && b.listener != nil {
		b.listener.OnStateChange(name, toLibState(from), toLibState(to), toLibCounts(ob.snapshotLocked()))
	}

	return err
}

func (ob *operationBreaker) snapshotLocked() Counts {
	return ob.counts
}

func (ob *operationBreaker) beforeCall(settings Settings) (from, to State, err error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	from = ob.state
	now := time.Now()

	if ob.state == StateOpen {
		if now.Sub(ob.openedAt) >= settings.RecoveryTimeout {
			ob.state = StateHalfOpen
			ob.counts = Counts{}
			ob.halfOpenInFlight = false
		} else {
			return from, ob.state, ErrOpen
		}
	}

	if ob.state == StateHalfOpen {
		if ob.halfOpenInFlight {
			return from, ob.state, ErrOpen
		}
		ob.halfOpenInFlight = true
	}

	if now.Sub(ob.windowStart) >= settings.MonitoringPeriod && ob.state == StateClosed {
		ob.counts = Counts{}
		ob.windowStart = now
	}

	ob.counts.Requests++

	return from, ob.state, nil
}

func (ob *operationBreaker) afterCall(settings Settings, err error) (from, to State) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	from = ob.state
	ob.halfOpenInFlight = false

	if err != nil {
		ob.counts.TotalFailures++
		ob.counts.ConsecutiveFailures++
		ob.counts.ConsecutiveSuccesses = 0

		if ob.state == StateHalfOpen || (ob.state == StateClosed && ob.counts.ConsecutiveFailures >= settings.FailureThreshold) {
			ob.state = StateOpen
			ob.openedAt = time.Now()
		}
	} else {
		ob.counts.TotalSuccesses++
		ob.counts.ConsecutiveSuccesses++
		ob.counts.ConsecutiveFailures = 0

		if ob.state == StateHalfOpen && ob.counts.ConsecutiveSuccesses >= settings.SuccessThreshold {
			ob.state = StateClosed
			ob.counts = Counts{}
		}
	}

	to = ob.state

	return from, to
}
