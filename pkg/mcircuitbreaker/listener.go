// Package mcircuitbreaker provides the accounting core's own per-operation
// circuit breaker registry used by the orchestrator, reporting transitions
// through lib-commons' StateChangeListener interface, plus a domain-facing
// state-change listener that adapts to it.
package mcircuitbreaker

import (
	libCircuitBreaker "github.com/LerianStudio/lib-commons/v2/commons/circuitbreaker"
)

// State mirrors lib-commons' breaker state without leaking its type into
// callers that only need to observe transitions.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
	StateUnknown
)

// Counts is a snapshot of a breaker's rolling request/failure counters.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// StateChangeEvent describes one breaker transition for a named operation.
type StateChangeEvent struct {
	ServiceName string
	FromState   State
	ToState     State
	Counts      Counts
}

// StateListener observes circuit breaker state transitions, typically to log
// or alert on them.
type StateListener interface {
	OnCircuitBreakerStateChange(event StateChangeEvent)
}

// LibCommonsAdapter satisfies lib-commons' circuitbreaker.StateChangeListener
// and forwards translated events to a domain StateListener.
type LibCommonsAdapter struct {
	listener StateListener
}

// NewLibCommonsAdapter wraps listener. A nil listener is accepted; OnStateChange
// becomes a no-op in that case.
func NewLibCommonsAdapter(listener StateListener) *LibCommonsAdapter {
	return &LibCommonsAdapter{listener: listener}
}

// OnStateChange implements libCircuitBreaker.StateChangeListener.
func (a *LibCommonsAdapter) OnStateChange(serviceName string, from, to libCircuitBreaker.State, counts libCircuitBreaker.Counts) {
	if a == nil || a.listener == nil {
		return
	}

	a.listener.OnCircuitBreakerStateChange(StateChangeEvent{
		ServiceName: serviceName,
		FromState:   convertState(from),
		ToState:     convertState(to),
		Counts: Counts{
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
		},
	})
}

func convertState(s libCircuitBreaker.State) State {
	switch s {
	case libCircuitBreaker.StateClosed:
		return StateClosed
	case libCircuitBreaker.StateOpen:
		return StateOpen
	case libCircuitBreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

// toLibState is convertState's inverse: it lets Breaker notify a real
// libCircuitBreaker.StateChangeListener (such as one wrapped by
// LibCommonsAdapter) using lib-commons' own State type.
func toLibState(s State) libCircuitBreaker.State {
	switch s {
	case StateClosed:
		return libCircuitBreaker.StateClosed
	case StateOpen:
		return libCircuitBreaker.StateOpen
	case StateHalfOpen:
		return libCircuitBreaker.StateHalfOpen
	default:
		return libCircuitBreaker.StateClosed
	}
}

func toLibCounts(c Counts) libCircuitBreaker.Counts {
	return libCircuitBreaker.Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}
