// Package aggregate provides the small shared base every event-sourced
// aggregate embeds: a version counter and an uncommitted-event buffer.
package aggregate

import "github.com/LerianStudio/midaz-ledger-core/internal/domain/event"

// Base tracks an aggregate's replay version and the events a command has
// emitted but the store has not yet appended.
type Base struct {
	version     int
	uncommitted []event.DomainEvent
}

// Version returns the version of the last applied event (0 if none).
func (b *Base) Version() int {
	return b.version
}

// Record appends e to the uncommitted buffer and advances the version
// counter; callers then apply e to their own state.
func (b *Base) Record(e event.DomainEvent) {
	b.uncommitted = append(b.uncommitted, e)
	b.version = e.Version()
}

// UncommittedEvents returns the events emitted since the last MarkCommitted.
func (b *Base) UncommittedEvents() []event.DomainEvent {
	return b.uncommitted
}

// MarkCommitted empties the uncommitted buffer once the store has
// successfully appended it.
func (b *Base) MarkCommitted() {
	b.uncommitted = nil
}

// SetVersion is used by Rehydrate to fast-forward the version counter while
// replaying history, without adding to the uncommitted buffer.
func (b *Base) SetVersion(v int) {
	b.version = v
}
