// Package inmemory provides a process-local EventStore used by unit tests
// and any deployment that does not need durable persistence. It implements
// the same ports.EventStore interface as the Postgres adapter (spec Open
// Question 3), returning a no-op Transaction handle that commits instantly.
package inmemory

import (
	"context"
	"sync"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
)

type noopTransaction struct{}

func (noopTransaction) Commit(ctx context.Context) error   { return nil }
func (noopTransaction) Rollback(ctx context.Context) error { return nil }

type streamKey struct {
	tenantID string
	streamID string
}

// EventStore is a mutex-guarded, per-(tenant,stream) append-only log.
type EventStore struct {
	mu               sync.Mutex
	streams          map[streamKey][]event.DomainEvent
	idempotencyKeys  map[string]struct{}
}

// New builds an empty EventStore.
func New() *EventStore {
	return &EventStore{
		streams:         make(map[streamKey][]event.DomainEvent),
		idempotencyKeys: make(map[string]struct{}),
	}
}

var _ ports.EventStore = (*EventStore)(nil)

func (s *EventStore) Append(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) error {
	_, err := s.AppendInTransaction(ctx, tenantID, streamID, expectedVersion, events, idempotencyKey)
	return err
}

func (s *EventStore) AppendInTransaction(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) (ports.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if _, seen := s.idempotencyKeys[tenantID+":"+idempotencyKey]; seen {
			return noopTransaction{}, nil
		}
	}

	key := streamKey{tenantID: tenantID, streamID: streamID}
	current := s.streams[key]

	if len(current) != expectedVersion {
		return nil, errs.ConcurrencyConflict("expected version does not match stream head")
	}

	for _, e := range events {
		if e.TenantID() != tenantID {
			return nil, errs.TenantMismatch("event tenant does not match append tenant")
		}
	}

	s.streams[key] = append(current, events...)

	if idempotencyKey != "" {
		s.idempotencyKeys[tenantID+":"+idempotencyKey] = struct{}{}
	}

	return noopTransaction{}, nil
}

func (s *EventStore) ReadStream(ctx context.Context, tenantID, streamID string, fromVersion int) ([]event.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey{tenantID: tenantID, streamID: streamID}
	all := s.streams[key]

	if fromVersion <= 0 {
		out := make([]event.DomainEvent, len(all))
		copy(out, all)
		return out, nil
	}

	var out []event.DomainEvent
	for _, e := range all {
		if e.Version() >= fromVersion {
			out = append(out, e)
		}
	}

	return out, nil
}
