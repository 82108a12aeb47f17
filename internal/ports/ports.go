// Package ports declares the collaborator interfaces the orchestrator
// depends on, so both Postgres-backed and in-memory adapters are
// interchangeable (spec §4.1, §4.6, Open Question 3).
package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
)

// Transaction is a handle a caller commits or rolls back explicitly. The
// in-memory adapter returns a no-op implementation that commits instantly.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EventStore is the unified append/read interface implemented by both the
// Postgres and in-memory adapters (spec Open Question 3).
type EventStore interface {
	// Append appends events at expectedVersion within an implicit transaction
	// scoped to the call.
	Append(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) error

	// AppendInTransaction does the same but exposes the active transaction so
	// the caller can insert outbox rows inside it.
	AppendInTransaction(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) (Transaction, error)

	// ReadStream returns events in ascending version order, optionally
	// starting at fromVersion.
	ReadStream(ctx context.Context, tenantID, streamID string, fromVersion int) ([]event.DomainEvent, error)
}

// OutboxStatus mirrors the lifecycle in spec §4.3/§6.
type OutboxStatus string

const (
	OutboxReady       OutboxStatus = "READY"
	OutboxProcessing  OutboxStatus = "PROCESSING"
	OutboxPublished   OutboxStatus = "PUBLISHED"
)

// OutboxRow is one row of the outbox_event table (spec §6).
type OutboxRow struct {
	ID            string
	TenantID      string
	Topic         string
	EventType     string
	Key           string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	ErrorReason   string
}

// OutboxRepository inserts and leases outbox rows.
type OutboxRepository interface {
	// InsertInTransaction inserts one outbox row per event, sharing the
	// event-store append's transaction.
	InsertInTransaction(ctx context.Context, tx Transaction, rows []OutboxRow) error

	// LeaseBatch atomically claims up to limit READY rows whose
	// next_attempt_at has elapsed, marking them PROCESSING.
	LeaseBatch(ctx context.Context, limit int) ([]OutboxRow, error)

	MarkPublished(ctx context.Context, id string) error

	MarkFailed(ctx context.Context, id string, retryCount int, nextAttemptAt time.Time, reason string) error
}

// MessageBus publishes outbox payloads to the external bus.
type MessageBus interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// ExchangeRateProvider resolves a currency conversion rate as of a point in
// time (spec §5 "Exchange-rate fetch"); its HTTP transport is out of scope.
type ExchangeRateProvider interface {
	Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}
