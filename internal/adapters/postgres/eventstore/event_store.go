// Package eventstore implements ports.EventStore against Postgres, following
// the teacher's repository idiom (components/ledger/internal/adapters/postgres/account):
// database/sql through pkg/dbtx for transaction-scoping, otel spans per call,
// and lib/pq error inspection for the unique-constraint-as-OCC pattern.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/pkg/dbtx"
	"github.com/LerianStudio/midaz-ledger-core/pkg/motel"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mtracer"
)

// EventStore is a database/sql-backed ports.EventStore.
type EventStore struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

var _ ports.EventStore = (*EventStore)(nil)

type sqlTransaction struct {
	tx *sql.Tx
}

func (t sqlTransaction) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t sqlTransaction) Rollback(ctx context.Context) error { return t.tx.Rollback() }

// Unwrap exposes the underlying *sql.Tx so the outbox repository can insert
// rows inside the same transaction as the event-store append.
func (t sqlTransaction) Unwrap() *sql.Tx { return t.tx }

func (s *EventStore) Append(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) error {
	tx, err := s.AppendInTransaction(ctx, tenantID, streamID, expectedVersion, events, idempotencyKey)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendInTransaction inserts one acc_event row per event inside a fresh
// transaction and returns it uncommitted so the caller can also insert
// outbox rows before committing (spec §4.3's co-transactional write).
func (s *EventStore) AppendInTransaction(ctx context.Context, tenantID, streamID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) (ports.Transaction, error) {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "eventstore.append")
	defer span.End()

	if idempotencyKey != "" {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM acc_event WHERE tenant_id = $1 AND idempotency_key = $2)`,
			tenantID, idempotencyKey,
		).Scan(&exists)
		if err != nil {
			motel.HandleSpanError(&span, "failed to check idempotency key", err)
			return nil, errs.Transport("failed to check idempotency key", err)
		}
		if exists {
			return noopCommitted{}, nil
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		motel.HandleSpanError(&span, "failed to begin transaction", err)
		return nil, errs.Transport("failed to begin transaction", err)
	}

	ctx = dbtx.ContextWithTx(ctx, tx)
	executor := dbtx.GetExecutor(ctx, s.db)

	version := expectedVersion
	for _, e := range events {
		if e.TenantID() != tenantID {
			_ = tx.Rollback()
			return nil, errs.TenantMismatch("event tenant does not match append tenant")
		}

		version++
		if e.Version() != version {
			_ = tx.Rollback()
			return nil, errs.Invariant("", "event version is not contiguous with expectedVersion")
		}

		payload, err := event.Serialize(e)
		if err != nil {
			_ = tx.Rollback()
			motel.HandleSpanError(&span, "failed to serialize event", err)
			return nil, errs.Wrap(errs.CodeFatal, "", "failed to serialize event", err)
		}

		var key sql.NullString
		if idempotencyKey != "" {
			key = sql.NullString{String: idempotencyKey, Valid: true}
		}

		_, err = executor.ExecContext(ctx, `
			INSERT INTO acc_event (id, tenant_id, stream_id, version, event_type, event_data, metadata, occurred_at, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.NewString(), tenantID, streamID, e.Version(), e.EventType(), json.RawMessage(payload), json.RawMessage("{}"), e.OccurredAt(), key)
		if err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				motel.HandleSpanError(&span, "concurrency conflict appending event", err)
				return nil, errs.ConcurrencyConflict("expected version does not match stream head")
			}
			motel.HandleSpanError(&span, "failed to insert event", err)
			return nil, errs.Transport("failed to insert event", err)
		}
	}

	return sqlTransaction{tx: tx}, nil
}

func (s *EventStore) ReadStream(ctx context.Context, tenantID, streamID string, fromVersion int) ([]event.DomainEvent, error) {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "eventstore.read_stream")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_data FROM acc_event
		WHERE tenant_id = $1 AND stream_id = $2 AND version >= $3
		ORDER BY version ASC
	`, tenantID, streamID, fromVersion)
	if err != nil {
		motel.HandleSpanError(&span, "failed to read stream", err)
		return nil, errs.Transport("failed to read stream", err)
	}
	defer rows.Close()

	var out []event.DomainEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			motel.HandleSpanError(&span, "failed to scan event row", err)
			return nil, errs.Transport("failed to scan event row", err)
		}

		e, err := event.Deserialize(raw)
		if err != nil {
			motel.HandleSpanError(&span, "failed to deserialize event", err)
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		motel.HandleSpanError(&span, "error iterating event rows", err)
		return nil, errs.Transport("error iterating event rows", err)
	}

	return out, nil
}

type noopCommitted struct{}

func (noopCommitted) Commit(ctx context.Context) error   { return nil }
func (noopCommitted) Rollback(ctx context.Context) error { return nil }

// Unwrap returns nil: a deduplicated idempotent append has no transaction for
// the outbox writer to share, so InsertInTransaction must treat a nil tx as
// a no-op.
func (noopCommitted) Unwrap() *sql.Tx { return nil }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
