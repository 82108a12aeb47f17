// Package outbox implements the transactional outbox repository (spec §4.3):
// co-transactional row insert alongside the event-store append, and a
// FOR UPDATE SKIP LOCKED lease query so multiple dispatcher workers can run
// concurrently against the same table.
package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/pkg/motel"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mtracer"
)

// Repository is a Postgres-backed ports.OutboxRepository.
type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ ports.OutboxRepository = (*Repository)(nil)

// sqlTxHolder exposes the underlying *sql.Tx a ports.Transaction wraps. The event
// store's AppendInTransaction and this repository's InsertInTransaction must
// be called against the very same transaction handle for the co-transactional
// write to hold.
type sqlTxHolder interface {
	Unwrap() *sql.Tx
}

func (r *Repository) InsertInTransaction(ctx context.Context, tx ports.Transaction, rows []ports.OutboxRow) error {
	holder, ok := tx.(sqlTxHolder)
	if !ok {
		return errs.New(errs.CodeFatal, "", "outbox insert requires a *sql.Tx-backed transaction")
	}

	sqlTx := holder.Unwrap()
	if sqlTx == nil {
		return nil
	}

	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "outbox.insert")
	defer span.End()

	for _, row := range rows {
		id := row.ID
		if id == "" {
			id = uuid.NewString()
		}

		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO outbox_event (id, tenant_id, topic, event_type, key, payload, status, retry_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'READY', 0, now())
		`, id, row.TenantID, row.Topic, row.EventType, row.Key, row.Payload)
		if err != nil {
			motel.HandleSpanError(&span, "failed to insert outbox row", err)
			return errs.Transport("failed to insert outbox row", err)
		}
	}

	return nil
}

func (r *Repository) LeaseBatch(ctx context.Context, limit int) ([]ports.OutboxRow, error) {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "outbox.lease_batch")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_event SET status = 'PROCESSING'
		WHERE id IN (
			SELECT id FROM outbox_event
			WHERE status = 'READY' AND (next_attempt_at IS NULL OR next_attempt_at <= now())
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING id, tenant_id, topic, event_type, key, payload, status, retry_count, created_at
	`, limit)
	if err != nil {
		motel.HandleSpanError(&span, "failed to lease outbox batch", err)
		return nil, errs.Transport("failed to lease outbox batch", err)
	}
	defer rows.Close()

	var out []ports.OutboxRow
	for rows.Next() {
		var row ports.OutboxRow
		var status string
		if err := rows.Scan(&row.ID, &row.TenantID, &row.Topic, &row.EventType, &row.Key, &row.Payload, &status, &row.RetryCount, &row.CreatedAt); err != nil {
			motel.HandleSpanError(&span, "failed to scan leased outbox row", err)
			return nil, errs.Transport("failed to scan leased outbox row", err)
		}
		row.Status = ports.OutboxStatus(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transport("error iterating leased outbox rows", err)
	}

	return out, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id string) error {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "outbox.mark_published")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_event SET status = 'PUBLISHED', processed_at = now() WHERE id = $1
	`, id)
	if err != nil {
		motel.HandleSpanError(&span, "failed to mark outbox row published", err)
		return errs.Transport("failed to mark outbox row published", err)
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id string, retryCount int, nextAttemptAt time.Time, reason string) error {
	tracer := mtracer.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "outbox.mark_failed")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_event
		SET status = 'READY', retry_count = $2, next_attempt_at = $3, error_reason = $4
		WHERE id = $1
	`, id, retryCount, nextAttemptAt, reason)
	if err != nil {
		motel.HandleSpanError(&span, "failed to mark outbox row failed", err)
		return errs.Transport("failed to mark outbox row failed", err)
	}
	return nil
}
