package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
)

func TestInsertInTransaction_RequiresSQLBackedTx(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	err = r.InsertInTransaction(context.Background(), noopTx{}, []ports.OutboxRow{{ID: "1", TenantID: "t1", Topic: "accounting.account.created"}})
	assert.Error(t, err)
}

type noopTx struct{}

func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

func TestLeaseBatch_ReturnsLeasedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE outbox_event SET status = 'PROCESSING'").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "topic", "event_type", "key", "payload", "status", "retry_count", "created_at"}).
			AddRow("evt-1", "tenant-1", "accounting.account.created", "AccountCreated", "acct-1", []byte(`{}`), "PROCESSING", 0, time.Now()))

	r := New(db)
	rows, err := r.LeaseBatch(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ports.OutboxStatus("PROCESSING"), rows[0].Status)
	assert.Equal(t, "AccountCreated", rows[0].EventType)
}

func TestMarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE outbox_event SET status = 'PUBLISHED'").WillReturnResult(sqlmock.NewResult(0, 1))

	r := New(db)
	require.NoError(t, r.MarkPublished(context.Background(), "evt-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE outbox_event").WillReturnResult(sqlmock.NewResult(0, 1))

	r := New(db)
	require.NoError(t, r.MarkFailed(context.Background(), "evt-1", 1, time.Now().Add(2*time.Second), "bus unreachable"))
	require.NoError(t, mock.ExpectationsWereMet())
}
