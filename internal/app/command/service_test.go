package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/exchangerate"
	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/inmemory"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/chartofaccounts"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/journalentry"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/money"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/internal/projection"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mcircuitbreaker"
)

type fakeOutbox struct {
	rows []ports.OutboxRow
}

func (f *fakeOutbox) InsertInTransaction(ctx context.Context, tx ports.Transaction, rows []ports.OutboxRow) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeOutbox) LeaseBatch(ctx context.Context, limit int) ([]ports.OutboxRow, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(ctx context.Context, id string) error { return nil }

func (f *fakeOutbox) MarkFailed(ctx context.Context, id string, retryCount int, nextAttemptAt time.Time, reason string) error {
	return nil
}

func newTestService(t *testing.T) (*Service, *inmemory.EventStore, *fakeOutbox) {
	t.Helper()
	store := inmemory.New()
	outbox := &fakeOutbox{}
	ledger := projection.New()
	breaker := mcircuitbreaker.NewBreaker(mcircuitbreaker.DefaultSettings(), nil)
	rates := &exchangerate.StaticProvider{}
	svc := New(store, outbox, rates, ledger, breaker, nil, "USD")
	return svc, store, outbox
}

func TestCreateAccount_Success(t *testing.T) {
	svc, _, outbox := newTestService(t)

	err := svc.CreateAccount(context.Background(), CreateAccountCommand{
		TenantID: "tenant-1",
		Code:     "1000",
		Name:     "Cash",
		Type:     chartofaccounts.Asset,
	})
	require.NoError(t, err)
	assert.Len(t, outbox.rows, 1)
	assert.Equal(t, "accounting.account.created", outbox.rows[0].Topic)
}

func TestCreateAccount_DuplicateRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "1000", Name: "Cash", Type: chartofaccounts.Asset}))

	err := svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "1000", Name: "Cash 2", Type: chartofaccounts.Asset})
	assert.Error(t, err)
}

func TestPostJournalEntry_RejectsUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.PostJournalEntry(context.Background(), PostJournalEntryCommand{
		TenantID: "tenant-1",
		Lines: []journalentry.Line{
			{AccountCode: "9999", Debit: money.FromCents(100)},
			{AccountCode: "9998", Credit: money.FromCents(100)},
		},
		Currency:  "USD",
		Reference: "INV-001",
	})
	assert.Error(t, err)
}

func TestPostJournalEntry_Success(t *testing.T) {
	svc, _, outbox := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "1000", Name: "Cash", Type: chartofaccounts.Asset}))
	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "4000", Name: "Revenue", Type: chartofaccounts.Revenue}))

	err := svc.PostJournalEntry(ctx, PostJournalEntryCommand{
		TenantID: "tenant-1",
		Lines: []journalentry.Line{
			{AccountCode: "1000", Debit: money.FromCents(10000)},
			{AccountCode: "4000", Credit: money.FromCents(10000)},
		},
		Currency:  "USD",
		Reference: "INV-001",
		PostedBy:  "alice",
	})
	require.NoError(t, err)

	found := false
	for _, row := range outbox.rows {
		if row.Topic == "accounting.journal.posted" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReverseJournalEntry_Success(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "1000", Name: "Cash", Type: chartofaccounts.Asset}))
	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "4000", Name: "Revenue", Type: chartofaccounts.Revenue}))

	require.NoError(t, svc.PostJournalEntry(ctx, PostJournalEntryCommand{
		TenantID: "tenant-1",
		ID:       "je-1",
		Lines: []journalentry.Line{
			{AccountCode: "1000", Debit: money.FromCents(5000)},
			{AccountCode: "4000", Credit: money.FromCents(5000)},
		},
		Currency:  "USD",
		Reference: "INV-002",
		PostedBy:  "alice",
	}))

	err := svc.ReverseJournalEntry(ctx, ReverseJournalEntryCommand{TenantID: "tenant-1", ID: "je-1", ReversedBy: "bob"})
	require.NoError(t, err)

	events, err := store.ReadStream(ctx, "tenant-1", event.JournalStreamID("je-1"), 0)
	require.NoError(t, err)
	original := journalentry.Rehydrate("je-1", "tenant-1", events)
	assert.Equal(t, journalentry.Reversed, original.Status)

	err = svc.ReverseJournalEntry(ctx, ReverseJournalEntryCommand{TenantID: "tenant-1", ID: "je-1", ReversedBy: "bob"})
	assert.Error(t, err)
}

func TestPostJournalEntry_RejectsXORViolatingLine(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "1000", Name: "Cash", Type: chartofaccounts.Asset}))
	require.NoError(t, svc.CreateAccount(ctx, CreateAccountCommand{TenantID: "tenant-1", Code: "4000", Name: "Revenue", Type: chartofaccounts.Revenue}))

	err := svc.PostJournalEntry(ctx, PostJournalEntryCommand{
		TenantID: "tenant-1",
		Lines: []journalentry.Line{
			{AccountCode: "1000", Debit: money.FromCents(10000), Credit: money.FromCents(10000)},
			{AccountCode: "4000", Credit: money.FromCents(10000)},
			{AccountCode: "4000", Debit: money.FromCents(10000)},
		},
		Currency:  "USD",
		Reference: "INV-003",
		PostedBy:  "alice",
	})
	assert.Error(t, err)
}
