package inmemory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
)

func accountCreatedAt(tenantID, streamID string, version int) event.DomainEvent {
	return event.AccountCreated{
		Envelope:    event.NewEnvelope(streamID, version, tenantID, event.TypeAccountCreated, 1),
		AccountCode: "1000",
		Name:        "Cash",
		AccountType: "Asset",
	}
}

func TestAppend_ThenReadStream(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	err := s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, "")
	require.NoError(t, err)

	events, err := s.ReadStream(ctx, "tenant-1", streamID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppend_RejectsVersionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	err := s.Append(ctx, "tenant-1", streamID, 5, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, "")
	assert.Error(t, err)
}

func TestAppend_IdempotencyKeyDeduplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	err := s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, "key-1")
	require.NoError(t, err)

	err = s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, "key-1")
	require.NoError(t, err)

	events, err := s.ReadStream(ctx, "tenant-1", streamID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppend_ConcurrentAppendsOneWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	var wg sync.WaitGroup
	results := make([]error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestReadStream_FromVersionFiltersPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	require.NoError(t, s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 1)}, ""))
	require.NoError(t, s.Append(ctx, "tenant-1", streamID, 1, []event.DomainEvent{accountCreatedAt("tenant-1", streamID, 2)}, ""))

	events, err := s.ReadStream(ctx, "tenant-1", streamID, 2)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Version())
}

func TestAppend_RejectsTenantMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	streamID := event.ChartStreamID("tenant-1")

	err := s.Append(ctx, "tenant-1", streamID, 0, []event.DomainEvent{accountCreatedAt("other-tenant", streamID, 1)}, "")
	assert.Error(t, err)
}
