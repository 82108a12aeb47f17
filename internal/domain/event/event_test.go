package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountCreated(tenantID string, version int) AccountCreated {
	return AccountCreated{
		Envelope:       NewEnvelope(ChartStreamID(tenantID), version, tenantID, TypeAccountCreated, 1),
		AccountCode:    "1000",
		Name:           "Cash",
		AccountType:    "Asset",
		PostingAllowed: true,
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	original := newAccountCreated("tenant-1", 1)

	data, err := Serialize(original)
	require.NoError(t, err)

	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(AccountCreated)
	require.True(t, ok)

	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, original.AggregateID(), got.AggregateID())
	assert.Equal(t, original.AccountCode, got.AccountCode)
	assert.WithinDuration(t, original.OccurredAt(), got.OccurredAt(), time.Millisecond)
}

func TestDeserialize_RejectsUnknownEventType(t *testing.T) {
	_, err := Deserialize([]byte(`{"eventType":"SomethingMade up"}`))
	assert.Error(t, err)
}

func TestDeserialize_RejectsNonPositiveVersion(t *testing.T) {
	e := newAccountCreated("tenant-1", 0)
	data, err := Serialize(e)
	require.NoError(t, err)

	_, err = Deserialize(data)
	assert.Error(t, err)
}

func TestDeserialize_RejectsMismatchedAggregateIDConvention(t *testing.T) {
	e := newAccountCreated("tenant-1", 1)
	e.AggregateIDVal = "not-a-chart-stream"

	data, err := Serialize(e)
	require.NoError(t, err)

	_, err = Deserialize(data)
	assert.Error(t, err)
}

func TestDeserialize_RejectsMalformedJSON(t *testing.T) {
	_, err := Deserialize([]byte(`{not json`))
	assert.Error(t, err)
}

func TestJournalEntryPosted_StreamIDs(t *testing.T) {
	assert.Equal(t, "journal-entry-JE1", JournalStreamID("JE1"))
	assert.Equal(t, "journal-entry-REV-JE1", JournalStreamID("REV-JE1"))
}

func TestJournalEntryPosted_RoundTrip(t *testing.T) {
	posted := JournalEntryPosted{
		Envelope: NewEnvelope(JournalStreamID("JE1"), 1, "tenant-1", TypeJournalEntryPosted, 1),
		Entries: []PostedLine{
			{AccountCode: "1000", DebitCents: 10000},
			{AccountCode: "4000", CreditCents: 10000},
		},
		Reference: "INV-001",
		PostedAt:  time.Now().UTC(),
	}

	data, err := Serialize(posted)
	require.NoError(t, err)

	decoded, err := Deserialize(data)
	require.NoError(t, err)

	got, ok := decoded.(JournalEntryPosted)
	require.True(t, ok)
	assert.Len(t, got.Entries, 2)
	assert.Equal(t, "INV-001", got.Reference)
}

func TestIsChartStream(t *testing.T) {
	assert.True(t, IsChartStream(ChartStreamID("tenant-1")))
	assert.False(t, IsChartStream(JournalStreamID("JE1")))
}
