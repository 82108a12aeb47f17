package journalentry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/money"
)

func balancedLines() []Line {
	return []Line{
		{AccountCode: "1000", Debit: money.FromCents(10000)},
		{AccountCode: "4000", Credit: money.FromCents(10000)},
	}
}

func TestApprove_RequiresBalance(t *testing.T) {
	j := New("JE1", "tenant-1", []Line{
		{AccountCode: "1000", Debit: money.FromCents(10000)},
		{AccountCode: "4000", Credit: money.FromCents(9999)},
	}, "INV-001", "")

	err := j.Approve()
	assert.Error(t, err)
}

func TestPostFlow_Success(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")

	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))

	assert.Equal(t, Posted, j.Status)
	assert.Len(t, j.UncommittedEvents(), 1)
}

func TestPost_RejectsClosedPeriod(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())

	err := j.Post(PeriodClosed, "alice")
	assert.Error(t, err)
}

func TestPost_RejectsWithoutApproval(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	err := j.Post(PeriodOpen, "alice")
	assert.Error(t, err)
}

func TestPost_RejectsLineCountOutOfRange(t *testing.T) {
	j := New("JE1", "tenant-1", []Line{{AccountCode: "1000", Debit: money.FromCents(100)}}, "INV-001", "")
	j.Status = Approved
	err := j.Post(PeriodOpen, "alice")
	assert.Error(t, err)
}

func TestPost_RejectsInvalidReference(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "bad ref!!", "")
	require.NoError(t, j.Approve())

	err := j.Post(PeriodOpen, "alice")
	assert.Error(t, err)
}

func TestStateMachine_TerminalStatesRejectTransitions(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Void("alice"))

	err := j.Approve()
	assert.Error(t, err)
}

func TestVoid_AlreadyVoidedRejected(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Void("alice"))

	err := j.Void("alice")
	assert.Error(t, err)
}

func TestVoid_ReplayEquivalence(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Void("alice"))

	replayed := Rehydrate("JE1", "tenant-1", j.UncommittedEvents())
	assert.Equal(t, Voided, replayed.Status)
}

func TestReverse_RequiresPostedOrAdjusted(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")

	_, err := j.Reverse("JE1-REV", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestReverse_RejectsInvalidReversalDate(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))

	postingDate := time.Now()
	reversalDate := postingDate.Add(-24 * time.Hour)

	_, err := j.Reverse("JE1-REV", reversalDate, postingDate)
	assert.Error(t, err)
}

func TestReverse_SwapsDebitCredit(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))

	postingDate := time.Now()
	reversal, err := j.Reverse("JE1-REV", postingDate.Add(24*time.Hour), postingDate)
	require.NoError(t, err)

	assert.Equal(t, "REV-INV-001", reversal.Reference)
	assert.Equal(t, j.Lines[0].Debit, reversal.Lines[0].Credit)
	assert.Equal(t, j.Lines[1].Credit, reversal.Lines[1].Debit)

	require.NoError(t, j.MarkReversed("JE1-REV", "bob"))
	assert.Equal(t, Reversed, j.Status)
}

func TestMarkReversed_AlreadyReversedRejected(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))
	require.NoError(t, j.MarkReversed("JE1-REV", "bob"))

	err := j.MarkReversed("JE1-REV", "bob")
	assert.Error(t, err)
}

func TestMarkReversed_ReplayEquivalence(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))
	require.NoError(t, j.MarkReversed("JE1-REV", "bob"))

	replayed := Rehydrate("JE1", "tenant-1", j.UncommittedEvents())
	assert.Equal(t, Reversed, replayed.Status)
}

func TestAdjust_ReplayEquivalence(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))
	require.NoError(t, j.Adjust("alice"))

	replayed := Rehydrate("JE1", "tenant-1", j.UncommittedEvents())
	assert.Equal(t, Adjusted, replayed.Status)
}

func TestRehydrate_ReplayEquivalence(t *testing.T) {
	j := New("JE1", "tenant-1", balancedLines(), "INV-001", "")
	require.NoError(t, j.Approve())
	require.NoError(t, j.Post(PeriodOpen, "alice"))

	replayed := Rehydrate("JE1", "tenant-1", j.UncommittedEvents())

	assert.Equal(t, Posted, replayed.Status)
	assert.Equal(t, j.Reference, replayed.Reference)
	assert.Len(t, replayed.Lines, len(j.Lines))
}

func TestLine_Validate(t *testing.T) {
	err := Line{Debit: money.FromCents(100), Credit: money.FromCents(100)}.Validate()
	assert.Error(t, err)

	err = Line{Debit: money.FromCents(100)}.Validate()
	assert.NoError(t, err)
}
