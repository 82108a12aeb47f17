// Package journalentry implements the JournalEntry aggregate (spec §4.2.2):
// the Draft→Approved→Posted→{Adjusted,Reversed,Voided} state machine, the
// balanced-entry invariant, and reversal semantics.
package journalentry

import (
	"regexp"
	"time"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/aggregate"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/money"
)

type Status string

const (
	Draft    Status = "Draft"
	Approved Status = "Approved"
	Posted   Status = "Posted"
	Adjusted Status = "Adjusted"
	Voided   Status = "Voided"
	Reversed Status = "Reversed"
)

const (
	minLines        = 2
	maxLines        = 100
	maxLineMajorUnits = 1_000_000
)

var referencePattern = regexp.MustCompile(`^[A-Z0-9-]{3,20}$`)

// allowedTransitions lists, per spec §4.2.2, the states reachable from each
// state (self-transitions included where the table allows a no-op).
var allowedTransitions = map[Status]map[Status]bool{
	Draft:    {Draft: true, Approved: true, Voided: true},
	Approved: {Approved: true, Posted: true, Draft: true, Voided: true},
	Posted:   {Adjusted: true, Reversed: true, Voided: true},
	Adjusted: {Adjusted: true, Reversed: true, Voided: true},
	Voided:   {},
	Reversed: {},
}

// Line is one debit/credit entry of a journal entry (spec §3 "JournalEntryLine").
type Line struct {
	AccountCode string
	Description string
	Debit       money.Money
	Credit      money.Money
	Reference   string
}

func (l Line) Validate() error {
	if l.Debit.IsPositive() == l.Credit.IsPositive() {
		return errs.Validation("exactly one of debit/credit must be positive")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return errs.Validation("debit and credit must be non-negative")
	}
	return nil
}

// JournalEntry is the aggregate governing one posting's lifecycle.
type JournalEntry struct {
	aggregate.Base

	ID          string
	TenantID    string
	Status      Status
	Lines       []Line
	Reference   string
	Description string
	PostedAt    *time.Time
	PostedBy    string
}

// New creates a draft journal entry.
func New(id, tenantID string, lines []Line, reference, description string) *JournalEntry {
	return &JournalEntry{
		ID:          id,
		TenantID:    tenantID,
		Status:      Draft,
		Lines:       lines,
		Reference:   reference,
		Description: description,
	}
}

// Rehydrate replays events onto a fresh aggregate.
func Rehydrate(id, tenantID string, events []event.DomainEvent) *JournalEntry {
	j := &JournalEntry{ID: id, TenantID: tenantID, Status: Draft}
	for _, e := range events {
		j.apply(e)
		j.SetVersion(e.Version())
	}
	return j
}

func (j *JournalEntry) StreamID() string {
	return event.JournalStreamID(j.ID)
}

func (j *JournalEntry) transition(to Status) error {
	allowed, ok := allowedTransitions[j.Status]
	if !ok || !allowed[to] {
		return errs.Invariant(errs.ReasonInvalidTransition, string(j.Status)+" cannot transition to "+string(to))
	}
	return nil
}

func (j *JournalEntry) isBalanced() bool {
	var debit, credit int64
	for _, l := range j.Lines {
		debit += l.Debit.Cents()
		credit += l.Credit.Cents()
	}
	return debit == credit && debit > 0
}

// Approve validates the entry is balanced and moves it to Approved.
func (j *JournalEntry) Approve() error {
	if err := j.transition(Approved); err != nil {
		return err
	}
	if !j.isBalanced() {
		return errs.Invariant(errs.ReasonNotBalanced, "entry debits and credits do not balance")
	}
	j.Status = Approved
	return nil
}

// PeriodState gates whether a posting period accepts new postings (spec §6).
type PeriodState string

const (
	PeriodOpen      PeriodState = "OPEN"
	PeriodClosed    PeriodState = "CLOSED"
	PeriodLocked    PeriodState = "LOCKED"
	PeriodFinalized PeriodState = "FINALIZED"
)

func validateLineCount(lines []Line) error {
	if len(lines) < minLines || len(lines) > maxLines {
		return errs.Invariant("", "journal entry must have between 2 and 100 lines")
	}
	return nil
}

func validateLineAmounts(lines []Line) error {
	max := money.FromCents(maxLineMajorUnits * 100)
	for _, l := range lines {
		if l.Debit.Compare(max) > 0 || l.Credit.Compare(max) > 0 {
			return errs.Invariant("", "line amount exceeds 1,000,000 major units")
		}
	}
	return nil
}

func validateReference(reference string) error {
	if reference == "" {
		return nil
	}
	if !referencePattern.MatchString(reference) {
		return errs.Invariant("", "reference must match ^[A-Z0-9-]{3,20}$")
	}
	return nil
}

// Post validates the period is open, the entry is approved and balanced, and
// emits JournalEntryPosted.
func (j *JournalEntry) Post(period PeriodState, postedBy string) error {
	if j.Status != Approved {
		return errs.Invariant(errs.ReasonNotApproved, "entry must be approved before posting")
	}
	if err := j.transition(Posted); err != nil {
		return err
	}
	if !j.isBalanced() {
		return errs.Invariant(errs.ReasonNotBalanced, "entry debits and credits do not balance")
	}
	if period != PeriodOpen {
		return errs.Invariant(errs.ReasonPeriodClosed, "posting period is not open")
	}
	if err := validateLineCount(j.Lines); err != nil {
		return err
	}
	if err := validateLineAmounts(j.Lines); err != nil {
		return err
	}
	if err := validateReference(j.Reference); err != nil {
		return err
	}
	for _, l := range j.Lines {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	postedAt := time.Now().UTC()

	e := event.JournalEntryPosted{
		Envelope:    event.NewEnvelope(j.StreamID(), j.Version()+1, j.TenantID, event.TypeJournalEntryPosted, 1),
		Entries:     toPostedLines(j.Lines),
		Reference:   j.Reference,
		Description: j.Description,
		PostedBy:    postedBy,
		PostedAt:    postedAt,
	}

	j.Record(e)
	j.apply(e)

	return nil
}

// Void marks a non-terminal entry Voided, recording JournalEntryVoided.
func (j *JournalEntry) Void(voidedBy string) error {
	if j.Status == Voided {
		return errs.Invariant(errs.ReasonAlreadyVoided, "entry is already voided")
	}
	if err := j.transition(Voided); err != nil {
		return err
	}

	e := event.JournalEntryVoided{
		Envelope: event.NewEnvelope(j.StreamID(), j.Version()+1, j.TenantID, event.TypeJournalEntryVoided, 1),
		VoidedBy: voidedBy,
	}
	j.Record(e)
	j.apply(e)

	return nil
}

// Adjust transitions a Posted entry into Adjusted, recording
// JournalEntryAdjusted.
func (j *JournalEntry) Adjust(adjustedBy string) error {
	if j.Status != Posted && j.Status != Adjusted {
		return errs.Invariant(errs.ReasonInvalidAdjustment, "only a posted entry may be adjusted")
	}
	if err := j.transition(Adjusted); err != nil {
		return err
	}

	e := event.JournalEntryAdjusted{
		Envelope:   event.NewEnvelope(j.StreamID(), j.Version()+1, j.TenantID, event.TypeJournalEntryAdjusted, 1),
		AdjustedBy: adjustedBy,
	}
	j.Record(e)
	j.apply(e)

	return nil
}

// Reverse validates the reversal guards and returns a new draft JournalEntry
// representing the opposite-sided reversal posting; the caller posts it and
// then calls j.MarkReversed() on the original.
func (j *JournalEntry) Reverse(reversalID string, reversalDate, postingDate time.Time) (*JournalEntry, error) {
	if j.Status != Posted && j.Status != Adjusted {
		return nil, errs.Invariant(errs.ReasonAlreadyReversed, "only a posted or adjusted entry may be reversed")
	}
	if reversalDate.Before(postingDate) {
		return nil, errs.Invariant(errs.ReasonInvalidReversalDate, "reversalDate must be >= postingDate")
	}

	reversedLines := make([]Line, len(j.Lines))
	for i, l := range j.Lines {
		reversedLines[i] = Line{
			AccountCode: l.AccountCode,
			Description: l.Description,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Reference:   l.Reference,
		}
	}

	reversal := New(reversalID, j.TenantID, reversedLines, "REV-"+j.Reference, "reversal of "+j.ID)

	return reversal, nil
}

// MarkReversed transitions j itself to Reversed once its reversal posting has
// been committed, recording JournalEntryReversed so the transition survives
// a rehydrate.
func (j *JournalEntry) MarkReversed(reversalID, reversedBy string) error {
	if j.Status == Reversed {
		return errs.Invariant(errs.ReasonAlreadyReversed, "entry is already reversed")
	}
	if err := j.transition(Reversed); err != nil {
		return err
	}

	e := event.JournalEntryReversed{
		Envelope:   event.NewEnvelope(j.StreamID(), j.Version()+1, j.TenantID, event.TypeJournalEntryReversed, 1),
		ReversalID: reversalID,
		ReversedBy: reversedBy,
	}
	j.Record(e)
	j.apply(e)

	return nil
}

func toPostedLines(lines []Line) []event.PostedLine {
	out := make([]event.PostedLine, len(lines))
	for i, l := range lines {
		out[i] = event.PostedLine{
			AccountCode: l.AccountCode,
			Description: l.Description,
			DebitCents:  l.Debit.Cents(),
			CreditCents: l.Credit.Cents(),
			Reference:   l.Reference,
		}
	}
	return out
}

func fromPostedLines(lines []event.PostedLine) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			AccountCode: l.AccountCode,
			Description: l.Description,
			Debit:       money.FromCents(l.DebitCents),
			Credit:      money.FromCents(l.CreditCents),
			Reference:   l.Reference,
		}
	}
	return out
}

func (j *JournalEntry) apply(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.JournalEntryPosted:
		j.Lines = fromPostedLines(evt.Entries)
		j.Reference = evt.Reference
		j.Description = evt.Description
		j.PostedBy = evt.PostedBy
		postedAt := evt.PostedAt
		j.PostedAt = &postedAt
		j.Status = Posted
	case event.JournalEntryVoided:
		j.Status = Voided
	case event.JournalEntryAdjusted:
		j.Status = Adjusted
	case event.JournalEntryReversed:
		j.Status = Reversed
	}
}
