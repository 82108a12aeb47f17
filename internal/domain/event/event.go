// Package event implements the accounting core's domain-event envelope as a
// tagged union (spec §9): one concrete struct per event type, dispatched via
// a type switch on EventType(), never open polymorphism.
package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
)

// DomainEvent is implemented by every concrete event type.
type DomainEvent interface {
	EventID() string
	AggregateID() string
	Version() int
	OccurredAt() time.Time
	TenantID() string
	EventType() string
	SchemaVersion() int
}

// Envelope carries the fields common to every event type (spec §3 "DomainEvent").
type Envelope struct {
	ID              string    `json:"id"`
	AggregateIDVal  string    `json:"aggregateId"`
	VersionVal      int       `json:"version"`
	OccurredAtVal   time.Time `json:"occurredAt"`
	TenantIDVal     string    `json:"tenantId"`
	EventTypeVal    string    `json:"eventType"`
	SchemaVersionVal int      `json:"schemaVersion"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	CausationID     string    `json:"causationId,omitempty"`
}

func (e Envelope) EventID() string        { return e.ID }
func (e Envelope) AggregateID() string     { return e.AggregateIDVal }
func (e Envelope) Version() int            { return e.VersionVal }
func (e Envelope) OccurredAt() time.Time   { return e.OccurredAtVal }
func (e Envelope) TenantID() string        { return e.TenantIDVal }
func (e Envelope) EventType() string       { return e.EventTypeVal }
func (e Envelope) SchemaVersion() int      { return e.SchemaVersionVal }

// NewEnvelope builds an Envelope with a fresh event ID and current timestamp.
func NewEnvelope(aggregateID string, version int, tenantID, eventType string, schemaVersion int) Envelope {
	return Envelope{
		ID:               uuid.NewString(),
		AggregateIDVal:   aggregateID,
		VersionVal:       version,
		OccurredAtVal:    time.Now().UTC(),
		TenantIDVal:      tenantID,
		EventTypeVal:     eventType,
		SchemaVersionVal: schemaVersion,
	}
}

const (
	TypeAccountCreated             = "AccountCreated"
	TypeAccountBalanceUpdated      = "AccountBalanceUpdated"
	TypeAccountStateUpdated        = "AccountStateUpdated"
	TypeAccountParentChanged       = "AccountParentChanged"
	TypeAccountPostingPolicyChanged = "AccountPostingPolicyChanged"
	TypeAccountCompanionLinksSet   = "AccountCompanionLinksSet"
	TypeJournalEntryPosted         = "JournalEntryPosted"
	TypePostingContextRecorded     = "PostingContextRecorded"
	TypeJournalEntryVoided         = "JournalEntryVoided"
	TypeJournalEntryAdjusted       = "JournalEntryAdjusted"
	TypeJournalEntryReversed       = "JournalEntryReversed"
)

var chartStreamPattern = regexp.MustCompile(`^chart-of-accounts-.+$`)
var journalStreamPattern = regexp.MustCompile(`^journal-entry-(REV-)?.+$`)

// ValidateEnvelopeConvention checks the cross-field rules spec §3/§6 impose
// on every deserialized event: positive version, non-zero occurredAt,
// positive schemaVersion, and an aggregateId matching its owning stream's
// naming convention.
func ValidateEnvelopeConvention(e Envelope) error {
	if e.VersionVal <= 0 {
		return errs.New(errs.CodeFatal, "", "version must be positive")
	}

	if e.OccurredAtVal.IsZero() {
		return errs.New(errs.CodeFatal, "", "occurredAt must be set")
	}

	if e.SchemaVersionVal <= 0 {
		return errs.New(errs.CodeFatal, "", "schemaVersion must be >= 1")
	}

	switch {
	case isChartEventType(e.EventTypeVal):
		if !chartStreamPattern.MatchString(e.AggregateIDVal) {
			return errs.New(errs.CodeFatal, "", "aggregateId does not match chart-of-accounts stream convention")
		}
	case isJournalEventType(e.EventTypeVal):
		if !journalStreamPattern.MatchString(e.AggregateIDVal) {
			return errs.New(errs.CodeFatal, "", "aggregateId does not match journal-entry stream convention")
		}
	default:
		return errs.New(errs.CodeFatal, "", fmt.Sprintf("unknown eventType %q", e.EventTypeVal))
	}

	return nil
}

func isChartEventType(t string) bool {
	switch t {
	case TypeAccountCreated, TypeAccountBalanceUpdated, TypeAccountStateUpdated,
		TypeAccountParentChanged, TypeAccountPostingPolicyChanged, TypeAccountCompanionLinksSet:
		return true
	default:
		return false
	}
}

func isJournalEventType(t string) bool {
	switch t {
	case TypeJournalEntryPosted, TypePostingContextRecorded,
		TypeJournalEntryVoided, TypeJournalEntryAdjusted, TypeJournalEntryReversed:
		return true
	default:
		return false
	}
}

// --- Concrete event types -------------------------------------------------

type AccountCreated struct {
	Envelope
	AccountCode    string `json:"accountCode"`
	Name           string `json:"name"`
	AccountType    string `json:"accountType"`
	ParentCode     string `json:"parentCode,omitempty"`
	SpecialType    string `json:"specialType,omitempty"`
	PostingAllowed bool   `json:"postingAllowed"`
}

type AccountBalanceUpdated struct {
	Envelope
	AccountCode   string `json:"accountCode"`
	BalanceCents  int64  `json:"balanceCents"`
}

type AccountStateUpdated struct {
	Envelope
	AccountCode string `json:"accountCode"`
	IsActive    bool   `json:"isActive"`
}

type AccountParentChanged struct {
	Envelope
	AccountCode  string `json:"accountCode"`
	NewParentCode string `json:"newParentCode"`
}

type AccountPostingPolicyChanged struct {
	Envelope
	AccountCode    string `json:"accountCode"`
	PostingAllowed bool   `json:"postingAllowed"`
}

type AccountCompanionLinksSet struct {
	Envelope
	AccountCode                string `json:"accountCode"`
	AccumulatedDepreciationCode string `json:"accumulatedDepreciationCode,omitempty"`
	DepreciationExpenseCode     string `json:"depreciationExpenseCode,omitempty"`
	AllowanceAccountCode        string `json:"allowanceAccountCode,omitempty"`
}

// PostedLine is the enriched line carried on JournalEntryPosted.
type PostedLine struct {
	AccountCode string `json:"accountCode"`
	Description string `json:"description,omitempty"`
	DebitCents  int64  `json:"debitCents"`
	CreditCents int64  `json:"creditCents"`
	Reference   string `json:"reference,omitempty"`
}

type JournalEntryPosted struct {
	Envelope
	Entries     []PostedLine `json:"entries"`
	Reference   string       `json:"reference,omitempty"`
	Description string       `json:"description,omitempty"`
	PostedBy    string       `json:"postedBy,omitempty"`
	PostedAt    time.Time    `json:"postedAt"`
}

// PostingContextRecorded carries the richer accounting-period/multi-currency/
// tax/approval metadata that spec.md's Open Question 1 moves off the minimal
// JournalEntryPosted event onto a companion record on the same stream.
type PostingContextRecorded struct {
	Envelope
	Period          string            `json:"period,omitempty"`
	OriginalCurrency string           `json:"originalCurrency,omitempty"`
	BaseCurrency     string           `json:"baseCurrency,omitempty"`
	ExchangeRate     string           `json:"exchangeRate,omitempty"`
	ApprovedBy       string           `json:"approvedBy,omitempty"`
	SupportingDocs   []string         `json:"supportingDocs,omitempty"`
	TaxLines         map[string]int64 `json:"taxLinesCents,omitempty"`
}

// JournalEntryVoided records a voided entry (spec §4.2.2 Void transition).
type JournalEntryVoided struct {
	Envelope
	VoidedBy string `json:"voidedBy,omitempty"`
}

// JournalEntryAdjusted records a Posted entry's transition to Adjusted.
type JournalEntryAdjusted struct {
	Envelope
	AdjustedBy string `json:"adjustedBy,omitempty"`
}

// JournalEntryReversed records the original entry's transition to Reversed
// once its opposite-sided reversal posting has been committed.
type JournalEntryReversed struct {
	Envelope
	ReversalID string `json:"reversalId"`
	ReversedBy string `json:"reversedBy,omitempty"`
}

// Serialize marshals a DomainEvent to JSON. Every concrete type embeds
// Envelope so the standard json package already emits the common fields.
func Serialize(e DomainEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Deserialize inspects the raw JSON's eventType and decodes into the matching
// concrete struct, validating envelope conventions before returning.
func Deserialize(data []byte) (DomainEvent, error) {
	var probe struct {
		EventType string `json:"eventType"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errs.Wrap(errs.CodeFatal, "", "malformed event JSON", err)
	}

	var out DomainEvent

	switch probe.EventType {
	case TypeAccountCreated:
		var v AccountCreated
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountCreated", err)
		}
		out = v
	case TypeAccountBalanceUpdated:
		var v AccountBalanceUpdated
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountBalanceUpdated", err)
		}
		out = v
	case TypeAccountStateUpdated:
		var v AccountStateUpdated
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountStateUpdated", err)
		}
		out = v
	case TypeAccountParentChanged:
		var v AccountParentChanged
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountParentChanged", err)
		}
		out = v
	case TypeAccountPostingPolicyChanged:
		var v AccountPostingPolicyChanged
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountPostingPolicyChanged", err)
		}
		out = v
	case TypeAccountCompanionLinksSet:
		var v AccountCompanionLinksSet
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed AccountCompanionLinksSet", err)
		}
		out = v
	case TypeJournalEntryPosted:
		var v JournalEntryPosted
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed JournalEntryPosted", err)
		}
		out = v
	case TypePostingContextRecorded:
		var v PostingContextRecorded
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed PostingContextRecorded", err)
		}
		out = v
	case TypeJournalEntryVoided:
		var v JournalEntryVoided
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed JournalEntryVoided", err)
		}
		out = v
	case TypeJournalEntryAdjusted:
		var v JournalEntryAdjusted
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed JournalEntryAdjusted", err)
		}
		out = v
	case TypeJournalEntryReversed:
		var v JournalEntryReversed
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errs.Wrap(errs.CodeFatal, "", "malformed JournalEntryReversed", err)
		}
		out = v
	default:
		return nil, errs.New(errs.CodeFatal, "", fmt.Sprintf("unknown eventType %q", probe.EventType))
	}

	env := envelopeOf(out)
	if err := ValidateEnvelopeConvention(env); err != nil {
		return nil, err
	}

	return out, nil
}

func envelopeOf(e DomainEvent) Envelope {
	return Envelope{
		ID:               e.EventID(),
		AggregateIDVal:   e.AggregateID(),
		VersionVal:       e.Version(),
		OccurredAtVal:    e.OccurredAt(),
		TenantIDVal:      e.TenantID(),
		EventTypeVal:     e.EventType(),
		SchemaVersionVal: e.SchemaVersion(),
	}
}

// ChartStreamID builds the stream id for a tenant's chart of accounts.
func ChartStreamID(tenantID string) string {
	return "chart-of-accounts-" + tenantID
}

// JournalStreamID builds the stream id for a journal entry.
func JournalStreamID(journalEntryID string) string {
	return "journal-entry-" + journalEntryID
}

// IsChartStream reports whether streamID names a chart-of-accounts stream.
func IsChartStream(streamID string) bool {
	return strings.HasPrefix(streamID, "chart-of-accounts-")
}
