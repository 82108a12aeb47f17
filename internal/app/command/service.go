// Package command implements the accounting service orchestrator (spec
// §4.6): createAccount, postJournalEntry, and reverseJournalEntry, each
// running behind the circuit breaker and each completing atomically — events
// and outbox rows land in one transaction, or nothing does.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"

	"github.com/LerianStudio/midaz-ledger-core/internal/adapters/rabbitmq"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/chartofaccounts"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/journalentry"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/money"
	"github.com/LerianStudio/midaz-ledger-core/internal/ports"
	"github.com/LerianStudio/midaz-ledger-core/internal/projection"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mcircuitbreaker"
	"github.com/LerianStudio/midaz-ledger-core/pkg/mlog"
)

// Service is the accounting core's orchestrator: the one place that loads
// aggregates, runs commands, and commits events/outbox atomically.
type Service struct {
	store        ports.EventStore
	outbox       ports.OutboxRepository
	rates        ports.ExchangeRateProvider
	ledger       *projection.Ledger
	breaker      *mcircuitbreaker.Breaker
	logger       libLog.Logger
	baseCurrency string
}

// New wires a Service from its collaborators.
func New(store ports.EventStore, outbox ports.OutboxRepository, rates ports.ExchangeRateProvider, ledger *projection.Ledger, breaker *mcircuitbreaker.Breaker, logger libLog.Logger, baseCurrency string) *Service {
	return &Service{
		store:        store,
		outbox:       outbox,
		rates:        rates,
		ledger:       ledger,
		breaker:      breaker,
		logger:       logger,
		baseCurrency: baseCurrency,
	}
}

// CreateAccountCommand is the input to CreateAccount.
type CreateAccountCommand struct {
	TenantID    string
	Code        string
	Name        string
	Type        chartofaccounts.AccountType
	ParentCode  string
	SpecialType chartofaccounts.SpecialType
	Companions  chartofaccounts.CompanionLinks
}

// CreateAccount loads the tenant's chart stream, applies the command, and
// commits the resulting event plus its outbox row in one transaction.
func (s *Service) CreateAccount(ctx context.Context, cmd CreateAccountCommand) error {
	return s.execute(ctx, "createAccount", func(ctx context.Context) error {
		we := mlog.WideEvent{}
		we.SetOrganization(cmd.TenantID)
		defer we.Emit(s.logger)

		events, err := s.store.ReadStream(ctx, cmd.TenantID, event.ChartStreamID(cmd.TenantID), 0)
		if err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		chart := chartofaccounts.Rehydrate(cmd.TenantID, events)

		if err := chart.CreateAccount(cmd.Code, cmd.Name, cmd.Type, cmd.ParentCode, cmd.SpecialType, cmd.Companions); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		if err := s.commit(ctx, chart.StreamID(), cmd.TenantID, len(events), chart.UncommittedEvents(), ""); err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		s.ledger.SeedAccount(cmd.TenantID, cmd.Code, cmd.Type)
		we.SetResponse(200, 0)

		return nil
	})
}

// PostJournalEntryCommand is the input to PostJournalEntry.
type PostJournalEntryCommand struct {
	TenantID    string
	ID          string
	Lines       []journalentry.Line
	Reference   string
	Description string
	Currency    string
	PostedBy    string
}

// accountLookup resolves an account's existence/currency-agnostic state for
// the bulk-lookup pass (spec §4.6: "fail fast if any line's account does not
// exist"). In this module an account IS the chart-of-accounts entry, so the
// lookup reads the chart stream once for the whole command.
type accountLookup interface {
	Account(code string) (chartofaccounts.Account, bool)
}

// PostJournalEntry validates the posting, converts it to the base currency
// if needed, and posts it as a single atomic commit.
func (s *Service) PostJournalEntry(ctx context.Context, cmd PostJournalEntryCommand) error {
	return s.execute(ctx, "postJournalEntry", func(ctx context.Context) error {
		we := mlog.WideEvent{}
		we.SetOrganization(cmd.TenantID)
		defer we.Emit(s.logger)

		if cmd.Currency == "" {
			err := errs.Validation("currency is required")
			we.SetError("validation", "", err.Error(), false)
			return err
		}

		chartEvents, err := s.store.ReadStream(ctx, cmd.TenantID, event.ChartStreamID(cmd.TenantID), 0)
		if err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}
		chart := chartofaccounts.Rehydrate(cmd.TenantID, chartEvents)

		if err := s.checkAccountsExist(chart, cmd.Lines); err != nil {
			we.SetError("validation", "", err.Error(), false)
			return err
		}

		if err := checkOriginalBalance(cmd.Lines); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		convertedLines, err := s.convertLines(ctx, cmd.Lines, cmd.Currency)
		if err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		if err := checkOriginalBalance(convertedLines); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		we.SetLineCounts(countDebitLines(convertedLines), countCreditLines(convertedLines))

		id := cmd.ID
		if id == "" {
			id = uuid.NewString()
		}

		je := journalentry.New(id, cmd.TenantID, convertedLines, cmd.Reference, cmd.Description)

		if err := je.Approve(); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}
		if err := je.Post(journalentry.PeriodOpen, cmd.PostedBy); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		existing, err := s.store.ReadStream(ctx, cmd.TenantID, event.JournalStreamID(id), 0)
		if err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		if err := s.commit(ctx, je.StreamID(), cmd.TenantID, len(existing), je.UncommittedEvents(), ""); err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		we.SetTransaction(id, "JournalEntryPosted", "", cmd.Currency)
		we.SetResponse(200, 0)

		return nil
	})
}

// ReverseJournalEntryCommand is the input to ReverseJournalEntry.
type ReverseJournalEntryCommand struct {
	TenantID   string
	ID         string
	ReversedBy string
}

// ReverseJournalEntry loads the original entry, posts an opposite-sided
// reversal, and transitions the original to Reversed — both mutations commit
// as two atomic steps sharing the same orchestration call.
func (s *Service) ReverseJournalEntry(ctx context.Context, cmd ReverseJournalEntryCommand) error {
	return s.execute(ctx, "reverseJournalEntry", func(ctx context.Context) error {
		we := mlog.WideEvent{}
		we.SetOrganization(cmd.TenantID)
		defer we.Emit(s.logger)

		originalEvents, err := s.store.ReadStream(ctx, cmd.TenantID, event.JournalStreamID(cmd.ID), 0)
		if err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}
		original := journalentry.Rehydrate(cmd.ID, cmd.TenantID, originalEvents)

		reversalID := "REV-" + cmd.ID
		now := time.Now().UTC()

		reversal, err := original.Reverse(reversalID, now, now)
		if err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		if err := reversal.Approve(); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}
		if err := reversal.Post(journalentry.PeriodOpen, cmd.ReversedBy); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		if err := s.commit(ctx, reversal.StreamID(), cmd.TenantID, 0, reversal.UncommittedEvents(), ""); err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		if err := original.MarkReversed(reversalID, cmd.ReversedBy); err != nil {
			we.SetError("invariant", "", err.Error(), false)
			return err
		}

		if err := s.commit(ctx, original.StreamID(), cmd.TenantID, len(originalEvents), original.UncommittedEvents(), ""); err != nil {
			we.SetError("transport", "", err.Error(), true)
			return err
		}

		we.SetTransaction(reversalID, "JournalEntryReversed", "", "")
		we.SetResponse(200, 0)

		return nil
	})
}

func (s *Service) checkAccountsExist(chart accountLookup, lines []journalentry.Line) error {
	for _, l := range lines {
		if _, ok := chart.Account(l.AccountCode); !ok {
			return errs.Validation("unknown account code: " + l.AccountCode)
		}
	}
	return nil
}

func checkOriginalBalance(lines []journalentry.Line) error {
	var debit, credit int64
	for _, l := range lines {
		debit += l.Debit.Cents()
		credit += l.Credit.Cents()
	}
	if debit != credit {
		return errs.Invariant(errs.ReasonNotBalanced, "original-currency lines do not balance")
	}
	return nil
}

// convertLines converts every line into the service's base currency,
// delegating to the exchange-rate collaborator and redistributing rounding
// residue onto the largest line so the converted total still balances
// exactly (spec §4.6 "re-check balance after rounding").
func (s *Service) convertLines(ctx context.Context, lines []journalentry.Line, fromCurrency string) ([]journalentry.Line, error) {
	if fromCurrency == s.baseCurrency {
		return lines, nil
	}

	rate, err := s.rates.Rate(ctx, fromCurrency, s.baseCurrency, time.Now())
	if err != nil {
		return nil, err
	}

	converted := make([]journalentry.Line, len(lines))
	var debitTotal, creditTotal int64
	largestIdx := 0

	for i, l := range lines {
		converted[i] = journalentry.Line{
			AccountCode: l.AccountCode,
			Description: l.Description,
			Reference:   l.Reference,
			Debit:       convertCents(l.Debit, rate),
			Credit:      convertCents(l.Credit, rate),
		}
		debitTotal += converted[i].Debit.Cents()
		creditTotal += converted[i].Credit.Cents()

		if converted[i].Debit.Cents()+converted[i].Credit.Cents() > converted[largestIdx].Debit.Cents()+converted[largestIdx].Credit.Cents() {
			largestIdx = i
		}
	}

	residue := debitTotal - creditTotal
	if residue != 0 {
		if converted[largestIdx].Debit.IsPositive() {
			converted[largestIdx].Debit = converted[largestIdx].Debit.Sub(money.FromCents(residue))
		} else {
			converted[largestIdx].Credit = converted[largestIdx].Credit.Add(money.FromCents(residue))
		}
	}

	return converted, nil
}

func convertCents(m money.Money, rate decimal.Decimal) money.Money {
	converted := decimal.NewFromInt(m.Cents()).Mul(rate).Round(0)
	return money.FromCents(converted.IntPart())
}

func countDebitLines(lines []journalentry.Line) int {
	count := 0
	for _, l := range lines {
		if l.Debit.IsPositive() {
			count++
		}
	}
	return count
}

func countCreditLines(lines []journalentry.Line) int {
	count := 0
	for _, l := range lines {
		if l.Credit.IsPositive() {
			count++
		}
	}
	return count
}

// commit appends events and their outbox rows in one transaction (spec
// §4.3's co-transactional write path).
func (s *Service) commit(ctx context.Context, streamID, tenantID string, expectedVersion int, events []event.DomainEvent, idempotencyKey string) error {
	tx, err := s.store.AppendInTransaction(ctx, tenantID, streamID, expectedVersion, events, idempotencyKey)
	if err != nil {
		return err
	}

	rows := make([]ports.OutboxRow, 0, len(events))
	for _, e := range events {
		payload, err := event.Serialize(e)
		if err != nil {
			_ = tx.Rollback(ctx)
			return errs.Wrap(errs.CodeFatal, "", "failed to serialize event for outbox", err)
		}
		rows = append(rows, ports.OutboxRow{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Topic:     rabbitmq.TopicFor(e.EventType()),
			EventType: e.EventType(),
			Key:       e.AggregateID(),
			Payload:   payload,
		})
	}

	if err := s.outbox.InsertInTransaction(ctx, tx, rows); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// execute wraps fn behind the named circuit breaker (spec §4.5/§4.6).
func (s *Service) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Execute(ctx, operation, fn)
}
