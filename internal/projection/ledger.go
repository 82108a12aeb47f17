// Package projection maintains the general-ledger read model (spec §4.4):
// per-tenant cumulative account balances derived from JournalEntryPosted,
// with balance history, period snapshots, and an integrity report.
package projection

import (
	"sync"
	"time"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/chartofaccounts"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
)

const maxHistoryPerAccount = 1000

type acctKey struct {
	tenantID string
	code     string
}

// BalanceEntry is one point in an account's balance history.
type BalanceEntry struct {
	Cents   int64
	AsOf    time.Time
	EventID string
}

// TrialBalance is the output of trialBalance(tenant).
type TrialBalance struct {
	TenantID   string
	DebitCents int64
	CreditCents int64
	IsBalanced bool
}

// IntegrityOffender flags one account in violation of its expected sign.
type IntegrityOffender struct {
	AccountCode string
	AccountType string
	Cents       int64
	Reason      string
}

// IntegrityReport is the output of the integrity check over a tenant's books.
type IntegrityReport struct {
	TenantID  string
	Healthy   bool
	Offenders []IntegrityOffender
}

// Ledger is a mutex-guarded, process-local projection of account balances.
// It deduplicates by event ID so at-least-once delivery from the bus cannot
// double-apply a posting.
type Ledger struct {
	mu sync.Mutex

	balances     map[acctKey]int64
	accountTypes map[acctKey]chartofaccounts.AccountType
	history      map[acctKey][]BalanceEntry
	periods      map[string]map[acctKey]int64
	seenEventIDs map[string]struct{}
}

// New builds an empty Ledger.
func New() *Ledger {
	return &Ledger{
		balances:     make(map[acctKey]int64),
		accountTypes: make(map[acctKey]chartofaccounts.AccountType),
		history:      make(map[acctKey][]BalanceEntry),
		periods:      make(map[string]map[acctKey]int64),
		seenEventIDs: make(map[string]struct{}),
	}
}

// WarnFunc receives a human-readable warning when the projection skips work
// (e.g. a posting referencing an account the chart has not yet seen).
type WarnFunc func(msg string, fields ...any)

// Apply dispatches one event onto the projection. Unknown event types and
// already-seen event IDs are no-ops.
func (l *Ledger) Apply(tenantID string, e event.DomainEvent, warn WarnFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.seenEventIDs[e.EventID()]; seen {
		return
	}
	l.seenEventIDs[e.EventID()] = struct{}{}

	switch evt := e.(type) {
	case event.JournalEntryPosted:
		l.applyPosted(tenantID, evt, warn)
	case event.AccountStateUpdated:
		// state changes alone don't move balances; recorded for completeness
	}
}

// SeedAccount registers an account's type so the projection can classify its
// balance for the trial balance and integrity report, independent of when
// its first posting arrives.
func (l *Ledger) SeedAccount(tenantID, code string, accType chartofaccounts.AccountType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountTypes[acctKey{tenantID: tenantID, code: code}] = accType
}

func (l *Ledger) applyPosted(tenantID string, evt event.JournalEntryPosted, warn WarnFunc) {
	period := evt.PostedAt.UTC().Format("2006-01")

	for _, line := range evt.Entries {
		key := acctKey{tenantID: tenantID, code: line.AccountCode}
		if _, known := l.accountTypes[key]; !known {
			if warn != nil {
				warn("projection skipping line: unknown account", "tenant_id", tenantID, "account_code", line.AccountCode, "event_id", evt.EventID())
			}
			continue
		}

		delta := line.DebitCents - line.CreditCents
		newBalance := l.balances[key] + delta
		l.balances[key] = newBalance

		l.appendHistory(key, BalanceEntry{Cents: newBalance, AsOf: evt.PostedAt, EventID: evt.EventID()})

		if l.periods[period] == nil {
			l.periods[period] = make(map[acctKey]int64)
		}
		l.periods[period][key] = newBalance
	}
}

func (l *Ledger) appendHistory(key acctKey, entry BalanceEntry) {
	h := append(l.history[key], entry)
	if len(h) > maxHistoryPerAccount {
		h = h[len(h)-maxHistoryPerAccount:]
	}
	l.history[key] = h
}

// GetBalance returns the current balance, or, if asOf is non-nil, the most
// recent historical entry with AsOf <= *asOf.
func (l *Ledger) GetBalance(tenantID, code string, asOf *time.Time) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := acctKey{tenantID: tenantID, code: code}

	if asOf == nil {
		balance, ok := l.balances[key]
		return balance, ok
	}

	history := l.history[key]
	var best *BalanceEntry
	for i := range history {
		if !history[i].AsOf.After(*asOf) {
			best = &history[i]
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Cents, true
}

// TrialBalance sums positive account balances as debits and the absolute
// value of negative balances as credits (spec §4.4).
func (l *Ledger) TrialBalance(tenantID string) TrialBalance {
	l.mu.Lock()
	defer l.mu.Unlock()

	var debit, credit int64
	for key, balance := range l.balances {
		if key.tenantID != tenantID {
			continue
		}
		if balance >= 0 {
			debit += balance
		} else {
			credit += -balance
		}
	}

	diff := debit - credit
	if diff < 0 {
		diff = -diff
	}

	return TrialBalance{
		TenantID:    tenantID,
		DebitCents:  debit,
		CreditCents: credit,
		IsBalanced:  diff < 1,
	}
}

// IntegrityCheck flags accounts whose balance sign violates their account
// type's expected polarity (spec §4.4).
func (l *Ledger) IntegrityCheck(tenantID string) IntegrityReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := IntegrityReport{TenantID: tenantID, Healthy: true}

	for key, balance := range l.balances {
		if key.tenantID != tenantID {
			continue
		}

		accType := l.accountTypes[key]
		offense := ""

		switch accType {
		case chartofaccounts.Asset, chartofaccounts.Expense:
			if balance < 0 {
				offense = "negative balance on a debit-normal account"
			}
		case chartofaccounts.Liability, chartofaccounts.Equity, chartofaccounts.Revenue:
			if balance > 0 {
				offense = "positive balance on a credit-normal account"
			}
		}

		if offense != "" {
			report.Healthy = false
			report.Offenders = append(report.Offenders, IntegrityOffender{
				AccountCode: key.code,
				AccountType: string(accType),
				Cents:       balance,
				Reason:      offense,
			})
		}
	}

	return report
}

// PeriodBalance returns the last balance observed for (tenant, code) within
// a YYYY-MM period.
func (l *Ledger) PeriodBalance(tenantID, code, period string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot, ok := l.periods[period]
	if !ok {
		return 0, false
	}
	balance, ok := snapshot[acctKey{tenantID: tenantID, code: code}]
	return balance, ok
}

// Snapshot returns a deep copy of the current balances, for diagnostics or
// warm handoff between projection instances.
func (l *Ledger) Snapshot() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]int64, len(l.balances))
	for key, balance := range l.balances {
		out[key.tenantID+":"+key.code] = balance
	}
	return out
}

// Reset clears all projection state. Intended for test isolation and for
// rebuilding the projection from a full stream replay.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[acctKey]int64)
	l.accountTypes = make(map[acctKey]chartofaccounts.AccountType)
	l.history = make(map[acctKey][]BalanceEntry)
	l.periods = make(map[string]map[acctKey]int64)
	l.seenEventIDs = make(map[string]struct{})
}
