// Package chartofaccounts implements the ChartOfAccounts aggregate (spec §4.2.1):
// one per tenant, enforcing code uniqueness, hierarchy depth/cycle rules, and
// companion-account pairing, replaying from its event stream.
package chartofaccounts

import (
	"regexp"
	"strings"

	"github.com/LerianStudio/midaz-ledger-core/internal/domain/aggregate"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/errs"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/event"
	"github.com/LerianStudio/midaz-ledger-core/internal/domain/money"
)

const maxHierarchyDepth = 5
const maxCycleWalkHops = 64

var codePattern = regexp.MustCompile(`^[A-Z0-9._-]{1,64}$`)

// ChartOfAccounts is the per-tenant aggregate over the account hierarchy.
type ChartOfAccounts struct {
	aggregate.Base

	TenantID string
	accounts map[string]Account
	children map[string][]string
}

// New creates an empty chart of accounts for tenantID.
func New(tenantID string) *ChartOfAccounts {
	return &ChartOfAccounts{
		TenantID: tenantID,
		accounts: make(map[string]Account),
		children: make(map[string][]string),
	}
}

// Rehydrate replays events onto a fresh aggregate and returns it.
func Rehydrate(tenantID string, events []event.DomainEvent) *ChartOfAccounts {
	c := New(tenantID)
	for _, e := range events {
		c.apply(e)
		c.SetVersion(e.Version())
	}
	return c
}

// StreamID returns this chart's event-store stream id.
func (c *ChartOfAccounts) StreamID() string {
	return event.ChartStreamID(c.TenantID)
}

func normalizeCode(code string) string {
	return strings.ToUpper(code)
}

// Account looks up an account by code (case-insensitive).
func (c *ChartOfAccounts) Account(code string) (Account, bool) {
	a, ok := c.accounts[normalizeCode(code)]
	return a, ok
}

// IsLeaf reports whether an account has no children.
func (c *ChartOfAccounts) IsLeaf(code string) bool {
	return len(c.children[normalizeCode(code)]) == 0
}

// HasActiveChildren reports whether any direct child of code is active.
func (c *ChartOfAccounts) HasActiveChildren(code string) bool {
	for _, childCode := range c.children[normalizeCode(code)] {
		if child, ok := c.accounts[childCode]; ok && child.IsActive {
			return true
		}
	}
	return false
}

func (c *ChartOfAccounts) wouldCycle(movingCode, newParentCode string) bool {
	current := normalizeCode(newParentCode)
	moving := normalizeCode(movingCode)

	for hop := 0; hop < maxCycleWalkHops; hop++ {
		if current == moving {
			return true
		}

		parent, ok := c.accounts[current]
		if !ok || !parent.HasParent() {
			return false
		}

		current = normalizeCode(parent.ParentCode)
	}

	return true
}

func (c *ChartOfAccounts) depthOf(code string) int {
	depth := 0
	current := normalizeCode(code)

	for depth < maxCycleWalkHops {
		a, ok := c.accounts[current]
		if !ok || !a.HasParent() {
			return depth
		}
		depth++
		current = normalizeCode(a.ParentCode)
	}

	return depth
}

func validateCode(code string) error {
	if !codePattern.MatchString(code) {
		return errs.Validation("account code must be 1-64 chars of [A-Z0-9._-]")
	}
	return nil
}

// CreateAccount validates and emits AccountCreated.
func (c *ChartOfAccounts) CreateAccount(code, name string, accType AccountType, parentCode string, specialType SpecialType, companions CompanionLinks) error {
	code = normalizeCode(code)

	if err := validateCode(code); err != nil {
		return err
	}

	if _, exists := c.accounts[code]; exists {
		return errs.Invariant("", "account code already in use")
	}

	var resolvedParent string

	if parentCode != "" {
		parentCode = normalizeCode(parentCode)

		parent, ok := c.accounts[parentCode]
		if !ok {
			return errs.Invariant("", "parent account does not exist")
		}
		if !parent.IsActive {
			return errs.Invariant("", "parent account is not active")
		}
		if parent.Type != accType {
			return errs.Invariant("", "child type must equal parent type")
		}
		if c.depthOf(parentCode)+1 >= maxHierarchyDepth {
			return errs.Invariant("", "hierarchy depth exceeds maximum of 5")
		}

		resolvedParent = parentCode
	}

	if err := validateCompanions(companions, c.accounts); err != nil {
		return err
	}

	e := event.AccountCreated{
		Envelope:       event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountCreated, 1),
		AccountCode:    code,
		Name:           name,
		AccountType:    string(accType),
		ParentCode:     resolvedParent,
		SpecialType:    string(specialType),
		PostingAllowed: true,
	}

	c.Record(e)
	c.apply(e)

	if companions.AccumulatedDepreciationCode != "" || companions.DepreciationExpenseCode != "" {
		return c.setCompanionLinksUnchecked(code, companions)
	}

	return nil
}

func validateCompanions(links CompanionLinks, accounts map[string]Account) error {
	hasAcc := links.AccumulatedDepreciationCode != ""
	hasExp := links.DepreciationExpenseCode != ""

	if hasAcc != hasExp {
		return errs.Invariant("", "both accumulatedDepreciationCode and depreciationExpenseCode must be given together")
	}

	if hasAcc {
		acc, ok := accounts[normalizeCode(links.AccumulatedDepreciationCode)]
		if !ok || acc.SpecialType != SpecialAccumulatedDepreciation {
			return errs.Invariant("", "accumulatedDepreciationCode must reference an AccumulatedDepreciation account")
		}
	}

	if hasExp {
		exp, ok := accounts[normalizeCode(links.DepreciationExpenseCode)]
		if !ok || exp.SpecialType != SpecialDepreciationExpense {
			return errs.Invariant("", "depreciationExpenseCode must reference a DepreciationExpense account")
		}
	}

	return nil
}

// UpdateBalance sets newBalance as the balance of an existing, active,
// postable, non-header account.
func (c *ChartOfAccounts) UpdateBalance(code string, newBalance money.Money) error {
	code = normalizeCode(code)

	a, ok := c.accounts[code]
	if !ok {
		return errs.Invariant("", "account does not exist")
	}
	if !a.IsActive {
		return errs.Invariant("", "account is not active")
	}
	if !c.IsLeaf(code) {
		return errs.Invariant("", "header accounts may not receive postings")
	}
	if !a.PostingAllowed {
		return errs.Invariant("", "account does not allow postings")
	}

	e := event.AccountBalanceUpdated{
		Envelope:     event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountBalanceUpdated, 1),
		AccountCode:  code,
		BalanceCents: newBalance.Cents(),
	}

	c.Record(e)
	c.apply(e)

	return nil
}

// Deactivate marks an active account with no active children inactive.
func (c *ChartOfAccounts) Deactivate(code string) error {
	code = normalizeCode(code)

	a, ok := c.accounts[code]
	if !ok {
		return errs.Invariant("", "account does not exist")
	}
	if !a.IsActive {
		return errs.Invariant("", "account already inactive")
	}
	if c.HasActiveChildren(code) {
		return errs.Invariant("", "account has active children")
	}

	e := event.AccountStateUpdated{
		Envelope:    event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountStateUpdated, 1),
		AccountCode: code,
		IsActive:    false,
	}

	c.Record(e)
	c.apply(e)

	return nil
}

// ChangeParent reparents an account, rejecting cycles and type/depth violations.
func (c *ChartOfAccounts) ChangeParent(code, newParentCode string) error {
	code = normalizeCode(code)
	newParentCode = normalizeCode(newParentCode)

	a, ok := c.accounts[code]
	if !ok {
		return errs.Invariant("", "account does not exist")
	}

	parent, ok := c.accounts[newParentCode]
	if !ok {
		return errs.Invariant("", "new parent does not exist")
	}
	if !parent.IsActive {
		return errs.Invariant("", "new parent is not active")
	}
	if parent.Type != a.Type {
		return errs.Invariant("", "child type must equal parent type")
	}
	if c.wouldCycle(code, newParentCode) {
		return errs.Invariant(errs.ReasonCycleDetected, "changing parent would create a cycle")
	}
	if c.depthOf(newParentCode)+1 >= maxHierarchyDepth {
		return errs.Invariant("", "hierarchy depth exceeds maximum of 5")
	}

	e := event.AccountParentChanged{
		Envelope:      event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountParentChanged, 1),
		AccountCode:   code,
		NewParentCode: newParentCode,
	}

	c.Record(e)
	c.apply(e)

	return nil
}

// SetPostingPolicy flips whether an account accepts postings.
func (c *ChartOfAccounts) SetPostingPolicy(code string, postingAllowed bool) error {
	code = normalizeCode(code)

	a, ok := c.accounts[code]
	if !ok {
		return errs.Invariant("", "account does not exist")
	}
	if a.PostingAllowed == postingAllowed {
		return errs.Invariant("", "posting policy already has this value")
	}
	if strings.HasPrefix(code, "SYSTEM-") {
		return errs.Invariant("", "SYSTEM- accounts' posting policy is immutable")
	}

	e := event.AccountPostingPolicyChanged{
		Envelope:       event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountPostingPolicyChanged, 1),
		AccountCode:    code,
		PostingAllowed: postingAllowed,
	}

	c.Record(e)
	c.apply(e)

	return nil
}

// SetCompanionLinks wires a depreciable-asset account to its paired accounts.
func (c *ChartOfAccounts) SetCompanionLinks(code string, links CompanionLinks) error {
	code = normalizeCode(code)

	if _, ok := c.accounts[code]; !ok {
		return errs.Invariant("", "account does not exist")
	}

	return c.setCompanionLinksUnchecked(code, links)
}

func (c *ChartOfAccounts) setCompanionLinksUnchecked(code string, links CompanionLinks) error {
	if err := validateCompanions(links, c.accounts); err != nil {
		return err
	}

	e := event.AccountCompanionLinksSet{
		Envelope:                    event.NewEnvelope(c.StreamID(), c.Version()+1, c.TenantID, event.TypeAccountCompanionLinksSet, 1),
		AccountCode:                 code,
		AccumulatedDepreciationCode: links.AccumulatedDepreciationCode,
		DepreciationExpenseCode:     links.DepreciationExpenseCode,
		AllowanceAccountCode:        links.AllowanceAccountCode,
	}

	c.Record(e)
	c.apply(e)

	return nil
}

// apply deterministically reconstructs accounts/children from one event;
// unknown event types are ignored (spec §4.2.1).
func (c *ChartOfAccounts) apply(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.AccountCreated:
		a := Account{
			Code:           evt.AccountCode,
			Name:           evt.Name,
			Type:           AccountType(evt.AccountType),
			ParentCode:     evt.ParentCode,
			TenantID:       c.TenantID,
			IsActive:       true,
			SpecialType:    SpecialType(evt.SpecialType),
			PostingAllowed: evt.PostingAllowed,
		}
		if a.SpecialType == "" {
			a.SpecialType = SpecialNone
		}
		c.accounts[evt.AccountCode] = a
		if evt.ParentCode != "" {
			c.children[evt.ParentCode] = append(c.children[evt.ParentCode], evt.AccountCode)
		}
	case event.AccountBalanceUpdated:
		a := c.accounts[evt.AccountCode]
		a.Balance = money.FromCents(evt.BalanceCents)
		c.accounts[evt.AccountCode] = a
	case event.AccountStateUpdated:
		a := c.accounts[evt.AccountCode]
		a.IsActive = evt.IsActive
		c.accounts[evt.AccountCode] = a
	case event.AccountParentChanged:
		a := c.accounts[evt.AccountCode]
		c.removeChild(a.ParentCode, evt.AccountCode)
		a.ParentCode = evt.NewParentCode
		c.accounts[evt.AccountCode] = a
		c.children[evt.NewParentCode] = append(c.children[evt.NewParentCode], evt.AccountCode)
	case event.AccountPostingPolicyChanged:
		a := c.accounts[evt.AccountCode]
		a.PostingAllowed = evt.PostingAllowed
		c.accounts[evt.AccountCode] = a
	case event.AccountCompanionLinksSet:
		a := c.accounts[evt.AccountCode]
		a.CompanionLinks = CompanionLinks{
			AccumulatedDepreciationCode: evt.AccumulatedDepreciationCode,
			DepreciationExpenseCode:     evt.DepreciationExpenseCode,
			AllowanceAccountCode:        evt.AllowanceAccountCode,
		}
		c.accounts[evt.AccountCode] = a
	}
}

func (c *ChartOfAccounts) removeChild(parentCode, childCode string) {
	if parentCode == "" {
		return
	}

	siblings := c.children[parentCode]
	for i, sib := range siblings {
		if sib == childCode {
			c.children[parentCode] = append(siblings[:i], siblings[i+1:]...)
			return
		}
	}
}
