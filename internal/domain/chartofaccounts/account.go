package chartofaccounts

import "github.com/LerianStudio/midaz-ledger-core/internal/domain/money"

// AccountType is one of the five accounting classifications (spec §3).
type AccountType string

const (
	Asset     AccountType = "Asset"
	Liability AccountType = "Liability"
	Equity    AccountType = "Equity"
	Revenue   AccountType = "Revenue"
	Expense   AccountType = "Expense"
)

// SpecialType marks an account for a companion-accounting role.
type SpecialType string

const (
	SpecialNone                      SpecialType = "None"
	SpecialAccumulatedDepreciation   SpecialType = "AccumulatedDepreciation"
	SpecialDepreciationExpense       SpecialType = "DepreciationExpense"
	SpecialGoodwill                  SpecialType = "Goodwill"
	SpecialNciEquity                 SpecialType = "NciEquity"
	SpecialCtaEquity                 SpecialType = "CtaEquity"
	SpecialClearing                  SpecialType = "Clearing"
	SpecialFxGain                    SpecialType = "FxGain"
	SpecialFxLoss                    SpecialType = "FxLoss"
	SpecialIntercoReceivable         SpecialType = "IntercoReceivable"
	SpecialIntercoPayable            SpecialType = "IntercoPayable"
	SpecialEliminationReserve        SpecialType = "EliminationReserve"
	SpecialUnrealizedProfitInventory SpecialType = "UnrealizedProfitInventory"
)

// CompanionLinks ties a depreciable-asset account to its paired accounts.
type CompanionLinks struct {
	AccumulatedDepreciationCode string
	DepreciationExpenseCode     string
	AllowanceAccountCode        string
}

// Account is one node in a tenant's chart of accounts.
type Account struct {
	Code           string
	Name           string
	Type           AccountType
	ParentCode     string
	TenantID       string
	Balance        money.Money
	IsActive       bool
	SpecialType    SpecialType
	PostingAllowed bool
	CompanionLinks CompanionLinks
}

func (a Account) HasParent() bool {
	return a.ParentCode != ""
}

func (a Account) HasCompanionLinks() bool {
	return a.CompanionLinks.AccumulatedDepreciationCode != "" || a.CompanionLinks.DepreciationExpenseCode != ""
}
