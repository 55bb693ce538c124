package models

import "github.com/shopspring/decimal"

// Allocation is one provider's computed obligation to one receiver.
type Allocation struct {
	ProviderID string
	ReceiverID string
	Amount     decimal.Decimal
}

// LedgerEntry requests one transfer of hours from a provider to a receiver.
type LedgerEntry struct {
	FromUserID  string
	ToUserID    string
	Hours       decimal.Decimal
	Description string
}

// LedgerBatch is the unit handed to the ledger at settlement.
// All entries are applied together or not at all.
type LedgerBatch struct {
	// Key makes posting idempotent: a second post with the same key returns
	// the transactions created by the first.
	Key      string
	TenantID string
	Entries  []LedgerEntry
}

// LedgerTransaction is a posted ledger row.
type LedgerTransaction struct {
	ID          string
	BatchKey    string
	Position    int
	TenantID    string
	FromUserID  string
	ToUserID    string
	Hours       decimal.Decimal
	Description string
	CreatedAt   int64
}
