package domain

import "time"

// Account names used in money-movement ledger entries.
const (
	AccountPlatformEscrow = "platform_escrow"
	AccountCustomer       = "customer"
	AccountAgentPayout    = "agent_payout"
)

// LedgerEntry records one money movement. Entries are append-only and are
// written in the same transaction as the state change that caused them.
type LedgerEntry struct {
	ID          string
	RefundID    string
	BookingID   string
	FromAccount string
	ToAccount   string
	AmountCents int64
	ProviderRef string
	CreatedAt   time.Time
}
