package payment

import "context"

// Ledger the on-chain payment contract. Balances read here are
// authoritative; cached copies in the metadata store are display-only.
type Ledger interface {
	// GetBalance current spendable balance of an account, ledger units
	GetBalance(ctx context.Context, address string) (int64, error)
	// Deduct charge an account, returns the ledger transaction reference
	Deduct(ctx context.Context, address string, amount int64, memo string) (string, error)
}
