package credits

import "context"

// Ledger stores balances and their transaction history. Deduct and Add must each be atomic:
// the balance change and its transaction are committed together or not at all.
type Ledger interface {
	// Balance returns ErrNotFound when the user has no balance row.
	Balance(ctx context.Context, userID string) (int, error)
	// Deduct fails with *InsufficientCreditsError instead of going below zero.
	Deduct(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error)
	// Add creates the balance row when missing. txType is TxAdd or TxGrant.
	Add(ctx context.Context, userID string, amount int, txType TxType, reason string, md Metadata) (Result, error)
	// Transactions returns a page of entries, newest first.
	Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
	// History returns every entry, oldest first.
	History(ctx context.Context, userID string) ([]Transaction, error)
}
