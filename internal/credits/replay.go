package credits

import "fmt"

// Verification is the outcome of replaying a user's transaction chain.
type Verification struct {
	UserID          string `json:"userId"`
	Transactions    int    `json:"transactions"`
	ReplayedBalance int    `json:"replayedBalance"`
	StoredBalance   int    `json:"storedBalance"`
	Consistent      bool   `json:"consistent"`
	// Problem describes the first inconsistency found, if any.
	Problem string `json:"problem,omitempty"`
}

// Replay folds txs (oldest first) from a zero balance. It stops at the first entry whose
// recorded before/after values disagree with the running balance.
func Replay(txs []Transaction) (int, error) {
	balance := 0
	for i, tx := range txs {
		if tx.Amount <= 0 {
			return balance, fmt.Errorf("transaction %d (%s): non-positive amount %d", i, tx.ID, tx.Amount)
		}
		if tx.BalanceBefore != balance {
			return balance, fmt.Errorf("transaction %d (%s): balance_before %d, expected %d", i, tx.ID, tx.BalanceBefore, balance)
		}
		switch tx.Type {
		case TxDeduct:
			balance -= tx.Amount
		case TxAdd, TxGrant:
			balance += tx.Amount
		default:
			return balance, fmt.Errorf("transaction %d (%s): unknown type %q", i, tx.ID, tx.Type)
		}
		if balance < 0 {
			return balance, fmt.Errorf("transaction %d (%s): balance went negative", i, tx.ID)
		}
		if tx.BalanceAfter != balance {
			return balance, fmt.Errorf("transaction %d (%s): balance_after %d, expected %d", i, tx.ID, tx.BalanceAfter, balance)
		}
	}
	return balance, nil
}
