package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is a process-local Ledger. One mutex serializes all writes, which gives the
// same per-user atomicity as the row lock in Postgres.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	txs      map[string][]Transaction
	now      func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int),
		txs:      make(map[string][]Transaction),
		now:      time.Now,
	}
}

func (l *MemoryLedger) Balance(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (l *MemoryLedger) Deduct(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.balances[userID]
	if before < amount {
		return Result{}, &InsufficientCreditsError{Current: before, Required: amount}
	}
	return l.appendLocked(userID, TxDeduct, amount, before, before-amount, reason, md), nil
}

func (l *MemoryLedger) Add(ctx context.Context, userID string, amount int, txType TxType, reason string, md Metadata) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if txType != TxAdd && txType != TxGrant {
		return Result{}, ErrInvalidType
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.balances[userID]
	return l.appendLocked(userID, txType, amount, before, before+amount, reason, md), nil
}

func (l *MemoryLedger) appendLocked(userID string, txType TxType, amount, before, after int, reason string, md Metadata) Result {
	tx := Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        reason,
		Metadata:      md,
		CreatedAt:     l.now().UTC(),
	}
	l.balances[userID] = after
	l.txs[userID] = append(l.txs[userID], tx)
	return Result{CreditsBefore: before, CreditsAfter: after, TransactionID: tx.ID}
}

func (l *MemoryLedger) Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.txs[userID]
	out := []Transaction{}
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *MemoryLedger) History(ctx context.Context, userID string) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transaction(nil), l.txs[userID]...), nil
}

var _ Ledger = (*MemoryLedger)(nil)
