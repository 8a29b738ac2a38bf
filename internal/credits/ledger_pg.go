package credits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGLedger implements Ledger with the deduct_user_credits and add_user_credits functions.
type PGLedger struct {
	DB *sql.DB
}

func NewPGLedger(db *sql.DB) *PGLedger {
	return &PGLedger{DB: db}
}

func (l *PGLedger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := l.DB.QueryRowContext(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

func (l *PGLedger) Deduct(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error) {
	payload, err := json.Marshal(md)
	if err != nil {
		return Result{}, fmt.Errorf("marshal metadata: %w", err)
	}
	const query = `
SELECT success, credits_before, credits_after, transaction_id, error
FROM deduct_user_credits($1, $2, $3, $4::jsonb)`
	row := l.DB.QueryRowContext(ctx, query, userID, amount, reason, string(payload))
	return scanProcedureResult(row, "deduct", amount)
}

func (l *PGLedger) Add(ctx context.Context, userID string, amount int, txType TxType, reason string, md Metadata) (Result, error) {
	payload, err := json.Marshal(md)
	if err != nil {
		return Result{}, fmt.Errorf("marshal metadata: %w", err)
	}
	const query = `
SELECT success, credits_before, credits_after, transaction_id, error
FROM add_user_credits($1, $2, $3, $4, $5::jsonb)`
	row := l.DB.QueryRowContext(ctx, query, userID, amount, string(txType), reason, string(payload))
	return scanProcedureResult(row, string(txType), amount)
}

// scanProcedureResult maps the (success, before, after, id, error) row both procedures return.
func scanProcedureResult(row *sql.Row, op string, amount int) (Result, error) {
	var (
		ok      bool
		before  int
		after   int
		txID    sql.NullString
		errCode sql.NullString
	)
	if err := row.Scan(&ok, &before, &after, &txID, &errCode); err != nil {
		return Result{}, fmt.Errorf("%s credits: %w", op, err)
	}
	if ok {
		return Result{CreditsBefore: before, CreditsAfter: after, TransactionID: txID.String}, nil
	}
	switch errCode.String {
	case "insufficient_credits":
		return Result{}, &InsufficientCreditsError{Current: before, Required: amount}
	case "invalid_amount":
		return Result{}, ErrInvalidAmount
	case "invalid_type":
		return Result{}, ErrInvalidType
	default:
		return Result{}, fmt.Errorf("%s credits: procedure failed: %s", op, errCode.String)
	}
}

const transactionColumns = `id, user_id, type, amount, balance_before, balance_after, reason, metadata, created_at`

func (l *PGLedger) Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := l.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (l *PGLedger) History(ctx context.Context, userID string) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at ASC`
	rows, err := l.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	out := []Transaction{}
	for rows.Next() {
		var (
			tx     Transaction
			txType string
			rawMD  []byte
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter, &tx.Reason, &rawMD, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = TxType(txType)
		if len(rawMD) > 0 {
			if err := json.Unmarshal(rawMD, &tx.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", tx.ID, err)
			}
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

var _ Ledger = (*PGLedger)(nil)
