package credits

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var procedureColumns = []string{"success", "credits_before", "credits_after", "transaction_id", "error"}

func newMockLedger(t *testing.T) (*PGLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGLedger(db), mock
}

func TestPGLedgerDeduct(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery("FROM deduct_user_credits").
		WithArgs("user_1", 1, AnalysisReason, `{"version":1,"source":"analysis","analysisId":"a-1"}`).
		WillReturnRows(sqlmock.NewRows(procedureColumns).
			AddRow(true, int64(10), int64(9), "4b8f1c0e-58a8-4a0a-9a57-8e6a3f8d2c11", nil))

	res, err := ledger.Deduct(context.Background(), "user_1", 1, AnalysisReason, Metadata{Version: 1, Source: "analysis", AnalysisID: "a-1"})
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if res.CreditsBefore != 10 || res.CreditsAfter != 9 || res.TransactionID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGLedgerDeductInsufficient(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery("FROM deduct_user_credits").
		WithArgs("user_1", 3, "bulk", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(procedureColumns).
			AddRow(false, int64(2), int64(2), nil, "insufficient_credits"))

	_, err := ledger.Deduct(context.Background(), "user_1", 3, "bulk", Metadata{})
	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Current != 2 || insufficient.Required != 3 {
		t.Fatalf("unexpected values %+v", insufficient)
	}
}

func TestPGLedgerAddPassesType(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery("FROM add_user_credits").
		WithArgs("user_1", 5, "grant", "Welcome bonus", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(procedureColumns).
			AddRow(true, int64(0), int64(5), "0d7f9d36-3f7e-4c53-9a3e-2b7b8c1d9e01", nil))

	res, err := ledger.Add(context.Background(), "user_1", 5, TxGrant, "Welcome bonus", Metadata{Version: 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.CreditsAfter != 5 {
		t.Fatalf("unexpected result %+v", res)
	}

	mock.ExpectQuery("FROM add_user_credits").
		WillReturnRows(sqlmock.NewRows(procedureColumns).
			AddRow(false, int64(0), int64(0), nil, "invalid_amount"))
	if _, err := ledger.Add(context.Background(), "user_1", 0, TxAdd, "", Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPGLedgerBalance(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT balance FROM user_credits").
		WithArgs("user_1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT balance FROM user_credits").
		WithArgs("user_2").
		WillReturnError(sql.ErrNoRows)

	got, err := ledger.Balance(context.Background(), "user_1")
	if err != nil || got != 7 {
		t.Fatalf("Balance = %d, %v", got, err)
	}
	if _, err := ledger.Balance(context.Background(), "user_2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGLedgerTransactions(t *testing.T) {
	ledger, mock := newMockLedger(t)
	now := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)

	cols := []string{"id", "user_id", "type", "amount", "balance_before", "balance_after", "reason", "metadata", "created_at"}
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("user_1", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tx-2", "user_1", "deduct", int64(1), int64(5), int64(4), AnalysisReason, []byte(`{"version":1,"analysisId":"a-1"}`), now).
			AddRow("tx-1", "user_1", "grant", int64(5), int64(0), int64(5), "Welcome bonus", []byte(`{}`), now.Add(-time.Hour)))

	txs, err := ledger.Transactions(context.Background(), "user_1", 20, 0)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Type != TxDeduct || txs[0].Metadata.AnalysisID != "a-1" {
		t.Fatalf("unexpected first transaction %+v", txs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
