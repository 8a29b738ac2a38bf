package analyses

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sparefinder-backend/internal/inference"
)

func TestPGRepoCreateAndComplete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs("a-1", "user_1", StatusProcessing, "tx-1", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs("a-1", `[{"partName":"Gear","confidence":0.5}]`, "v3", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs("a-2", ErrorCodeInference, "boom", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.Create(ctx, Analysis{ID: "a-1", UserID: "user_1", Status: StatusProcessing, CreditTransactionID: "tx-1", CreatedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Complete(ctx, "a-1", []inference.Prediction{{PartName: "Gear", Confidence: 0.5}}, "v3", now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := repo.Fail(ctx, "a-2", ErrorCodeInference, "boom", "", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "user_id", "status", "image_key", "image_bytes", "content_type", "predictions", "model_version",
		"credit_transaction_id", "refund_transaction_id", "error_code", "error_message", "created_at", "completed_at"}

	mock.ExpectQuery("FROM analyses").
		WithArgs("a-1", "user_1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"a-1", "user_1", StatusFailed, "k/p.png", int64(10), "image/png", nil, nil,
			"tx-1", "tx-2", ErrorCodeInference, "boom", now, now,
		))
	mock.ExpectQuery("FROM analyses").
		WithArgs("a-9", "user_1").
		WillReturnError(sql.ErrNoRows)

	a, err := repo.GetByID(context.Background(), "user_1", "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !a.Refunded() || a.CompletedAt == nil || a.ErrorCode != ErrorCodeInference {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if _, err := repo.GetByID(context.Background(), "user_1", "a-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
