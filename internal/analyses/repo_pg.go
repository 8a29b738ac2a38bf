package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sparefinder-backend/internal/inference"
)

// PGRepo persists analyses in Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, status, image_key, image_bytes, content_type, predictions, model_version,
       credit_transaction_id, refund_transaction_id, error_code, error_message, created_at, completed_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (id, user_id, status, credit_transaction_id, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query, a.ID, a.UserID, a.Status, nullableString(a.CreditTransactionID), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *PGRepo) SetImage(ctx context.Context, analysisID, imageKey, contentType string, imageBytes int64) error {
	const query = `UPDATE analyses SET image_key = $2, content_type = $3, image_bytes = $4 WHERE id = $1`
	return r.execOne(ctx, query, analysisID, imageKey, contentType, imageBytes)
}

func (r *PGRepo) Complete(ctx context.Context, analysisID string, predictions []inference.Prediction, modelVersion string, completedAt time.Time) error {
	payload, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	const query = `
UPDATE analyses
SET status = 'completed', predictions = $2::jsonb, model_version = $3, completed_at = $4
WHERE id = $1`
	return r.execOne(ctx, query, analysisID, string(payload), nullableString(modelVersion), completedAt)
}

func (r *PGRepo) Fail(ctx context.Context, analysisID, code, message, refundTransactionID string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'failed', error_code = $2, error_message = $3, refund_transaction_id = $4, completed_at = $5
WHERE id = $1`
	return r.execOne(ctx, query, analysisID, code, message, nullableString(refundTransactionID), completedAt)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns the user's analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1 AND user_id = $2
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a            Analysis
		predictions  []byte
		modelVersion sql.NullString
		creditTxID   sql.NullString
		refundTxID   sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Status,
		&a.ImageKey,
		&a.ImageBytes,
		&a.ContentType,
		&predictions,
		&modelVersion,
		&creditTxID,
		&refundTxID,
		&errorCode,
		&errorMessage,
		&a.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return Analysis{}, err
	}
	if len(predictions) > 0 {
		if err := json.Unmarshal(predictions, &a.Predictions); err != nil {
			return Analysis{}, fmt.Errorf("decode predictions for %s: %w", a.ID, err)
		}
	}
	a.ModelVersion = modelVersion.String
	a.CreditTransactionID = creditTxID.String
	a.RefundTransactionID = refundTxID.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
