package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGStore implements Store on the usage_tracking table and its upsert functions.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Get(ctx context.Context, userID string, p Period) (Record, error) {
	const query = `
SELECT searches_count, api_calls_count, storage_used, created_at, updated_at
FROM usage_tracking
WHERE user_id = $1 AND month = $2 AND year = $3`
	rec := emptyRecord(userID, p)
	err := s.DB.QueryRowContext(ctx, query, userID, p.Month, p.Year).Scan(
		&rec.SearchesCount,
		&rec.APICallsCount,
		&rec.StorageUsed,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("select usage: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Ensure(ctx context.Context, userID string, p Period) error {
	if _, err := s.DB.ExecContext(ctx, `SELECT ensure_usage_row($1, $2::smallint, $3::smallint)`, userID, p.Month, p.Year); err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}
	return nil
}

func (s *PGStore) IncrementUsage(ctx context.Context, userID string, p Period, searches, apiCalls int64) error {
	if _, err := s.DB.ExecContext(ctx, `SELECT increment_usage($1, $2::smallint, $3::smallint, $4, $5)`,
		userID, p.Month, p.Year, searches, apiCalls); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (s *PGStore) IncrementStorage(ctx context.Context, userID string, p Period, bytes int64) error {
	if _, err := s.DB.ExecContext(ctx, `SELECT increment_storage($1, $2::smallint, $3::smallint, $4)`,
		userID, p.Month, p.Year, bytes); err != nil {
		return fmt.Errorf("increment storage: %w", err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
