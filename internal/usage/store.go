package usage

import "context"

// Store persists usage records keyed by (user, period).
type Store interface {
	// Get returns ErrNotFound when the row does not exist.
	Get(ctx context.Context, userID string, p Period) (Record, error)
	// Ensure creates a zeroed row if none exists. Repeated calls are harmless.
	Ensure(ctx context.Context, userID string, p Period) error
	IncrementUsage(ctx context.Context, userID string, p Period, searches, apiCalls int64) error
	IncrementStorage(ctx context.Context, userID string, p Period, bytes int64) error
}
