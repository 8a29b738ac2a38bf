package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sparefinder-backend/internal/shared/metrics"
	"sparefinder-backend/internal/shared/storage/db"
	"sparefinder-backend/internal/shared/telemetry"
)

// Service tracks per-period usage counters. Counters are informational and never enforced.
type Service struct {
	store   Store
	periods *PeriodResolver
}

// NewService constructs a Service. A nil resolver uses the process local zone.
func NewService(store Store, periods *PeriodResolver) *Service {
	if periods == nil {
		periods = &PeriodResolver{}
	}
	return &Service{store: store, periods: periods}
}

// CurrentPeriod returns the period new activity is booked against.
func (s *Service) CurrentPeriod() Period {
	return s.periods.Resolve()
}

// GetUsageRow returns the current period's counters, creating the row if missing.
// Read failures yield a zeroed record with Degraded set.
func (s *Service) GetUsageRow(ctx context.Context, userID string) Record {
	p := s.periods.Resolve()
	rec, err := s.store.Get(ctx, userID, p)
	if err == nil {
		return rec
	}
	if !errors.Is(err, ErrNotFound) {
		reason := db.Classify(err)
		metrics.IncDegradedRead("usage", reason)
		telemetry.Warn("usage.read_degraded", map[string]any{
			"user_id": userID,
			"month":   p.Month,
			"year":    p.Year,
			"reason":  reason,
			"error":   err,
		})
		out := emptyRecord(userID, p)
		out.Degraded = true
		return out
	}

	if err := s.store.Ensure(ctx, userID, p); err != nil {
		telemetry.Warn("usage.ensure_failed", map[string]any{
			"user_id": userID,
			"month":   p.Month,
			"year":    p.Year,
			"error":   err,
		})
	}
	return emptyRecord(userID, p)
}

// IncrementUsage atomically adds to the search and API call counters.
func (s *Service) IncrementUsage(ctx context.Context, in Increment) error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrMissingUser
	}
	if in.Searches < 0 || in.APICalls < 0 {
		return ErrInvalidDelta
	}
	if in.Searches == 0 && in.APICalls == 0 {
		return nil
	}
	p := s.periods.Resolve()
	if err := s.store.IncrementUsage(ctx, in.UserID, p, in.Searches, in.APICalls); err != nil {
		return fmt.Errorf("usage %s %d-%02d: %w", in.UserID, p.Year, p.Month, err)
	}
	return nil
}

// IncrementStorage atomically adds bytes to the storage counter.
func (s *Service) IncrementStorage(ctx context.Context, in StorageIncrement) error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrMissingUser
	}
	if in.Bytes < 0 {
		return ErrInvalidDelta
	}
	if in.Bytes == 0 {
		return nil
	}
	p := s.periods.Resolve()
	if err := s.store.IncrementStorage(ctx, in.UserID, p, in.Bytes); err != nil {
		return fmt.Errorf("storage usage %s %d-%02d: %w", in.UserID, p.Year, p.Month, err)
	}
	return nil
}
