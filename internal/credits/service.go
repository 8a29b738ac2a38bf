package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sparefinder-backend/internal/shared/metrics"
	"sparefinder-backend/internal/shared/storage/db"
	"sparefinder-backend/internal/shared/telemetry"
)

// Service applies credit rules on top of a Ledger.
type Service struct {
	ledger Ledger
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// GetUserCredits returns the user's balance. A missing row reads as zero. A storage failure
// also reads as zero, with Degraded set.
func (s *Service) GetUserCredits(ctx context.Context, userID string) Balance {
	credits, err := s.ledger.Balance(ctx, userID)
	switch {
	case err == nil:
		return Balance{Credits: credits}
	case errors.Is(err, ErrNotFound):
		return Balance{}
	default:
		reason := db.Classify(err)
		metrics.IncDegradedRead("credits", reason)
		telemetry.Warn("credits.read_degraded", map[string]any{
			"user_id": userID,
			"reason":  reason,
			"error":   err,
		})
		return Balance{Degraded: true}
	}
}

// HasEnoughCredits reports whether the balance covers required (minimum 1).
func (s *Service) HasEnoughCredits(ctx context.Context, userID string, required int) bool {
	if required < 1 {
		required = 1
	}
	return s.GetUserCredits(ctx, userID).Credits >= required
}

// DeductCredits atomically removes amount credits and records a deduct transaction.
func (s *Service) DeductCredits(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, ErrMissingUser
	}
	if amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	res, err := s.ledger.Deduct(ctx, userID, amount, reason, md.withVersion())
	metrics.ObserveCreditOperation(string(TxDeduct), amount, err)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return Result{}, err
		}
		telemetry.Error("credits.deduct_failed", map[string]any{
			"user_id": userID,
			"amount":  amount,
			"reason":  db.Classify(err),
			"error":   err,
		})
		return Result{}, fmt.Errorf("deduct %d credits for %s: %w", amount, userID, err)
	}
	telemetry.Info("credits.deducted", map[string]any{
		"user_id":        userID,
		"amount":         amount,
		"credits_after":  res.CreditsAfter,
		"transaction_id": res.TransactionID,
	})
	return res, nil
}

// AddCredits atomically adds amount credits and records an add transaction.
func (s *Service) AddCredits(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error) {
	return s.add(ctx, userID, amount, TxAdd, reason, md)
}

// GrantCredits is AddCredits recorded as a grant (signup bonus, operator top-up).
func (s *Service) GrantCredits(ctx context.Context, userID string, amount int, reason string, md Metadata) (Result, error) {
	return s.add(ctx, userID, amount, TxGrant, reason, md)
}

func (s *Service) add(ctx context.Context, userID string, amount int, txType TxType, reason string, md Metadata) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, ErrMissingUser
	}
	if amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	res, err := s.ledger.Add(ctx, userID, amount, txType, reason, md.withVersion())
	metrics.ObserveCreditOperation(string(txType), amount, err)
	if err != nil {
		telemetry.Error("credits.add_failed", map[string]any{
			"user_id": userID,
			"amount":  amount,
			"type":    string(txType),
			"reason":  db.Classify(err),
			"error":   err,
		})
		return Result{}, fmt.Errorf("%s %d credits for %s: %w", txType, amount, userID, err)
	}
	telemetry.Info("credits.added", map[string]any{
		"user_id":        userID,
		"amount":         amount,
		"type":           string(txType),
		"credits_after":  res.CreditsAfter,
		"transaction_id": res.TransactionID,
	})
	return res, nil
}

// ProcessAnalysisCredits charges one analysis. It fails with *InsufficientCreditsError and
// mutates nothing when the balance is below AnalysisCost. A degraded balance read skips the
// precheck so the atomic deduction decides.
func (s *Service) ProcessAnalysisCredits(ctx context.Context, userID string, md Metadata) (Result, error) {
	balance := s.GetUserCredits(ctx, userID)
	if !balance.Degraded && balance.Credits < AnalysisCost {
		metrics.IncInsufficientCredits()
		return Result{}, &InsufficientCreditsError{Current: balance.Credits, Required: AnalysisCost}
	}
	if md.Source == "" {
		md.Source = "analysis"
	}
	res, err := s.DeductCredits(ctx, userID, AnalysisCost, AnalysisReason, md)
	if errors.Is(err, ErrInsufficientCredits) {
		metrics.IncInsufficientCredits()
	}
	return res, err
}

// RefundAnalysisCredits returns the analysis credit. Failures are logged and counted; the
// caller does not retry.
func (s *Service) RefundAnalysisCredits(ctx context.Context, userID, reason string, md Metadata) (Result, error) {
	if strings.TrimSpace(reason) == "" {
		reason = RefundReason
	}
	if md.Source == "" {
		md.Source = "refund"
	}
	res, err := s.AddCredits(ctx, userID, AnalysisCost, reason, md)
	if err != nil {
		metrics.IncRefundFailed()
		telemetry.Error("credits.refund_failed", map[string]any{
			"user_id":     userID,
			"analysis_id": md.AnalysisID,
			"refund_of":   md.RefundOf,
			"error":       err,
		})
		return Result{}, err
	}
	return res, nil
}

// GetCreditTransactions returns a page of the user's history, newest first. limit defaults
// to 20 and is capped at 100.
func (s *Service) GetCreditTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	limit, offset = pageBounds(limit, offset)
	txs, err := s.ledger.Transactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions for %s: %w", userID, err)
	}
	return txs, nil
}

// VerifyLedger replays the user's history and compares it with the stored balance.
func (s *Service) VerifyLedger(ctx context.Context, userID string) (Verification, error) {
	if strings.TrimSpace(userID) == "" {
		return Verification{}, ErrMissingUser
	}
	history, err := s.ledger.History(ctx, userID)
	if err != nil {
		return Verification{}, fmt.Errorf("load credit history for %s: %w", userID, err)
	}
	stored, err := s.ledger.Balance(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Verification{}, fmt.Errorf("load balance for %s: %w", userID, err)
	}

	v := Verification{UserID: userID, Transactions: len(history), StoredBalance: stored}
	replayed, replayErr := Replay(history)
	v.ReplayedBalance = replayed
	switch {
	case replayErr != nil:
		v.Problem = replayErr.Error()
	case replayed != stored:
		v.Problem = fmt.Sprintf("replayed balance %d differs from stored %d", replayed, stored)
	default:
		v.Consistent = true
	}
	if !v.Consistent {
		telemetry.Warn("credits.ledger_inconsistent", map[string]any{
			"user_id": userID,
			"problem": v.Problem,
		})
	}
	return v, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultTransactionsLimit
	}
	if limit > maxTransactionsLimit {
		limit = maxTransactionsLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
