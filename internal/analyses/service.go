package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"sparefinder-backend/internal/credits"
	"sparefinder-backend/internal/inference"
	"sparefinder-backend/internal/shared/metrics"
	"sparefinder-backend/internal/shared/storage/object"
	"sparefinder-backend/internal/shared/telemetry"
	"sparefinder-backend/internal/usage"
)

// MaxImageBytes bounds a single upload.
const MaxImageBytes = 10 << 20

// CreditCharger charges and refunds analyses.
type CreditCharger interface {
	ProcessAnalysisCredits(ctx context.Context, userID string, md credits.Metadata) (credits.Result, error)
	RefundAnalysisCredits(ctx context.Context, userID, reason string, md credits.Metadata) (credits.Result, error)
}

// UsageRecorder books informational usage counters.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, in usage.Increment) error
	IncrementStorage(ctx context.Context, in usage.StorageIncrement) error
}

// Service runs paid analyses: charge, store the photo, identify, refund on failure.
type Service struct {
	Repo      Repo
	Credits   CreditCharger
	Usage     UsageRecorder
	Store     object.ImageStore
	Inference inference.Client
	Now       func() time.Time
}

// RunInput is one uploaded photo.
type RunInput struct {
	UserID    string
	RequestID string
	FileName  string
	Image     []byte
}

// Run executes an analysis synchronously. Insufficient credits fail before anything is
// written. Once the credit is charged, any failure refunds it and returns the failed
// analysis together with an error wrapping ErrAnalysisFailed.
func (s *Service) Run(ctx context.Context, in RunInput) (Analysis, error) {
	if len(in.Image) > MaxImageBytes {
		return Analysis{}, ErrImageTooLarge
	}
	contentType, _, err := object.SniffImage(bytes.NewReader(in.Image))
	if err != nil {
		return Analysis{}, err
	}
	if _, err := object.ImageKey(in.UserID, in.FileName, contentType); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}

	analysisID := uuid.NewString()
	charge, err := s.Credits.ProcessAnalysisCredits(ctx, in.UserID, credits.Metadata{
		Source:     "analysis",
		AnalysisID: analysisID,
	})
	if err != nil {
		return Analysis{}, err
	}

	startedAt := s.now()
	analysis := Analysis{
		ID:                  analysisID,
		UserID:              in.UserID,
		Status:              StatusProcessing,
		ContentType:         contentType,
		CreditTransactionID: charge.TransactionID,
		CreatedAt:           startedAt,
	}
	metrics.IncAnalysisStarted()
	s.logStatus(in, analysis, "charged->processing", 0)

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return s.fail(ctx, in, analysis, startedAt, ErrorCodeStorage, fmt.Errorf("create analysis: %w", err))
	}

	img, err := s.Store.SaveImage(ctx, in.UserID, in.FileName, bytes.NewReader(in.Image))
	if err != nil {
		return s.fail(ctx, in, analysis, startedAt, ErrorCodeStorage, fmt.Errorf("store image: %w", err))
	}
	analysis.ImageKey = img.Key
	analysis.ImageBytes = img.SizeBytes
	if err := s.Repo.SetImage(ctx, analysis.ID, img.Key, img.ContentType, img.SizeBytes); err != nil {
		telemetry.Warn("analysis.set_image_failed", map[string]any{"analysis_id": analysis.ID, "error": err})
	}
	if err := s.Usage.IncrementStorage(ctx, usage.StorageIncrement{UserID: in.UserID, Bytes: img.SizeBytes}); err != nil {
		telemetry.Warn("usage.increment_storage_failed", map[string]any{"user_id": in.UserID, "error": err})
	}

	result, err := s.Inference.Identify(ctx, inference.Request{
		FileName:    in.FileName,
		ContentType: img.ContentType,
		Image:       bytes.NewReader(in.Image),
	})
	if err != nil {
		return s.fail(ctx, in, analysis, startedAt, inferenceErrorCode(err), err)
	}

	completedAt := s.now()
	analysis.Status = StatusCompleted
	analysis.Predictions = result.Predictions
	analysis.ModelVersion = result.ModelVersion
	analysis.CompletedAt = &completedAt
	if err := s.Repo.Complete(ctx, analysis.ID, result.Predictions, result.ModelVersion, completedAt); err != nil {
		telemetry.Error("analysis.complete_write_failed", map[string]any{"analysis_id": analysis.ID, "error": err})
	}
	if err := s.Usage.IncrementUsage(ctx, usage.Increment{UserID: in.UserID, Searches: 1, APICalls: 1}); err != nil {
		telemetry.Warn("usage.increment_failed", map[string]any{"user_id": in.UserID, "error": err})
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDuration(completedAt.Sub(startedAt))
	s.logStatus(in, analysis, "processing->completed", completedAt.Sub(startedAt))
	return analysis, nil
}

// fail refunds the charged credit and records the failure. The refund runs even if the
// request context is already canceled.
func (s *Service) fail(ctx context.Context, in RunInput, analysis Analysis, startedAt time.Time, code string, cause error) (Analysis, error) {
	bg := context.WithoutCancel(ctx)
	refund, refundErr := s.Credits.RefundAnalysisCredits(bg, in.UserID, credits.RefundReason, credits.Metadata{
		Source:     "refund",
		AnalysisID: analysis.ID,
		ImageKey:   analysis.ImageKey,
		RefundOf:   analysis.CreditTransactionID,
	})
	if refundErr == nil {
		analysis.RefundTransactionID = refund.TransactionID
	}

	completedAt := s.now()
	analysis.Status = StatusFailed
	analysis.ErrorCode = code
	analysis.ErrorMessage = sanitizeError(cause)
	analysis.CompletedAt = &completedAt
	if err := s.Repo.Fail(bg, analysis.ID, code, analysis.ErrorMessage, analysis.RefundTransactionID, completedAt); err != nil && !errors.Is(err, ErrNotFound) {
		telemetry.Error("analysis.fail_write_failed", map[string]any{"analysis_id": analysis.ID, "error": err})
	}
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDuration(completedAt.Sub(startedAt))
	s.logStatus(in, analysis, "processing->failed", completedAt.Sub(startedAt))
	return analysis, fmt.Errorf("%w: %v", ErrAnalysisFailed, cause)
}

// Get returns one of the user's analyses.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	return s.Repo.GetByID(ctx, userID, analysisID)
}

// List returns the user's analyses newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	limit, offset = pageBounds(limit, offset)
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logStatus(in RunInput, a Analysis, transition string, elapsed time.Duration) {
	fields := map[string]any{
		"request_id":            in.RequestID,
		"user_id":               a.UserID,
		"analysis_id":           a.ID,
		"status":                a.Status,
		"status_transition":     transition,
		"credit_transaction_id": a.CreditTransactionID,
	}
	if elapsed > 0 {
		fields["duration_ms"] = elapsed.Milliseconds()
	}
	if a.Status == StatusFailed {
		fields["error_code"] = a.ErrorCode
		fields["refunded"] = a.Refunded()
	}
	telemetry.Info("analysis.status", fields)
}

func inferenceErrorCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return ErrorCodeTimeout
	}
	return ErrorCodeInference
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return strings.ToValidUTF8(msg, "")
}
