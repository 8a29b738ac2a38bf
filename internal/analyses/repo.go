package analyses

import (
	"context"
	"time"

	"sparefinder-backend/internal/inference"
)

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	SetImage(ctx context.Context, analysisID, imageKey, contentType string, imageBytes int64) error
	Complete(ctx context.Context, analysisID string, predictions []inference.Prediction, modelVersion string, completedAt time.Time) error
	Fail(ctx context.Context, analysisID, code, message, refundTransactionID string, completedAt time.Time) error
	// GetByID only returns analyses owned by userID.
	GetByID(ctx context.Context, userID, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
