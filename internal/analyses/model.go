package analyses

import (
	"time"

	"sparefinder-backend/internal/inference"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is one paid identification attempt for an uploaded photo.
type Analysis struct {
	ID                  string                 `json:"id"`
	UserID              string                 `json:"userId"`
	Status              string                 `json:"status"`
	ImageKey            string                 `json:"imageKey,omitempty"`
	ImageBytes          int64                  `json:"imageBytes"`
	ContentType         string                 `json:"contentType,omitempty"`
	Predictions         []inference.Prediction `json:"predictions,omitempty"`
	ModelVersion        string                 `json:"modelVersion,omitempty"`
	CreditTransactionID string                 `json:"creditTransactionId,omitempty"`
	RefundTransactionID string                 `json:"refundTransactionId,omitempty"`
	ErrorCode           string                 `json:"errorCode,omitempty"`
	ErrorMessage        string                 `json:"errorMessage,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	CompletedAt         *time.Time             `json:"completedAt,omitempty"`
}

// Refunded reports whether the analysis credit was returned.
func (a Analysis) Refunded() bool {
	return a.RefundTransactionID != ""
}
