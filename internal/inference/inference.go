package inference

import (
	"context"
	"errors"
	"io"
)

// Client identifies spare parts in a photo.
type Client interface {
	Identify(ctx context.Context, req Request) (Result, error)
}

// Request carries one uploaded photo.
type Request struct {
	FileName    string
	ContentType string
	Image       io.Reader
}

// Prediction is one candidate part, ranked by confidence.
type Prediction struct {
	PartName     string  `json:"partName"`
	Category     string  `json:"category,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	PartNumber   string  `json:"partNumber,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Result is the inference service's answer.
type Result struct {
	Predictions  []Prediction `json:"predictions"`
	ModelVersion string       `json:"modelVersion,omitempty"`
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("inference service not configured")

// PlaceholderClient is used when INFERENCE_URL is unset. Every call fails, so analyses are refunded.
type PlaceholderClient struct{}

func (PlaceholderClient) Identify(ctx context.Context, req Request) (Result, error) {
	return Result{}, ErrNotConfigured
}
