package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis not found")
	// ErrAnalysisFailed wraps failures after the credit was charged.
	ErrAnalysisFailed  = errors.New("analysis failed")
	ErrImageTooLarge   = errors.New("image too large")
	ErrInvalidFileName = errors.New("invalid file name")
)

const (
	ErrorCodeStorage   = "STORAGE_ERROR"
	ErrorCodeInference = "INFERENCE_ERROR"
	ErrorCodeTimeout   = "INFERENCE_TIMEOUT"
)
