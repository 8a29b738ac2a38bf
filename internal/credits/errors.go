package credits

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits matches any *InsufficientCreditsError.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrInvalidType         = errors.New("invalid credit transaction type")
	ErrMissingUser         = errors.New("user id is required")
	// ErrNotFound indicates the user has no balance row.
	ErrNotFound = errors.New("credit balance not found")
)

// InsufficientCreditsError reports a rejected deduction.
type InsufficientCreditsError struct {
	Current  int
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("not enough credits, required %d, have %d", e.Required, e.Current)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
