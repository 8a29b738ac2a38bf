package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sparefinder-backend/internal/credits"
	"sparefinder-backend/internal/shared/storage/db"
	"sparefinder-backend/internal/shared/telemetry"
)

// WelcomeReason labels the signup grant.
const WelcomeReason = "Welcome bonus"

// CreditGranter grants free credits.
type CreditGranter interface {
	GrantCredits(ctx context.Context, userID string, amount int, reason string, md credits.Metadata) (credits.Result, error)
}

type Service struct {
	Repo        Repo
	Credits     CreditGranter
	SignupBonus int
}

func NewService(repo Repo, granter CreditGranter, signupBonus int) *Service {
	return &Service{Repo: repo, Credits: granter, SignupBonus: signupBonus}
}

// Provision upserts the user from token claims and grants the signup bonus the first time
// the user is seen. It reports whether the bonus was granted by this call.
func (s *Service) Provision(ctx context.Context, user User) (User, bool, error) {
	if s == nil || s.Repo == nil {
		return User{}, false, errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" {
		return User{}, false, errors.New("user id is required")
	}
	if err := s.Repo.Upsert(ctx, user); err != nil {
		return User{}, false, fmt.Errorf("upsert user: %w", err)
	}
	stored, err := s.Repo.GetByID(ctx, user.ID)
	if err != nil {
		return User{}, false, fmt.Errorf("load user: %w", err)
	}
	if s.SignupBonus <= 0 || s.Credits == nil {
		return stored, false, nil
	}

	if stored.WelcomeGranted {
		return stored, false, nil
	}
	claimed, err := s.Repo.ClaimWelcome(ctx, user.ID)
	if err != nil {
		telemetry.Warn("users.welcome_claim_failed", map[string]any{"user_id": user.ID, "error": err})
		return stored, false, nil
	}
	if !claimed {
		stored.WelcomeGranted = true
		return stored, false, nil
	}
	bg := context.WithoutCancel(ctx)
	if _, err := s.Credits.GrantCredits(bg, user.ID, s.SignupBonus, WelcomeReason, credits.Metadata{Source: "signup"}); err != nil {
		if !grantNotApplied(err) {
			// The grant may have committed; keep the claim.
			telemetry.Error("users.welcome_grant_unknown", map[string]any{"user_id": user.ID, "error": err})
			return stored, false, fmt.Errorf("grant welcome bonus: %w", err)
		}
		if relErr := s.Repo.ReleaseWelcome(bg, user.ID); relErr != nil {
			telemetry.Error("users.welcome_release_failed", map[string]any{"user_id": user.ID, "error": relErr})
		}
		return stored, false, fmt.Errorf("grant welcome bonus: %w", err)
	}
	telemetry.Info("users.welcome_granted", map[string]any{"user_id": user.ID, "amount": s.SignupBonus})
	stored.WelcomeGranted = true
	return stored, true, nil
}

// grantNotApplied reports whether a failed grant certainly wrote nothing, so the welcome
// claim can be released for a later retry.
func grantNotApplied(err error) bool {
	switch {
	case errors.Is(err, credits.ErrInvalidAmount), errors.Is(err, credits.ErrMissingUser), errors.Is(err, credits.ErrInvalidType):
		return true
	}
	return db.NotApplied(err)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}
