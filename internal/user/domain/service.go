package domain

import (
	"context"
	"errors"
)

type Service interface {
	Get(ctx context.Context, userID string) (*User, error)
	Update(ctx context.Context, userID string, req UpdateRequest) (*User, error)
	AddCredits(ctx context.Context, userID string, amount int64) (int64, error)
	DeductCredits(ctx context.Context, userID string, amount int64) (int64, error)
	UpdateSubscription(ctx context.Context, userID string, tier Tier) error
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string             `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email       *string             `json:"email,omitempty" validate:"omitempty,email"`
	Preferences *PreferencesRequest `json:"preferences,omitempty"`
}

type PreferencesRequest struct {
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	WeeklyDigest       *bool   `json:"weekly_digest,omitempty"`
	Theme              *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Timezone           *string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Currency           *string `json:"currency,omitempty" validate:"omitempty,iso4217"`
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTier         = errors.New("invalid_tier")
	ErrEmptyUpdate         = errors.New("empty_update")
	ErrNotFound            = errors.New("user_not_found")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)
