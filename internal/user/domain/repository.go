package domain

import (
	"context"
	"time"
)

// Repository persists profiles. Writes that may create a profile start it
// on the free tier with no credits and default preferences.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, req UpdateRequest, now time.Time) (*User, error)
	IncCredits(ctx context.Context, id string, amount int64, now time.Time) (*User, error)
	// DeductCredits reports nil when the user is missing or holds fewer
	// than amount credits.
	DeductCredits(ctx context.Context, id string, amount int64, now time.Time) (*User, error)
	SetTier(ctx context.Context, id string, tier Tier, now time.Time) error
}
