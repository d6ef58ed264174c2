package domain

import (
	"context"

	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
)

// Credentials are the per-platform secrets a connector needs, such as an API
// token. They are passed through and never stored.
type Credentials map[string]string

// Connector pulls sale lines from one platform for one user.
type Connector interface {
	Platform() salesdomain.Platform
	Fetch(ctx context.Context, userID string, creds Credentials) ([]salesdomain.SaleInput, error)
}

type TriggerRequest struct {
	UserID      string                 `json:"-"`
	Platforms   []string               `json:"platforms" validate:"omitempty,max=4,dive,oneof=kdp gumroad apple_books draft2digital"`
	Credentials map[string]Credentials `json:"credentials,omitempty"`
}

type TriggerResult struct {
	Success   bool                   `json:"success"`
	Triggered []salesdomain.Platform `json:"triggered"`
	Skipped   []salesdomain.Platform `json:"skipped,omitempty"`
	Message   string                 `json:"message"`
}
