package domain

import (
	"context"
	"errors"

	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
)

type Service interface {
	// Trigger queues one background sync per requested platform and returns
	// without waiting for them.
	Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error)
	// Sync runs a single platform sync in the caller's goroutine.
	Sync(ctx context.Context, userID string, platform salesdomain.Platform, creds Credentials) error
	Import(ctx context.Context, req salesdomain.IngestRequest) (*salesdomain.IngestResult, error)
}

const ConnectorNotConfigured = "connector_not_configured"

var (
	ErrInvalidUser            = errors.New("invalid_user")
	ErrNoPlatforms            = errors.New("no_platforms_enabled")
	ErrPlatformDisabled       = errors.New("platform_disabled")
	ErrSyncInProgress         = errors.New("sync_in_progress")
	ErrConnectorNotConfigured = errors.New(ConnectorNotConfigured)
)
