package domain

import (
	"context"
	"errors"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// Entry is the caller-supplied part of a sync log; the timestamp is always
// assigned server side.
type Entry struct {
	UserID       string
	Platform     string
	Status       Status
	ErrorMessage string
}

type Service interface {
	// LogSync appends an entry. Write failures are logged and counted but
	// never returned, so they cannot mask the outcome being recorded.
	LogSync(ctx context.Context, entry Entry)
	List(ctx context.Context, userID string, limit int) ([]SyncLog, error)
}

var ErrInvalidUser = errors.New("invalid_user")
