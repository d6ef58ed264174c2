package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *SyncLog) error
	ListRecent(ctx context.Context, db *gorm.DB, userID string, limit int) ([]SyncLog, error)
}
