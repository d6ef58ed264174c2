package repository

import (
	"context"

	"github.com/authorstack/authorstack/internal/synclog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.SyncLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO sync_logs (id, user_id, platform, status, error_message, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Platform,
		entry.Status,
		entry.ErrorMessage,
		entry.SyncedAt,
	).Error
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.SyncLog, error) {
	var logs []domain.SyncLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, platform, status, error_message, synced_at
		 FROM sync_logs
		 WHERE user_id = ?
		 ORDER BY synced_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
