package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed:
		return true
	default:
		return false
	}
}

// SyncLog records one synchronization attempt. Rows are never updated.
type SyncLog struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID       string       `json:"user_id" gorm:"type:text;not null;index:ix_sync_logs_user_synced,priority:1"`
	Platform     string       `json:"platform" gorm:"type:text;not null"`
	Status       Status       `json:"status" gorm:"type:text;not null"`
	ErrorMessage *string      `json:"error_message" gorm:"type:text"`
	SyncedAt     time.Time    `json:"synced_at" gorm:"not null;index:ix_sync_logs_user_synced,priority:2"`
}

func (SyncLog) TableName() string { return "sync_logs" }
