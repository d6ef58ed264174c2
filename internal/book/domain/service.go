package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, userID string, req CreateRequest) (*Book, error)
	Get(ctx context.Context, userID, id string) (*Book, error)
	List(ctx context.Context, userID string) ([]Book, error)
	Update(ctx context.Context, userID, id string, req UpdateRequest) (*Book, error)
	Delete(ctx context.Context, userID, id string) error
}

type CreateRequest struct {
	Title         string         `json:"title" validate:"required,min=1,max=500"`
	Subtitle      *string        `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	Author        string         `json:"author" validate:"required,min=1,max=200"`
	Description   *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	ISBN          *string        `json:"isbn,omitempty" validate:"omitempty,isbn_chars"`
	ASIN          *string        `json:"asin,omitempty" validate:"omitempty,len=10"`
	CoverURL      *string        `json:"cover_url,omitempty" validate:"omitempty,url"`
	Genres        []string       `json:"genres,omitempty" validate:"omitempty,max=10"`
	Platforms     []string       `json:"platforms,omitempty" validate:"omitempty,dive,oneof=kdp gumroad apple_books draft2digital"`
	PublishedDate *string        `json:"published_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Title         *string        `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Subtitle      *string        `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	Author        *string        `json:"author,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	ISBN          *string        `json:"isbn,omitempty" validate:"omitempty,isbn_chars"`
	ASIN          *string        `json:"asin,omitempty" validate:"omitempty,len=10"`
	CoverURL      *string        `json:"cover_url,omitempty" validate:"omitempty,url"`
	Genres        []string       `json:"genres,omitempty" validate:"omitempty,max=10"`
	Platforms     []string       `json:"platforms,omitempty" validate:"omitempty,dive,oneof=kdp gumroad apple_books draft2digital"`
	PublishedDate *string        `json:"published_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Status        *Status        `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("book_not_found")
)
