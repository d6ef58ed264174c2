package domain

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Book is an author's title as stored in the document store.
type Book struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Subtitle      *string        `json:"subtitle"`
	Author        string         `json:"author"`
	Description   *string        `json:"description"`
	ISBN          *string        `json:"isbn"`
	ASIN          *string        `json:"asin"`
	CoverURL      *string        `json:"cover_url"`
	Genres        []string       `json:"genres"`
	Platforms     []string       `json:"platforms"`
	PublishedDate *time.Time     `json:"published_date"`
	Status        Status         `json:"status"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
