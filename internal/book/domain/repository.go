package domain

import "context"

// Repository persists books. Lookups are always scoped to the owning user;
// a missing or foreign book reports nil with a nil error.
type Repository interface {
	Insert(ctx context.Context, book *Book) error
	FindByID(ctx context.Context, userID, id string) (*Book, error)
	ListByUser(ctx context.Context, userID string) ([]Book, error)
	Replace(ctx context.Context, book *Book) (bool, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}
