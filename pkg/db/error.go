package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// StoreError is the single failure type services return for relational
// store problems. The wrapped driver error stays available to errors.As and
// to logs, never to API clients.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return "store operation failed"
	}
	return fmt.Sprintf("store operation failed: %s", e.Op)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	// SQLite reports constraint failures as text only.
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.Contains(e.Error(), "UNIQUE constraint failed") {
			return true
		}
	}
	return false
}
