// package repositories provides persistence layer implementations for the local cache and report history.
//
// Each repository implements models.Repository[T] for a specific entity type.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// notFound wraps [ErrNotFound] with what was looked up.
func notFound(entity, key string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, key)
}

// expectOneRow checks that an UPDATE or DELETE touched exactly one row.
func expectOneRow(result sql.Result, entity, key string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(entity, key)
	}
	return nil
}
