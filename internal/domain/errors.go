package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("identity provider request failed")
)

// EntityNotFound reports a row that is absent or soft-deleted.
func EntityNotFound(id int64) error {
	return fmt.Errorf("%w: Entity with ID %d not found", ErrNotFound, id)
}
