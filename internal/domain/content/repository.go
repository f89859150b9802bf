package content

import (
	"fmt"

	"github.com/fichesante/backend/internal/domain/shared"
)

// Repository resolves content records by exact identifier.
// Lookups never trim, case-fold or partially match the identifier.
type Repository interface {
	// Exists reports whether a record with this identifier is loaded
	Exists(id string) bool
	// Resolve returns a copy of the record, or *NotFoundError
	Resolve(id string) (*Record, error)
	// ContentVersion returns the current version of the record, or *NotFoundError
	ContentVersion(id string) (string, error)
	// IDs returns every loaded identifier in ascending order
	IDs() []string
}

// NotFoundError is returned when an identifier has no content record
type NotFoundError struct {
	ID string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content record %q not found", e.ID)
}

// Is makes errors.Is(err, shared.ErrNotFound) hold for NotFoundError
func (e *NotFoundError) Is(target error) bool {
	return target == shared.ErrNotFound
}

// NewNotFoundError creates a NotFoundError for id
func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}
