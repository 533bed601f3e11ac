package service

import (
	"errors"
	"fmt"

	"github.com/nusalink-net/crm-api/internal/domain"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrForbidden is returned when a user doesn't have permission for an action
	ErrForbidden = errors.New("permission denied")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned when login fails
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a deactivated user attempts to log in
	ErrUserInactive = errors.New("user account is inactive")

	// ErrDealNotEditable is returned when items or fields of a deal are
	// modified after it left an editable status
	ErrDealNotEditable = errors.New("deal is no longer editable")

	// ErrLeadClosed is returned when a deal is created against a lead whose
	// lifecycle already finished
	ErrLeadClosed = errors.New("lead is already closed")

	// ErrProductInactive is returned when an inactive product is added to a deal
	ErrProductInactive = errors.New("product is not active")

	// ErrDealHasNoItems is returned when a deal without items is submitted or closed won
	ErrDealHasNoItems = errors.New("deal has no items")
)

// StateConflictError is returned when a deal operation is attempted from a
// status that does not allow it.
type StateConflictError struct {
	Action string
	Status domain.DealStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s deal in status %s", e.Action, e.Status)
}

// NewStateConflictError creates a StateConflictError for an action attempted
// in the given status
func NewStateConflictError(action string, status domain.DealStatus) *StateConflictError {
	return &StateConflictError{Action: action, Status: status}
}

// IsStateConflict reports whether err is a StateConflictError
func IsStateConflict(err error) bool {
	var sce *StateConflictError
	return errors.As(err, &sce)
}
