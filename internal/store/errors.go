package store

import "errors"

// Error kinds returned by mutating operations. Callers check them with
// errors.Is; the API layer maps them to HTTP statuses. Store functions wrap
// them with context, e.g. fmt.Errorf("item %d: %w", id, ErrConflict).
var (
	// ErrNotFound means a referenced item, order, holder or request is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor lacks rights over the item or order,
	// e.g. transferring an item they do not hold or amending past the window.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means the item is already bound or identified elsewhere,
	// e.g. binding to a different order or receiving a duplicate serial.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest means invalid input, e.g. insufficient quantity or
	// missing required work codes.
	ErrBadRequest = errors.New("bad request")
)
