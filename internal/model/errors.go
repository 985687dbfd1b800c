package model

import "errors"

// Error kinds surfaced to callers. Store and auth functions wrap these with
// context; the HTTP layer classifies them with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrInactiveAccount   = errors.New("inactive account")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
)
