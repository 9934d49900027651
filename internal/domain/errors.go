package domain

import "errors"

// Sentinel errors shared by services and handlers. Services wrap them with
// fmt.Errorf("...: %w", ...); the HTTP layer maps each to one status code.
var (
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrUnauthorized = errors.New("unauthorized") // 401, also wrong or expired codes
	ErrForbidden    = errors.New("forbidden")    // 403, e.g. unverified account
	ErrBadRequest   = errors.New("bad request")  // 400
)
