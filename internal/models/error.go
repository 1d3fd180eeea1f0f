package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login protection errors
	ErrCaptchaRequired = errors.New("captcha response required")
	ErrCaptchaInvalid  = errors.New("captcha verification failed")
)

// LockoutError indicates an address is inside an active lockout window.
// Surfaced to the end user with the remaining time; never logged as a
// system error.
type LockoutError struct {
	MinutesRemaining int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed login attempts, try again in %d minutes", e.MinutesRemaining)
}
