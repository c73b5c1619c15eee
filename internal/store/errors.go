package store

import (
	"errors"

	"github.com/your-org/annotate/internal/models"
)

var (
	// ErrNotFound reports a project/image/user/session/video/code that
	// resolved to nothing in either store. Terminal for the operation.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a duplicate user registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredential reports a password mismatch at login.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrNotActivated reports a login attempt before account activation.
	ErrNotActivated = errors.New("user not activated")

	// ErrInvalidCode reports an unknown, consumed or mismatched
	// verification code.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrExpiredCode reports a verification code past its expiry.
	ErrExpiredCode = errors.New("verification code expired")

	// ErrValidation mirrors the model-level invariant violation.
	ErrValidation = models.ErrValidation
)
