// Package common defines shared constants and sentinel errors used across
// the GophAuth server and CLI. Callers should use errors.Is to match them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrStorage    = errors.New("storage failure")
	ErrValidation = errors.New("validation error")

	// Account directory errors.
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateUsername  = errors.New("username already registered")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors. ErrInvalidToken covers a bad signature, a malformed token
	// and a token presented for the wrong purpose.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrAlreadyRevoked = errors.New("token already revoked")

	// One-time password errors.
	ErrInvalidCode = errors.New("invalid code")
	ErrCodeExpired = errors.New("code expired")

	// Two-factor errors.
	ErrTwoFactorAlreadyEnabled = errors.New("2fa already enabled")
	ErrTwoFactorNotEnabled     = errors.New("2fa not enabled")
	ErrInvalidTwoFactorCode    = errors.New("invalid 2fa code")
)
