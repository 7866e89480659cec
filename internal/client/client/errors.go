package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is a non-2xx response from the server. It unwraps to the matching
// common error when the code is known, so callers can use errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string

	kind error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// classify picks the sentinel for a server error code. Codes shared by
// several errors are told apart by their message.
func classify(code, message string) error {
	switch code {
	case "VALIDATION_ERROR", "INVALID_REQUEST":
		return common.ErrValidation
	case "NOT_FOUND":
		return common.ErrAccountNotFound
	case "DUPLICATE":
		if strings.HasPrefix(message, "username") {
			return common.ErrDuplicateUsername
		}
		return common.ErrDuplicateEmail
	case "UNAUTHORIZED":
		if message == common.ErrInvalidCredentials.Error() {
			return common.ErrInvalidCredentials
		}
		return common.ErrInvalidToken
	case "TOKEN_EXPIRED":
		return common.ErrTokenExpired
	case "TOKEN_REVOKED":
		return common.ErrTokenRevoked
	case "INVALID_CODE":
		return common.ErrInvalidCode
	case "CODE_EXPIRED":
		return common.ErrCodeExpired
	case "ALREADY_ENABLED":
		return common.ErrTwoFactorAlreadyEnabled
	case "NOT_ENABLED":
		return common.ErrTwoFactorNotEnabled
	default:
		return common.ErrorInternal
	}
}
