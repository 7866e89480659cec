package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorTable maps the service error taxonomy to HTTP responses. The first
// match wins. An empty message means the error text is safe to show.
var errorTable = []errorMapping{
	{common.ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR", ""},
	{common.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND", "account not found"},
	{common.ErrDuplicateUsername, http.StatusConflict, "DUPLICATE", "username already registered"},
	{common.ErrDuplicateEmail, http.StatusConflict, "DUPLICATE", "email already registered"},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired"},
	{common.ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED", "token revoked"},
	{common.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE", "invalid code"},
	{common.ErrCodeExpired, http.StatusBadRequest, "CODE_EXPIRED", "code expired"},
	{common.ErrTwoFactorAlreadyEnabled, http.StatusConflict, "ALREADY_ENABLED", "2FA already enabled"},
	{common.ErrTwoFactorNotEnabled, http.StatusBadRequest, "NOT_ENABLED", "2FA is not enabled"},
	{common.ErrInvalidTwoFactorCode, http.StatusBadRequest, "INVALID_CODE", "invalid 2FA code"},
}

var internalError = errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"}

func lookupError(err error) (int, errorResponse) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, errorResponse{Code: m.code, Message: msg}
		}
	}
	return http.StatusInternalServerError, internalError
}

// writeError aborts the request with the response mapped from err.
// Unmapped errors are logged and reported as an opaque internal error.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := lookupError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "error", err, "request_id", requestID(c))
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
}
