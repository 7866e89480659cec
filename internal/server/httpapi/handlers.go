// Package httpapi exposes the account and authentication operations over
// HTTP using gin.
package httpapi

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*services.Registration, error)
	Login(ctx context.Context, identifier, password string) (*services.TokenPair, error)
	CurrentAccount(ctx context.Context, accessToken string) (*models.Account, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
}

type AccountDirectory interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
	UpdateUsernameOrEmail(ctx context.Context, id int64, newUsername, newEmail string) (*models.Account, error)
	Delete(ctx context.Context, id int64) error
}

type OTPService interface {
	Send(ctx context.Context, email string) (*models.ResetCode, error)
	Verify(ctx context.Context, email, code string) error
}

type TwoFactorService interface {
	Enable(ctx context.Context, accountID int64) (*services.TwoFactorEnrollment, error)
	Disable(ctx context.Context, accountID int64) error
	Verify(ctx context.Context, accountID int64, code string) error
}

type Handler struct {
	auth     AuthService
	accounts AccountDirectory
	otp      OTPService
	twofa    TwoFactorService
	logger   logging.Logger
}

func NewHandler(a AuthService, d AccountDirectory, o OTPService, t TwoFactorService, l logging.Logger) *Handler {
	return &Handler{auth: a, accounts: d, otp: o, twofa: t, logger: l.With("module", "httpapi")}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type changeIdentityRequest struct {
	NewUsername string `json:"new_username"`
	NewEmail    string `json:"new_email"`
}

type otpSendRequest struct {
	Email string `json:"email" binding:"required"`
}

type otpVerifyRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type twoFactorVerifyRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

type accountResponse struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	IsActive         bool      `json:"is_active"`
	IsVerified       bool      `json:"is_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

type accountListResponse struct {
	Users []accountResponse `json:"users"`
}

type registerResponse struct {
	accountResponse
	VerificationToken string `json:"verification_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

type resetTokenResponse struct {
	Token string `json:"token"`
}

type otpSendResponse struct {
	Email     string    `json:"email"`
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

type enrollmentResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		IsActive:         a.IsActive,
		IsVerified:       a.IsVerified,
		TwoFactorEnabled: a.TwoFactorEnabled,
		CreatedAt:        a.CreatedAt,
	}
}

func newAccountList(list []*models.Account) accountListResponse {
	out := accountListResponse{Users: make([]accountResponse, 0, len(list))}
	for _, a := range list {
		out.Users = append(out.Users, newAccountResponse(a))
	}
	return out
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	reg, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	metrics.AuthEvents.WithLabelValues("register", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		accountResponse:   newAccountResponse(reg.Account),
		VerificationToken: reg.VerificationToken,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	metrics.AuthEvents.WithLabelValues("login", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    common.BearerScheme,
	})
}

// Logout revokes the bearer token. The body is optional and may carry the
// refresh token to revoke with it.
func (h *Handler) Logout(c *gin.Context) {
	token := ExtractBearer(c.GetHeader(common.AuthorizationHeaderName))
	if token == "" {
		h.writeError(c, common.ErrInvalidToken)
		return
	}

	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}

	err := h.auth.Logout(c.Request.Context(), token, req.RefreshToken)
	metrics.AuthEvents.WithLabelValues("logout", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "successfully logged out"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), currentAccount(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	token, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resetTokenResponse{Token: token})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword)
	metrics.AuthEvents.WithLabelValues("password_reset", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password reset"})
}

// Refresh takes the refresh token from the refresh_token query parameter or
// from a JSON body.
func (h *Handler) Refresh(c *gin.Context) {
	token := c.Query("refresh_token")
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			badRequest(c)
			return
		}
		token = req.RefreshToken
	}

	access, err := h.auth.Refresh(c.Request.Context(), token)
	metrics.AuthEvents.WithLabelValues("refresh", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: access, TokenType: common.BearerScheme})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		badRequest(c)
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "email verified"})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newAccountResponse(currentAccount(c)))
}

func (h *Handler) ListAccounts(c *gin.Context) {
	list, err := h.accounts.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountList(list))
}

func (h *Handler) ListActiveAccounts(c *gin.Context) {
	list, err := h.accounts.ListActive(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountList(list))
}

func (h *Handler) GetAccount(c *gin.Context) {
	a, err := h.accounts.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(a))
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), currentAccount(c).ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "account deleted"})
}

func (h *Handler) ChangeUsernameOrEmail(c *gin.Context) {
	var req changeIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	a, err := h.accounts.UpdateUsernameOrEmail(c.Request.Context(), currentAccount(c).ID, req.NewUsername, req.NewEmail)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(a))
}

// SendOTP issues a code, passes it to the mailer and returns it in the
// response body.
func (h *Handler) SendOTP(c *gin.Context) {
	var req otpSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	rc, err := h.otp.Send(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, otpSendResponse{Email: rc.Email, OTP: rc.Code, ExpiresAt: rc.ExpiresAt})
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.otp.Verify(c.Request.Context(), req.Email, req.OTP)
	metrics.AuthEvents.WithLabelValues("otp_verify", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "OTP verified"})
}

func (h *Handler) EnableTwoFactor(c *gin.Context) {
	id, ok := h.targetAccount(c)
	if !ok {
		return
	}

	e, err := h.twofa.Enable(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollmentResponse{
		Secret: e.Secret,
		URI:    e.URI,
		QRCode: base64.StdEncoding.EncodeToString(e.QRCodePNG),
	})
}

func (h *Handler) DisableTwoFactor(c *gin.Context) {
	id, ok := h.targetAccount(c)
	if !ok {
		return
	}

	if err := h.twofa.Disable(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "2FA disabled"})
}

func (h *Handler) VerifyTwoFactor(c *gin.Context) {
	var req twoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.twofa.Verify(c.Request.Context(), req.UserID, req.Token)
	metrics.AuthEvents.WithLabelValues("2fa_verify", metrics.Outcome(err)).Inc()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "2FA verification successful"})
}

// targetAccount returns the id of the authenticated account. A user_id query
// parameter is accepted only when it names that same account.
func (h *Handler) targetAccount(c *gin.Context) (int64, bool) {
	self := currentAccount(c).ID

	raw := c.Query("user_id")
	if raw == "" {
		return self, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c)
		return 0, false
	}
	if id != self {
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "cannot manage 2FA of another account"})
		return 0, false
	}
	return id, true
}
