package client

import (
	"context"
	"time"
)

// Account is the public view of an account returned by the server.
type Account struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	IsActive         bool      `json:"is_active"`
	IsVerified       bool      `json:"is_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// Registration is the result of a successful sign-up.
type Registration struct {
	Account
	VerificationToken string `json:"verification_token"`
}

// Tokens is an access/refresh pair issued by login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Client is the subset of the GophAuth HTTP API used by the CLI.
type Client interface {
	Register(ctx context.Context, username, email, password string) (Registration, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, usernameOrEmail, password string) (Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context, accessToken string) (Account, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}
