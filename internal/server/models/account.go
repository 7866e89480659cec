// Package models defines server-side records persisted in the database.
package models

import "time"

// Account is a registered user. PasswordHash and TOTPSecret never leave the
// server; transport layers map Account to their own response types.
type Account struct {
	ID               int64
	Username         string
	Email            string
	PasswordHash     string
	IsActive         bool
	IsVerified       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	TOTPSecret       string
	TwoFactorEnabled bool
}

// HasTOTPSecret reports whether a TOTP secret is stored for the account.
func (a *Account) HasTOTPSecret() bool {
	return a.TOTPSecret != ""
}
