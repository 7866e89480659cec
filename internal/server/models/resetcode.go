package models

import "time"

// ResetCode is a six-digit one-time password issued to an email address.
// Code is cleared once the code is consumed.
type ResetCode struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is no longer valid at now. A code is
// still accepted at the exact instant it expires.
func (c *ResetCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
