package models

import "time"

// RevokedToken is a ledger row. RefreshToken is set when the owner revoked
// a refresh token together with the access token.
type RevokedToken struct {
	ID           int64
	Token        string
	RefreshToken string
	RevokedAt    time.Time
}
