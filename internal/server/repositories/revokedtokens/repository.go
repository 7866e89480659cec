// Package revokedtokens persists the token revocation ledger.
package revokedtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create records a revocation. It returns common.ErrAlreadyRevoked when
	// the token is already in the ledger.
	Create(ctx context.Context, t *models.RevokedToken) error
	// Exists reports whether token was revoked, either as the access token
	// or as the refresh token of a ledger row.
	Exists(ctx context.Context, token string) (bool, error)
	// DeleteBefore removes rows revoked before the cutoff.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
