// Package resetcodes persists one-time password codes issued for password
// reset and email confirmation.
package resetcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create stores a new code. A collision with another stored code
	// returns common.ErrAlreadyExists.
	Create(ctx context.Context, c *models.ResetCode) (*models.ResetCode, error)
	// FindActive returns the unconsumed code for email, or common.ErrorNotFound.
	FindActive(ctx context.Context, email, code string) (*models.ResetCode, error)
	// Consume marks the code used and clears it. A code that was consumed
	// concurrently returns common.ErrorNotFound.
	Consume(ctx context.Context, id int64, at time.Time) error
	// DeleteStaleBefore removes codes consumed or expired before the cutoff.
	DeleteStaleBefore(ctx context.Context, before time.Time) (int64, error)
}
