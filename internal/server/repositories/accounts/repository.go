// Package accounts persists user accounts.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository is the account store. Lookups return common.ErrorNotFound when
// no row matches; writes that collide on username or email return
// common.ErrDuplicateUsername or common.ErrDuplicateEmail.
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Account, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, at time.Time) error
	UpdateIdentity(ctx context.Context, id int64, username, email string, at time.Time) error
	MarkVerified(ctx context.Context, id int64, at time.Time) error
	SetTwoFactor(ctx context.Context, id int64, secret string, enabled bool, at time.Time) error
	Delete(ctx context.Context, id int64) error
}
