package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// RevocationLedger records tokens that must no longer be accepted. Rows are
// never removed except by an explicit Purge.
type RevocationLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewRevocationLedger(db *sql.DB, m repomanager.RepositoryManager, now func() time.Time) *RevocationLedger {
	return &RevocationLedger{db: db, repomanager: m, now: clock(now)}
}

// Revoke records token, and optionally the refresh token issued with it.
// Revoking a token twice is not an error.
func (l *RevocationLedger) Revoke(ctx context.Context, token, refreshToken string) error {
	err := l.record(ctx, l.db, token, refreshToken)
	if errors.Is(err, common.ErrAlreadyRevoked) {
		return nil
	}
	return err
}

// Consume records a single-use token. It returns common.ErrTokenRevoked when
// the token was already recorded, so only one caller can spend it.
func (l *RevocationLedger) Consume(ctx context.Context, token string) error {
	return l.consume(ctx, l.db, token)
}

// consume is Consume on a caller's transaction, so spending a token can
// commit or roll back together with the change it authorizes.
func (l *RevocationLedger) consume(ctx context.Context, tx dbx.DBTX, token string) error {
	err := l.record(ctx, tx, token, "")
	if errors.Is(err, common.ErrAlreadyRevoked) {
		return common.ErrTokenRevoked
	}
	return err
}

// IsRevoked reports whether token was recorded as either an access or a
// refresh token.
func (l *RevocationLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := l.repomanager.RevokedTokens(l.db).Exists(ctx, token)
	if err != nil {
		return false, classify("check revocation", err)
	}
	return revoked, nil
}

// Purge deletes ledger rows revoked before the cutoff.
func (l *RevocationLedger) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := l.repomanager.RevokedTokens(l.db).DeleteBefore(ctx, before)
	if err != nil {
		return 0, classify("purge ledger", err)
	}
	return n, nil
}

func (l *RevocationLedger) record(ctx context.Context, tx dbx.DBTX, token, refreshToken string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", common.ErrValidation)
	}
	err := l.repomanager.RevokedTokens(tx).Create(ctx, &models.RevokedToken{
		Token:        token,
		RefreshToken: refreshToken,
		RevokedAt:    l.now(),
	})
	if err != nil && !errors.Is(err, common.ErrAlreadyRevoked) {
		return classify("revoke token", err)
	}
	return err
}
