package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const (
	otpDigits = 6
	// otpIssueAttempts bounds retries when a generated code collides with
	// a stored one.
	otpIssueAttempts = 5
)

// CodeMailer delivers a one-time password to its owner.
type CodeMailer interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// OTPManager issues and verifies six-digit codes bound to an email address.
// Several unexpired codes may be outstanding for one address; each is
// accepted once.
type OTPManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      CodeMailer
	logger      logging.Logger
	ttl         time.Duration
	now         func() time.Time
	generate    func() (string, error)
}

func NewOTPManager(db *sql.DB, m repomanager.RepositoryManager, mailer CodeMailer, l logging.Logger, ttl time.Duration, now func() time.Time) *OTPManager {
	return &OTPManager{
		db:          db,
		repomanager: m,
		mailer:      mailer,
		logger:      l.With("module", "otp"),
		ttl:         ttl,
		now:         clock(now),
		generate:    func() (string, error) { return common.RandomDigits(otpDigits) },
	}
}

// Issue creates a code for the account registered under email and returns it.
func (m *OTPManager) Issue(ctx context.Context, email string) (*models.ResetCode, error) {
	if _, err := m.repomanager.Accounts(m.db).GetByEmail(ctx, email); err != nil {
		return nil, classify("find account", err)
	}

	repo := m.repomanager.ResetCodes(m.db)
	for attempt := 0; attempt < otpIssueAttempts; attempt++ {
		code, err := m.generate()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		now := m.now()
		rc, err := repo.Create(ctx, &models.ResetCode{
			Email:     email,
			Code:      code,
			ExpiresAt: now.Add(m.ttl),
			CreatedAt: now,
		})
		if errors.Is(err, common.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, classify("store code", err)
		}
		return rc, nil
	}
	return nil, fmt.Errorf("%w: no free code after %d attempts", common.ErrStorage, otpIssueAttempts)
}

// Send issues a code, hands it to the mailer and returns it.
func (m *OTPManager) Send(ctx context.Context, email string) (*models.ResetCode, error) {
	rc, err := m.Issue(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := m.mailer.SendCode(ctx, email, rc.Code, rc.ExpiresAt); err != nil {
		m.logger.Error(ctx, "code delivery failed", "error", err)
		return nil, fmt.Errorf("deliver code: %w", err)
	}
	m.logger.Info(ctx, "code issued", "expires_at", rc.ExpiresAt)
	return rc, nil
}

// Verify accepts code for email once. An unknown or already used code is
// common.ErrInvalidCode; a stored but stale one is common.ErrCodeExpired and
// stays unconsumed.
func (m *OTPManager) Verify(ctx context.Context, email, code string) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.ResetCodes(tx)

		rc, err := repo.FindActive(ctx, email, code)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidCode
			}
			return classify("find code", err)
		}

		now := m.now()
		if rc.Expired(now) {
			return common.ErrCodeExpired
		}

		if err := repo.Consume(ctx, rc.ID, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidCode
			}
			return classify("consume code", err)
		}
		return nil
	})
}

// Purge deletes codes used or expired before the cutoff.
func (m *OTPManager) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := m.repomanager.ResetCodes(m.db).DeleteStaleBefore(ctx, before)
	if err != nil {
		return 0, classify("purge codes", err)
	}
	return n, nil
}
