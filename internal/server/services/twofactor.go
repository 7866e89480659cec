package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const qrCodeSize = 256

// TwoFactorEnrollment is what a user needs to set up an authenticator app.
type TwoFactorEnrollment struct {
	Secret    string
	URI       string
	QRCodePNG []byte
}

// TwoFactorManager enables, disables and checks TOTP two-factor auth.
type TwoFactorManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	totp        *auth.TOTP
	logger      logging.Logger
	now         func() time.Time
	qrCode      func(content string, size int) ([]byte, error)
}

func NewTwoFactorManager(db *sql.DB, m repomanager.RepositoryManager, totp *auth.TOTP, l logging.Logger, now func() time.Time) *TwoFactorManager {
	return &TwoFactorManager{
		db:          db,
		repomanager: m,
		totp:        totp,
		logger:      l.With("module", "2fa"),
		now:         clock(now),
		qrCode:      auth.QRCodePNG,
	}
}

// Enable stores a fresh secret and turns 2FA on. The enrollment is fully
// rendered before the write, so a failure leaves 2FA off.
func (m *TwoFactorManager) Enable(ctx context.Context, accountID int64) (*TwoFactorEnrollment, error) {
	var enrollment *TwoFactorEnrollment
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.Accounts(tx)

		a, err := repo.GetByID(ctx, accountID)
		if err != nil {
			return classify("find account", err)
		}
		if a.TwoFactorEnabled {
			return common.ErrTwoFactorAlreadyEnabled
		}

		secret, err := m.totp.GenerateSecret()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		uri := m.totp.ProvisioningURI(secret, a.Email)
		png, err := m.qrCode(uri, qrCodeSize)
		if err != nil {
			return fmt.Errorf("render qr code: %w", err)
		}

		if err := repo.SetTwoFactor(ctx, accountID, secret, true, m.now()); err != nil {
			return classify("enable 2fa", err)
		}
		enrollment = &TwoFactorEnrollment{Secret: secret, URI: uri, QRCodePNG: png}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "2fa enabled", "account_id", accountID)
	return enrollment, nil
}

// Disable clears the secret and turns 2FA off. No code is required and
// disabling an account without 2FA succeeds.
func (m *TwoFactorManager) Disable(ctx context.Context, accountID int64) error {
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.Accounts(tx)
		if _, err := repo.GetByID(ctx, accountID); err != nil {
			return classify("find account", err)
		}
		return classify("disable 2fa", repo.SetTwoFactor(ctx, accountID, "", false, m.now()))
	})
	if err != nil {
		return err
	}
	m.logger.Info(ctx, "2fa disabled", "account_id", accountID)
	return nil
}

// Verify checks code against the account's secret.
func (m *TwoFactorManager) Verify(ctx context.Context, accountID int64, code string) error {
	a, err := m.repomanager.Accounts(m.db).GetByID(ctx, accountID)
	if err != nil {
		return classify("find account", err)
	}
	if !a.TwoFactorEnabled || !a.HasTOTPSecret() {
		return common.ErrTwoFactorNotEnabled
	}
	if !m.totp.Verify(a.TOTPSecret, code) {
		return common.ErrInvalidTwoFactorCode
	}
	return nil
}
