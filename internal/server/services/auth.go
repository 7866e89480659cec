package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Registration is the result of a successful sign-up.
type Registration struct {
	Account           *models.Account
	VerificationToken string
}

// AuthService implements the token-based flows on top of the account
// directory and the revocation ledger.
type AuthService struct {
	accounts *AccountService
	ledger   *RevocationLedger
	tokens   *auth.TokenCodec
	logger   logging.Logger
}

func NewAuthService(a *AccountService, l *RevocationLedger, t *auth.TokenCodec, log logging.Logger) *AuthService {
	return &AuthService{accounts: a, ledger: l, tokens: t, logger: log.With("module", "auth")}
}

// Register creates the account and an email verification token for it.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*Registration, error) {
	account, err := s.accounts.Create(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(account.Email, auth.PurposeEmailVerification)
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}
	return &Registration{Account: account, VerificationToken: token}, nil
}

// Login checks credentials and issues an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	account, err := s.accounts.Authenticate(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Warn(ctx, "login rejected")
		}
		return nil, err
	}

	access, err := s.tokens.Issue(account.Username, auth.PurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(account.Username, auth.PurposeRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.logger.Info(ctx, "login", "account_id", account.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// CurrentAccount resolves a bearer access token to its account. The token
// must be correctly signed, unexpired, unrevoked and name an existing account.
func (s *AuthService) CurrentAccount(ctx context.Context, accessToken string) (*models.Account, error) {
	claims, err := s.validate(ctx, accessToken, auth.PurposeAccess)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrInvalidToken)
		}
		return nil, err
	}
	return account, nil
}

// Logout revokes the access token and, when given, the refresh token issued
// with it. An expired refresh token is not recorded since it can no longer
// be used anyway.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.validate(ctx, accessToken, auth.PurposeAccess)
	if err != nil {
		return err
	}

	if refreshToken != "" {
		rc, err := s.tokens.ParseFor(refreshToken, auth.PurposeRefresh)
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			refreshToken = ""
		case err != nil:
			return err
		case rc.Subject != claims.Subject:
			return fmt.Errorf("%w: refresh token belongs to another subject", common.ErrInvalidToken)
		}
	}

	if err := s.ledger.Revoke(ctx, accessToken, refreshToken); err != nil {
		return err
	}
	s.logger.Info(ctx, "logout")
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) error {
	if !s.accounts.CheckPassword(account, currentPassword) {
		return common.ErrInvalidCredentials
	}
	return s.accounts.UpdatePassword(ctx, account.ID, newPassword)
}

// RequestPasswordReset issues a password reset token for email.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(account.Email, auth.PurposePasswordReset)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	s.logger.Info(ctx, "password reset requested", "account_id", account.ID)
	return token, nil
}

// ConfirmPasswordReset sets a new password using a reset token. Each token
// works once. The token is spent in the same transaction as the password
// write, and a rejected password leaves it unspent.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.validate(ctx, token, auth.PurposePasswordReset)
	if err != nil {
		return err
	}
	account, err := s.accounts.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	hash, err := s.accounts.hashPassword(newPassword)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.accounts.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ledger.consume(ctx, tx, token); err != nil {
			return err
		}
		return s.accounts.storePassword(ctx, tx, account.ID, hash)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "account_id", account.ID)
	return nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.validate(ctx, refreshToken, auth.PurposeRefresh)
	if err != nil {
		return "", err
	}
	if _, err := s.accounts.FindByUsername(ctx, claims.Subject); err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return "", fmt.Errorf("%w: unknown subject", common.ErrInvalidToken)
		}
		return "", err
	}
	access, err := s.tokens.Issue(claims.Subject, auth.PurposeAccess)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// VerifyEmail marks the account named by an email verification token as
// verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseFor(token, auth.PurposeEmailVerification)
	if err != nil {
		return err
	}
	account, err := s.accounts.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	return s.accounts.MarkVerified(ctx, account.ID)
}

func (s *AuthService) validate(ctx context.Context, token string, p auth.Purpose) (*auth.Claims, error) {
	claims, err := s.tokens.ParseFor(token, p)
	if err != nil {
		return nil, err
	}
	revoked, err := s.ledger.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}
	return claims, nil
}
