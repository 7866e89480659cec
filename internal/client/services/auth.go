// Package services contains application services for the GophAuth CLI.
// The auth service drives the HTTP API and keeps the login state in the
// local session database so it survives restarts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

// AuthService defines the account operations available from the CLI.
// All methods honor context cancellation.
type AuthService interface {
	Register(ctx context.Context, username, email string, password []byte) (client.Registration, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, usernameOrEmail string, password []byte) error
	Me(ctx context.Context) (client.Account, error)
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token string, newPassword []byte) error
	// Username returns the name stored at login, or "" when logged out.
	Username(ctx context.Context) string
	Close() error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and
// session database.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, db: db}
}

func (a *authService) sessionRepo() session.Repository {
	return session.NewSQLiteRepository(a.db)
}

func (a *authService) Register(ctx context.Context, username, email string, password []byte) (client.Registration, error) {
	return a.client.Register(ctx, username, email, string(password))
}

func (a *authService) VerifyEmail(ctx context.Context, token string) error {
	return a.client.VerifyEmail(ctx, token)
}

// Login authenticates against the server and replaces any stored session
// with the new username and token pair in a single transaction.
func (a *authService) Login(ctx context.Context, usernameOrEmail string, password []byte) error {
	tokens, err := a.client.Login(ctx, usernameOrEmail, string(password))
	if err != nil {
		return err
	}

	account, err := a.client.Me(ctx, tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := session.NewSQLiteRepository(tx)
		if err := repo.Clear(ctx); err != nil {
			return err
		}
		if err := repo.Set(ctx, session.KeyUsername, account.Username); err != nil {
			return err
		}
		if err := repo.Set(ctx, session.KeyAccessToken, tokens.AccessToken); err != nil {
			return err
		}
		return repo.Set(ctx, session.KeyRefreshToken, tokens.RefreshToken)
	})
}

// Me returns the logged-in account. An expired access token is renewed once
// with the stored refresh token.
func (a *authService) Me(ctx context.Context) (client.Account, error) {
	access, err := a.stored(ctx, session.KeyAccessToken)
	if err != nil {
		return client.Account{}, err
	}

	account, err := a.client.Me(ctx, access)
	if !errors.Is(err, common.ErrTokenExpired) {
		return account, err
	}

	access, err = a.refresh(ctx)
	if err != nil {
		return client.Account{}, err
	}
	return a.client.Me(ctx, access)
}

func (a *authService) refresh(ctx context.Context) (string, error) {
	refreshToken, err := a.stored(ctx, session.KeyRefreshToken)
	if err != nil {
		return "", err
	}

	access, err := a.client.Refresh(ctx, refreshToken)
	if err != nil {
		if isDeadSession(err) {
			_ = a.sessionRepo().Clear(ctx)
			return "", fmt.Errorf("%w: %w", client.ErrNotLoggedIn, err)
		}
		return "", err
	}

	if err := a.sessionRepo().Set(ctx, session.KeyAccessToken, access); err != nil {
		return "", err
	}
	return access, nil
}

// Logout revokes the stored tokens on the server and forgets them locally.
// An expired access token is refreshed once so the refresh token still gets
// revoked. A session the server already rejects is still cleared.
func (a *authService) Logout(ctx context.Context) error {
	access, err := a.stored(ctx, session.KeyAccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := a.stored(ctx, session.KeyRefreshToken)
	if err != nil && !errors.Is(err, client.ErrNotLoggedIn) {
		return err
	}

	err = a.client.Logout(ctx, access, refreshToken)
	if errors.Is(err, common.ErrTokenExpired) && refreshToken != "" {
		access, err = a.refresh(ctx)
		if errors.Is(err, client.ErrNotLoggedIn) {
			return nil
		}
		if err != nil {
			return err
		}
		err = a.client.Logout(ctx, access, refreshToken)
	}
	if err != nil && !isDeadSession(err) {
		return err
	}
	return a.sessionRepo().Clear(ctx)
}

func (a *authService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return a.client.RequestPasswordReset(ctx, email)
}

func (a *authService) ConfirmPasswordReset(ctx context.Context, token string, newPassword []byte) error {
	return a.client.ConfirmPasswordReset(ctx, token, string(newPassword))
}

func (a *authService) Username(ctx context.Context) string {
	name, err := a.sessionRepo().Get(ctx, session.KeyUsername)
	if err != nil {
		return ""
	}
	return name
}

func (a *authService) Close() error {
	return a.db.Close()
}

// stored reads key from the session, reporting a missing key as
// client.ErrNotLoggedIn.
func (a *authService) stored(ctx context.Context, key string) (string, error) {
	v, err := a.sessionRepo().Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		return "", client.ErrNotLoggedIn
	}
	return v, err
}

func isDeadSession(err error) bool {
	return errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrTokenRevoked) ||
		errors.Is(err, common.ErrInvalidToken)
}
