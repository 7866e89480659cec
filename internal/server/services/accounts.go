// Package services contains the server-side business logic: the account
// directory, the token revocation ledger, one-time passwords, TOTP two-factor
// enrollment, and the authentication flows built on top of them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// PasswordHasher produces salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// AccountService is the account directory. Every mutation runs in its own
// transaction; a failed mutation leaves the store untouched.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	logger      logging.Logger
	now         func() time.Time

	// dummyHash is verified against when an identifier matches no account,
	// so unknown identifiers cost the same as wrong passwords.
	dummyHash string
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h PasswordHasher, l logging.Logger, now func() time.Time) (*AccountService, error) {
	dummy, err := h.Hash("gophauth-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      h,
		logger:      l.With("module", "accounts"),
		now:         clock(now),
		dummyHash:   dummy,
	}, nil
}

// Create registers a new active, unverified account.
func (s *AccountService) Create(ctx context.Context, username, email, password string) (*models.Account, error) {
	if err := validateIdentity(username, email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		if err := ensureFree(ctx, repo.GetByUsername, username, common.ErrDuplicateUsername); err != nil {
			return err
		}
		if err := ensureFree(ctx, repo.GetByEmail, email, common.ErrDuplicateEmail); err != nil {
			return err
		}

		created, err := repo.Create(ctx, account)
		if err != nil {
			return classify("create account", err)
		}
		account = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account created", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).GetByID(ctx, id)
	return a, classify("find account", err)
}

func (s *AccountService) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).GetByUsername(ctx, username)
	return a, classify("find account", err)
}

func (s *AccountService) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	return a, classify("find account", err)
}

// Authenticate checks identifier and password. An identifier containing "@"
// is looked up as an email, otherwise as a username. Unknown identifiers and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*models.Account, error) {
	var (
		account *models.Account
		err     error
	)
	if strings.Contains(identifier, "@") {
		account, err = s.FindByEmail(ctx, identifier)
	} else {
		account, err = s.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(account.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}
	return account, nil
}

// CheckPassword reports whether password matches the account's stored hash.
func (s *AccountService) CheckPassword(a *models.Account, password string) bool {
	return s.hasher.Verify(a.PasswordHash, password)
}

// UpdatePassword replaces the stored hash with a hash of newPassword.
func (s *AccountService) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.storePassword(ctx, tx, id, hash)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password updated", "account_id", id)
	return nil
}

// hashPassword validates newPassword and hashes it without touching the store.
func (s *AccountService) hashPassword(newPassword string) (string, error) {
	if newPassword == "" {
		return "", fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return "", err
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *AccountService) storePassword(ctx context.Context, tx dbx.DBTX, id int64, hash string) error {
	return classify("update password", s.repomanager.Accounts(tx).UpdatePassword(ctx, id, hash, s.now()))
}

// UpdateUsernameOrEmail changes username and/or email; an empty argument
// leaves that field as is. Both uniqueness checks run before the single
// write, so either both changes land or neither does. Unchanged values are
// not written.
func (s *AccountService) UpdateUsernameOrEmail(ctx context.Context, id int64, newUsername, newEmail string) (*models.Account, error) {
	var account *models.Account

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return classify("find account", err)
		}

		username, email := current.Username, current.Email
		if newUsername != "" && newUsername != current.Username {
			if err := validateIdentity(newUsername, email); err != nil {
				return err
			}
			if err := ensureFree(ctx, repo.GetByUsername, newUsername, common.ErrDuplicateUsername); err != nil {
				return err
			}
			username = newUsername
		}
		if newEmail != "" && newEmail != current.Email {
			if err := validateIdentity(username, newEmail); err != nil {
				return err
			}
			if err := ensureFree(ctx, repo.GetByEmail, newEmail, common.ErrDuplicateEmail); err != nil {
				return err
			}
			email = newEmail
		}

		if username == current.Username && email == current.Email {
			account = current
			return nil
		}

		now := s.now()
		if err := repo.UpdateIdentity(ctx, id, username, email, now); err != nil {
			return classify("update identity", err)
		}
		current.Username, current.Email, current.UpdatedAt = username, email, now
		account = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Delete removes the account permanently.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return classify("delete account", s.repomanager.Accounts(tx).Delete(ctx, id))
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "account deleted", "account_id", id)
	return nil
}

// MarkVerified sets the verified flag. Repeating it is harmless.
func (s *AccountService) MarkVerified(ctx context.Context, id int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return classify("mark verified", s.repomanager.Accounts(tx).MarkVerified(ctx, id, s.now()))
	})
}

func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).List(ctx, false)
	return a, classify("list accounts", err)
}

func (s *AccountService) ListActive(ctx context.Context) ([]*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).List(ctx, true)
	return a, classify("list accounts", err)
}

// ensureFree returns dup if lookup finds an account for value.
func ensureFree(ctx context.Context, lookup func(context.Context, string) (*models.Account, error), value string, dup error) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return dup
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return classify("check uniqueness", err)
	}
}

func validateIdentity(username, email string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	case strings.Contains(username, "@"):
		return fmt.Errorf("%w: username must not contain '@'", common.ErrValidation)
	case !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@"):
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return nil
}
