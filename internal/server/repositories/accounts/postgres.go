package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const selectColumns = `id, username, email, hashed_password, is_active, is_verified,
		 created_at, updated_at, totp_secret, is_2fa_enabled`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO users (username, email, hashed_password, is_active, is_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.IsActive, a.IsVerified, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		return nil, translate(err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users ORDER BY id`
	if activeOnly {
		query = `SELECT ` + selectColumns + ` FROM users WHERE is_active = TRUE ORDER BY id`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, at time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, at)
}

func (r *PostgresRepository) UpdateIdentity(ctx context.Context, id int64, username, email string, at time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET username = $2, email = $3, updated_at = $4 WHERE id = $1`,
		id, username, email, at)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, at)
}

func (r *PostgresRepository) SetTwoFactor(ctx context.Context, id int64, secret string, enabled bool, at time.Time) error {
	var s sql.NullString
	if secret != "" {
		s = sql.NullString{String: secret, Valid: true}
	}
	return r.execOne(ctx,
		`UPDATE users SET totp_secret = $2, is_2fa_enabled = $3, updated_at = $4 WHERE id = $1`,
		id, s, enabled, at)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// execOne runs a statement expected to touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	a := &models.Account{}
	var secret sql.NullString
	err := s.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.IsActive, &a.IsVerified,
		&a.CreatedAt, &a.UpdatedAt, &secret, &a.TwoFactorEnabled)
	if err != nil {
		return nil, err
	}
	a.TOTPSecret = secret.String
	return a, nil
}

// translate maps unique violations on users to typed duplicates.
func translate(err error) error {
	if constraint, ok := dbx.UniqueViolation(err); ok {
		switch constraint {
		case "users_username_key":
			return common.ErrDuplicateUsername
		case "users_email_key":
			return common.ErrDuplicateEmail
		default:
			return common.ErrAlreadyExists
		}
	}
	return fmt.Errorf("db error: %w", err)
}
