package resetcodes

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.ResetCode) (*models.ResetCode, error) {
	query := `
		INSERT INTO password_reset_codes (email, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, c.Email, c.Code, c.ExpiresAt, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) FindActive(ctx context.Context, email, code string) (*models.ResetCode, error) {
	query := `
		SELECT id, email, code, expires_at, is_used, used_at, created_at
		FROM password_reset_codes
		WHERE email = $1 AND code = $2 AND is_used = FALSE
	`
	c := &models.ResetCode{}
	var (
		stored sql.NullString
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email, code).
		Scan(&c.ID, &c.Email, &stored, &c.ExpiresAt, &c.IsUsed, &usedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Code = stored.String
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return c, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE password_reset_codes
		SET code = NULL, is_used = TRUE, used_at = $2
		WHERE id = $1 AND is_used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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

func (r *PostgresRepository) DeleteStaleBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM password_reset_codes
		WHERE (is_used = TRUE AND used_at < $1) OR expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
