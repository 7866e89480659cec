package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/resetcodes"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revokedtokens"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
	ResetCodes(db dbx.DBTX) resetcodes.Repository
}
