package repomanager

import (
	"context"
	"database/sql"

	"github.com/slemarket/hybridstore/internal/dbx"
	"github.com/slemarket/hybridstore/internal/server/repositories/nfts"
	"github.com/slemarket/hybridstore/internal/server/repositories/profiles"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	NFTs(db dbx.DBTX) nfts.Repository
}
