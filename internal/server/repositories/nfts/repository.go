// Package nfts persists mint address → metadata content id records.
// A record's content id is immutable; only ownership may change.
package nfts

import (
	"context"

	"github.com/slemarket/hybridstore/internal/server/models"
)

type Repository interface {
	// Insert creates a record. Mint addresses are globally unique, so
	// there is no upsert; a duplicate surfaces as ErrorAlreadyExists.
	Insert(ctx context.Context, rec *models.NFTRecord) (*models.NFTRecord, error)
	GetByMint(ctx context.Context, mintAddress string) (*models.NFTRecord, error)
	ListByOwner(ctx context.Context, ownerWallet string) ([]*models.NFTRecord, error)
	UpdateOwner(ctx context.Context, mintAddress, newOwner string) (*models.NFTRecord, error)
	DeleteByMint(ctx context.Context, mintAddress string) error
}
