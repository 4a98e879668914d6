package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/models"
	"github.com/slemarket/hybridstore/internal/server/repositories/repomanager"
)

// NFTMetadataStore is the slice of the immutable-metadata adapter the
// NFT service needs.
type NFTMetadataStore interface {
	UploadJSON(ctx context.Context, metadata []byte) (string, error)
	Fetch(ctx context.Context, cid, path string) ([]byte, error)
	GatewayURL(cid, path string) string
}

// NFT bundles a record with its resolved metadata document.
type NFT struct {
	Record   *models.NFTRecord
	Metadata json.RawMessage
	Gateway  string
}

// NFTService stores NFT metadata documents on the immutable-metadata
// backend and indexes them by mint address. Unlike profile saves, a
// record write failure here is a hard error: the mint has no prior row
// to fall back to, so a half-registered NFT must surface to the caller.
type NFTService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       NFTMetadataStore
	log         logging.Logger
}

func NewNFTService(db *sql.DB, m repomanager.RepositoryManager, store NFTMetadataStore, log logging.Logger) *NFTService {
	return &NFTService{db: db, repomanager: m, store: store, log: log}
}

// Upload stores the metadata document, then inserts the record. The
// content id in the row never changes afterwards.
func (s *NFTService) Upload(ctx context.Context, metadata json.RawMessage, mintAddress, ownerWallet string) (*models.NFTRecord, error) {
	if mintAddress == "" || ownerWallet == "" {
		return nil, common.ErrorMissingIdentity
	}
	if len(metadata) == 0 || !json.Valid(metadata) {
		return nil, fmt.Errorf("metadata must be a JSON document: %w", common.ErrorIncorrectMetadata)
	}

	contentID, err := s.store.UploadJSON(ctx, metadata)
	if err != nil {
		return nil, fmt.Errorf("error storing nft metadata: %w", err)
	}

	var fields struct {
		TokenID           string `json:"token_id"`
		CollectionAddress string `json:"collection_address"`
	}
	_ = json.Unmarshal(metadata, &fields)

	rec, err := s.repomanager.NFTs(s.db).Insert(ctx, &models.NFTRecord{
		MintAddress:       mintAddress,
		ContentID:         contentID,
		OwnerWallet:       ownerWallet,
		TokenID:           fields.TokenID,
		CollectionAddress: fields.CollectionAddress,
		Metadata:          metadata,
	})
	if err != nil {
		s.log.Error(ctx, "nft record write failed after metadata upload",
			"mint", mintAddress, "contentID", contentID, "error", err)
		return nil, fmt.Errorf("error recording nft metadata: %w", err)
	}

	return rec, nil
}

// Get resolves a mint's record and fetches the metadata document from
// the backend. A fetch failure falls back to the row's cached copy when
// one exists.
func (s *NFTService) Get(ctx context.Context, mintAddress string) (*NFT, error) {
	if mintAddress == "" {
		return nil, common.ErrorMissingIdentity
	}

	rec, err := s.repomanager.NFTs(s.db).GetByMint(ctx, mintAddress)
	if err != nil {
		return nil, err
	}

	nft := &NFT{Record: rec, Gateway: s.store.GatewayURL(rec.ContentID, "")}

	doc, err := s.store.Fetch(ctx, rec.ContentID, "")
	if err != nil {
		if len(rec.Metadata) == 0 {
			return nil, fmt.Errorf("error fetching nft metadata: %w", err)
		}
		s.log.Warn(ctx, "nft metadata fetch failed, serving cached copy",
			"mint", mintAddress, "contentID", rec.ContentID, "error", err)
		nft.Metadata = rec.Metadata
		return nft, nil
	}

	nft.Metadata = doc
	return nft, nil
}

// ListByOwner returns a wallet's records, newest first. Metadata is not
// fetched; callers resolve individual mints as needed.
func (s *NFTService) ListByOwner(ctx context.Context, ownerWallet string) ([]*models.NFTRecord, error) {
	if ownerWallet == "" {
		return nil, common.ErrorMissingIdentity
	}
	return s.repomanager.NFTs(s.db).ListByOwner(ctx, ownerWallet)
}

// TransferOwner repoints a record's ownership. The content id is left
// untouched; ownership is row data, not payload data.
func (s *NFTService) TransferOwner(ctx context.Context, mintAddress, newOwner string) (*models.NFTRecord, error) {
	if mintAddress == "" || newOwner == "" {
		return nil, common.ErrorMissingIdentity
	}

	rec, err := s.repomanager.NFTs(s.db).UpdateOwner(ctx, mintAddress, newOwner)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error transferring nft ownership: %w", err)
	}
	return rec, nil
}
