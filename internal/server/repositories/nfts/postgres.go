package nfts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/dbx"
	"github.com/slemarket/hybridstore/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `mint_address, content_id, owner_wallet, token_id, collection_address, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.NFTRecord, error) {
	rec := &models.NFTRecord{}
	var tokenID, collection sql.NullString
	err := row.Scan(&rec.MintAddress, &rec.ContentID, &rec.OwnerWallet,
		&tokenID, &collection, &rec.Metadata, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.TokenID = tokenID.String
	rec.CollectionAddress = collection.String
	return rec, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.NFTRecord) (*models.NFTRecord, error) {

	query :=
		`INSERT INTO nft_records (mint_address, content_id, owner_wallet, token_id, collection_address, metadata)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		 ON CONFLICT (mint_address) DO NOTHING
		 RETURNING ` + recordColumns

	var metadata any
	if len(rec.Metadata) > 0 {
		metadata = []byte(rec.Metadata)
	}

	created, err := scanRecord(r.db.QueryRowContext(ctx, query,
		rec.MintAddress, rec.ContentID, rec.OwnerWallet, rec.TokenID, rec.CollectionAddress, metadata))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) GetByMint(ctx context.Context, mintAddress string) (*models.NFTRecord, error) {

	query :=
		`SELECT ` + recordColumns + `
		 FROM nft_records
		 WHERE mint_address = $1
		 `

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, mintAddress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerWallet string) ([]*models.NFTRecord, error) {

	query :=
		`SELECT ` + recordColumns + `
		 FROM nft_records
		 WHERE owner_wallet = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerWallet)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var recs []*models.NFTRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return recs, nil
}

func (r *PostgresRepository) UpdateOwner(ctx context.Context, mintAddress, newOwner string) (*models.NFTRecord, error) {

	query :=
		`UPDATE nft_records
		 SET owner_wallet = $2, updated_at = now()
		 WHERE mint_address = $1
		 RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, mintAddress, newOwner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) DeleteByMint(ctx context.Context, mintAddress string) error {

	query :=
		`DELETE FROM nft_records
		 WHERE mint_address = $1
		 `

	res, err := r.db.ExecContext(ctx, query, mintAddress)
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
