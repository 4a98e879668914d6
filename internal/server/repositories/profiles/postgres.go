package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/dbx"
	"github.com/slemarket/hybridstore/internal/server/models"
	"github.com/slemarket/hybridstore/internal/storage"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanReference(row *sql.Row) (*models.ProfileReference, error) {
	ref := &models.ProfileReference{}
	var backend string
	err := row.Scan(&ref.WalletAddress, &ref.ContentID, &backend, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ref.Backend = storage.BackendTag(backend)
	return ref, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, walletAddress, contentID string, backend storage.BackendTag) (*models.ProfileReference, error) {

	query :=
		`INSERT INTO profile_references (wallet_address, content_id, backend)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (wallet_address) DO UPDATE
		 SET content_id = EXCLUDED.content_id, backend = EXCLUDED.backend, updated_at = now()
		 RETURNING wallet_address, content_id, backend, created_at, updated_at
		 `

	ref, err := scanReference(r.db.QueryRowContext(ctx, query, walletAddress, contentID, string(backend)))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ref, nil
}

func (r *PostgresRepository) Register(ctx context.Context, walletAddress string) (*models.ProfileReference, bool, error) {

	query :=
		`INSERT INTO profile_references (wallet_address)
		 VALUES ($1)
		 ON CONFLICT (wallet_address) DO NOTHING
		 RETURNING wallet_address, content_id, backend, created_at, updated_at
		 `

	ref, err := scanReference(r.db.QueryRowContext(ctx, query, walletAddress))
	if err == nil {
		return ref, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	// conflict, row already there
	ref, err = r.Get(ctx, walletAddress)
	if err != nil {
		return nil, false, err
	}
	return ref, false, nil
}

func (r *PostgresRepository) Get(ctx context.Context, walletAddress string) (*models.ProfileReference, error) {

	query :=
		`SELECT wallet_address, content_id, backend, created_at, updated_at
		 FROM profile_references
		 WHERE wallet_address = $1
		 `

	ref, err := scanReference(r.db.QueryRowContext(ctx, query, walletAddress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ref, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, walletAddress string) error {

	query :=
		`DELETE FROM profile_references
		 WHERE wallet_address = $1
		 `

	res, err := r.db.ExecContext(ctx, query, walletAddress)
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
