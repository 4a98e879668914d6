package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/repositories/repomanager"
	"github.com/slemarket/hybridstore/internal/storage"
)

// MigrationService moves a wallet's profile payload from one backend to
// the configured write target. Migrations are non-destructive: source
// content is never unpinned or deleted, only the reference row moves.
type MigrationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	profiles    *ProfileService
	readers     map[storage.BackendTag]storage.Store
	log         logging.Logger
}

func NewMigrationService(db *sql.DB, m repomanager.RepositoryManager, profiles *ProfileService,
	readers map[storage.BackendTag]storage.Store, log logging.Logger) *MigrationService {
	return &MigrationService{db: db, repomanager: m, profiles: profiles, readers: readers, log: log}
}

// Migrate reads the wallet's current payload from the source backend
// and saves it through the profile service. A read failure aborts with
// no side effects.
func (s *MigrationService) Migrate(ctx context.Context, walletAddress string, source storage.BackendTag) (*SaveResult, error) {
	if walletAddress == "" {
		return nil, common.ErrorMissingIdentity
	}

	ref, err := s.repomanager.Profiles(s.db).Get(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	if !ref.HasContent() {
		return nil, fmt.Errorf("wallet has no stored content to migrate: %w", common.ErrorNotFound)
	}
	if ref.Backend != source {
		return nil, fmt.Errorf("reference backend is %q, not %q: %w", ref.Backend, source, common.ErrorIncorrectMetadata)
	}
	if s.profiles.target.Tag() == source {
		return nil, fmt.Errorf("content already on backend %q: %w", source, common.ErrorAlreadyExists)
	}

	reader, ok := s.readers[source]
	if !ok {
		return nil, fmt.Errorf("no adapter for backend %q: %w", source, common.ErrorInternal)
	}

	payload, err := reader.Get(ctx, *ref.ContentID)
	if err != nil {
		return nil, fmt.Errorf("error reading source payload: %w", err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("source payload is not a JSON document: %w", common.ErrorIncorrectMetadata)
	}

	res, err := s.profiles.savePayload(ctx, walletAddress, payload, false)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile migrated",
		"wallet", walletAddress,
		"from", string(source), "to", string(res.Backend),
		"contentID", res.ContentID, "degraded", res.Warning != "")

	return res, nil
}
