// Package services contains server-side business logic. This file implements
// ProfileService, which keeps the mutable wallet → content id reference rows
// consistent with the immutable payloads on the content backends.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/models"
	"github.com/slemarket/hybridstore/internal/server/repositories/repomanager"
	"github.com/slemarket/hybridstore/internal/storage"
)

const defaultCleanupTimeout = 30 * time.Second

// WarningReferenceWrite annotates a save whose content upload succeeded
// but whose reference row update did not. The payload is safe on the
// backend; the reference reattaches on the next save.
const WarningReferenceWrite = "profile stored but reference update failed; it will reattach on the next save"

// SaveResult reports the outcome of a profile save. Reference is nil
// when the reference write degraded, in which case Warning is set.
type SaveResult struct {
	Reference *models.ProfileReference
	ContentID string
	Backend   storage.BackendTag
	IsUpdate  bool
	Warning   string
}

// Profile bundles a reference row with its resolved payload data. For
// registered wallets without stored content, Payload is nil and Data
// holds the well-defined empty profile.
type Profile struct {
	Reference *models.ProfileReference
	Data      models.ProfileData
	Payload   *models.ProfilePayload
}

// Stats summarizes a wallet's footprint without fetching any payload.
type Stats struct {
	Registered bool
	HasProfile bool
	NFTCount   int
}

// ProfileService orchestrates the upload-then-reference write order:
// the immutable payload is stored first, the mutable row second, so a
// torn write can only lose indexing, never content.
type ProfileService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	target         storage.Store
	readers        map[storage.BackendTag]storage.Store
	unpinner       storage.Unpinner
	log            logging.Logger
	cleanupTimeout time.Duration
}

// NewProfileService constructs a ProfileService. target receives all new
// writes; readers resolve stored content by the backend the reference
// row records. unpinner may be nil when no pinning cleanup is possible.
func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, target storage.Store,
	readers map[storage.BackendTag]storage.Store, unpinner storage.Unpinner, log logging.Logger) *ProfileService {
	return &ProfileService{
		db:             db,
		repomanager:    m,
		target:         target,
		readers:        readers,
		unpinner:       unpinner,
		log:            log,
		cleanupTimeout: defaultCleanupTimeout,
	}
}

// SetCleanupTimeout overrides the deadline applied to background
// unpin requests. Non-positive values are ignored.
func (s *ProfileService) SetCleanupTimeout(d time.Duration) {
	if d > 0 {
		s.cleanupTimeout = d
	}
}

// CreateOrUpdate wraps the profile data in the versioned payload
// envelope and saves it. Prior pinning-store content is cleaned up
// best-effort once the new reference is in place.
func (s *ProfileService) CreateOrUpdate(ctx context.Context, walletAddress string, data models.ProfileData) (*SaveResult, error) {
	if walletAddress == "" {
		return nil, common.ErrorMissingIdentity
	}

	payload := models.NewProfilePayload(data, time.Now())
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding profile payload: %w", err)
	}

	return s.savePayload(ctx, walletAddress, body, true)
}

// savePayload uploads the payload, then repoints the reference row.
// An upload failure aborts with the row untouched. A row failure after
// a successful upload is downgraded to a warning-annotated success.
// cleanupPrior is false for migrations, which must not touch source
// content.
func (s *ProfileService) savePayload(ctx context.Context, walletAddress string, body []byte, cleanupPrior bool) (*SaveResult, error) {
	repo := s.repomanager.Profiles(s.db)

	prior, err := repo.Get(ctx, walletAddress)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error reading profile reference: %w", err)
	}

	contentID, err := s.target.Put(ctx, body, storage.PutMeta{
		Name: "profile-" + walletAddress,
		Keyvalues: map[string]string{
			"type":          models.ProfilePayloadType,
			"walletAddress": walletAddress,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error storing profile payload: %w", err)
	}

	isUpdate := prior != nil && prior.HasContent()
	res := &SaveResult{
		ContentID: contentID,
		Backend:   s.target.Tag(),
		IsUpdate:  isUpdate,
	}

	ref, err := repo.Upsert(ctx, walletAddress, contentID, s.target.Tag())
	if err != nil {
		s.log.Warn(ctx, "reference write failed after successful upload",
			"wallet", walletAddress, "contentID", contentID, "backend", string(s.target.Tag()), "error", err)
		res.Warning = WarningReferenceWrite
		return res, nil
	}
	res.Reference = ref

	if cleanupPrior && isUpdate && prior.Backend == storage.BackendPinata &&
		s.unpinner != nil && *prior.ContentID != contentID {
		go s.unpinPrior(walletAddress, *prior.ContentID)
	}

	return res, nil
}

// unpinPrior runs detached with its own timeout; its outcome never
// reaches the caller.
func (s *ProfileService) unpinPrior(walletAddress, contentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.unpinner.Unpin(ctx, contentID); err != nil {
		s.log.Warn(ctx, "failed to unpin previous profile content",
			"wallet", walletAddress, "contentID", contentID, "error", err)
		return
	}
	s.log.Info(ctx, "unpinned previous profile content",
		"wallet", walletAddress, "contentID", contentID)
}

// Get resolves a wallet's profile. A registered wallet without stored
// content yields the empty profile rather than an error; an unknown
// wallet yields ErrorNotFound.
func (s *ProfileService) Get(ctx context.Context, walletAddress string) (*Profile, error) {
	if walletAddress == "" {
		return nil, common.ErrorMissingIdentity
	}

	ref, err := s.repomanager.Profiles(s.db).Get(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	if !ref.HasContent() {
		return &Profile{Reference: ref, Data: models.EmptyProfileData()}, nil
	}

	reader, ok := s.readers[ref.Backend]
	if !ok {
		return nil, fmt.Errorf("no adapter for backend %q: %w", ref.Backend, common.ErrorInternal)
	}

	raw, err := reader.Get(ctx, *ref.ContentID)
	if err != nil {
		return nil, fmt.Errorf("error fetching profile payload: %w", err)
	}

	var payload models.ProfilePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("stored payload is not a profile document: %w", common.ErrorIncorrectMetadata)
	}
	if payload.Type != models.ProfilePayloadType {
		return nil, fmt.Errorf("stored payload has type %q: %w", payload.Type, common.ErrorIncorrectMetadata)
	}

	return &Profile{Reference: ref, Data: payload.Data, Payload: &payload}, nil
}

// Delete removes the reference row only. Stored payloads are immutable
// and are left in place.
func (s *ProfileService) Delete(ctx context.Context, walletAddress string) error {
	if walletAddress == "" {
		return common.ErrorMissingIdentity
	}
	return s.repomanager.Profiles(s.db).Delete(ctx, walletAddress)
}

// Register creates a contentless reference row for a wallet if one does
// not exist. Idempotent; the bool reports whether the wallet is new.
func (s *ProfileService) Register(ctx context.Context, walletAddress string) (*models.ProfileReference, bool, error) {
	if walletAddress == "" {
		return nil, false, common.ErrorMissingIdentity
	}
	return s.repomanager.Profiles(s.db).Register(ctx, walletAddress)
}

// Exists reports whether a wallet has a reference row, without fetching
// any payload.
func (s *ProfileService) Exists(ctx context.Context, walletAddress string) (bool, error) {
	if walletAddress == "" {
		return false, common.ErrorMissingIdentity
	}
	_, err := s.repomanager.Profiles(s.db).Get(ctx, walletAddress)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stats reports registration state, profile presence, and NFT count for
// a wallet.
func (s *ProfileService) Stats(ctx context.Context, walletAddress string) (*Stats, error) {
	if walletAddress == "" {
		return nil, common.ErrorMissingIdentity
	}

	st := &Stats{}

	ref, err := s.repomanager.Profiles(s.db).Get(ctx, walletAddress)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if err == nil {
		st.Registered = true
		st.HasProfile = ref.HasContent()
	}

	recs, err := s.repomanager.NFTs(s.db).ListByOwner(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	st.NFTCount = len(recs)

	return st, nil
}
