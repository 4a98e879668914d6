// Package profiles persists the mutable wallet → content id reference
// rows. The rows are the only mutable state in the system; the payloads
// they point at are immutable.
package profiles

import (
	"context"

	"github.com/slemarket/hybridstore/internal/server/models"
	"github.com/slemarket/hybridstore/internal/storage"
)

type Repository interface {
	// Upsert points a wallet's reference at new content. Last write wins.
	Upsert(ctx context.Context, walletAddress, contentID string, backend storage.BackendTag) (*models.ProfileReference, error)
	// Register creates the row with a null content id if it does not
	// exist. The bool reports whether a row was created.
	Register(ctx context.Context, walletAddress string) (*models.ProfileReference, bool, error)
	Get(ctx context.Context, walletAddress string) (*models.ProfileReference, error)
	Delete(ctx context.Context, walletAddress string) error
}
