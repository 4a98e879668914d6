package models

import (
	"encoding/json"
	"time"
)

// NFTRecord links a mint address to its immutable metadata document.
// Ownership lives in the row and may change; ContentID never does.
type NFTRecord struct {
	MintAddress       string
	ContentID         string
	OwnerWallet       string
	TokenID           string
	CollectionAddress string
	Metadata          json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
