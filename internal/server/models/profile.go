// Package models defines server-side data models: the mutable reference
// rows persisted in the database and the immutable payload documents
// stored on the content backends.
package models

import (
	"time"

	"github.com/slemarket/hybridstore/internal/storage"
)

// ProfilePayloadType marks sensitive-profile documents on the content
// backends; the payload carries it so readers can reject foreign data.
const ProfilePayloadType = "user-profile-sensitive"

// ProfilePayloadVersion is the current payload schema version.
const ProfilePayloadVersion = "1.0.0"

const notProvided = "Not provided"

// ProfileReference is the mutable pointer row mapping a wallet address
// to an immutable content id. ContentID is nil until the first payload
// upload succeeds; Backend records where that payload lives.
type ProfileReference struct {
	WalletAddress string
	ContentID     *string
	Backend       storage.BackendTag
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasContent reports whether the reference points at stored payload.
func (r *ProfileReference) HasContent() bool {
	return r.ContentID != nil && *r.ContentID != "" && r.Backend != storage.BackendNone
}

// ProfilePayload is the immutable content-addressed document. Once
// written to a backend it is never mutated; updates write a new
// document and repoint the reference row.
type ProfilePayload struct {
	Type      string      `json:"type"`
	Version   string      `json:"version"`
	Timestamp int64       `json:"timestamp"`
	Data      ProfileData `json:"data"`
}

// ProfileData holds the sensitive profile fields.
type ProfileData struct {
	FullName     string            `json:"fullName"`
	Username     string            `json:"username"`
	DateOfBirth  string            `json:"dateOfBirth,omitempty"`
	Email        string            `json:"email"`
	ProfileImage string            `json:"profileImage,omitempty"`
	CoverImage   string            `json:"coverImage,omitempty"`
	Metadata     ProfileTimestamps `json:"metadata"`
}

// ProfileTimestamps carry the document's own lifecycle times, distinct
// from the reference row's created_at/updated_at.
type ProfileTimestamps struct {
	CreatedAt   string `json:"createdAt"`
	LastUpdated string `json:"lastUpdated"`
}

// NewProfilePayload wraps profile data in the versioned envelope. A
// zero createdAt in data is filled with now; lastUpdated always is.
func NewProfilePayload(data ProfileData, now time.Time) ProfilePayload {
	ts := now.UTC().Format(time.RFC3339)
	if data.Metadata.CreatedAt == "" {
		data.Metadata.CreatedAt = ts
	}
	data.Metadata.LastUpdated = ts
	return ProfilePayload{
		Type:      ProfilePayloadType,
		Version:   ProfilePayloadVersion,
		Timestamp: now.UnixMilli(),
		Data:      data,
	}
}

// EmptyProfileData is returned for registered wallets that have not
// uploaded a payload yet. Same shape as a stored profile so callers
// never branch on presence.
func EmptyProfileData() ProfileData {
	return ProfileData{
		FullName: notProvided,
		Username: notProvided,
		Email:    notProvided,
	}
}
