// Package common defines shared sentinel errors used across the storage
// and service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Reference-table write failure. The profile service downgrades this
	// one (and only this one) to a warning when it occurs after a
	// successful content upload.
	ErrorReferenceWrite = errors.New("reference write failed")

	// Validation errors.
	ErrorMissingIdentity   = errors.New("identity key is required")
	ErrorIncorrectMetadata = errors.New("incorrect metadata")
)
