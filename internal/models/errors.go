// file: internal/models/errors.go
// version: 1.0.0
// guid: 9634601f-2395-4ac3-a98d-0723665fd4a4

package models

import "errors"

// Sentinel errors shared across the store, pipeline and HTTP layer.
var (
	// ErrConflict marks an illegal lifecycle transition or a manual
	// command that is not valid for the item's current status.
	ErrConflict = errors.New("conflicting state transition")

	// ErrNotFound marks an unknown video id.
	ErrNotFound = errors.New("video not found")

	// ErrUnauthorized marks a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
)
