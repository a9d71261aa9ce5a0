// Package store persists field-encryption metadata: which fields of which
// resource are encrypted, under what key alias, and whether a deterministic
// hash accompanies the ciphertext.
package store

import (
	"context"
	"time"
)

// Meta is one registered encrypted field, keyed by (resource, field).
type Meta struct {
	Resource      string
	Field         string
	KeyAlias      string
	Deterministic bool
	CreatedAt     time.Time
}

// Store is the persistence contract for field metadata. Upsert replaces an
// existing registration for the same (resource, field) pair.
type Store interface {
	Upsert(ctx context.Context, meta Meta) error
	ListByResource(ctx context.Context, resource string) ([]Meta, error)
}
