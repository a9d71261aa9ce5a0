// Package keystore persists wrapped data keys. The invariant it guards: at
// most one key per alias is active at any time, including under concurrent
// get-or-create for a brand-new alias.
package keystore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Key is one data-key record. Material is stored wrapped; the encryption
// provider owns unwrapping.
type Key struct {
	ID         uuid.UUID
	Alias      string
	WrappedKey []byte
	Algorithm  string
	Active     bool
	CreatedAt  time.Time
	RotatedAt  *time.Time
}

// Store is the persistence contract for data keys.
//
// GetOrCreateActive must be atomic: when two callers race on a never-used
// alias, exactly one candidate is inserted and both receive the same record
// (the loser gets created=false). Implementations use a unique-constraint
// upsert or equivalent serialization.
type Store interface {
	GetOrCreateActive(ctx context.Context, candidate Key) (Key, bool, error)
	GetByID(ctx context.Context, keyID uuid.UUID) (Key, error)
	Rotate(ctx context.Context, alias string, replacement Key, rotatedAt time.Time) (Key, error)
}
