// Package cache provides a short-TTL Redis cache over directory lookups.
// Principals are still built fresh per request; only the backing membership
// records are cached, bounded by the configured TTL.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"aegis/internal/directory"
	id "aegis/pkg/domain"
)

const keyPrefix = "dir:subject:"

// snapshot is the cached projection of one subject's directory records.
type snapshot struct {
	User        directory.User               `json:"user"`
	Memberships []directory.MembershipRecord `json:"memberships"`
}

// Cache is nil-safe: a nil *Cache behaves as a permanent miss, so callers
// need no branching when Redis is not configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached records for a subject, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, subjectID id.SubjectID) (directory.User, []directory.MembershipRecord, bool) {
	if c == nil {
		return directory.User{}, nil, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+subjectID.String()).Bytes()
	if err != nil {
		// redis.Nil is an expected miss; any other failure degrades to a miss.
		return directory.User{}, nil, false
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return directory.User{}, nil, false
	}
	return snap.User, snap.Memberships, true
}

// Put stores the records with the configured TTL. Failures are silent: the
// cache is an optimization, never a source of truth.
func (c *Cache) Put(ctx context.Context, user directory.User, memberships []directory.MembershipRecord) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(snapshot{User: user, Memberships: memberships})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, keyPrefix+user.ID.String(), raw, c.ttl).Err()
}

// Invalidate drops a subject's cached records.
func (c *Cache) Invalidate(ctx context.Context, subjectID id.SubjectID) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, keyPrefix+subjectID.String()).Err()
}
