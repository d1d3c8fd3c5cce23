package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// SnapshotCache keeps computed week snapshots in Redis so a burst of
// mutations or subscribes does not recompute the same projection repeatedly.
// A nil client disables caching entirely.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotCache constructs a snapshot cache.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{client: client, ttl: ttl, logger: logger}
}

func snapshotKey(schoolID string, identity timetable.Identity, week timetable.WeekKey) string {
	return fmt.Sprintf("snapshot:%s:%s:%d:%d", schoolID, identity.Key(), week.Year, week.Week)
}

// Get retrieves a cached snapshot.
func (c *SnapshotCache) Get(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) (*timetable.Snapshot, error) {
	if c == nil || c.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, snapshotKey(schoolID, identity, week)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	var snap timetable.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores a snapshot with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, schoolID string, identity timetable.Identity, snap timetable.Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(schoolID, identity, snap.WeekKey()), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// Invalidate drops every cached week for the given identity.
func (c *SnapshotCache) Invalidate(ctx context.Context, schoolID string, identity timetable.Identity) error {
	if c == nil || c.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("snapshot:%s:%s:*", schoolID, identity.Key())
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (c *SnapshotCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
