package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss means no live entry exists for the key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry means the stored value could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// StaleRetention is how long revalidatable entries stay in Redis after they
// expire, so a conditional request can still be made for them.
const StaleRetention = time.Hour

// Manager reads and writes entries in Redis.
type Manager struct {
	redis redis.UniversalClient
}

// NewManager creates a manager. It panics on a nil client.
func NewManager(redisClient redis.UniversalClient) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get returns the live entry for key or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	entry, err := m.load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			Misses.Inc()
		}
		return nil, err
	}

	if entry.IsExpired() {
		if !entry.CanRevalidate() {
			_ = m.Delete(ctx, key)
		}
		Misses.Inc()
		return nil, ErrCacheMiss
	}

	Hits.Inc()
	return entry, nil
}

// GetStale returns the entry for key even if it has expired. It is used to
// revalidate an expired entry with a conditional request.
func (m *Manager) GetStale(ctx context.Context, key Key) (*Entry, error) {
	return m.load(ctx, key)
}

func (m *Manager) load(ctx context.Context, key Key) (*Entry, error) {
	raw, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		Errors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		Errors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Set stores entry until its Expires time, plus StaleRetention when the
// entry can be revalidated. Expired entries are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}
	if entry.CanRevalidate() {
		ttl += StaleRetention
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		Errors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		Errors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoredBytes.Add(float64(len(raw)))
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		Errors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry, e.g. after a 304 response
// carrying a new Expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key Key, expires time.Time) error {
	entry, err := m.load(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = expires
	return m.Set(ctx, key, entry)
}
