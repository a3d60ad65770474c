package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lastSeenTTL = 30 * 24 * time.Hour

// LastSeenStore records when a user's last session closed.
type LastSeenStore interface {
	Touch(ctx context.Context, userID uuid.UUID, at time.Time) error
	LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
}

type MemoryLastSeen struct {
	mu   sync.RWMutex
	seen map[uuid.UUID]time.Time
}

func NewMemoryLastSeen() *MemoryLastSeen {
	return &MemoryLastSeen{seen: make(map[uuid.UUID]time.Time)}
}

func (m *MemoryLastSeen) Touch(_ context.Context, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	m.seen[userID] = at
	m.mu.Unlock()
	return nil
}

func (m *MemoryLastSeen) LastSeen(_ context.Context, userID uuid.UUID) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.seen[userID]
	return at, ok, nil
}

type RedisLastSeen struct {
	client *redis.Client
}

// NewRedisLastSeen connects to redisURL and checks the connection.
func NewRedisLastSeen(ctx context.Context, redisURL string) (*RedisLastSeen, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisLastSeen{client: client}, nil
}

func lastSeenKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s:last_seen", userID)
}

func (r *RedisLastSeen) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.client.Set(ctx, lastSeenKey(userID), at.UnixMilli(), lastSeenTTL).Err()
}

func (r *RedisLastSeen) LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	ms, err := r.client.Get(ctx, lastSeenKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (r *RedisLastSeen) Close() error {
	return r.client.Close()
}
