package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend stores sessions by token. Get returns (nil, nil) for an unknown
// token.
type Backend interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// MemoryBackend keeps sessions for the life of the process.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]Session)}
}

func (b *MemoryBackend) Put(_ context.Context, s *Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.Token] = *s
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, token string) (*Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (b *MemoryBackend) Delete(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, token)
	return nil
}

const sessionKeyPrefix = "clytar:session:"

// RedisBackend stores each session as JSON with a TTL matching its expiry,
// so sessions survive a process restart.
type RedisBackend struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb, now: time.Now}
}

func (b *RedisBackend) Put(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(b.now())
	if ttl <= 0 {
		return b.Delete(ctx, s.Token)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return b.rdb.Set(ctx, sessionKeyPrefix+s.Token, data, ttl).Err()
}

func (b *RedisBackend) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := b.rdb.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (b *RedisBackend) Delete(ctx context.Context, token string) error {
	return b.rdb.Del(ctx, sessionKeyPrefix+token).Err()
}
