package issuer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SessionBackendMemory = "mem"
	SessionBackendRedis  = "redis"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps opaque tokens to the logged in card number.
type SessionStore interface {
	Create(ctx context.Context, number string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	number  string
	expires time.Time
}

// MemorySessions keeps tokens in process. A zero ttl never expires.
type MemorySessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemorySessions) Create(_ context.Context, number string) (string, error) {
	token := uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e := memoryEntry{number: number}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
		m.sweep(now)
	}
	m.entries[token] = e
	return token, nil
}

// sweep drops expired tokens. m.mu must be held.
func (m *MemorySessions) sweep(now time.Time) {
	for token, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, token)
		}
	}
}

func (m *MemorySessions) Lookup(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, token)
		return "", ErrSessionNotFound
	}
	return e.number, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}

// RedisSessions stores tokens as "session:<token>" keys with a TTL.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

func sessionKey(token string) string { return "session:" + token }

func (r *RedisSessions) Create(ctx context.Context, number string) (string, error) {
	token := uuid.New().String()
	if err := r.client.Set(ctx, sessionKey(token), number, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set session: %w", err)
	}
	return token, nil
}

func (r *RedisSessions) Lookup(ctx context.Context, token string) (string, error) {
	number, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get session: %w", err)
	}
	return number, nil
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
