// Package preferences stores per-device settings such as the remembered
// login email.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRememberTTL is how long a remembered email survives without a login.
const DefaultRememberTTL = 90 * 24 * time.Hour

// Store remembers the last email used to sign in from a device.
type Store interface {
	RememberedEmail(ctx context.Context, deviceID string) (string, bool, error)
	RememberEmail(ctx context.Context, deviceID, email string) error
	Forget(ctx context.Context, deviceID string) error
}

// RedisStore keeps remembered emails under pref:remember_email:{device}.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("preferences: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultRememberTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func rememberKey(deviceID string) string {
	return "pref:remember_email:" + deviceID
}

func (s *RedisStore) RememberedEmail(ctx context.Context, deviceID string) (string, bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return "", false, nil
	}
	email, err := s.client.Get(ctx, rememberKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("preferences: get remembered email: %w", err)
	}
	return email, true, nil
}

func (s *RedisStore) RememberEmail(ctx context.Context, deviceID, email string) error {
	if strings.TrimSpace(deviceID) == "" {
		return nil
	}
	if err := s.client.Set(ctx, rememberKey(deviceID), email, s.ttl).Err(); err != nil {
		return fmt.Errorf("preferences: remember email: %w", err)
	}
	return nil
}

func (s *RedisStore) Forget(ctx context.Context, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return nil
	}
	if err := s.client.Del(ctx, rememberKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("preferences: forget email: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{emails: make(map[string]string)}
}

func (m *MemoryStore) RememberedEmail(_ context.Context, deviceID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email, ok := m.emails[deviceID]
	return email, ok, nil
}

func (m *MemoryStore) RememberEmail(_ context.Context, deviceID, email string) error {
	if strings.TrimSpace(deviceID) == "" {
		return nil
	}
	m.mu.Lock()
	m.emails[deviceID] = email
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Forget(_ context.Context, deviceID string) error {
	m.mu.Lock()
	delete(m.emails, deviceID)
	m.mu.Unlock()
	return nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
