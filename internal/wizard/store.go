package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions between requests.
type Store[T any] interface {
	Get(ctx context.Context, id string) (*State[T], error)
	Save(ctx context.Context, s *State[T]) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions in process. Values are stored encoded so callers
// never share a draft with the store.
type MemoryStore[T any] struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an in-memory store. A zero ttl never expires.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore[T]) Get(_ context.Context, id string) (*State[T], error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if ok && !entry.expires.IsZero() && !m.clock().Before(entry.expires) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s State[T]
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	return &s, nil
}

func (m *MemoryStore[T]) Save(_ context.Context, s *State[T]) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("wizard: encode session: %w", err)
	}
	entry := memoryEntry{data: data}
	if m.ttl > 0 {
		entry.expires = m.clock().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[s.ID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps sessions in Redis under wizard:{flow}:{id}; every save
// refreshes the TTL so idle sessions expire.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store for one flow.
func NewRedisStore[T any](client *redis.Client, flow string, ttl time.Duration) *RedisStore[T] {
	if client == nil {
		panic("wizard: redis client required")
	}
	return &RedisStore[T]{
		client: client,
		prefix: "wizard:" + flow + ":",
		ttl:    ttl,
	}
}

func (r *RedisStore[T]) key(id string) string { return r.prefix + id }

func (r *RedisStore[T]) Get(ctx context.Context, id string) (*State[T], error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: redis get: %w", err)
	}
	var s State[T]
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore[T]) Save(ctx context.Context, s *State[T]) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("wizard: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("wizard: redis del: %w", err)
	}
	return nil
}

// keyedMutex serialises operations per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
