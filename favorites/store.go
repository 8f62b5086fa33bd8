package favorites

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrNoOwner = errors.New("favorites: owner is required")

// Store persists one set of event ids per owner.
type Store interface {
	List(ctx context.Context, owner string) ([]string, error)
	Add(ctx context.Context, owner, eventID string) error
	Remove(ctx context.Context, owner, eventID string) error
	Contains(ctx context.Context, owner, eventID string) (bool, error)
}

func key(owner string) string { return "favorites:" + owner }

type RedisStore struct {
	conn redis.UniversalClient
}

func NewRedisStore(conn redis.UniversalClient) *RedisStore {
	return &RedisStore{conn: conn}
}

func (s *RedisStore) List(ctx context.Context, owner string) ([]string, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	ids, err := s.conn.SMembers(ctx, key(owner)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Add(ctx context.Context, owner, eventID string) error {
	if owner == "" {
		return ErrNoOwner
	}
	return s.conn.SAdd(ctx, key(owner), eventID).Err()
}

func (s *RedisStore) Remove(ctx context.Context, owner, eventID string) error {
	if owner == "" {
		return ErrNoOwner
	}
	return s.conn.SRem(ctx, key(owner), eventID).Err()
}

func (s *RedisStore) Contains(ctx context.Context, owner, eventID string) (bool, error) {
	if owner == "" {
		return false, ErrNoOwner
	}
	return s.conn.SIsMember(ctx, key(owner), eventID).Result()
}

type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]map[string]struct{})}
}

func (s *MemoryStore) List(_ context.Context, owner string) ([]string, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sets[owner]))
	for id := range s.sets[owner] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Add(_ context.Context, owner, eventID string) error {
	if owner == "" {
		return ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[owner]
	if !ok {
		set = make(map[string]struct{})
		s.sets[owner] = set
	}
	set[eventID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, owner, eventID string) error {
	if owner == "" {
		return ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[owner], eventID)
	return nil
}

func (s *MemoryStore) Contains(_ context.Context, owner, eventID string) (bool, error) {
	if owner == "" {
		return false, ErrNoOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[owner][eventID]
	return ok, nil
}
