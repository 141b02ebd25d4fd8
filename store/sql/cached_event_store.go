package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-relay/core"
)

const relayEventCacheKeyPrefix = "go-relay::relay_event::v1"

// CachedEventStore serves idempotency-key lookups from a cache and drops the
// cached entry whenever a new event is appended under the same key. A prune
// that deletes rows drops every entry this store has cached.
type CachedEventStore struct {
	base  core.EventStore
	cache repositorycache.CacheService

	mu     sync.Mutex
	cached map[string]struct{}
}

func NewCachedEventStore(base core.EventStore, cacheService repositorycache.CacheService) (*CachedEventStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventStore{base: base, cache: cacheService, cached: map[string]struct{}{}}, nil
}

// RelayEventCacheKey returns the cache key for an idempotency-key lookup:
// go-relay::relay_event::v1::idempotency_key::<key> with the key URL-path
// escaped after trimming.
func RelayEventCacheKey(idempotencyKey string) (string, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return "", fmt.Errorf("sqlstore: idempotency key is required")
	}
	return strings.Join([]string{relayEventCacheKeyPrefix, "idempotency_key", url.PathEscape(key)}, "::"), nil
}

func (s *CachedEventStore) Append(ctx context.Context, event core.RelayEvent) (core.RelayEvent, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	recorded, err := s.base.Append(ctx, event)
	if err != nil {
		return core.RelayEvent{}, err
	}
	if recorded.IdempotencyKey == "" {
		return recorded, nil
	}
	cacheKey, err := RelayEventCacheKey(recorded.IdempotencyKey)
	if err != nil {
		return recorded, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return recorded, err
	}
	s.forget(cacheKey)
	return recorded, nil
}

func (s *CachedEventStore) List(ctx context.Context, filter core.RelayEventFilter) (core.RelayEventPage, error) {
	if s == nil || s.base == nil {
		return core.RelayEventPage{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedEventStore) GetByIdempotencyKey(ctx context.Context, key string) (core.RelayEvent, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	cacheKey, err := RelayEventCacheKey(key)
	if err != nil {
		return core.RelayEvent{}, err
	}
	normalized := strings.TrimSpace(key)
	event, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.RelayEvent, error) {
		fetched, fetchErr := s.base.GetByIdempotencyKey(ctx, normalized)
		if fetchErr != nil {
			return core.RelayEvent{}, fetchErr
		}
		return cloneRelayEvent(fetched), nil
	})
	if err != nil {
		return core.RelayEvent{}, err
	}
	s.remember(cacheKey)
	return cloneRelayEvent(event), nil
}

// Prune delegates to the base store and invalidates cached lookups when any
// row was deleted.
func (s *CachedEventStore) Prune(ctx context.Context, policy core.RetentionPolicy) (int, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	pruner, ok := s.base.(core.RetentionPruner)
	if !ok {
		return 0, fmt.Errorf("sqlstore: base event store does not support pruning")
	}
	deleted, err := pruner.Prune(ctx, policy)
	if err != nil || deleted == 0 {
		return deleted, err
	}
	return deleted, s.invalidateAll(ctx)
}

func (s *CachedEventStore) remember(cacheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		s.cached = map[string]struct{}{}
	}
	s.cached[cacheKey] = struct{}{}
}

func (s *CachedEventStore) forget(cacheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cached, cacheKey)
}

func (s *CachedEventStore) invalidateAll(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.cached))
	for key := range s.cached {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
		s.forget(key)
	}
	return nil
}

func cloneRelayEvent(event core.RelayEvent) core.RelayEvent {
	cloned := event
	cloned.Metadata = copyAnyMap(event.Metadata)
	if event.EstimatedCost != nil {
		cost := *event.EstimatedCost
		cloned.EstimatedCost = &cost
	}
	return cloned
}
