package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-relay/core"
)

type stubEventStore struct {
	mu          sync.Mutex
	events      []core.RelayEvent
	getCalls    int
	appendCalls int
	getErr      error
}

func (s *stubEventStore) Append(_ context.Context, event core.RelayEvent) (core.RelayEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	event = event.Normalize()
	s.events = append(s.events, cloneRelayEvent(event))
	return event, nil
}

func (s *stubEventStore) List(context.Context, core.RelayEventFilter) (core.RelayEventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.RelayEventPage{Items: append([]core.RelayEvent(nil), s.events...), Total: len(s.events)}, nil
}

func (s *stubEventStore) GetByIdempotencyKey(_ context.Context, key string) (core.RelayEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.RelayEvent{}, s.getErr
	}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].IdempotencyKey == key {
			return cloneRelayEvent(s.events[i]), nil
		}
	}
	return core.RelayEvent{}, core.ErrEventNotFound
}

func TestCachedEventStore_Get_MissFetchThenHit(t *testing.T) {
	base := &stubEventStore{events: []core.RelayEvent{{
		Kind:           "manus_progress",
		IdempotencyKey: "task-1:s1",
		Decision:       "proceed",
		Metadata:       map[string]any{"source": "base"},
	}}}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.GetByIdempotencyKey(context.Background(), "task-1:s1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := store.GetByIdempotencyKey(context.Background(), " task-1:s1 "); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedEventStore_AppendInvalidatesKey(t *testing.T) {
	base := &stubEventStore{}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Append(ctx, core.RelayEvent{Kind: "manus_progress", IdempotencyKey: "task-2:s1", Decision: "retry"}); err != nil {
		t.Fatalf("append first: %v", err)
	}
	first, err := store.GetByIdempotencyKey(ctx, "task-2:s1")
	if err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if first.Decision != "retry" {
		t.Fatalf("expected retry decision, got %q", first.Decision)
	}

	if _, err := store.Append(ctx, core.RelayEvent{Kind: "manus_progress", IdempotencyKey: "task-2:s1", Decision: "abort"}); err != nil {
		t.Fatalf("append second: %v", err)
	}
	latest, err := store.GetByIdempotencyKey(ctx, "task-2:s1")
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidated key to force second base read, got %d", base.getCalls)
	}
	if latest.Decision != "abort" {
		t.Fatalf("expected latest decision abort, got %q", latest.Decision)
	}
}

func TestCachedEventStore_PropagatesBaseErrors(t *testing.T) {
	base := &stubEventStore{getErr: core.ErrEventNotFound}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	_, err = store.GetByIdempotencyKey(context.Background(), "task-404")
	if !errors.Is(err, core.ErrEventNotFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestCachedEventStore_PruneRequiresPruningBase(t *testing.T) {
	store, err := NewCachedEventStore(&stubEventStore{}, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	if _, err := store.Prune(context.Background(), core.RetentionPolicy{RowCap: 1}); err == nil {
		t.Fatalf("expected prune to fail for a base store without pruning")
	}
}

func TestRelayEventCacheKey_Contract(t *testing.T) {
	key, err := RelayEventCacheKey(" task/alpha:step 1 ")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-relay::relay_event::v1::idempotency_key::task%2Falpha:step%201"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}
	if _, err := RelayEventCacheKey(" "); err == nil {
		t.Fatalf("expected blank key to be rejected")
	}
}

func newTestEventCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

type pruningEventStore struct {
	*stubEventStore
	pruneCalls int
}

func (s *pruningEventStore) Prune(_ context.Context, policy core.RetentionPolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCalls++
	if policy.RowCap <= 0 || len(s.events) <= policy.RowCap {
		return 0, nil
	}
	deleted := len(s.events) - policy.RowCap
	s.events = append([]core.RelayEvent(nil), s.events[deleted:]...)
	return deleted, nil
}

func TestCachedEventStore_PruneInvalidatesCachedLookups(t *testing.T) {
	base := &pruningEventStore{stubEventStore: &stubEventStore{events: []core.RelayEvent{
		{Kind: "manus_progress", IdempotencyKey: "task-1:s1"},
		{Kind: "manus_progress", IdempotencyKey: "task-1:s2"},
	}}}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.GetByIdempotencyKey(ctx, "task-1:s1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := store.Prune(ctx, core.RetentionPolicy{RowCap: 5}); err != nil {
		t.Fatalf("no-op prune: %v", err)
	}
	if _, err := store.GetByIdempotencyKey(ctx, "task-1:s1"); err != nil {
		t.Fatalf("get after no-op prune: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected cache to survive a prune that deleted nothing, base get calls=%d", base.getCalls)
	}

	deleted, err := store.Prune(ctx, core.RetentionPolicy{RowCap: 1})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one deleted row, got %d", deleted)
	}
	_, err = store.GetByIdempotencyKey(ctx, "task-1:s1")
	if !errors.Is(err, core.ErrEventNotFound) {
		t.Fatalf("expected pruned event to be gone, got %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected lookup after prune to reach the base store, base get calls=%d", base.getCalls)
	}
}
