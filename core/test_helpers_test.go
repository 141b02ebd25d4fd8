package core

import (
	"context"
	"sync"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []DispatchEvent
	err    error
	wait   bool
}

func (s *recordingSink) Dispatch(ctx context.Context, event DispatchEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	if s.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type memoryEventStore struct {
	mu     sync.Mutex
	events []RelayEvent
	err    error
}

func (s *memoryEventStore) Append(_ context.Context, event RelayEvent) (RelayEvent, error) {
	if s.err != nil {
		return RelayEvent{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return event, nil
}

func (s *memoryEventStore) List(_ context.Context, filter RelayEventFilter) (RelayEventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []RelayEvent{}
	for _, event := range s.events {
		if filter.Kind != "" && event.Kind != filter.Kind {
			continue
		}
		items = append(items, event)
	}
	return RelayEventPage{Items: items, Page: 1, PerPage: len(items), Total: len(items)}, nil
}

func (s *memoryEventStore) GetByIdempotencyKey(_ context.Context, key string) (RelayEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].IdempotencyKey == key {
			return s.events[i], nil
		}
	}
	return RelayEvent{}, ErrEventNotFound
}
