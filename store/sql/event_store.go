package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultEventsPerPage = 25

// EventStore is the append-only SQL store for relay events.
type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*relayEventRecord]
	now  func() time.Time
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*relayEventRecord](db, relayEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid relay event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *EventStore) Append(ctx context.Context, event core.RelayEvent) (core.RelayEvent, error) {
	if s == nil || s.repo == nil {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	event = event.Normalize()
	if event.Kind == "" {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: relay event kind is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	created, err := s.repo.Create(ctx, newRelayEventRecord(event))
	if err != nil {
		return core.RelayEvent{}, err
	}
	return created.toDomain(), nil
}

func (s *EventStore) List(ctx context.Context, filter core.RelayEventFilter) (core.RelayEventPage, error) {
	if s == nil || s.repo == nil {
		return core.RelayEventPage{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultEventsPerPage
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		selectors = append(selectors, repository.SelectBy("kind", "=", kind))
	}
	if taskID := strings.TrimSpace(filter.TaskID); taskID != "" {
		selectors = append(selectors, repository.SelectBy("task_id", "=", taskID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.RelayEventPage{}, err
	}
	items := make([]core.RelayEvent, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	hasNext := offset+len(items) < total
	nextOffset := ""
	if hasNext {
		nextOffset = strconv.Itoa(offset + len(items))
	}
	return core.RelayEventPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: nextOffset,
	}, nil
}

// GetByIdempotencyKey returns the latest event recorded under key. Keys are
// not unique: the relay records every delivery, duplicates included.
func (s *EventStore) GetByIdempotencyKey(ctx context.Context, key string) (core.RelayEvent, error) {
	if s == nil || s.repo == nil {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: idempotency key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("idempotency_key", "=", key),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.RelayEvent{}, err
	}
	if len(records) == 0 {
		return core.RelayEvent{}, fmt.Errorf("%w: idempotency_key %q", core.ErrEventNotFound, key)
	}
	return records[0].toDomain(), nil
}

func (s *EventStore) GetByID(ctx context.Context, id string) (core.RelayEvent, error) {
	if s == nil || s.db == nil {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.RelayEvent{}, fmt.Errorf("sqlstore: relay event id is required")
	}
	record := &relayEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.RelayEvent{}, fmt.Errorf("%w: id %q", core.ErrEventNotFound, id)
		}
		return core.RelayEvent{}, err
	}
	return record.toDomain(), nil
}

// Prune drops events older than policy.TTL, then the oldest rows beyond
// policy.RowCap.
func (s *EventStore) Prune(ctx context.Context, policy core.RetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: event store is not configured")
	}
	deleted := 0
	now := s.now().UTC()

	if policy.TTL > 0 {
		cutoff := now.Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*relayEventRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*relayEventRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM relay_events WHERE id IN (SELECT id FROM relay_events ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}
