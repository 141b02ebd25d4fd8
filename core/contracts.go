package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Signer interface {
	Sign(ctx context.Context, req *http.Request, cred Credential) error
}

type InboundRequest struct {
	Surface  string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Body       map[string]any
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// DispatchSink receives sanitized events that leave the relay.
type DispatchSink interface {
	Dispatch(ctx context.Context, event DispatchEvent) error
}

type DispatchSinkFunc func(ctx context.Context, event DispatchEvent) error

func (f DispatchSinkFunc) Dispatch(ctx context.Context, event DispatchEvent) error {
	return f(ctx, event)
}

type RelayEventFilter struct {
	Kind    string
	TaskID  string
	Status  RelayEventStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type RelayEventPage struct {
	Items      []RelayEvent
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

type RetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

type EventReader interface {
	List(ctx context.Context, filter RelayEventFilter) (RelayEventPage, error)
	GetByIdempotencyKey(ctx context.Context, key string) (RelayEvent, error)
}

// EventStore is append-only: recorded events are never updated.
type EventStore interface {
	EventReader
	Append(ctx context.Context, event RelayEvent) (RelayEvent, error)
}

type RetentionPruner interface {
	Prune(ctx context.Context, policy RetentionPolicy) (int, error)
}
