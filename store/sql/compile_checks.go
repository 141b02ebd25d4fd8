package sqlstore

import "github.com/goliatone/go-relay/core"

var (
	_ core.EventStore      = (*EventStore)(nil)
	_ core.RetentionPruner = (*EventStore)(nil)
	_ core.EventStore      = (*CachedEventStore)(nil)
	_ core.RetentionPruner = (*CachedEventStore)(nil)
)
