package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RelayWebhookMessage]     = (*RelayWebhookCommand)(nil)
	_ gocmd.Commander[EvaluateProgressMessage] = (*EvaluateProgressCommand)(nil)
	_ gocmd.Commander[RecordEventMessage]      = (*RecordEventCommand)(nil)
	_ gocmd.Commander[PruneEventsMessage]      = (*PruneEventsCommand)(nil)
)
