package service

import (
	"context"
	"log/slog"

	"socialapp/internal/notifications"
	"socialapp/internal/observability"
)

// EventPublisher delivers realtime events to a subject. notifications.Notifier
// implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, subjectID string, evt notifications.Event) error
}

// notify publishes best effort: a failed publish is logged and never fails
// the operation that triggered it.
func notify(ctx context.Context, events EventPublisher, recipient, actor string, evt notifications.Event) {
	if events == nil || recipient == "" || recipient == actor {
		return
	}
	if err := events.PublishEvent(ctx, recipient, evt); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish notification",
			slog.String("type", evt.Type),
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
	}
}
