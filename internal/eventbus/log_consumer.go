package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log *zap.Logger
}

func NewLogConsumer(log *zap.Logger) *LogConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogConsumer{log: log}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	c.log.Info("event",
		zap.String("event_type", evt.EventType),
		zap.String("event_id", evt.ID),
		zap.String("tree_id", evt.TreeID),
		zap.String("session_id", evt.SessionID),
		zap.String("summary", evt.Summary))
	return nil
}
