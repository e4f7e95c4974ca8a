package activity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
)

// Indexer consumes domain events and writes one activity entry per event
// to the store. It is registered on the event bus like any other consumer.
type Indexer struct {
	store Store
	log   *zap.Logger
}

// NewIndexer creates an activity indexer.
func NewIndexer(store Store, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{store: store, log: log}
}

// HandleEvent indexes evt. Events outside a session are skipped.
func (idx *Indexer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.SessionID == "" {
		return nil
	}
	entry := Entry{
		EventID:    evt.ID,
		EventType:  evt.EventType,
		OccurredAt: evt.OccurredAt,
		SessionID:  evt.SessionID,
		TreeID:     evt.TreeID,
		Subject:    subject(evt),
		Category:   Categorize(evt.EventType),
		Summary:    evt.Summary,
		Payload:    evt.Payload,
	}
	if err := idx.store.WriteEntries(ctx, []Entry{entry}); err != nil {
		return fmt.Errorf("index %s: %w", evt.EventType, err)
	}
	idx.log.Debug("activity indexed",
		zap.String("session_id", evt.SessionID),
		zap.String("event_type", evt.EventType),
		zap.String("subject", entry.Subject))
	return nil
}

// Categorize maps an event type to its activity category.
func Categorize(eventType string) string {
	switch {
	case eventType == event.TypeRepeaterInstanceDuplicated:
		return CategoryTemplate
	case strings.HasPrefix(eventType, "field_"):
		return CategoryField
	case strings.HasPrefix(eventType, "repeater_"):
		return CategoryRepeater
	default:
		return CategoryOther
	}
}

// subject picks the field or repeater the event is about.
func subject(evt event.DomainEvent) string {
	var p struct {
		FieldID    string `json:"field_id"`
		RepeaterID string `json:"repeater_id"`
	}
	if err := evt.Decode(&p); err != nil {
		return ""
	}
	if p.FieldID != "" {
		return p.FieldID
	}
	return p.RepeaterID
}
