// Package event defines the domain events emitted by form sessions.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeFieldValueChanged          = "field_value_changed"
	TypeRepeaterInstanceRequested  = "repeater_instance_requested"
	TypeRepeaterInstanceAdded      = "repeater_instance_added"
	TypeRepeaterInstanceRemoved    = "repeater_instance_removed"
	TypeRepeaterInstanceDuplicated = "repeater_instance_duplicated"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	SessionID  string          `json:"session_id,omitempty"`
	TreeID     string          `json:"tree_id"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// Decode unmarshals the payload of evt into v.
func (evt DomainEvent) Decode(v any) error {
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.EventType, err)
	}
	return nil
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newEvent(eventType, sessionID, treeID, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  eventType,
		OccurredAt: time.Now(),
		SessionID:  sessionID,
		TreeID:     treeID,
		Summary:    summary,
		Payload:    mustJSON(payload),
	}
}

// ── Field events ─────────────────────────────────────────────────────────────

// FieldValueChangedPayload carries event-specific data for FieldValueChanged.
type FieldValueChangedPayload struct {
	FieldID    string   `json:"field_id"`
	Value      any      `json:"value"`
	MirrorKeys []string `json:"mirror_keys,omitempty"`
}

func NewFieldValueChanged(sessionID, treeID string, p FieldValueChangedPayload) DomainEvent {
	return newEvent(TypeFieldValueChanged, sessionID, treeID,
		fmt.Sprintf("Field %s changed (%d mirror writes)", p.FieldID, len(p.MirrorKeys)), p)
}

// ── Repeater events ──────────────────────────────────────────────────────────

// RepeaterInstancePayload carries event-specific data for repeater events.
type RepeaterInstancePayload struct {
	RepeaterID      string   `json:"repeater_id"`
	InstanceIndex   int      `json:"instance_index"`
	InstanceCount   int      `json:"instance_count"`
	TemplateNodeIDs []string `json:"template_node_ids,omitempty"`
	CopiedNodeIDs   []string `json:"copied_node_ids,omitempty"`
}

// NewRepeaterInstanceRequested asks the duplication worker to copy the
// templates of a repeater for a new instance.
func NewRepeaterInstanceRequested(sessionID, treeID string, p RepeaterInstancePayload) DomainEvent {
	return newEvent(TypeRepeaterInstanceRequested, sessionID, treeID,
		fmt.Sprintf("Instance %d of repeater %s requested", p.InstanceIndex+1, p.RepeaterID), p)
}

func NewRepeaterInstanceAdded(sessionID, treeID string, p RepeaterInstancePayload) DomainEvent {
	return newEvent(TypeRepeaterInstanceAdded, sessionID, treeID,
		fmt.Sprintf("Instance %d of repeater %s added", p.InstanceIndex+1, p.RepeaterID), p)
}

func NewRepeaterInstanceRemoved(sessionID, treeID string, p RepeaterInstancePayload) DomainEvent {
	return newEvent(TypeRepeaterInstanceRemoved, sessionID, treeID,
		fmt.Sprintf("Instance %d of repeater %s removed", p.InstanceIndex+1, p.RepeaterID), p)
}

// NewRepeaterInstanceDuplicated reports template copies persisted to the
// node store.
func NewRepeaterInstanceDuplicated(sessionID, treeID string, p RepeaterInstancePayload) DomainEvent {
	return newEvent(TypeRepeaterInstanceDuplicated, sessionID, treeID,
		fmt.Sprintf("Repeater %s templates copied for instance %d (%d nodes)", p.RepeaterID, p.InstanceIndex+1, len(p.CopiedNodeIDs)), p)
}
