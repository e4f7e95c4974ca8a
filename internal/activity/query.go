// Package activity records the domain events of form sessions as a
// per-session activity stream.
package activity

import (
	"encoding/json"
	"time"
)

// Entry categories.
const (
	CategoryField    = "field"
	CategoryRepeater = "repeater"
	CategoryTemplate = "template"
	CategoryOther    = "other"
)

// Entry is one indexed domain event.
type Entry struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	SessionID  string          `json:"sessionId"`
	TreeID     string          `json:"treeId"`
	Subject    string          `json:"subject,omitempty"` // field or repeater id
	Category   string          `json:"category"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueryOptions controls filtering and pagination of a session's activity.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string
	Limit      int    // default 100, max 500
	Cursor     string // occurredAt of the last entry of the previous page
}

// DefaultQueryOptions returns QueryOptions with the default page size.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

func (o QueryOptions) cursor() (time.Time, bool) {
	if o.Cursor == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, o.Cursor)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
