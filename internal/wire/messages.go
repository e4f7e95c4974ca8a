// Package wire defines the WebSocket protocol for live form sessions.
package wire

import (
	"encoding/json"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
)

// Client message types.
const (
	TypeChange         = "change"
	TypeAddInstance    = "add_instance"
	TypeRemoveInstance = "remove_instance"
	TypeRender         = "render"
	TypePing           = "ping"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "change", "add_instance", "remove_instance", "render", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ChangeData is the payload for "change" messages.
type ChangeData struct {
	FieldID string `json:"field_id" validate:"required"`
	Value   any    `json:"value"`
}

// InstanceData is the payload for "add_instance" and "remove_instance"
// messages. Index is ignored when adding.
type InstanceData struct {
	RepeaterID string `json:"repeater_id" validate:"required"`
	Index      int    `json:"index" validate:"gte=0"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "render", "changed", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
	TreeID    string `json:"tree_id"`
}

// RenderData carries a full render of the session.
type RenderData = engine.View

// ChangedData acknowledges a change with the keys it wrote.
type ChangedData = engine.ChangeResult

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
