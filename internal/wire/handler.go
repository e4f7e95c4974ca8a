package wire

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/repeater"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/session"
)

// Handler manages WebSocket connections for live form sessions. Every
// connection owns one session; the session is closed with the connection.
type Handler struct {
	svc      *engine.Service
	validate *validator.Validate
	log      *zap.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(svc *engine.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// ServeHTTP upgrades to WebSocket and runs the message loop. The tree is
// chosen with the tree_id query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	treeID := r.URL.Query().Get("tree_id")
	if treeID == "" {
		http.Error(w, "tree_id is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess, err := h.svc.CreateSession(ctx, treeID, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, nodestore.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer func() {
		if err := h.svc.CloseSession(context.WithoutCancel(ctx), sess.ID); err != nil {
			h.log.Warn("wire: close session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("wire: websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	h.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: sess.ID, TreeID: sess.TreeID},
	})
	h.sendRender(ctx, conn, sess.ID, "")

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.log.Debug("wire: connection closed", zap.Int("status", int(websocket.CloseStatus(err))))
			}
			return
		}

		switch msg.Type {
		case TypeChange:
			h.handleChange(ctx, conn, sess.ID, msg)
		case TypeAddInstance:
			h.handleAddInstance(ctx, conn, sess.ID, msg)
		case TypeRemoveInstance:
			h.handleRemoveInstance(ctx, conn, sess.ID, msg)
		case TypeRender:
			h.sendRender(ctx, conn, sess.ID, msg.ID)
		case TypePing:
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

// decode unmarshals and validates a message payload, reporting failures to
// the client.
func (h *Handler) decode(ctx context.Context, conn *websocket.Conn, msg ClientMessage, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", fmt.Sprintf("invalid %s data", msg.Type))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", err.Error())
		return false
	}
	return true
}

func (h *Handler) handleChange(ctx context.Context, conn *websocket.Conn, sessionID string, msg ClientMessage) {
	var data ChangeData
	if !h.decode(ctx, conn, msg, &data) {
		return
	}
	res, err := h.svc.Change(ctx, sessionID, data.FieldID, data.Value)
	if err != nil {
		h.sendEngineError(ctx, conn, msg.ID, err)
		return
	}
	h.send(ctx, conn, ServerMessage{Type: "changed", RequestID: msg.ID, Data: res})
	h.sendRender(ctx, conn, sessionID, msg.ID)
}

func (h *Handler) handleAddInstance(ctx context.Context, conn *websocket.Conn, sessionID string, msg ClientMessage) {
	var data InstanceData
	if !h.decode(ctx, conn, msg, &data) {
		return
	}
	if _, err := h.svc.AddInstance(ctx, sessionID, data.RepeaterID); err != nil {
		h.sendEngineError(ctx, conn, msg.ID, err)
		return
	}
	h.sendRender(ctx, conn, sessionID, msg.ID)
}

func (h *Handler) handleRemoveInstance(ctx context.Context, conn *websocket.Conn, sessionID string, msg ClientMessage) {
	var data InstanceData
	if !h.decode(ctx, conn, msg, &data) {
		return
	}
	if err := h.svc.RemoveInstance(ctx, sessionID, data.RepeaterID, data.Index); err != nil {
		h.sendEngineError(ctx, conn, msg.ID, err)
		return
	}
	h.sendRender(ctx, conn, sessionID, msg.ID)
}

func (h *Handler) sendRender(ctx context.Context, conn *websocket.Conn, sessionID, requestID string) {
	view, err := h.svc.Render(ctx, sessionID)
	if err != nil {
		h.sendEngineError(ctx, conn, requestID, err)
		return
	}
	h.send(ctx, conn, ServerMessage{Type: "render", RequestID: requestID, Data: view})
}

func (h *Handler) sendEngineError(ctx context.Context, conn *websocket.Conn, requestID string, err error) {
	switch {
	case errors.Is(err, repeater.ErrMaxItems):
		h.sendError(ctx, conn, requestID, "max_items", err.Error())
	case errors.Is(err, repeater.ErrNoInstance), errors.Is(err, engine.ErrUnknownRepeater):
		h.sendError(ctx, conn, requestID, "not_found", err.Error())
	case errors.Is(err, session.ErrNotFound):
		h.sendError(ctx, conn, requestID, "session_expired", err.Error())
	default:
		h.log.Error("wire: engine error", zap.Error(err))
		h.sendError(ctx, conn, requestID, "internal", "internal error")
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.log.Debug("wire: write error", zap.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
