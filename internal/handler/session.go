package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/activity"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
)

// SessionHandler serves form sessions over REST.
type SessionHandler struct {
	svc *engine.Service
	log *zap.Logger
}

func NewSessionHandler(svc *engine.Service, log *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, log: log}
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	TreeID string         `json:"treeId" validate:"required"`
	Values map[string]any `json:"values,omitempty"`
}

// SetValueRequest is one field change.
type SetValueRequest struct {
	FieldID string `json:"fieldId" validate:"required"`
	Value   any    `json:"value"`
}

// SetValuesRequest is the body of POST /v1/sessions/{id}/values. Changes are
// applied in order.
type SetValuesRequest struct {
	Changes []SetValueRequest `json:"changes" validate:"required,min=1,dive"`
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), req.TreeID, req.Values)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId": sess.ID,
		"treeId":    sess.TreeID,
		"createdAt": sess.CreatedAt,
	})
}

// Render handles GET /v1/sessions/{id}/render.
func (h *SessionHandler) Render(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Render(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetValues handles GET /v1/sessions/{id}/values.
func (h *SessionHandler) GetValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.svc.Values(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

// SetValues handles POST /v1/sessions/{id}/values.
func (h *SessionHandler) SetValues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SetValuesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	results := make([]engine.ChangeResult, 0, len(req.Changes))
	for _, c := range req.Changes {
		res, err := h.svc.Change(r.Context(), id, c.FieldID, c.Value)
		if err != nil {
			errorToHTTP(w, h.log, err)
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": results})
}

// AddInstance handles POST /v1/sessions/{id}/repeaters/{repeaterID}/instances.
func (h *SessionHandler) AddInstance(w http.ResponseWriter, r *http.Request) {
	index, err := h.svc.AddInstance(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "repeaterID"))
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"instanceIndex": index})
}

// RemoveInstance handles DELETE /v1/sessions/{id}/repeaters/{repeaterID}/instances/{index}.
func (h *SessionHandler) RemoveInstance(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	if err := h.svc.RemoveInstance(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "repeaterID"), index); err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activity handles GET /v1/sessions/{id}/activity. Query parameters:
// category (comma separated), since (RFC 3339), limit and cursor.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	if c := q.Get("category"); c != "" {
		opts.Categories = strings.Split(c, ",")
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "invalid since: "+s)
			return
		}
		opts.Since = &since
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "invalid limit: "+l)
			return
		}
		opts.Limit = n
	}
	opts.Cursor = q.Get("cursor")

	page, err := h.svc.Activity(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
