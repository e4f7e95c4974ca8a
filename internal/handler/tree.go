package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/treedef"
)

// maxDefinitionBytes bounds uploaded tree definitions.
const maxDefinitionBytes = 8 << 20

// TreeHandler serves tree definitions.
type TreeHandler struct {
	svc *engine.Service
	log *zap.Logger
}

func NewTreeHandler(svc *engine.Service, log *zap.Logger) *TreeHandler {
	return &TreeHandler{svc: svc, log: log}
}

// ListTrees handles GET /v1/trees.
func (h *TreeHandler) ListTrees(w http.ResponseWriter, r *http.Request) {
	trees, err := h.svc.Trees(r.Context())
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	if trees == nil {
		trees = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trees": trees})
}

// PutTree handles PUT /v1/trees/{treeID}. The body is a JSON or YAML
// definition, picked by Content-Type; its treeId, when set, must match the
// path.
func (h *TreeHandler) PutTree(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeID")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionBytes))
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	def, err := treedef.Parse(body, treedef.FormatOf(r.Header.Get("Content-Type")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DEFINITION", err.Error())
		return
	}
	if def.TreeID != treeID {
		writeError(w, http.StatusBadRequest, "TREE_ID_MISMATCH", "definition treeId "+def.TreeID+" does not match "+treeID)
		return
	}

	n, err := h.svc.ImportTree(r.Context(), treeID, def.Nodes)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treeId": treeID, "nodes": n})
}

// SharedReferences handles GET /v1/trees/{treeID}/nodes/{nodeID}/shared-references.
func (h *TreeHandler) SharedReferences(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeID")
	nodeID := chi.URLParam(r, "nodeID")
	refs, err := h.svc.SharedReferences(r.Context(), treeID, nodeID)
	if err != nil {
		errorToHTTP(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodeId": nodeID, "sharedReferenceIds": refs})
}
